package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// terminalPresenter shows the device code on the terminal and, when
// allowed, opens the verification page in a browser.
type terminalPresenter struct {
	mu          sync.Mutex
	out         io.Writer
	openBrowser bool
	quiet       bool
	open        func(url string) error
	interactive func() bool
}

// Ensure terminalPresenter implements the interface.
var _ driven.VerificationPresenter = (*terminalPresenter)(nil)

// devicePresenter writes to stderr so stdout stays clean for --json
// output and the MCP stdio transport.
var devicePresenter = newTerminalPresenter(os.Stderr)

func newTerminalPresenter(out io.Writer) *terminalPresenter {
	return &terminalPresenter{
		out:         out,
		openBrowser: true,
		open:        OpenBrowser,
		interactive: func() bool { return term.IsTerminal(int(os.Stdout.Fd())) },
	}
}

// Presenter returns the verification presenter used by the auth service.
func Presenter() driven.VerificationPresenter {
	return devicePresenter
}

func (p *terminalPresenter) setOpenBrowser(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openBrowser = v
}

// setQuiet suppresses terminal output while another surface, such as the
// TUI, renders the device code itself.
func (p *terminalPresenter) setQuiet(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quiet = v
}

// PresentVerification prints the verification URI and user code. A browser
// that fails to open is logged and otherwise ignored.
func (p *terminalPresenter) PresentVerification(_ context.Context, auth domain.DeviceAuthorization) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return nil
	}

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "To sign in, visit: %s\n", auth.VerificationURI)
	fmt.Fprintf(p.out, "and enter the code: %s\n", auth.UserCode)
	if !auth.ExpiresAt.IsZero() {
		fmt.Fprintf(p.out, "The code expires at %s.\n", auth.ExpiresAt.Local().Format(time.Kitchen))
	}

	if p.openBrowser && p.interactive() {
		if err := p.open(auth.BrowserURI()); err != nil {
			logger.Warn("could not open browser: %v", err)
		} else {
			fmt.Fprintln(p.out, "Opened the verification page in your browser.")
		}
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Waiting for approval...")
	return nil
}

// OpenBrowser opens the default browser to the given URL.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
