package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui"
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for Viewshot.

The TUI signs you in, picks the project uploads go to, uploads screenshots
and shows their progress, and keeps a log of what the client is doing.
Failed uploads are retried in the background while it runs.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Select
  u        - Upload a file (Uploads view)
  t        - Retry the selected upload
  Esc      - Back / Cancel sign-in
  ?        - Help
  q        - Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = errors.New("tui crashed")
		}
	}()

	ports := tui.NewPorts(authService, uploadService, projectService, notifications)
	ports.DefaultProjectID = clientConfig.DefaultProjectID

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	// The account view renders the device code; terminal output would
	// corrupt the alternate screen.
	devicePresenter.setQuiet(true)
	defer devicePresenter.setQuiet(false)

	ctx := cmd.Context()
	stopScheduler := startScheduler(ctx)
	defer stopScheduler()

	if err := app.WithContext(ctx).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
