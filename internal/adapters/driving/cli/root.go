// Package cli provides the cobra command tree for the viewshot binary.
//
// Services are injected by main through SetSettingsService and
// SetBootstrap. Commands read them from package-level variables so tests
// can substitute mocks with SetServices.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

var version = "dev"

// annotationStandalone marks commands that run without the network
// services, such as version and config.
const annotationStandalone = "viewshot.standalone"

var (
	authService     driving.AuthService
	uploadService   driving.UploadService
	projectService  driving.ProjectService
	settingsService driving.SettingsService
	notifications   driving.NotificationSource
	scheduler       driving.Scheduler
	schedulerConfig domain.SchedulerConfig
	clientConfig    = domain.DefaultClientConfig()
)

// Services holds everything the network-facing commands need.
type Services struct {
	Auth            driving.AuthService
	Uploads         driving.UploadService
	Projects        driving.ProjectService
	Notifications   driving.NotificationSource
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig
}

// Bootstrap builds the services for the effective configuration. The
// returned function releases them and is called once the command exits.
type Bootstrap func(ctx context.Context, cfg domain.ClientConfig) (*Services, func(), error)

var (
	bootstrap Bootstrap
	release   func()
)

// SetServices installs the services used by the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	authService = s.Auth
	uploadService = s.Uploads
	projectService = s.Projects
	notifications = s.Notifications
	scheduler = s.Scheduler
	schedulerConfig = s.SchedulerConfig
}

// SetSettingsService installs the settings service. It is needed before
// any other service exists because it resolves the configuration.
func SetSettingsService(s driving.SettingsService) {
	settingsService = s
}

// SetBootstrap installs the function that builds the services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by `viewshot version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// flagOverrides carries the persistent flags into configuration
// resolution. It is the last override applied.
type flagOverrides struct {
	verbose   bool
	serverURL string
	logFormat string
	noBrowser bool
}

var globalFlags = &flagOverrides{}

// Ensure flagOverrides implements the interface.
var _ driven.ConfigOverrides = (*flagOverrides)(nil)

// FlagOverrides returns the override layer backed by the global flags.
// Values are read when the configuration is resolved, after parsing.
func FlagOverrides() driven.ConfigOverrides {
	return globalFlags
}

// Apply copies every flag that was set onto cfg.
func (f *flagOverrides) Apply(cfg *domain.ClientConfig) {
	if f.verbose {
		cfg.Verbose = true
	}
	if f.serverURL != "" {
		cfg.ServerURL = f.serverURL
	}
	if f.logFormat != "" {
		cfg.LogFormat = domain.LogFormat(f.logFormat)
	}
	if f.noBrowser {
		cfg.OpenBrowser = false
	}
}

var rootCmd = &cobra.Command{
	Use:   "viewshot",
	Short: "Upload screenshots to Viewshot",
	Long: `viewshot signs in to a Viewshot server with the OAuth device flow and
uploads screenshots to your projects.

Uploads that fail with a transient error are retried automatically while a
long-running command (watch, tui, mcp serve) is active, or on demand with
'viewshot uploads retry'.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// cobra prints to stderr unless told otherwise; results and --json
	// output belong on stdout.
	rootCmd.SetOut(os.Stdout)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&globalFlags.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&globalFlags.serverURL, "server", "", "Viewshot server URL")
	pf.StringVar(&globalFlags.logFormat, "log-format", "", "log format (console or json)")
	pf.BoolVar(&globalFlags.noBrowser, "no-browser", false, "do not open a browser during login")
}

// setup resolves the configuration and builds the services before a
// command runs.
func setup(cmd *cobra.Command, _ []string) error {
	if globalFlags.verbose {
		logger.SetVerbose(true)
	}
	if cmd.Annotations[annotationStandalone] == "true" || settingsService == nil {
		return nil
	}

	cfg, err := settingsService.Config()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	clientConfig = cfg
	logger.SetVerbose(cfg.Verbose)
	logger.SetFormat(logger.Format(cfg.LogFormat))
	devicePresenter.setOpenBrowser(cfg.OpenBrowser)

	if bootstrap == nil {
		return nil
	}
	svcs, cleanup, err := bootstrap(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	SetServices(svcs)
	release = cleanup
	return nil
}

// teardown releases whatever setup built.
func teardown() {
	if release != nil {
		release()
		release = nil
	}
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	defer teardown()
	return rootCmd.ExecuteContext(ctx)
}

// standalone marks cmd and its subcommands as not needing services.
func standalone(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationStandalone] = "true"
	for _, sub := range cmd.Commands() {
		standalone(sub)
	}
	return cmd
}

// withHint adds the next step to errors the user can act on.
func withHint(err error) error {
	if err != nil && domain.IsUnauthorized(err) {
		return fmt.Errorf("%w (run 'viewshot login' to sign in)", err)
	}
	return err
}
