// Command viewshot uploads screenshots to a Viewshot server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driven/api"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driven/config/envconfig"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driven/oauth"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/services"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	env, err := envconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewshot: %v\n", err)
		return 1
	}

	configStore, err := file.NewConfigStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewshot: opening config: %v\n", err)
		return 1
	}

	settings := services.NewSettingsService(configStore, env, cli.FlagOverrides())
	cli.SetSettingsService(settings)
	cli.SetVersion(version)
	cli.SetBootstrap(func(ctx context.Context, cfg domain.ClientConfig) (*cli.Services, func(), error) {
		return bootstrap(ctx, cfg, settings)
	})

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// bootstrap wires the driven adapters into the core services. The
// returned cleanup closes them in reverse order.
func bootstrap(
	ctx context.Context,
	cfg domain.ClientConfig,
	settings *services.SettingsService,
) (*cli.Services, func(), error) {
	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Debug("database: %s", store.Path())

	notifier := services.NewNotifier()
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	auth := services.NewAuthService(
		oauth.NewClient(cfg.ServerURL, cfg.ClientID, httpClient),
		store.CredentialStore(),
		cfg.InstanceID,
		cfg.Scope,
		services.WithPresenter(cli.Presenter()),
		services.WithPublisher(notifier),
		services.WithLastUserTracker(settings),
	)

	client := api.NewClient(api.Config{
		BaseURL:           cfg.ServerURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         "viewshot-cli/" + version,
	}, auth, api.WithHTTPClient(httpClient), api.WithPublisher(notifier))

	uploads := services.NewUploadService(client, store.UploadStore(), notifier, cfg)
	projects := services.NewProjectService(client)
	schedulerConfig := domain.DefaultSchedulerConfig()
	scheduler := services.NewScheduler(schedulerConfig, store.SchedulerStore(), uploads, projects)

	// A missing or unusable session is not an error here; commands that
	// need one report it.
	auth.Initialize(ctx)

	cleanup := func() {
		if err := auth.Close(); err != nil {
			logger.Warn("closing auth service: %v", err)
		}
		notifier.Close()
		if err := store.Close(); err != nil {
			logger.Warn("closing database: %v", err)
		}
	}

	return &cli.Services{
		Auth:            auth,
		Uploads:         uploads,
		Projects:        projects,
		Notifications:   notifier,
		Scheduler:       scheduler,
		SchedulerConfig: schedulerConfig,
	}, cleanup, nil
}
