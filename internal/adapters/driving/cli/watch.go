package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/watcher"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

var (
	watchProject   string
	watchRecursive bool
	watchTags      []string
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Upload screenshots as they are saved to a folder",
	Long: `Watch a capture folder and upload every new image (png, jpg, jpeg,
webp, bmp) to a project. Hidden files and folders are skipped. Uploads
that fail are retried in the background while the command runs.

Press Ctrl+C to stop.

Examples:
  viewshot watch ~/Pictures/Screenshots --project web-app
  viewshot watch ./captures -r --tags nightly`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchProject, "project", "p", "", "project id (defaults to upload.default_project)")
	watchCmd.Flags().BoolVarP(&watchRecursive, "recursive", "r", false, "also watch subfolders")
	watchCmd.Flags().StringSliceVar(&watchTags, "tags", nil, "comma-separated tags added to every upload")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}

	projectID := watchProject
	if projectID == "" {
		projectID = clientConfig.DefaultProjectID
	}
	if projectID == "" {
		return errors.New("no project given, use --project or 'viewshot config set upload.default_project <id>'")
	}

	ctx := cmd.Context()
	stopScheduler := startScheduler(ctx)
	defer stopScheduler()

	w := watcher.New(uploadService, args[0], projectID, watcher.Options{
		Debounce:  clientConfig.WatchDebounce,
		Recursive: watchRecursive,
		Metadata:  domain.ScreenshotMetadata{Tags: cleanTags(watchTags)},
	})
	defer w.Close()

	results, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}

	cmd.Printf("Watching %s, uploading to %s. Press Ctrl+C to stop.\n", args[0], projectID)
	for r := range results {
		if r.Err != nil {
			cmd.PrintErrf("%s: %v\n", r.Path, withHint(r.Err))
			continue
		}
		cmd.Printf("%s -> %s\n", r.Path, imageLocation(r.Upload))
	}
	return nil
}

// startScheduler runs background tasks for long-running commands and
// returns the function that stops them.
func startScheduler(ctx context.Context) func() {
	if scheduler == nil || !schedulerConfig.Enabled {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := scheduler.Start(ctx); err != nil {
			logger.Warn("scheduler stopped: %v", err)
		}
	}()
	return func() {
		cancel()
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop error: %v", err)
		}
	}
}
