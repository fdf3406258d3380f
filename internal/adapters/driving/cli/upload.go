package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

var (
	uploadProject     string
	uploadTitle       string
	uploadDescription string
	uploadView        string
	uploadHostApp     string
	uploadHostDoc     string
	uploadTags        []string
	uploadJSON        bool
)

// stdoutIsTerminal reports whether progress can be redrawn in place.
var stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload screenshots to a project",
	Long: `Upload one or more image files to a Viewshot project.

The project defaults to upload.default_project (see 'viewshot config').
Uploads that fail with a network error, a rate limit or a server error
are kept and retried later; see 'viewshot uploads'.

Examples:
  viewshot upload shot.png --project web-app
  viewshot upload *.png -p web-app --tags release,2.4
  viewshot upload plan.png --title "Ground floor" --view "Level 0"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	f := uploadCmd.Flags()
	f.StringVarP(&uploadProject, "project", "p", "", "project id (defaults to upload.default_project)")
	f.StringVarP(&uploadTitle, "title", "t", "", "screenshot title (defaults to the file name)")
	f.StringVarP(&uploadDescription, "description", "d", "", "screenshot description")
	f.StringVar(&uploadView, "view", "", "camera or view name")
	f.StringVar(&uploadHostApp, "host-app", "", "host application that produced the screenshot")
	f.StringVar(&uploadHostDoc, "host-doc", "", "host document the screenshot belongs to")
	f.StringSliceVar(&uploadTags, "tags", nil, "comma-separated tags")
	f.BoolVar(&uploadJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}

	projectID := uploadProject
	if projectID == "" {
		projectID = clientConfig.DefaultProjectID
	}
	if projectID == "" {
		return errors.New("no project given, use --project or 'viewshot config set upload.default_project <id>'")
	}

	showProgress := !uploadJSON && stdoutIsTerminal()
	results := make([]domain.UploadTransaction, 0, len(args))
	failed := 0

	for _, path := range args {
		req := driving.UploadRequest{
			ProjectID:  projectID,
			SourcePath: path,
			Metadata:   uploadMetadata(len(args) == 1),
		}
		if showProgress {
			req.Progress = progressPrinter(cmd.OutOrStdout(), path)
		}

		tx, err := uploadService.Upload(cmd.Context(), req)
		if showProgress {
			cmd.Println()
		}
		if err != nil {
			failed++
			if uploadJSON && tx != nil {
				results = append(results, *tx)
				continue
			}
			cmd.PrintErrf("%s: %v\n", path, withHint(err))
			if tx != nil && tx.Status == domain.UploadRetrying {
				cmd.PrintErrf("  will retry (attempt %d of %d), upload id %s\n",
					tx.RetryCount, domain.MaxUploadRetries, tx.ID)
			}
			continue
		}

		results = append(results, *tx)
		if !uploadJSON {
			cmd.Printf("%s -> %s\n", path, imageLocation(tx))
		}
	}

	if uploadJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}

// uploadMetadata builds the metadata from flags. The title only applies
// when a single file is uploaded; otherwise each file keeps its name.
func uploadMetadata(single bool) domain.ScreenshotMetadata {
	meta := domain.ScreenshotMetadata{
		Description: uploadDescription,
		ViewName:    uploadView,
		HostApp:     uploadHostApp,
		HostDoc:     uploadHostDoc,
		Tags:        cleanTags(uploadTags),
	}
	if single {
		meta.Title = uploadTitle
	}
	return meta
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// progressPrinter redraws a single progress line for path.
func progressPrinter(w io.Writer, path string) func(domain.UploadTransaction) {
	return func(tx domain.UploadTransaction) {
		fmt.Fprintf(w, "\r%s %s %3d%%", path, progressBar(tx.Progress, 24), tx.Progress)
	}
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func imageLocation(tx *domain.UploadTransaction) string {
	if tx.RemoteImageURL != "" {
		return tx.RemoteImageURL
	}
	return tx.RemoteImageID
}
