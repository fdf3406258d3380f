package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

var (
	uploadsLimit int
	uploadsJSON  bool
)

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Inspect and retry past uploads",
	Long: `Inspect the local upload history and retry failed uploads.

Examples:
  viewshot uploads list
  viewshot uploads show <upload-id>
  viewshot uploads retry              # retry everything that is due
  viewshot uploads retry <upload-id>  # retry one upload now
  viewshot uploads status <server-upload-id>`,
}

var uploadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent uploads",
	RunE:  runUploadsList,
}

var uploadsShowCmd = &cobra.Command{
	Use:   "show <upload-id>",
	Short: "Show one upload",
	Args:  cobra.ExactArgs(1),
	RunE:  runUploadsShow,
}

var uploadsRetryCmd = &cobra.Command{
	Use:   "retry [upload-id]",
	Short: "Retry failed uploads",
	Long: `Retry a failed upload immediately, or with no argument every upload
whose scheduled retry time has passed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUploadsRetry,
}

var uploadsStatusCmd = &cobra.Command{
	Use:   "status <server-upload-id>",
	Short: "Show server-side processing status of an upload",
	Args:  cobra.ExactArgs(1),
	RunE:  runUploadsStatus,
}

func init() {
	uploadsListCmd.Flags().IntVarP(&uploadsLimit, "limit", "n", 20, "maximum number of uploads")
	uploadsCmd.PersistentFlags().BoolVar(&uploadsJSON, "json", false, "output as JSON")
	uploadsCmd.AddCommand(uploadsListCmd)
	uploadsCmd.AddCommand(uploadsShowCmd)
	uploadsCmd.AddCommand(uploadsRetryCmd)
	uploadsCmd.AddCommand(uploadsStatusCmd)
	rootCmd.AddCommand(uploadsCmd)
}

func runUploadsList(cmd *cobra.Command, _ []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}

	uploads, err := uploadService.List(cmd.Context(), uploadsLimit)
	if err != nil {
		return fmt.Errorf("failed to list uploads: %w", err)
	}

	if uploadsJSON {
		return printJSON(cmd, uploads)
	}

	if len(uploads) == 0 {
		cmd.Println("No uploads yet.")
		return nil
	}

	cmd.Printf("%-36s  %-11s  %-20s  %s\n", "ID", "STATUS", "CREATED", "FILE")
	for i := range uploads {
		u := &uploads[i]
		cmd.Printf("%-36s  %-11s  %-20s  %s\n",
			u.ID, u.Status, u.CreatedAt.Local().Format(time.DateTime), truncate(u.Metadata.FileName, 40))
	}
	return nil
}

func runUploadsShow(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}

	tx, err := uploadService.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("upload not found: %s", args[0])
		}
		return fmt.Errorf("failed to get upload: %w", err)
	}

	if uploadsJSON {
		return printJSON(cmd, tx)
	}
	printUpload(cmd, tx)
	return nil
}

func runUploadsRetry(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}

	if len(args) == 0 {
		n, err := uploadService.RetryDue(cmd.Context())
		if err != nil {
			return withHint(fmt.Errorf("retry failed: %w", err))
		}
		cmd.Printf("Retried %d upload(s).\n", n)
		return nil
	}

	tx, err := uploadService.Retry(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("upload not found: %s", args[0])
	}
	if uploadsJSON && tx != nil {
		if jsonErr := printJSON(cmd, tx); jsonErr != nil {
			return jsonErr
		}
		return withHint(err)
	}
	if err != nil {
		return withHint(fmt.Errorf("retry failed: %w", err))
	}
	cmd.Printf("Uploaded %s -> %s\n", tx.ID, imageLocation(tx))
	return nil
}

func runUploadsStatus(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	info, err := projectService.UploadStatus(cmd.Context(), args[0])
	if err != nil {
		return withHint(fmt.Errorf("failed to get upload status: %w", err))
	}

	if uploadsJSON {
		return printJSON(cmd, info)
	}
	cmd.Printf("Upload:  %s\n", info.UploadID)
	cmd.Printf("Status:  %s\n", info.Status)
	if info.ImageID != "" {
		cmd.Printf("Image:   %s\n", info.ImageID)
	}
	if info.URL != "" {
		cmd.Printf("URL:     %s\n", info.URL)
	}
	if info.Message != "" {
		cmd.Printf("Message: %s\n", info.Message)
	}
	return nil
}

func printUpload(cmd *cobra.Command, tx *domain.UploadTransaction) {
	cmd.Printf("ID:       %s\n", tx.ID)
	cmd.Printf("Status:   %s\n", tx.Status)
	cmd.Printf("Project:  %s\n", tx.ProjectID)
	cmd.Printf("File:     %s\n", tx.Metadata.FileName)
	if tx.SourcePath != "" {
		cmd.Printf("Source:   %s\n", tx.SourcePath)
	}
	cmd.Printf("Size:     %d bytes\n", tx.TotalBytes)
	cmd.Printf("Progress: %d%%\n", tx.Progress)
	cmd.Printf("Created:  %s\n", tx.CreatedAt.Local().Format(time.RFC3339))
	if d := tx.Duration(); d > 0 {
		cmd.Printf("Took:     %s\n", d.Round(time.Millisecond))
	}
	if tx.RemoteImageID != "" {
		cmd.Printf("Image:    %s\n", imageLocation(tx))
	}
	if tx.ErrorMessage != "" {
		cmd.Printf("Error:    %s\n", tx.ErrorMessage)
		if tx.LastHTTPStatusCode != 0 {
			cmd.Printf("HTTP:     %d\n", tx.LastHTTPStatusCode)
		}
	}
	if tx.RetryCount > 0 || tx.Status == domain.UploadRetrying {
		cmd.Printf("Retries:  %d of %d\n", tx.RetryCount, domain.MaxUploadRetries)
	}
	if tx.Status == domain.UploadRetrying {
		cmd.Printf("Next try: %s\n", tx.NextRetryTime.Local().Format(time.RFC3339))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
