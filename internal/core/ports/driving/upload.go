package driving

import (
	"context"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// UploadRequest describes one screenshot to upload.
type UploadRequest struct {
	ProjectID string
	// Image holds the bytes. When nil they are read from SourcePath.
	Image      []byte
	SourcePath string
	Metadata   domain.ScreenshotMetadata
	// Progress is optional and receives every progress report.
	Progress func(tx domain.UploadTransaction)
}

// UploadService orchestrates upload transactions around the API client.
type UploadService interface {
	// Upload runs one upload and returns the final transaction. A failed
	// upload returns the transaction alongside the error; retryable
	// failures leave it in the Retrying state.
	Upload(ctx context.Context, req UploadRequest) (*domain.UploadTransaction, error)

	// RetryDue re-runs every retrying transaction whose retry time passed
	// and returns the number attempted.
	RetryDue(ctx context.Context) (int, error)

	// Retry re-runs one failed or retrying transaction immediately.
	Retry(ctx context.Context, id string) (*domain.UploadTransaction, error)

	// List returns recent transactions, newest first.
	List(ctx context.Context, limit int) ([]domain.UploadTransaction, error)

	// Get returns a transaction by ID.
	Get(ctx context.Context, id string) (*domain.UploadTransaction, error)
}
