package driven

import (
	"context"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// ProgressFunc receives upload progress after every chunk written.
type ProgressFunc func(domain.UploadProgress)

// ProjectAPI is the authenticated application API.
type ProjectAPI interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)

	// UploadScreenshot posts the image and metadata as a multipart form.
	// progress may be nil.
	UploadScreenshot(
		ctx context.Context,
		projectID string,
		image []byte,
		meta domain.ScreenshotMetadata,
		progress ProgressFunc,
	) (*domain.UploadResult, error)

	GetUploadStatus(ctx context.Context, uploadID string) (*domain.UploadStatusInfo, error)
	Health(ctx context.Context) (*domain.HealthStatus, error)
}
