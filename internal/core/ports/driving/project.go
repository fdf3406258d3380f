package driving

import (
	"context"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// ProjectService gives read access to remote projects.
type ProjectService interface {
	List(ctx context.Context) ([]domain.Project, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	UploadStatus(ctx context.Context, uploadID string) (*domain.UploadStatusInfo, error)
	Health(ctx context.Context) (*domain.HealthStatus, error)
}
