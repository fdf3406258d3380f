package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// Ensure ProjectService implements the interface.
var _ driving.ProjectService = (*ProjectService)(nil)

// ProjectService gives read access to remote projects.
type ProjectService struct {
	api driven.ProjectAPI
}

// NewProjectService creates a new project service.
func NewProjectService(api driven.ProjectAPI) *ProjectService {
	return &ProjectService{api: api}
}

// List returns the projects visible to the signed-in user.
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	if s.api == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.api.ListProjects(ctx)
}

// Get retrieves a project by ID.
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	if s.api == nil {
		return nil, domain.ErrNotImplemented
	}
	if id == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}
	return s.api.GetProject(ctx, id)
}

// UploadStatus returns the server-side processing state of an upload.
func (s *ProjectService) UploadStatus(ctx context.Context, uploadID string) (*domain.UploadStatusInfo, error) {
	if s.api == nil {
		return nil, domain.ErrNotImplemented
	}
	if uploadID == "" {
		return nil, fmt.Errorf("%w: upload id is required", domain.ErrInvalidInput)
	}
	return s.api.GetUploadStatus(ctx, uploadID)
}

// Health checks whether the server is reachable and healthy.
func (s *ProjectService) Health(ctx context.Context) (*domain.HealthStatus, error) {
	if s.api == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.api.Health(ctx)
}
