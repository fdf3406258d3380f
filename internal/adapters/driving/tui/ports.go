// Package tui provides an interactive terminal user interface for viewshot.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Auth owns the session and runs the device flow.
	Auth driving.AuthService

	// Uploads runs and lists upload transactions.
	Uploads driving.UploadService

	// Projects lists the remote projects.
	Projects driving.ProjectService

	// Notifications feeds the activity log and live progress. Optional.
	Notifications driving.NotificationSource

	// DefaultProjectID is the initial upload target. Optional.
	DefaultProjectID string
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(
	auth driving.AuthService,
	uploads driving.UploadService,
	projects driving.ProjectService,
	notifications driving.NotificationSource,
) *Ports {
	return &Ports{
		Auth:          auth,
		Uploads:       uploads,
		Projects:      projects,
		Notifications: notifications,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Auth == nil {
		return ErrMissingAuthService
	}
	if p.Uploads == nil {
		return ErrMissingUploadService
	}
	if p.Projects == nil {
		return ErrMissingProjectService
	}
	return nil
}
