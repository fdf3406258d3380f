package mcp

import (
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Auth reports the session state. Optional.
	Auth driving.AuthService

	// Uploads runs and tracks screenshot uploads.
	Uploads driving.UploadService

	// Projects lists projects and server-side upload status.
	Projects driving.ProjectService

	// DefaultProjectID is used when a tool call omits the project.
	DefaultProjectID string
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Uploads == nil {
		return ErrMissingUploadService
	}
	if p.Projects == nil {
		return ErrMissingProjectService
	}
	return nil
}
