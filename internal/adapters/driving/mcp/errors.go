// Package mcp provides an MCP (Model Context Protocol) server adapter for
// viewshot. It lets AI assistants check the session, browse projects and
// upload screenshots on the user's behalf.
package mcp

import "errors"

var (
	// ErrMissingUploadService is returned when the upload service is not provided.
	ErrMissingUploadService = errors.New("mcp: upload service is required")

	// ErrMissingProjectService is returned when the project service is not provided.
	ErrMissingProjectService = errors.New("mcp: project service is required")
)
