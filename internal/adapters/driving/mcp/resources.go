package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for viewshot resources.
	uriScheme = "viewshot://"

	recentUploadsLimit = 50
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "projects",
		Name:        "projects",
		Description: "Projects the signed-in user can upload to",
		MIMEType:    "application/json",
	}, s.handleProjectsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "uploads",
		Name:        "uploads",
		Description: "Recent uploads from this machine, newest first",
		MIMEType:    "application/json",
	}, s.handleUploadsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "uploads/{uploadId}",
		Name:        "upload",
		Description: "One upload transaction",
		MIMEType:    "application/json",
	}, s.handleUploadResource)
}

func (s *Server) handleProjectsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	projects, err := s.ports.Projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", describe(err))
	}
	return jsonResource(req.Params.URI, projects)
}

func (s *Server) handleUploadsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	uploads, err := s.ports.Uploads.List(ctx, recentUploadsLimit)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}

	infos := make([]UploadOutput, len(uploads))
	for i := range uploads {
		infos[i] = uploadOutput(&uploads[i])
	}
	return jsonResource(req.Params.URI, infos)
}

func (s *Server) handleUploadResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	uploadID := extractUploadID(req.Params.URI)
	if uploadID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	tx, err := s.ports.Uploads.Get(ctx, uploadID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting upload: %w", err)
	}
	return jsonResource(req.Params.URI, tx)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractUploadID extracts the upload ID from a URI like viewshot://uploads/{uploadId}.
func extractUploadID(uri string) string {
	const prefix = uriScheme + "uploads/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(uri, prefix), "/")
}
