package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

const loginHint = "run 'viewshot login' in a terminal to sign in"

// AuthStatusInput is the input schema for the auth_status tool.
type AuthStatusInput struct{}

// AuthStatusOutput is the output schema for the auth_status tool.
type AuthStatusOutput struct {
	State     string `json:"state"`
	SignedIn  bool   `json:"signed_in"`
	User      string `json:"user,omitempty"`
	Email     string `json:"email,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

// ListProjectsInput is the input schema for the list_projects tool.
type ListProjectsInput struct{}

// ListProjectsOutput is the output schema for the list_projects tool.
type ListProjectsOutput struct {
	Projects       []ProjectOutput `json:"projects"`
	Count          int             `json:"count"`
	DefaultProject string          `json:"default_project,omitempty"`
}

// ProjectOutput represents a single project.
type ProjectOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageCount  int    `json:"image_count"`
}

// UploadScreenshotInput is the input schema for the upload_screenshot tool.
type UploadScreenshotInput struct {
	ProjectID   string   `json:"project_id,omitempty" jsonschema:"project to upload to (defaults to the configured project)"`
	Path        string   `json:"path,omitempty" jsonschema:"local path of the image file"`
	ImageBase64 string   `json:"image_base64,omitempty" jsonschema:"base64 encoded image, used when path is empty"`
	FileName    string   `json:"file_name,omitempty" jsonschema:"file name reported for base64 images"`
	Title       string   `json:"title,omitempty" jsonschema:"screenshot title"`
	Description string   `json:"description,omitempty" jsonschema:"screenshot description"`
	Tags        []string `json:"tags,omitempty" jsonschema:"tags attached to the screenshot"`
}

// UploadOutput describes an upload transaction.
type UploadOutput struct {
	UploadID   string `json:"upload_id"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	ImageID    string `json:"image_id,omitempty"`
	URL        string `json:"url,omitempty"`
	RetryCount int    `json:"retry_count,omitempty"`
	NextRetry  string `json:"next_retry,omitempty"`
	Error      string `json:"error,omitempty"`
}

// UploadStatusInput is the input schema for the upload_status tool.
type UploadStatusInput struct {
	UploadID string `json:"upload_id" jsonschema:"upload id returned by upload_screenshot or by the server"`
	Remote   bool   `json:"remote,omitempty" jsonschema:"query the server's processing status instead of the local history"`
}

// UploadStatusOutput is the output schema for the upload_status tool.
type UploadStatusOutput struct {
	Local  *UploadOutput           `json:"local,omitempty"`
	Remote *domain.UploadStatusInfo `json:"remote,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "auth_status",
		Description: "Report whether viewshot is signed in and as whom",
	}, s.handleAuthStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_projects",
		Description: "List the Viewshot projects screenshots can be uploaded to",
	}, s.handleListProjects)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upload_screenshot",
		Description: "Upload a screenshot from a local file or base64 data to a Viewshot project",
	}, s.handleUploadScreenshot)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upload_status",
		Description: "Show the state of an upload",
	}, s.handleUploadStatus)
}

func (s *Server) handleAuthStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ AuthStatusInput,
) (*mcp.CallToolResult, AuthStatusOutput, error) {
	out := AuthStatusOutput{State: domain.AuthStateNotAuthenticated.String(), Hint: loginHint}
	if s.ports.Auth == nil {
		return nil, out, nil
	}

	session := s.ports.Auth.CurrentSession()
	if session == nil {
		return nil, out, nil
	}

	// The session copy carries no tokens, so its recorded state is used.
	out.State = session.State.String()
	out.SignedIn = s.ports.Auth.IsAuthenticated()
	if session.State == domain.AuthStateAuthenticated || session.State == domain.AuthStateExpired {
		out.Hint = ""
		out.User = session.UserDisplayName
		if out.User == "" {
			out.User = session.Username
		}
		out.Email = session.UserEmail
		out.ExpiresAt = session.TokenExpiry.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleListProjects(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListProjectsInput,
) (*mcp.CallToolResult, ListProjectsOutput, error) {
	projects, err := s.ports.Projects.List(ctx)
	if err != nil {
		return nil, ListProjectsOutput{}, describe(err)
	}

	out := ListProjectsOutput{
		Projects:       make([]ProjectOutput, len(projects)),
		Count:          len(projects),
		DefaultProject: s.ports.DefaultProjectID,
	}
	for i := range projects {
		out.Projects[i] = ProjectOutput{
			ID:          projects[i].ID,
			Name:        projects[i].Name,
			Description: projects[i].Description,
			ImageCount:  projects[i].ImageCount,
		}
	}
	return nil, out, nil
}

func (s *Server) handleUploadScreenshot(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UploadScreenshotInput,
) (*mcp.CallToolResult, UploadOutput, error) {
	projectID := input.ProjectID
	if projectID == "" {
		projectID = s.ports.DefaultProjectID
	}
	if projectID == "" {
		return nil, UploadOutput{}, errors.New("project_id is required (no default project is configured)")
	}

	req := driving.UploadRequest{
		ProjectID:  projectID,
		SourcePath: input.Path,
		Metadata: domain.ScreenshotMetadata{
			Title:       input.Title,
			Description: input.Description,
			Tags:        input.Tags,
			FileName:    input.FileName,
			HostApp:     "mcp",
		},
	}
	switch {
	case input.Path != "":
	case input.ImageBase64 != "":
		image, err := base64.StdEncoding.DecodeString(input.ImageBase64)
		if err != nil {
			return nil, UploadOutput{}, fmt.Errorf("image_base64 is not valid base64: %w", err)
		}
		req.Image = image
	default:
		return nil, UploadOutput{}, errors.New("either path or image_base64 is required")
	}

	tx, err := s.ports.Uploads.Upload(ctx, req)
	if tx == nil {
		return nil, UploadOutput{}, describe(err)
	}
	out := uploadOutput(tx)
	if err != nil {
		out.Error = describe(err).Error()
	}
	return nil, out, nil
}

func (s *Server) handleUploadStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UploadStatusInput,
) (*mcp.CallToolResult, UploadStatusOutput, error) {
	if input.UploadID == "" {
		return nil, UploadStatusOutput{}, errors.New("upload_id is required")
	}

	if !input.Remote {
		tx, err := s.ports.Uploads.Get(ctx, input.UploadID)
		if err == nil {
			local := uploadOutput(tx)
			return nil, UploadStatusOutput{Local: &local}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, UploadStatusOutput{}, err
		}
	}

	info, err := s.ports.Projects.UploadStatus(ctx, input.UploadID)
	if err != nil {
		return nil, UploadStatusOutput{}, describe(err)
	}
	return nil, UploadStatusOutput{Remote: info}, nil
}

func uploadOutput(tx *domain.UploadTransaction) UploadOutput {
	out := UploadOutput{
		UploadID:   tx.ID,
		Status:     tx.Status.String(),
		Progress:   tx.Progress,
		ImageID:    tx.RemoteImageID,
		URL:        tx.RemoteImageURL,
		RetryCount: tx.RetryCount,
		Error:      tx.ErrorMessage,
	}
	if tx.Status == domain.UploadRetrying {
		out.NextRetry = tx.NextRetryTime.Format(time.RFC3339)
	}
	return out
}

// describe points the assistant at the fix for authentication errors.
func describe(err error) error {
	if err != nil && domain.IsUnauthorized(err) {
		return fmt.Errorf("%w: %s", err, loginHint)
	}
	return err
}
