package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// Application API paths.
const (
	ProjectsPath     = "/api/projects"
	HealthPath       = "/api/health"
	uploadStatusPath = "/api/uploads/%s/status"
	screenshotsPath  = "/api/projects/%s/screenshots"
)

// Ensure Client implements the interface.
var _ driven.ProjectAPI = (*Client)(nil)

// ListProjects returns the projects visible to the signed-in user. The
// server may answer with a bare array or with {"projects": [...]}.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var raw json.RawMessage
	if err := c.SendAuthenticated(ctx, http.MethodGet, ProjectsPath, nil, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []domain.Project{}, nil
	}

	var projects []domain.Project
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &projects); err != nil {
			return nil, fmt.Errorf("decode projects: %w", err)
		}
		return projects, nil
	}

	var wrapped struct {
		Projects []domain.Project `json:"projects"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	if wrapped.Projects == nil {
		return []domain.Project{}, nil
	}
	return wrapped.Projects, nil
}

// GetProject returns a single project.
func (c *Client) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var project domain.Project
	if err := c.SendAuthenticated(ctx, http.MethodGet, ProjectsPath+"/"+url.PathEscape(id), nil, &project); err != nil {
		return nil, err
	}
	if project.ID == "" {
		return nil, domain.ErrNotFound
	}
	return &project, nil
}

// GetUploadStatus returns the server-side processing state of an upload.
func (c *Client) GetUploadStatus(ctx context.Context, uploadID string) (*domain.UploadStatusInfo, error) {
	var info domain.UploadStatusInfo
	path := fmt.Sprintf(uploadStatusPath, url.PathEscape(uploadID))
	if err := c.SendAuthenticated(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	if info.UploadID == "" {
		info.UploadID = uploadID
	}
	return &info, nil
}

// Health probes the server. The endpoint needs no token, so it works while
// signed out.
func (c *Client) Health(ctx context.Context) (*domain.HealthStatus, error) {
	body, err := c.execute(ctx, request{method: http.MethodGet, path: HealthPath})
	if err != nil {
		return nil, err
	}
	var status domain.HealthStatus
	if err := decodeJSON(body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// UploadScreenshot posts image and meta as multipart form data. progress,
// when set, receives byte counts as the body is written and restarts from
// zero on every attempt.
func (c *Client) UploadScreenshot(
	ctx context.Context,
	projectID string,
	image []byte,
	meta domain.ScreenshotMetadata,
	progress driven.ProgressFunc,
) (*domain.UploadResult, error) {
	if len(image) == 0 {
		return nil, domain.ErrEmptyImage
	}
	form, contentType, err := encodeMultipart(image, meta)
	if err != nil {
		return nil, err
	}

	req := request{
		method:        http.MethodPost,
		path:          fmt.Sprintf(screenshotsPath, url.PathEscape(projectID)),
		contentType:   contentType,
		authenticated: true,
		body: func() (io.Reader, int64) {
			size := int64(len(form))
			return newProgressReader(bytes.NewReader(form), size, progress), size
		},
	}

	body, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	var result domain.UploadResult
	if err := decodeJSON(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// encodeMultipart builds the form once; attempts replay the same bytes.
func encodeMultipart(image []byte, meta domain.ScreenshotMetadata) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fileName := meta.FileName
	if fileName == "" {
		fileName = "screenshot.png"
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, fileName))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("encode metadata: %w", err)
	}
	header = make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="metadata"`)
	header.Set("Content-Type", "application/json")
	part, err = w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, "", fmt.Errorf("write metadata part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
