package domain

import "time"

// Project is a remote project screenshots are uploaded to.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	ImageCount  int       `json:"imageCount,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// ScreenshotMetadata is sent as the JSON "metadata" part of an upload.
type ScreenshotMetadata struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	ViewName    string    `json:"viewName,omitempty"`
	HostApp     string    `json:"hostApplication,omitempty"`
	HostDoc     string    `json:"hostDocument,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CapturedAt  time.Time `json:"capturedAt,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	InstanceID  string    `json:"instanceId,omitempty"`
}

// UploadResult is the server response to a screenshot upload.
type UploadResult struct {
	ImageID  string `json:"imageId"`
	URL      string `json:"url,omitempty"`
	UploadID string `json:"uploadId,omitempty"`
	Status   string `json:"status,omitempty"`
}

// UploadStatusInfo is the server-side processing state of an upload.
type UploadStatusInfo struct {
	UploadID  string    `json:"uploadId"`
	Status    string    `json:"status"`
	ImageID   string    `json:"imageId,omitempty"`
	URL       string    `json:"url,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// HealthStatus is the response of the server health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// IsHealthy returns true if the server reports itself healthy.
func (h *HealthStatus) IsHealthy() bool {
	return h != nil && (h.Status == "ok" || h.Status == "healthy")
}
