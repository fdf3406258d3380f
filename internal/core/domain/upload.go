package domain

import (
	"fmt"
	"time"
)

// MaxUploadRetries is the number of transaction-level retries an upload may use.
const MaxUploadRetries = 3

// UploadStatus is the lifecycle state of an upload transaction.
type UploadStatus string

// Upload lifecycle states.
const (
	UploadPending    UploadStatus = "pending"
	UploadCaptured   UploadStatus = "captured"
	UploadQueued     UploadStatus = "queued"
	UploadInProgress UploadStatus = "in_progress"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
	UploadRetrying   UploadStatus = "retrying"
)

// IsValid returns true if the status is recognised.
func (s UploadStatus) IsValid() bool {
	switch s {
	case UploadPending, UploadCaptured, UploadQueued, UploadInProgress,
		UploadCompleted, UploadFailed, UploadRetrying:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s UploadStatus) String() string {
	return string(s)
}

// UploadTransaction tracks one screenshot upload across attempts.
// It knows nothing about transport; the orchestrating service drives it.
type UploadTransaction struct {
	ID           string       `json:"id"`
	ScreenshotID string       `json:"screenshot_id"`
	ProjectID    string       `json:"project_id"`
	Status       UploadStatus `json:"status"`

	// Progress is a percentage in [0, 100].
	Progress       int       `json:"progress"`
	StartTime      time.Time `json:"start_time"`
	CompletionTime time.Time `json:"completion_time,omitempty"`
	BytesUploaded  int64     `json:"bytes_uploaded"`
	TotalBytes     int64     `json:"total_bytes"`

	RetryCount    int       `json:"retry_count"`
	NextRetryTime time.Time `json:"next_retry_time,omitempty"`

	// Set only on success.
	RemoteImageID  string `json:"remote_image_id,omitempty"`
	RemoteImageURL string `json:"remote_image_url,omitempty"`

	// Set only on failure.
	ErrorMessage       string `json:"error_message,omitempty"`
	LastHTTPStatusCode int    `json:"last_http_status_code,omitempty"`

	// SourcePath is where the image bytes are re-read from on retry.
	SourcePath string             `json:"source_path,omitempty"`
	Metadata   ScreenshotMetadata `json:"metadata"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewUploadTransaction creates a pending transaction.
func NewUploadTransaction(id, screenshotID, projectID string, totalBytes int64) *UploadTransaction {
	return &UploadTransaction{
		ID:           id,
		ScreenshotID: screenshotID,
		ProjectID:    projectID,
		Status:       UploadPending,
		TotalBytes:   totalBytes,
		CreatedAt:    time.Now().UTC(),
	}
}

// MarkAsCaptured records that the image bytes are available.
func (t *UploadTransaction) MarkAsCaptured() error {
	if t.Status != UploadPending {
		return t.transitionError(UploadCaptured)
	}
	t.Status = UploadCaptured
	return nil
}

// MarkAsQueued moves a new transaction into the upload queue.
func (t *UploadTransaction) MarkAsQueued() error {
	if t.Status != UploadPending && t.Status != UploadCaptured {
		return t.transitionError(UploadQueued)
	}
	t.Status = UploadQueued
	return nil
}

// MarkAsStarted begins an attempt. Valid from Queued or a due Retrying state.
func (t *UploadTransaction) MarkAsStarted() error {
	switch t.Status {
	case UploadPending, UploadCaptured, UploadQueued, UploadRetrying:
	default:
		return t.transitionError(UploadInProgress)
	}
	t.Status = UploadInProgress
	if t.StartTime.IsZero() {
		t.StartTime = time.Now().UTC()
	}
	t.Progress = 0
	t.BytesUploaded = 0
	t.NextRetryTime = time.Time{}
	t.CompletionTime = time.Time{}
	return nil
}

// UpdateProgress records attempt progress, clamped to [0,100] and [0,total].
func (t *UploadTransaction) UpdateProgress(percent int, bytes int64) {
	t.Progress = clampInt(percent, 0, 100)
	t.BytesUploaded = clampInt64(bytes, 0, t.TotalBytes)
}

// MarkAsCompleted finishes the transaction with the server-assigned image.
// Only an attempt in progress can complete.
func (t *UploadTransaction) MarkAsCompleted(remoteID, url string) error {
	if remoteID == "" {
		return fmt.Errorf("%w: completed upload requires a remote image id", ErrInvalidInput)
	}
	if t.Status != UploadInProgress {
		return t.transitionError(UploadCompleted)
	}
	t.Status = UploadCompleted
	t.Progress = 100
	t.BytesUploaded = t.TotalBytes
	t.CompletionTime = time.Now().UTC()
	t.RemoteImageID = remoteID
	t.RemoteImageURL = url
	t.ErrorMessage = ""
	t.LastHTTPStatusCode = 0
	t.NextRetryTime = time.Time{}
	return nil
}

// MarkAsFailed ends the current attempt. httpStatus is 0 when no response
// was received.
func (t *UploadTransaction) MarkAsFailed(message string, httpStatus int) {
	if message == "" {
		message = "upload failed"
	}
	t.Status = UploadFailed
	t.CompletionTime = time.Now().UTC()
	t.ErrorMessage = message
	t.LastHTTPStatusCode = httpStatus
	t.RemoteImageID = ""
	t.RemoteImageURL = ""
}

// CanRetry returns true if a failed transaction still has retries left.
func (t *UploadTransaction) CanRetry() bool {
	return t.Status == UploadFailed && t.RetryCount < MaxUploadRetries
}

// ScheduleRetry arms a retry after delay. Progress restarts from zero.
func (t *UploadTransaction) ScheduleRetry(delay time.Duration) error {
	if t.RetryCount >= MaxUploadRetries {
		return ErrRetryLimitReached
	}
	if t.Status != UploadFailed {
		return t.transitionError(UploadRetrying)
	}
	t.Status = UploadRetrying
	t.RetryCount++
	t.Progress = 0
	t.BytesUploaded = 0
	t.CompletionTime = time.Time{}
	t.NextRetryTime = time.Now().UTC().Add(delay)
	return nil
}

// IsReadyForRetry returns true if a scheduled retry is due.
func (t *UploadTransaction) IsReadyForRetry() bool {
	return t.Status == UploadRetrying && !time.Now().Before(t.NextRetryTime)
}

// IsTerminal returns true for completed uploads and failures with no
// retries left.
func (t *UploadTransaction) IsTerminal() bool {
	if t.Status == UploadCompleted {
		return true
	}
	return t.Status == UploadFailed && t.RetryCount >= MaxUploadRetries
}

// Duration returns the elapsed time of the transaction so far.
func (t *UploadTransaction) Duration() time.Duration {
	if t.StartTime.IsZero() {
		return 0
	}
	if t.CompletionTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.CompletionTime.Sub(t.StartTime)
}

// Validate checks the transaction invariants.
func (t *UploadTransaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: upload has no id", ErrInvalidInput)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown upload status %q", ErrInvalidInput, t.Status)
	}
	if t.BytesUploaded < 0 || t.BytesUploaded > t.TotalBytes {
		return fmt.Errorf("%w: %d of %d bytes uploaded", ErrInvalidInput, t.BytesUploaded, t.TotalBytes)
	}
	if t.RetryCount < 0 || t.RetryCount > MaxUploadRetries {
		return fmt.Errorf("%w: retry count %d out of range", ErrInvalidInput, t.RetryCount)
	}
	switch t.Status {
	case UploadCompleted:
		if t.Progress != 100 || t.CompletionTime.IsZero() || t.RemoteImageID == "" {
			return fmt.Errorf("%w: incomplete completed upload", ErrInvalidInput)
		}
	case UploadFailed:
		if t.ErrorMessage == "" || t.CompletionTime.IsZero() {
			return fmt.Errorf("%w: failed upload without error details", ErrInvalidInput)
		}
	}
	return nil
}

func (t *UploadTransaction) transitionError(to UploadStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampInt64(v, lo, hi int64) int64 {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
