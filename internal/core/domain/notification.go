package domain

import (
	"fmt"
	"time"
)

// NotificationKind identifies what an observer is being told about.
type NotificationKind string

// Notification kinds raised by the auth service and the API client.
const (
	NotifyAuthStateChanged     NotificationKind = "auth_state_changed"
	NotifyTokenRefreshed       NotificationKind = "token_refreshed"
	NotifyAuthError            NotificationKind = "auth_error"
	NotifyAPIError             NotificationKind = "api_error"
	NotifyRateLimitReached     NotificationKind = "rate_limit_reached"
	NotifyNetworkStatusChanged NotificationKind = "network_status_changed"
	NotifyUploadProgress       NotificationKind = "upload_progress"
)

// Notification is a typed event delivered to observers over a channel.
// Only token-free data is ever placed in a notification.
type Notification struct {
	Kind NotificationKind
	At   time.Time

	// AuthStateChanged.
	PreviousState AuthState
	State         AuthState

	// TokenRefreshed.
	TokenExpiry time.Time

	// AuthError and APIError.
	Message    string
	StatusCode int
	Path       string

	// RateLimitReached.
	RetryAfter time.Duration

	// NetworkStatusChanged.
	Online bool

	// UploadProgress.
	UploadID string
	Progress UploadProgress
}

// String renders a one-line description for logs and the activity feed.
func (n Notification) String() string {
	switch n.Kind {
	case NotifyAuthStateChanged:
		return fmt.Sprintf("auth state %s -> %s", n.PreviousState, n.State)
	case NotifyTokenRefreshed:
		return "token refreshed, expires " + n.TokenExpiry.Local().Format(time.Kitchen)
	case NotifyAuthError:
		return "authentication error: " + n.Message
	case NotifyAPIError:
		return fmt.Sprintf("api error %d on %s: %s", n.StatusCode, n.Path, n.Message)
	case NotifyRateLimitReached:
		return fmt.Sprintf("rate limited on %s, waiting %s", n.Path, n.RetryAfter)
	case NotifyNetworkStatusChanged:
		if n.Online {
			return "network reachable"
		}
		return "network unreachable"
	case NotifyUploadProgress:
		return fmt.Sprintf("upload %s: %d%%", n.UploadID, n.Progress.Percent)
	default:
		return unknownDescription
	}
}

// UploadProgress is reported after every chunk written to the wire.
type UploadProgress struct {
	BytesUploaded int64
	TotalBytes    int64
	Percent       int
}

// NewUploadProgress computes the percentage for a byte count.
func NewUploadProgress(uploaded, total int64) UploadProgress {
	p := UploadProgress{BytesUploaded: uploaded, TotalBytes: total}
	if total > 0 {
		p.Percent = clampInt(int(uploaded*100/total), 0, 100)
	}
	return p
}
