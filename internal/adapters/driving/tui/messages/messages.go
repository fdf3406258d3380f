// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewAccount shows the session and the device code while signing in.
	ViewAccount
	// ViewProjects lists the remote projects.
	ViewProjects
	// ViewUploads lists recent uploads with live progress.
	ViewUploads
	// ViewActivity is the notification log.
	ViewActivity
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewAccount:
		return "account"
	case ViewProjects:
		return "projects"
	case ViewUploads:
		return "uploads"
	case ViewActivity:
		return "activity"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// NotificationReceived carries one notification from the core services.
type NotificationReceived struct {
	Notification domain.Notification
}

// NotificationsClosed is sent once the subscription channel is closed.
type NotificationsClosed struct{}

// SessionLoaded carries a token-free copy of the current session.
type SessionLoaded struct {
	Session *domain.Session
}

// LoginRequested starts the device flow.
type LoginRequested struct{}

// LoginFinished reports the outcome of the device flow.
type LoginFinished struct {
	OK  bool
	Err error
}

// LogoutRequested signs the user out.
type LogoutRequested struct{}

// LogoutFinished reports the outcome of signing out.
type LogoutFinished struct {
	Err error
}

// ProjectsLoaded carries the list of projects from the service.
type ProjectsLoaded struct {
	Projects []domain.Project
	Err      error
}

// ProjectSelected makes a project the upload target for this session.
type ProjectSelected struct {
	Project domain.Project
}

// UploadsLoaded carries recent upload transactions, newest first.
type UploadsLoaded struct {
	Uploads []domain.UploadTransaction
	Err     error
}

// UploadRequested asks for a file to be uploaded to the selected project.
type UploadRequested struct {
	Path string
}

// UploadFinished reports a finished upload or retry. Upload may be set
// alongside Err when the transaction was recorded before failing.
type UploadFinished struct {
	Upload *domain.UploadTransaction
	Err    error
}

// RetryRequested re-runs one failed or retrying upload.
type RetryRequested struct {
	ID string
}
