// Package account provides the session view, including the device code
// shown while a sign-in waits for approval.
package account

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// View shows the current session.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	auth    driving.AuthService
	session *domain.Session
	busy    bool
	err     error
	now     func() time.Time
	width   int
	height  int
}

// NewView creates a new account view.
func NewView(s *styles.Styles, auth driving.AuthService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		keymap: keymap.DefaultKeyMap(),
		auth:   auth,
		now:    time.Now,
		width:  80,
		height: 24,
	}
}

// Init loads the session.
func (v *View) Init() tea.Cmd {
	return v.load()
}

func (v *View) load() tea.Cmd {
	auth := v.auth
	return func() tea.Msg {
		if auth == nil {
			return messages.SessionLoaded{}
		}
		return messages.SessionLoaded{Session: auth.CurrentSession()}
	}
}

// Update handles messages for the account view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case messages.SessionLoaded:
		v.session = msg.Session

	case messages.LoginFinished:
		v.busy = false
		v.err = msg.Err
		return v, v.load()

	case messages.LogoutFinished:
		v.busy = false
		v.err = msg.Err
		return v, v.load()

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Login):
		if v.busy || v.State() == domain.AuthStateAuthenticated {
			return v, nil
		}
		v.busy = true
		v.err = nil
		return v, func() tea.Msg { return messages.LoginRequested{} }

	case keymap.Matches(k, v.keymap.Logout):
		if v.busy || v.session == nil {
			return v, nil
		}
		v.busy = true
		v.err = nil
		return v, func() tea.Msg { return messages.LogoutRequested{} }

	case keymap.Matches(k, v.keymap.Refresh):
		return v, v.load()
	}
	return v, nil
}

// View renders the session.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Account"))
	b.WriteString("\n\n")

	state := v.State()
	b.WriteString("State:   " + v.styles.ForAuth(state).Render(state.String()) + "\n")

	switch state {
	case domain.AuthStatePendingAuthorization:
		b.WriteString(v.renderDeviceCode())
	case domain.AuthStateAuthenticated, domain.AuthStateExpired:
		b.WriteString(v.renderIdentity())
	default:
		b.WriteString("\n")
		if v.busy {
			b.WriteString(v.styles.Muted.Render("Requesting a sign-in code..."))
		} else {
			b.WriteString(v.styles.Muted.Render("Not signed in. Press l to sign in."))
		}
		b.WriteString("\n")
	}

	if v.err != nil {
		b.WriteString("\n" + v.styles.Error.Render("Error: "+v.err.Error()) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[l] Sign in  [o] Sign out  [r] Refresh  [esc] Back"))
	return b.String()
}

func (v *View) renderDeviceCode() string {
	s := v.session
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(v.styles.Normal.Render("Visit " + s.VerificationURI + " and enter the code:"))
	b.WriteString("\n\n")
	b.WriteString(v.styles.Code.Render(s.UserCode))
	b.WriteString("\n\n")
	if s.VerificationURIComplete != "" {
		b.WriteString(v.styles.Muted.Render("Or open " + s.VerificationURIComplete))
		b.WriteString("\n")
	}
	if !s.DeviceExpiresAt.IsZero() {
		left := s.DeviceExpiresAt.Sub(v.now()).Round(time.Second)
		if left > 0 {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("The code expires in %s.", left)))
		} else {
			b.WriteString(v.styles.Warning.Render("The code has expired."))
		}
		b.WriteString("\n")
	}
	b.WriteString(v.styles.Warning.Render("Waiting for approval..."))
	b.WriteString("\n")
	return b.String()
}

func (v *View) renderIdentity() string {
	s := v.session
	var b strings.Builder

	b.WriteString("User:    " + v.styles.Normal.Render(DisplayName(s)) + "\n")
	if s.UserEmail != "" {
		b.WriteString("Email:   " + s.UserEmail + "\n")
	}
	if !s.TokenExpiry.IsZero() {
		b.WriteString("Expires: " + s.TokenExpiry.Local().Format(time.RFC1123) + "\n")
	}
	if !s.LastRefreshed.IsZero() {
		b.WriteString("Refreshed: " + s.LastRefreshed.Local().Format(time.Kitchen) + "\n")
	}
	return b.String()
}

// State returns the recorded state of the loaded session.
func (v *View) State() domain.AuthState {
	// The session copy carries no tokens, so its recorded state is used.
	if v.session == nil {
		return domain.AuthStateNotAuthenticated
	}
	return v.session.State
}

// Session returns the loaded session copy.
func (v *View) Session() *domain.Session {
	return v.session
}

// Busy reports whether a sign-in or sign-out is running.
func (v *View) Busy() bool {
	return v.busy
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// DisplayName picks the friendliest identity a session carries.
func DisplayName(s *domain.Session) string {
	switch {
	case s == nil:
		return ""
	case s.UserDisplayName != "":
		return s.UserDisplayName
	case s.Username != "":
		return s.Username
	case s.UserEmail != "":
		return s.UserEmail
	default:
		return s.UserID
	}
}
