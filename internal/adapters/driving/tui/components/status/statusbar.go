// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
)

// State represents the current application state for display.
type State string

const (
	StateReady     State = "ready"
	StateLoading   State = "loading"
	StateSigningIn State = "signing_in"
	StateUploading State = "uploading"
	StateError     State = "error"
)

// Bar displays application status and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	bindings []key.Binding
	state    State
	message  string
	account  string
	project  string
	width    int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles:   s,
		keymap:   km,
		bindings: km.ShortHelp(),
		state:    StateReady,
		width:    80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages.
func (s *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	// Bar is passive, updated via Set methods
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	var state string
	switch s.state {
	case StateLoading:
		state = s.styles.Muted.Render("Loading...")
	case StateSigningIn:
		state = s.styles.Warning.Render("Waiting for approval...")
	case StateUploading:
		state = s.styles.Subtitle.Render(orDefault(s.message, "Uploading..."))
	case StateError:
		if s.message != "" {
			state = s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		} else {
			state = s.styles.Error.Render("Error")
		}
	default:
		state = s.styles.Muted.Render(orDefault(s.message, "Ready"))
	}

	parts := []string{state}
	if s.account != "" {
		parts = append(parts, s.styles.Normal.Render(s.account))
	}
	if s.project != "" {
		parts = append(parts, s.styles.Muted.Render("project: "+s.project))
	}
	return strings.Join(parts, s.styles.Muted.Render(" · "))
}

// renderRight renders keybinding hints.
func (s *Bar) renderRight() string {
	hints := make([]string, 0, len(s.bindings))
	for _, b := range s.bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetAccount sets the signed-in identity shown in the bar.
func (s *Bar) SetAccount(account string) {
	s.account = account
}

// SetProject sets the upload target shown in the bar.
func (s *Bar) SetProject(project string) {
	s.project = project
}

// SetBindings replaces the keybinding hints. Nil restores the short help.
func (s *Bar) SetBindings(bindings []key.Binding) {
	if bindings == nil {
		bindings = s.keymap.ShortHelp()
	}
	s.bindings = bindings
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar state and message.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
