// Package activity provides the notification log view for the TUI.
package activity

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// MaxEntries caps the log; the oldest entries are dropped first.
const MaxEntries = 500

// Entry is one line of the log.
type Entry struct {
	At   time.Time
	Kind domain.NotificationKind
	Text string
}

// View is a scrollable log of notifications.
type View struct {
	styles   *styles.Styles
	viewport viewport.Model
	entries  []Entry
	follow   bool
}

// NewView creates a new activity view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:   s,
		viewport: viewport.New(80, 18),
		follow:   true,
	}
}

// Init initialises the activity view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the activity view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.NotificationReceived:
		v.Record(msg.Notification)
		return v, nil

	case tea.KeyMsg:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		v.follow = v.viewport.AtBottom()
		return v, cmd
	}
	return v, nil
}

// Record adds a notification to the log. Upload progress is only logged
// once the transfer reaches 100%.
func (v *View) Record(n domain.Notification) {
	if n.Kind == domain.NotifyUploadProgress && n.Progress.Percent < 100 {
		return
	}
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	v.append(Entry{At: at, Kind: n.Kind, Text: n.String()})
}

// Add logs a line that did not come from a notification.
func (v *View) Add(text string) {
	v.append(Entry{At: time.Now(), Text: text})
}

func (v *View) append(e Entry) {
	v.entries = append(v.entries, e)
	if len(v.entries) > MaxEntries {
		v.entries = v.entries[len(v.entries)-MaxEntries:]
	}
	v.viewport.SetContent(v.render())
	if v.follow {
		v.viewport.GotoBottom()
	}
}

func (v *View) render() string {
	lines := make([]string, len(v.entries))
	for i, e := range v.entries {
		ts := v.styles.Muted.Render(e.At.Local().Format("15:04:05"))
		lines[i] = ts + "  " + v.styleFor(e.Kind).Render(e.Text)
	}
	return strings.Join(lines, "\n")
}

func (v *View) styleFor(kind domain.NotificationKind) lipgloss.Style {
	switch kind {
	case domain.NotifyAuthError, domain.NotifyAPIError:
		return v.styles.Error
	case domain.NotifyRateLimitReached, domain.NotifyNetworkStatusChanged:
		return v.styles.Warning
	case domain.NotifyTokenRefreshed, domain.NotifyUploadProgress:
		return v.styles.Success
	default:
		return v.styles.Normal
	}
}

// View renders the log.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Activity"))
	b.WriteString("\n\n")
	if len(v.entries) == 0 {
		b.WriteString(v.styles.Muted.Render("Nothing has happened yet."))
	} else {
		b.WriteString(v.viewport.View())
	}
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] Scroll  [esc] Back"))
	return b.String()
}

// Entries returns the logged entries, oldest first.
func (v *View) Entries() []Entry {
	return v.entries
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.viewport.Width = width
	v.viewport.Height = max(height-6, 3)
	if v.follow {
		v.viewport.GotoBottom()
	}
}
