// Package menu provides the main navigation menu view for the TUI.
package menu

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
)

// Item represents a single menu option.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool // If true, selecting this item quits the app
}

// View represents the main menu view.
type View struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	items    []Item
	summary  string
	selected int
	width    int
	height   int
	ready    bool
}

// NewView creates a new menu view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles: s,
		keymap: keymap.DefaultKeyMap(),
		items: []Item{
			{Label: "Account", Hint: "sign in or out", View: messages.ViewAccount},
			{Label: "Projects", Hint: "choose where uploads go", View: messages.ViewProjects},
			{Label: "Uploads", Hint: "upload and retry screenshots", View: messages.ViewUploads},
			{Label: "Activity", Hint: "auth, network and upload events", View: messages.ViewActivity},
			{Label: "Help", View: messages.ViewHelp},
			{Label: "Quit", Quit: true},
		},
		selected: 0,
		width:    80,
		height:   24,
	}
}

// Init initialises the menu view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the menu view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		k := msg.String()
		switch {
		case keymap.Matches(k, v.keymap.Up):
			if v.selected > 0 {
				v.selected--
			}
		case keymap.Matches(k, v.keymap.Down):
			if v.selected < len(v.items)-1 {
				v.selected++
			}
		case keymap.Matches(k, v.keymap.Select):
			item := v.items[v.selected]
			if item.Quit {
				return v, tea.Quit
			}
			return v, func() tea.Msg {
				return messages.ViewChanged{View: item.View}
			}
		case keymap.Matches(k, v.keymap.Quit):
			return v, tea.Quit
		}
	}

	return v, nil
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Viewshot"))
	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render("Screenshot uploads"))
	b.WriteString("\n")
	if v.summary != "" {
		b.WriteString(v.styles.Normal.Render(v.summary))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for i, item := range v.items {
		cursor := "  "
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		if i == v.selected {
			cursor = "> "
			style = lipgloss.NewStyle().
				Foreground(v.styles.Theme().Secondary).
				Bold(true)
		}

		b.WriteString(cursor + style.Render(item.Label))
		if item.Hint != "" && i == v.selected {
			b.WriteString("  " + v.styles.Muted.Render(item.Hint))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [Enter] Select  [q] Quit"))

	return b.String()
}

// SetSummary sets the line shown under the title, such as who is signed in.
func (v *View) SetSummary(summary string) {
	v.summary = summary
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}
