// Package list provides a navigable list component for the TUI.
package list

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
)

// Item is one row of the list.
type Item struct {
	// Title is the main text.
	Title string
	// Meta is shown to the right of the title. It may already be styled.
	Meta string
	// Detail is an optional muted second line.
	Detail string
}

// List displays items with a movable selection.
type List struct {
	items    []Item
	selected int
	empty    string
	styles   *styles.Styles
	width    int
	height   int
}

// New creates a list. empty is shown when there are no items.
func New(s *styles.Styles, empty string) *List {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &List{
		empty:  empty,
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the list.
func (l *List) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *List) Update(msg tea.Msg) (*List, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		case "home", "g":
			l.selected = 0
		case "end", "G":
			if len(l.items) > 0 {
				l.selected = len(l.items) - 1
			}
		}
	}
	return l, nil
}

// View renders the visible window of items around the selection.
func (l *List) View() string {
	if len(l.items) == 0 {
		return l.styles.Muted.Render(l.empty)
	}

	rows := 1
	for i := range l.items {
		if l.items[i].Detail != "" {
			rows = 2
			break
		}
	}
	visible := l.height / rows
	if visible < 1 {
		visible = 1
	}

	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := start + visible
	if end > len(l.items) {
		end = len(l.items)
	}

	lines := make([]string, 0, (end-start)*rows)
	for i := start; i < end; i++ {
		lines = append(lines, l.renderItem(i, &l.items[i]))
	}
	return strings.Join(lines, "\n")
}

func (l *List) renderItem(index int, item *Item) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	maxTitle := l.width - lipgloss.Width(item.Meta) - 6
	if maxTitle < 10 {
		maxTitle = 10
	}
	title := Truncate(item.Title, maxTitle)

	var line string
	if index == l.selected {
		line = l.styles.Selected.Render(indicator+title) + "  " + item.Meta
	} else {
		line = l.styles.Normal.Render(indicator+title) + "  " + item.Meta
	}

	if item.Detail != "" {
		line += "\n" + l.styles.Muted.Render("    "+Truncate(item.Detail, l.width-6))
	}
	return line
}

// SetItems replaces the items, keeping the selection in range.
func (l *List) SetItems(items []Item) {
	l.items = items
	if l.selected >= len(items) {
		l.selected = len(items) - 1
	}
	if l.selected < 0 {
		l.selected = 0
	}
}

// Items returns the current items.
func (l *List) Items() []Item {
	return l.items
}

// Selected returns the index of the selected item.
func (l *List) Selected() int {
	return l.selected
}

// SetSelected sets the selected index.
func (l *List) SetSelected(index int) {
	if index >= 0 && index < len(l.items) {
		l.selected = index
	}
}

// MoveUp moves selection up.
func (l *List) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *List) MoveDown() {
	if l.selected < len(l.items)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *List) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of items.
func (l *List) Count() int {
	return len(l.items)
}

// IsEmpty returns whether the list is empty.
func (l *List) IsEmpty() bool {
	return len(l.items) == 0
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
