// Package input provides text input components for the TUI.
package input

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
)

// PathInput wraps a bubbles textinput for entering the path of an image.
type PathInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
}

// NewPathInput creates a new path input component.
func NewPathInput(s *styles.Styles) *PathInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "path to a png, jpg, webp or bmp file"
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 50

	return &PathInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init initialises the path input.
func (p *PathInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (p *PathInput) Update(msg tea.Msg) (*PathInput, tea.Cmd) {
	var cmd tea.Cmd
	p.textinput, cmd = p.textinput.Update(msg)
	return p, cmd
}

// View renders the path input.
func (p *PathInput) View() string {
	label := p.styles.Title.Render("Upload: ")
	input := p.styles.InputField.Render(p.textinput.View())
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, input)
}

// Value returns the raw input value.
func (p *PathInput) Value() string {
	return p.textinput.Value()
}

// Path returns the entered path cleaned up the way terminals paste
// dropped files: surrounding quotes removed, escaped spaces unescaped
// and a leading ~ expanded.
func (p *PathInput) Path() string {
	path := strings.TrimSpace(p.textinput.Value())
	path = strings.Trim(path, `"'`)
	path = strings.ReplaceAll(path, `\ `, " ")
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// SetValue sets the input value.
func (p *PathInput) SetValue(value string) {
	p.textinput.SetValue(value)
}

// Focus sets focus on the input.
func (p *PathInput) Focus() tea.Cmd {
	return p.textinput.Focus()
}

// Blur removes focus from the input.
func (p *PathInput) Blur() {
	p.textinput.Blur()
}

// Focused returns whether the input is focused.
func (p *PathInput) Focused() bool {
	return p.textinput.Focused()
}

// SetWidth sets the width of the input.
func (p *PathInput) SetWidth(width int) {
	p.width = width
	// Account for label and padding
	inputWidth := width - 12
	if inputWidth < 20 {
		inputWidth = 20
	}
	p.textinput.Width = inputWidth
}

// Width returns the current width.
func (p *PathInput) Width() int {
	return p.width
}

// Reset clears the input.
func (p *PathInput) Reset() {
	p.textinput.Reset()
}
