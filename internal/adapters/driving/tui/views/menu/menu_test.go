package menu

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
)

func TestNewView(t *testing.T) {
	view := NewView(styles.DefaultStyles())

	require.NotNil(t, view)
	assert.NotNil(t, view.styles)
	assert.Len(t, view.items, 6)
	assert.Equal(t, 0, view.selected)
	assert.Equal(t, 80, view.width)
	assert.Equal(t, 24, view.height)
	assert.Nil(t, view.Init())
}

func TestNewView_NilStyles(t *testing.T) {
	view := NewView(nil)

	require.NotNil(t, view)
	assert.NotNil(t, view.styles)
}

func TestView_Update_WindowSize(t *testing.T) {
	view := NewView(nil)

	updated, cmd := view.Update(tea.WindowSizeMsg{Width: 100, Height: 50})

	assert.Equal(t, view, updated)
	assert.Nil(t, cmd)
	assert.True(t, view.ready)
	assert.Equal(t, 100, view.width)
	assert.Equal(t, 50, view.height)
}

func TestView_Update_Navigate(t *testing.T) {
	view := NewView(nil)

	down := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	for range 10 {
		view.Update(down)
	}
	// Boundary - can't go past last item
	assert.Equal(t, 5, view.selected)

	view.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 4, view.selected)

	up := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}
	for range 10 {
		view.Update(up)
	}
	assert.Equal(t, 0, view.selected)

	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, view.selected)
}

func TestView_Update_Enter_ChangesView(t *testing.T) {
	tests := []struct {
		index    int
		expected messages.ViewType
	}{
		{0, messages.ViewAccount},
		{1, messages.ViewProjects},
		{2, messages.ViewUploads},
		{3, messages.ViewActivity},
		{4, messages.ViewHelp},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			view := NewView(nil)
			view.selected = tt.index

			_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

			require.NotNil(t, cmd)
			changed, ok := cmd().(messages.ViewChanged)
			require.True(t, ok)
			assert.Equal(t, tt.expected, changed.View)
		})
	}
}

func TestView_Update_Quit(t *testing.T) {
	view := NewView(nil)
	view.selected = 5

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = NewView(nil).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_View_NotReady(t *testing.T) {
	view := NewView(nil)

	assert.Contains(t, view.View(), "Initialising")
}

func TestView_View_Ready(t *testing.T) {
	view := NewView(nil)
	view.SetDimensions(80, 24)
	view.SetSummary("Signed in as Ada")

	output := view.View()

	assert.Contains(t, output, "Viewshot")
	assert.Contains(t, output, "Signed in as Ada")
	assert.Contains(t, output, "Account")
	assert.Contains(t, output, "sign in or out")
	assert.Contains(t, output, "Uploads")
	assert.Contains(t, output, "Quit")
	assert.Contains(t, output, ">")
	// Hints are shown for the selected item only
	assert.NotContains(t, output, "choose where uploads go")
}

func TestView_SetDimensions(t *testing.T) {
	view := NewView(nil)

	view.SetDimensions(120, 60)

	assert.Equal(t, 120, view.width)
	assert.Equal(t, 60, view.height)
	assert.True(t, view.ready)
}

func TestView_Selected(t *testing.T) {
	view := NewView(nil)
	view.selected = 2

	assert.Equal(t, 2, view.Selected())
}
