// Package styles holds the viewshot palette and the lipgloss styles built
// from it.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// Theme is the colour palette.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Surface    lipgloss.Color
	Border     lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme returns the blue/teal palette used unless another is set.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#2563EB"),
		Secondary:  lipgloss.Color("#14B8A6"),
		Foreground: lipgloss.Color("#E5E7EB"),
		Muted:      lipgloss.Color("#6B7280"),
		Surface:    lipgloss.Color("#1F2937"),
		Border:     lipgloss.Color("#374151"),
		Success:    lipgloss.Color("#22C55E"),
		Warning:    lipgloss.Color("#EAB308"),
		Error:      lipgloss.Color("#EF4444"),
	}
}

// Styles are the rendered styles shared by every view.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// Code frames the device user code during sign-in.
	Code lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles builds styles from theme, falling back to DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Styles{
		theme:    theme,
		Title:    fg(theme.Primary).Bold(true),
		Subtitle: fg(theme.Secondary).Bold(true),
		Normal:   fg(theme.Foreground),
		Muted:    fg(theme.Muted),
		Selected: fg(theme.Foreground).Background(theme.Primary).Bold(true),
		Success:  fg(theme.Success),
		Warning:  fg(theme.Warning),
		Error:    fg(theme.Error),
		Code: fg(theme.Foreground).Bold(true).
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(theme.Secondary).
			Padding(0, 2),
		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		StatusBar: fg(theme.Muted).Background(theme.Surface).Padding(0, 1),
		Help:      fg(theme.Muted),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),
	}
}

// DefaultStyles returns styles for the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette these styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// ForUpload picks the style an upload status is rendered with.
func (s *Styles) ForUpload(status domain.UploadStatus) lipgloss.Style {
	switch status {
	case domain.UploadCompleted:
		return s.Success
	case domain.UploadFailed:
		return s.Error
	case domain.UploadRetrying:
		return s.Warning
	case domain.UploadInProgress:
		return s.Subtitle
	default:
		return s.Muted
	}
}

// ForAuth picks the style an auth state is rendered with.
func (s *Styles) ForAuth(state domain.AuthState) lipgloss.Style {
	switch state {
	case domain.AuthStateAuthenticated:
		return s.Success
	case domain.AuthStatePendingAuthorization:
		return s.Warning
	case domain.AuthStateFailed, domain.AuthStateExpired:
		return s.Error
	default:
		return s.Muted
	}
}
