// Package projects provides the project picker view for the TUI.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// View lists remote projects and picks the upload target.
type View struct {
	ctx      context.Context
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	service  driving.ProjectService
	list     *list.List
	projects []domain.Project
	current  string
	loading  bool
	err      error
}

// NewView creates a new projects view.
func NewView(s *styles.Styles, service driving.ProjectService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		ctx:     context.Background(),
		styles:  s,
		keymap:  keymap.DefaultKeyMap(),
		service: service,
		list:    list.New(s, "No projects. Create one on the Viewshot website."),
	}
}

// WithContext sets the context service calls run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the projects.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	ctx, service := v.ctx, v.service
	return func() tea.Msg {
		if service == nil {
			return messages.ProjectsLoaded{Err: errors.New("project service not available")}
		}
		projects, err := service.List(ctx)
		return messages.ProjectsLoaded{Projects: projects, Err: err}
	}
}

// Update handles messages for the projects view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case messages.ProjectsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.projects = msg.Projects
			v.refreshItems()
		}

	case tea.KeyMsg:
		k := msg.String()
		switch {
		case keymap.Matches(k, v.keymap.Select):
			if p := v.Selected(); p != nil {
				project := *p
				v.current = project.ID
				v.refreshItems()
				return v, func() tea.Msg { return messages.ProjectSelected{Project: project} }
			}
		case keymap.Matches(k, v.keymap.Refresh):
			v.loading = true
			return v, v.load()
		default:
			v.list.Update(msg)
		}
	}
	return v, nil
}

func (v *View) refreshItems() {
	items := make([]list.Item, len(v.projects))
	for i := range v.projects {
		p := &v.projects[i]
		title := p.Name
		if p.ID == v.current {
			title = "* " + title
		}
		meta := v.styles.Muted.Render(fmt.Sprintf("%d images", p.ImageCount))
		items[i] = list.Item{Title: title, Meta: meta, Detail: p.Description}
	}
	v.list.SetItems(items)
}

// View renders the projects.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Projects"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading projects..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		if domain.IsUnauthorized(v.err) {
			b.WriteString("\n" + v.styles.Muted.Render("Sign in from the Account view first."))
		}
	default:
		b.WriteString(v.list.View())
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[enter] Upload here  [r] Refresh  [esc] Back"))
	return b.String()
}

// SetCurrent marks the project uploads currently go to.
func (v *View) SetCurrent(projectID string) {
	v.current = projectID
	v.refreshItems()
}

// Selected returns the highlighted project, or nil.
func (v *View) Selected() *domain.Project {
	i := v.list.Selected()
	if i < 0 || i >= len(v.projects) {
		return nil
	}
	return &v.projects[i]
}

// Projects returns the loaded projects.
func (v *View) Projects() []domain.Project {
	return v.projects
}

// Lookup returns the loaded project with the given ID, or nil.
func (v *View) Lookup(id string) *domain.Project {
	for i := range v.projects {
		if v.projects[i].ID == id {
			return &v.projects[i]
		}
	}
	return nil
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.list.SetDimensions(width, height-6)
}
