package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/views/account"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/views/activity"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/views/projects"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/views/uploads"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// notificationBuffer is the subscription channel size. Slow rendering
// drops notifications rather than blocking the publishers.
const notificationBuffer = 64

// hostApp is reported as the host application of uploads started here.
const hostApp = "viewshot-tui"

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView     *menu.View
	accountView  *account.View
	projectsView *projects.View
	uploadsView  *uploads.View
	activityView *activity.View
	statusBar    *status.Bar
	spinner      spinner.Model

	// notifications is nil until Init subscribes.
	notifications <-chan domain.Notification
	unsubscribe   func()

	// cancelLogin stops a running device flow.
	cancelLogin context.CancelFunc

	// projectID and projectName are the upload target.
	projectID   string
	projectName string

	// busy counts running service calls; the spinner shows while > 0.
	busy int

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	a := &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		keymap:       km,
		menuView:     menu.NewView(s),
		accountView:  account.NewView(s, ports.Auth),
		projectsView: projects.NewView(s, ports.Projects),
		uploadsView:  uploads.NewView(s, ports.Uploads),
		activityView: activity.NewView(s),
		statusBar:    status.NewBar(s, km),
		spinner:      sp,
		currentView:  messages.ViewMenu,
	}
	a.setProject(ports.DefaultProjectID, "")
	return a, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.projectsView.WithContext(ctx)
	a.uploadsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
// It subscribes to notifications and loads the session, projects and uploads.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tea.SetWindowTitle("viewshot"),
		a.accountView.Init(),
		a.projectsView.Init(),
		a.uploadsView.Init(),
	}
	if a.ports.Notifications != nil && a.notifications == nil {
		a.notifications, a.unsubscribe = a.ports.Notifications.Subscribe(notificationBuffer)
		cmds = append(cmds, a.listen())
	}
	return tea.Batch(cmds...)
}

// listen waits for the next notification.
func (a *App) listen() tea.Cmd {
	ch := a.notifications
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return messages.NotificationsClosed{}
		}
		return messages.NotificationReceived{Notification: n}
	}
}

// Update implements tea.Model.
// It handles messages and updates the model state.
//
//nolint:gocognit,gocyclo,funlen // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		if a.busy == 0 {
			return a, nil
		}
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.NotificationReceived:
		return a, tea.Batch(a.handleNotification(msg), a.listen())

	case messages.NotificationsClosed:
		a.notifications = nil
		return a, nil

	case messages.SessionLoaded:
		a.accountView, cmd = a.accountView.Update(msg)
		a.syncSession(msg.Session)
		return a, cmd

	case messages.LoginRequested:
		return a, a.login()

	case messages.LoginFinished:
		a.cancelLogin = nil
		a.done()
		a.accountView, cmd = a.accountView.Update(msg)
		switch {
		case msg.OK:
			a.activityView.Add("signed in")
			a.statusBar.Clear()
			return a, tea.Batch(cmd, a.projectsView.Init(), a.uploadsView.Init())
		case errors.Is(msg.Err, context.Canceled):
			a.activityView.Add("sign-in cancelled")
			a.statusBar.Clear()
		default:
			a.fail(fmt.Errorf("sign-in failed: %w", msg.Err))
		}
		return a, cmd

	case messages.LogoutRequested:
		return a, a.logout()

	case messages.LogoutFinished:
		a.done()
		a.accountView, cmd = a.accountView.Update(msg)
		if msg.Err != nil {
			a.fail(fmt.Errorf("sign-out failed: %w", msg.Err))
		} else {
			a.activityView.Add("signed out")
			a.statusBar.Clear()
		}
		return a, cmd

	case messages.ProjectsLoaded:
		a.projectsView, cmd = a.projectsView.Update(msg)
		if msg.Err != nil {
			a.fail(msg.Err)
		} else if p := a.projectsView.Lookup(a.projectID); p != nil {
			a.setProject(p.ID, p.Name)
		}
		return a, cmd

	case messages.ProjectSelected:
		a.setProject(msg.Project.ID, msg.Project.Name)
		a.activityView.Add("uploads now go to " + msg.Project.Name)
		return a, a.switchTo(messages.ViewUploads)

	case messages.UploadsLoaded:
		a.uploadsView, cmd = a.uploadsView.Update(msg)
		return a, cmd

	case messages.UploadRequested:
		return a, a.upload(msg.Path)

	case messages.RetryRequested:
		return a, a.retry(msg.ID)

	case messages.UploadFinished:
		a.done()
		a.uploadsView, cmd = a.uploadsView.Update(msg)
		switch {
		case msg.Err != nil && msg.Upload != nil:
			a.activityView.Add(fmt.Sprintf("upload %s: %s", uploads.Name(msg.Upload), msg.Err))
			a.fail(msg.Err)
		case msg.Err != nil:
			a.fail(msg.Err)
		case msg.Upload != nil:
			a.activityView.Add(fmt.Sprintf("uploaded %s: %s", uploads.Name(msg.Upload), msg.Upload.RemoteImageURL))
			a.statusBar.Clear()
		}
		return a, cmd

	case messages.ErrorOccurred:
		a.fail(msg.Err)
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Global quit with ctrl+c
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	// The upload prompt owns every other key while open.
	if a.currentView == messages.ViewUploads && a.uploadsView.Capturing() {
		a.uploadsView, cmd = a.uploadsView.Update(msg)
		return a, cmd
	}

	k := msg.String()
	if a.currentView != messages.ViewMenu {
		switch {
		case keymap.Matches(k, a.keymap.Back):
			if a.currentView == messages.ViewAccount && a.cancelLogin != nil {
				a.cancelLogin()
				return a, nil
			}
			return a, a.switchTo(messages.ViewMenu)
		case keymap.Matches(k, a.keymap.Quit):
			return a, tea.Quit
		case keymap.Matches(k, a.keymap.Help):
			return a, a.switchTo(messages.ViewHelp)
		}
	}

	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewAccount:
		a.accountView, cmd = a.accountView.Update(msg)
	case messages.ViewProjects:
		a.projectsView, cmd = a.projectsView.Update(msg)
	case messages.ViewUploads:
		a.uploadsView, cmd = a.uploadsView.Update(msg)
	case messages.ViewActivity:
		a.activityView, cmd = a.activityView.Update(msg)
	case messages.ViewHelp:
		// Help view doesn't handle keys
	}
	return a, cmd
}

// switchTo activates a view and refreshes its data.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	a.statusBar.SetBindings(nil)

	switch view {
	case messages.ViewAccount:
		return a.accountView.Init()
	case messages.ViewProjects:
		return a.projectsView.Init()
	case messages.ViewUploads:
		a.statusBar.SetBindings(a.keymap.UploadsHelp())
		return a.uploadsView.Init()
	case messages.ViewMenu, messages.ViewActivity, messages.ViewHelp:
		// Nothing to load
	}
	return nil
}

func (a *App) handleNotification(msg messages.NotificationReceived) tea.Cmd {
	n := msg.Notification
	a.activityView.Record(n)

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.uploadsView, cmd = a.uploadsView.Update(msg)
	cmds = append(cmds, cmd)

	switch n.Kind {
	case domain.NotifyAuthStateChanged:
		// The device code is read back from the session once pending.
		cmds = append(cmds, a.accountView.Init())
	case domain.NotifyAuthError:
		a.fail(errors.New(n.Message))
	case domain.NotifyRateLimitReached:
		a.statusBar.SetMessage(fmt.Sprintf("Rate limited, waiting %s", n.RetryAfter))
	case domain.NotifyNetworkStatusChanged:
		if n.Online {
			a.statusBar.Clear()
		} else {
			a.fail(errors.New("network unreachable"))
		}
	case domain.NotifyUploadProgress:
		if n.Progress.Percent >= 100 {
			a.statusBar.Clear()
		} else {
			a.statusBar.SetState(status.StateUploading)
			a.statusBar.SetMessage(fmt.Sprintf("Uploading %d%%", n.Progress.Percent))
		}
	case domain.NotifyTokenRefreshed, domain.NotifyAPIError:
		// Logged only
	}
	return tea.Batch(cmds...)
}

// syncSession mirrors the session into the status bar and menu.
func (a *App) syncSession(s *domain.Session) {
	state := domain.AuthStateNotAuthenticated
	if s != nil {
		state = s.State
	}

	switch state {
	case domain.AuthStateAuthenticated:
		name := account.DisplayName(s)
		a.statusBar.SetAccount(name)
		a.menuView.SetSummary("Signed in as " + name)
	case domain.AuthStatePendingAuthorization:
		a.statusBar.SetAccount("")
		a.statusBar.SetState(status.StateSigningIn)
		a.menuView.SetSummary("Waiting for sign-in approval, see Account")
	case domain.AuthStateExpired:
		a.statusBar.SetAccount(account.DisplayName(s) + " (expired)")
		a.menuView.SetSummary("Session expired, sign in again from Account")
	default:
		a.statusBar.SetAccount("")
		a.menuView.SetSummary("Not signed in")
	}
}

func (a *App) login() tea.Cmd {
	if a.cancelLogin != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancelLogin = cancel
	a.currentView = messages.ViewAccount
	a.statusBar.SetState(status.StateSigningIn)

	auth := a.ports.Auth
	return tea.Batch(a.start(), func() tea.Msg {
		defer cancel()
		ok, err := auth.Authenticate(ctx)
		if err == nil && !ok {
			err = errors.New("sign-in was not completed")
		}
		return messages.LoginFinished{OK: ok, Err: err}
	})
}

func (a *App) logout() tea.Cmd {
	ctx, auth := a.ctx, a.ports.Auth
	return tea.Batch(a.start(), func() tea.Msg {
		return messages.LogoutFinished{Err: auth.SignOut(ctx)}
	})
}

func (a *App) upload(path string) tea.Cmd {
	if a.projectID == "" {
		return func() tea.Msg { return messages.UploadFinished{Err: ErrNoProject} }
	}

	ctx, service := a.ctx, a.ports.Uploads
	req := driving.UploadRequest{
		ProjectID:  a.projectID,
		SourcePath: path,
		Metadata: domain.ScreenshotMetadata{
			FileName: filepath.Base(path),
			HostApp:  hostApp,
		},
	}
	a.statusBar.SetState(status.StateUploading)
	a.statusBar.SetMessage("Uploading " + req.Metadata.FileName)
	return tea.Batch(a.start(), func() tea.Msg {
		tx, err := service.Upload(ctx, req)
		return messages.UploadFinished{Upload: tx, Err: err}
	})
}

func (a *App) retry(id string) tea.Cmd {
	ctx, service := a.ctx, a.ports.Uploads
	a.statusBar.SetState(status.StateUploading)
	a.statusBar.SetMessage("Retrying upload")
	return tea.Batch(a.start(), func() tea.Msg {
		tx, err := service.Retry(ctx, id)
		return messages.UploadFinished{Upload: tx, Err: err}
	})
}

// start marks a service call as running and starts the spinner on the
// first one.
func (a *App) start() tea.Cmd {
	a.busy++
	if a.busy == 1 {
		return a.spinner.Tick
	}
	return nil
}

func (a *App) done() {
	if a.busy > 0 {
		a.busy--
	}
}

func (a *App) fail(err error) {
	a.err = err
	a.statusBar.SetState(status.StateError)
	msg := err.Error()
	if domain.IsUnauthorized(err) {
		msg += " (sign in from Account)"
	}
	a.statusBar.SetMessage(msg)
}

func (a *App) setProject(id, name string) {
	a.projectID = id
	a.projectName = name
	label := name
	if label == "" {
		label = id
	}
	a.projectsView.SetCurrent(id)
	a.uploadsView.SetTarget(label)
	a.statusBar.SetProject(label)
}

// View implements tea.Model.
// It renders the current view as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewAccount:
		body = a.accountView.View()
	case messages.ViewProjects:
		body = a.projectsView.View()
	case messages.ViewUploads:
		body = a.uploadsView.View()
	case messages.ViewActivity:
		body = a.activityView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.menuView.View()
	}

	if a.busy > 0 {
		body += "\n\n" + a.spinner.View() + a.styles.Muted.Render(" working...")
	}

	// Pin the status bar to the last line.
	gap := a.height - strings.Count(body, "\n") - 2
	if gap < 1 {
		gap = 1
	}
	return body + strings.Repeat("\n", gap) + a.statusBar.View()
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Muted.Render("Uploads go to the project chosen in Projects.\n" +
		"Sign in from Account; the code shown there is entered on the Viewshot website."))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	defer a.Close()
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Close stops a running sign-in and unsubscribes from notifications.
func (a *App) Close() {
	if a.cancelLogin != nil {
		a.cancelLogin()
		a.cancelLogin = nil
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// ProjectID returns the current upload target.
func (a *App) ProjectID() string {
	return a.projectID
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.accountView.SetDimensions(width, height)
	a.projectsView.SetDimensions(width, height-1)
	a.uploadsView.SetDimensions(width, height-1)
	a.activityView.SetDimensions(width, height-1)
	a.statusBar.SetWidth(width)
}
