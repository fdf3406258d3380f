// Package uploads provides the upload history view with live progress.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// HistoryLimit is how many recent uploads the view loads.
const HistoryLimit = 50

// View lists recent uploads and starts new ones.
type View struct {
	ctx     context.Context
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	service driving.UploadService

	list     *list.List
	input    *input.PathInput
	bar      progress.Model
	uploads  []domain.UploadTransaction
	entering bool
	target   string
	loading  bool
	notice   string
	err      error
}

// NewView creates a new uploads view.
func NewView(s *styles.Styles, service driving.UploadService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	bar := progress.New(progress.WithGradient(string(s.Theme().Primary), string(s.Theme().Secondary)))
	bar.Width = 40

	return &View{
		ctx:     context.Background(),
		styles:  s,
		keymap:  keymap.DefaultKeyMap(),
		service: service,
		list:    list.New(s, "No uploads yet. Press u to upload a screenshot."),
		input:   input.NewPathInput(s),
		bar:     bar,
	}
}

// WithContext sets the context service calls run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the upload history.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	ctx, service := v.ctx, v.service
	return func() tea.Msg {
		if service == nil {
			return messages.UploadsLoaded{Err: errors.New("upload service not available")}
		}
		uploads, err := service.List(ctx, HistoryLimit)
		return messages.UploadsLoaded{Uploads: uploads, Err: err}
	}
}

// Update handles messages for the uploads view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case messages.UploadsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.uploads = msg.Uploads
			v.refreshItems()
		}

	case messages.NotificationReceived:
		return v, v.applyNotification(msg.Notification)

	case messages.UploadFinished:
		v.err = msg.Err
		v.notice = ""
		if msg.Err == nil && msg.Upload != nil {
			v.notice = "Uploaded " + Name(msg.Upload)
		}
		return v, v.load()

	case tea.KeyMsg:
		if v.entering {
			return v.handleInput(msg)
		}
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleInput(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		v.entering = false
		v.input.Reset()
		return v, nil
	case tea.KeyEnter:
		path := v.input.Path()
		if path == "" {
			return v, nil
		}
		v.entering = false
		v.input.Reset()
		v.err = nil
		v.notice = "Uploading " + filepath.Base(path) + "..."
		return v, func() tea.Msg { return messages.UploadRequested{Path: path} }
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Upload):
		v.entering = true
		return v, v.input.Focus()

	case keymap.Matches(k, v.keymap.Retry):
		tx := v.Selected()
		if tx == nil || (tx.Status != domain.UploadFailed && tx.Status != domain.UploadRetrying) {
			return v, nil
		}
		id := tx.ID
		v.err = nil
		v.notice = "Retrying " + Name(tx) + "..."
		return v, func() tea.Msg { return messages.RetryRequested{ID: id} }

	case keymap.Matches(k, v.keymap.Refresh):
		v.loading = true
		return v, v.load()

	default:
		v.list.Update(msg)
	}
	return v, nil
}

// applyNotification folds upload progress into the listed transaction.
// Progress for a transaction not listed yet triggers a reload.
func (v *View) applyNotification(n domain.Notification) tea.Cmd {
	if n.Kind != domain.NotifyUploadProgress {
		return nil
	}
	for i := range v.uploads {
		tx := &v.uploads[i]
		if tx.ID != n.UploadID {
			continue
		}
		tx.Status = domain.UploadInProgress
		tx.Progress = n.Progress.Percent
		tx.BytesUploaded = n.Progress.BytesUploaded
		tx.TotalBytes = n.Progress.TotalBytes
		v.refreshItems()
		return nil
	}
	return v.load()
}

func (v *View) refreshItems() {
	items := make([]list.Item, len(v.uploads))
	for i := range v.uploads {
		tx := &v.uploads[i]
		items[i] = list.Item{
			Title:  Name(tx),
			Meta:   v.renderStatus(tx),
			Detail: Detail(tx),
		}
	}
	v.list.SetItems(items)
}

func (v *View) renderStatus(tx *domain.UploadTransaction) string {
	label := tx.Status.String()
	switch tx.Status {
	case domain.UploadInProgress:
		label = fmt.Sprintf("%s %d%%", label, tx.Progress)
	case domain.UploadRetrying:
		label = fmt.Sprintf("%s %d/%d", label, tx.RetryCount, domain.MaxUploadRetries)
	}
	return v.styles.ForUpload(tx.Status).Render(label)
}

// View renders the uploads.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Uploads"))
	b.WriteString("\n")
	if v.target == "" {
		b.WriteString(v.styles.Warning.Render("No project selected. Choose one in Projects."))
	} else {
		b.WriteString(v.styles.Muted.Render("Uploading to " + v.target))
	}
	b.WriteString("\n\n")

	if v.entering {
		b.WriteString(v.input.View())
		b.WriteString("\n\n")
	}

	if v.loading && len(v.uploads) == 0 {
		b.WriteString(v.styles.Muted.Render("Loading uploads..."))
	} else {
		b.WriteString(v.list.View())
	}

	if tx := v.active(); tx != nil {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Subtitle.Render(Name(tx)) + "\n")
		b.WriteString(v.bar.ViewAs(float64(tx.Progress) / 100))
		if tx.TotalBytes > 0 {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d / %d bytes", tx.BytesUploaded, tx.TotalBytes)))
		}
	}

	switch {
	case v.err != nil:
		b.WriteString("\n\n" + v.styles.Error.Render("Error: "+v.err.Error()))
	case v.notice != "":
		b.WriteString("\n\n" + v.styles.Success.Render(v.notice))
	}

	b.WriteString("\n\n")
	if v.entering {
		b.WriteString(v.styles.Help.Render("[enter] Upload  [esc] Cancel"))
	} else {
		b.WriteString(v.styles.Help.Render("[u] Upload  [t] Retry  [r] Refresh  [esc] Back"))
	}
	return b.String()
}

// active returns the first upload currently on the wire.
func (v *View) active() *domain.UploadTransaction {
	for i := range v.uploads {
		if v.uploads[i].Status == domain.UploadInProgress {
			return &v.uploads[i]
		}
	}
	return nil
}

// SetTarget names the project new uploads go to.
func (v *View) SetTarget(name string) {
	v.target = name
}

// Capturing reports whether the path prompt owns the keyboard.
func (v *View) Capturing() bool {
	return v.entering
}

// Selected returns the highlighted upload, or nil.
func (v *View) Selected() *domain.UploadTransaction {
	i := v.list.Selected()
	if i < 0 || i >= len(v.uploads) {
		return nil
	}
	return &v.uploads[i]
}

// Uploads returns the loaded transactions.
func (v *View) Uploads() []domain.UploadTransaction {
	return v.uploads
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.list.SetDimensions(width, height-12)
	v.input.SetWidth(width - 4)
	v.bar.Width = max(min(width-4, 60), 10)
}

// Name is the label an upload is listed under.
func Name(tx *domain.UploadTransaction) string {
	switch {
	case tx.Metadata.Title != "":
		return tx.Metadata.Title
	case tx.Metadata.FileName != "":
		return tx.Metadata.FileName
	case tx.SourcePath != "":
		return filepath.Base(tx.SourcePath)
	default:
		return tx.ID
	}
}

// Detail is the second line shown for an upload.
func Detail(tx *domain.UploadTransaction) string {
	switch tx.Status {
	case domain.UploadCompleted:
		return tx.RemoteImageURL
	case domain.UploadFailed:
		return tx.ErrorMessage
	case domain.UploadRetrying:
		return fmt.Sprintf("%s, next try %s", tx.ErrorMessage, tx.NextRetryTime.Local().Format(time.Kitchen))
	default:
		return ""
	}
}
