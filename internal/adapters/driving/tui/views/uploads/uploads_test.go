package uploads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

type mockUploadService struct {
	mu      sync.Mutex
	uploads []domain.UploadTransaction
	err     error
	limits  []int
}

func (m *mockUploadService) Upload(context.Context, driving.UploadRequest) (*domain.UploadTransaction, error) {
	return nil, errors.New("not used")
}

func (m *mockUploadService) RetryDue(context.Context) (int, error) { return 0, nil }

func (m *mockUploadService) Retry(context.Context, string) (*domain.UploadTransaction, error) {
	return nil, errors.New("not used")
}

func (m *mockUploadService) List(_ context.Context, limit int) ([]domain.UploadTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	return m.uploads, m.err
}

func (m *mockUploadService) Get(context.Context, string) (*domain.UploadTransaction, error) {
	return nil, domain.ErrNotFound
}

func sampleUploads() []domain.UploadTransaction {
	done := domain.NewUploadTransaction("up-1", "s1", "p1", 100)
	done.Status = domain.UploadCompleted
	done.Progress = 100
	done.SourcePath = "/shots/login.png"
	done.RemoteImageURL = "https://viewshot.app/i/img-1"

	failed := domain.NewUploadTransaction("up-2", "s2", "p1", 100)
	failed.Status = domain.UploadFailed
	failed.Metadata.Title = "Broken"
	failed.ErrorMessage = "HTTP 413"

	retrying := domain.NewUploadTransaction("up-3", "s3", "p1", 100)
	retrying.Status = domain.UploadRetrying
	retrying.RetryCount = 1
	retrying.Metadata.FileName = "clip.png"
	retrying.ErrorMessage = "HTTP 503"
	retrying.NextRetryTime = time.Now().Add(time.Minute)

	return []domain.UploadTransaction{*done, *failed, *retrying}
}

func loadedView(t *testing.T, svc *mockUploadService) *View {
	t.Helper()
	v := NewView(nil, svc)
	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())
	return v
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewView_NilStyles(t *testing.T) {
	v := NewView(nil, nil)

	require.NotNil(t, v)
	assert.NotNil(t, v.styles)
	assert.False(t, v.Capturing())
	assert.Nil(t, v.Selected())
}

func TestView_Init_NoService(t *testing.T) {
	v := NewView(nil, nil)

	msg, ok := v.Init()().(messages.UploadsLoaded)

	require.True(t, ok)
	assert.Error(t, msg.Err)
}

func TestView_Loaded(t *testing.T) {
	svc := &mockUploadService{uploads: sampleUploads()}
	v := loadedView(t, svc)
	v.SetDimensions(100, 40)

	out := v.View()

	assert.Equal(t, []int{HistoryLimit}, svc.limits)
	assert.Contains(t, out, "login.png")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "https://viewshot.app/i/img-1")
	assert.Contains(t, out, "Broken")
	assert.Contains(t, out, "retrying 1/3")
	assert.Contains(t, out, "No project selected")
}

func TestView_Empty(t *testing.T) {
	v := loadedView(t, &mockUploadService{})
	v.SetTarget("Web App")

	out := v.View()

	assert.Contains(t, out, "No uploads yet")
	assert.Contains(t, out, "Uploading to Web App")
}

// ==================== Upload Prompt Tests ====================

func TestView_UploadPrompt(t *testing.T) {
	v := loadedView(t, &mockUploadService{})

	v.Update(runes("u"))
	require.True(t, v.Capturing())
	assert.Contains(t, v.View(), "Upload:")

	for _, r := range "/tmp/a.png" {
		v.Update(runes(string(r)))
	}
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.UploadRequested{Path: "/tmp/a.png"}, cmd())
	assert.False(t, v.Capturing())
	assert.Contains(t, v.View(), "Uploading a.png")
}

func TestView_UploadPrompt_EmptyPathIgnored(t *testing.T) {
	v := loadedView(t, &mockUploadService{})
	v.Update(runes("u"))

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.True(t, v.Capturing())
}

func TestView_UploadPrompt_EscCancels(t *testing.T) {
	v := loadedView(t, &mockUploadService{})
	v.Update(runes("u"))
	v.Update(runes("x"))

	v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.False(t, v.Capturing())
	v.Update(runes("u"))
	assert.Equal(t, "", v.input.Value())
}

func TestView_UploadPrompt_SwallowsShortcuts(t *testing.T) {
	v := loadedView(t, &mockUploadService{uploads: sampleUploads()})
	v.Update(runes("u"))

	_, cmd := v.Update(runes("t"))

	// "t" is typed into the prompt, not treated as retry
	assert.Equal(t, "t", v.input.Value())
	if cmd != nil {
		_, isRetry := cmd().(messages.RetryRequested)
		assert.False(t, isRetry)
	}
}

// ==================== Retry Tests ====================

func TestView_Retry(t *testing.T) {
	v := loadedView(t, &mockUploadService{uploads: sampleUploads()})

	// Completed uploads cannot be retried
	_, cmd := v.Update(runes("t"))
	assert.Nil(t, cmd)

	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = v.Update(runes("t"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.RetryRequested{ID: "up-2"}, cmd())

	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = v.Update(runes("t"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.RetryRequested{ID: "up-3"}, cmd())
}

// ==================== Progress Tests ====================

func TestView_ProgressNotification(t *testing.T) {
	svc := &mockUploadService{uploads: sampleUploads()}
	v := loadedView(t, svc)

	_, cmd := v.Update(messages.NotificationReceived{Notification: domain.Notification{
		Kind:     domain.NotifyUploadProgress,
		UploadID: "up-3",
		Progress: domain.NewUploadProgress(40, 100),
	}})

	assert.Nil(t, cmd)
	tx := v.Uploads()[2]
	assert.Equal(t, domain.UploadInProgress, tx.Status)
	assert.Equal(t, 40, tx.Progress)

	out := v.View()
	assert.Contains(t, out, "in_progress 40%")
	assert.Contains(t, out, "40 / 100 bytes")
}

func TestView_ProgressNotification_UnknownUploadReloads(t *testing.T) {
	svc := &mockUploadService{}
	v := loadedView(t, svc)

	_, cmd := v.Update(messages.NotificationReceived{Notification: domain.Notification{
		Kind:     domain.NotifyUploadProgress,
		UploadID: "up-new",
	}})

	require.NotNil(t, cmd)
	_, ok := cmd().(messages.UploadsLoaded)
	assert.True(t, ok)
}

func TestView_OtherNotificationsIgnored(t *testing.T) {
	v := loadedView(t, &mockUploadService{})

	_, cmd := v.Update(messages.NotificationReceived{Notification: domain.Notification{
		Kind: domain.NotifyTokenRefreshed,
	}})

	assert.Nil(t, cmd)
}

func TestView_UploadFinished(t *testing.T) {
	v := loadedView(t, &mockUploadService{})

	done := sampleUploads()[0]
	_, cmd := v.Update(messages.UploadFinished{Upload: &done})
	require.NotNil(t, cmd)
	assert.Contains(t, v.View(), "Uploaded login.png")

	_, cmd = v.Update(messages.UploadFinished{Err: domain.ErrEmptyImage})
	require.NotNil(t, cmd)
	assert.Contains(t, v.View(), "Error:")
}

func TestName(t *testing.T) {
	tx := domain.NewUploadTransaction("up-9", "s", "p", 1)
	assert.Equal(t, "up-9", Name(tx))

	tx.SourcePath = "/a/b/c.png"
	assert.Equal(t, "c.png", Name(tx))

	tx.Metadata.FileName = "file.png"
	assert.Equal(t, "file.png", Name(tx))

	tx.Metadata.Title = "Title"
	assert.Equal(t, "Title", Name(tx))
}

func TestDetail(t *testing.T) {
	uploads := sampleUploads()

	assert.Equal(t, "https://viewshot.app/i/img-1", Detail(&uploads[0]))
	assert.Equal(t, "HTTP 413", Detail(&uploads[1]))
	assert.Contains(t, Detail(&uploads[2]), "HTTP 503, next try")

	pending := domain.NewUploadTransaction("up", "s", "p", 1)
	assert.Equal(t, "", Detail(pending))
}
