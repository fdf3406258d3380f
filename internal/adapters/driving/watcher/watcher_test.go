package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// mockUploadService records every upload request.
type mockUploadService struct {
	mu       sync.Mutex
	requests []driving.UploadRequest
	err      error
}

func (m *mockUploadService) Upload(_ context.Context, req driving.UploadRequest) (*domain.UploadTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	tx := domain.NewUploadTransaction("up-"+filepath.Base(req.SourcePath), "shot", req.ProjectID, 1)
	if m.err != nil {
		tx.MarkAsFailed(m.err.Error(), 0)
		return tx, m.err
	}
	tx.Status = domain.UploadCompleted
	tx.RemoteImageID = "img-1"
	return tx, nil
}

func (m *mockUploadService) RetryDue(context.Context) (int, error) { return 0, nil }

func (m *mockUploadService) Retry(context.Context, string) (*domain.UploadTransaction, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockUploadService) List(context.Context, int) ([]domain.UploadTransaction, error) {
	return nil, nil
}

func (m *mockUploadService) Get(context.Context, string) (*domain.UploadTransaction, error) {
	return nil, domain.ErrNotFound
}

func (m *mockUploadService) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i := range m.requests {
		out[i] = m.requests[i].SourcePath
	}
	return out
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n0000")

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-results:
		require.True(t, ok, "results channel closed")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for upload")
		return Result{}
	}
}

func startWatcher(t *testing.T, uploads *mockUploadService, opts Options) (string, <-chan Result) {
	t.Helper()
	dir := t.TempDir()
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	w := New(uploads, dir, "p1", opts)
	t.Cleanup(func() { _ = w.Close() })

	results, err := w.Watch(context.Background())
	require.NoError(t, err)
	return dir, results
}

// ==================== Watch Tests ====================

func TestWatcher_UploadsNewImage(t *testing.T) {
	uploads := &mockUploadService{}
	dir, results := startWatcher(t, uploads, Options{
		Metadata: domain.ScreenshotMetadata{Tags: []string{"auto"}},
	})

	path := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, path, r.Path)
	assert.Equal(t, domain.UploadCompleted, r.Upload.Status)

	uploads.mu.Lock()
	defer uploads.mu.Unlock()
	require.Len(t, uploads.requests, 1)
	assert.Equal(t, "p1", uploads.requests[0].ProjectID)
	assert.Equal(t, []string{"auto"}, uploads.requests[0].Metadata.Tags)
}

func TestWatcher_DebouncesWriteBurst(t *testing.T) {
	uploads := &mockUploadService{}
	dir, results := startWatcher(t, uploads, Options{Debounce: 150 * time.Millisecond})

	path := filepath.Join(dir, "burst.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.Write(pngBytes)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	waitResult(t, results)

	select {
	case r := <-results:
		t.Fatalf("unexpected second upload of %s", r.Path)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, []string{path}, uploads.paths())
}

func TestWatcher_IgnoresNonImagesAndHiddenFiles(t *testing.T) {
	uploads := &mockUploadService{}
	dir, results := startWatcher(t, uploads, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), pngBytes, 0o644))
	path := filepath.Join(dir, "visible.jpg")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

	r := waitResult(t, results)
	assert.Equal(t, path, r.Path)
	assert.Equal(t, []string{path}, uploads.paths())
}

func TestWatcher_RecursiveWatchesNewDirectories(t *testing.T) {
	uploads := &mockUploadService{}
	dir, results := startWatcher(t, uploads, Options{Recursive: true})

	sub := filepath.Join(dir, "2026-10")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher time to register the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "nested.webp")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

	r := waitResult(t, results)
	assert.Equal(t, path, r.Path)
}

func TestWatcher_ReportsUploadErrors(t *testing.T) {
	uploads := &mockUploadService{err: errors.New("server unavailable")}
	dir, results := startWatcher(t, uploads, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "shot.png"), pngBytes, 0o644))

	r := waitResult(t, results)
	assert.EqualError(t, r.Err, "server unavailable")
	assert.Equal(t, domain.UploadFailed, r.Upload.Status)
}

func TestWatcher_ClosesChannelOnCancel(t *testing.T) {
	w := New(&mockUploadService{}, t.TempDir(), "p1", Options{})
	ctx, cancel := context.WithCancel(context.Background())

	results, err := w.Watch(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-results:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}
	assert.NoError(t, w.Close())
}

func TestWatcher_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		w := New(&mockUploadService{}, "/non/existent/path", "p1", Options{})
		_, err := w.Watch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("root is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "shot.png")
		require.NoError(t, os.WriteFile(file, pngBytes, 0o644))
		w := New(&mockUploadService{}, file, "p1", Options{})
		_, err := w.Watch(context.Background())
		assert.ErrorContains(t, err, "not a directory")
	})

	t.Run("closed", func(t *testing.T) {
		w := New(&mockUploadService{}, t.TempDir(), "p1", Options{})
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())

		_, err := w.Watch(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("no upload service", func(t *testing.T) {
		w := New(nil, t.TempDir(), "p1", Options{})
		_, err := w.Watch(context.Background())
		assert.Error(t, err)
	})
}

// ==================== Event Tests ====================

func TestWatcher_HandleEvent(t *testing.T) {
	dir := t.TempDir()
	w := New(&mockUploadService{}, dir, "p1", Options{})

	image := filepath.Join(dir, "a.PNG")
	require.NoError(t, os.WriteFile(image, pngBytes, 0o644))
	text := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(text, []byte("x"), 0o644))
	hiddenDir := filepath.Join(dir, ".cache")
	require.NoError(t, os.Mkdir(hiddenDir, 0o755))
	inHidden := filepath.Join(hiddenDir, "b.png")
	require.NoError(t, os.WriteFile(inHidden, pngBytes, 0o644))
	subDir := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(subDir, 0o755))

	tests := []struct {
		name   string
		path   string
		op     fsnotify.Op
		expect bool
	}{
		{"create image", image, fsnotify.Create, true},
		{"write image", image, fsnotify.Write, true},
		{"chmod image", image, fsnotify.Chmod, false},
		{"remove image", image, fsnotify.Remove, false},
		{"text file", text, fsnotify.Create, false},
		{"inside hidden dir", inHidden, fsnotify.Create, false},
		{"directory", subDir, fsnotify.Create, false},
		{"vanished", filepath.Join(dir, "gone.png"), fsnotify.Create, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := w.handleEvent(fsnotify.Event{Name: tt.path, Op: tt.op})
			assert.Equal(t, tt.expect, ok)
			if tt.expect {
				assert.Equal(t, tt.path, path)
			}
		})
	}
}

func TestIsImage(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.webp", "e.bmp"} {
		assert.True(t, IsImage(name), name)
	}
	for _, name := range []string{"a.gif", "b.txt", "c", "d.png.tmp"} {
		assert.False(t, IsImage(name), name)
	}
}
