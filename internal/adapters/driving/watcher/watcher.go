// Package watcher uploads screenshots as they appear in a capture folder.
//
// New image files (and rewrites of existing ones) are debounced so that a
// burst of writes from the capturing application results in one upload
// of the finished file. Hidden files and directories are ignored.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// DefaultDebounce is used when no debounce interval is configured.
const DefaultDebounce = 500 * time.Millisecond

const queueSize = 64

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
}

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// Result reports the outcome of one upload started by the watcher.
type Result struct {
	Path   string
	Upload *domain.UploadTransaction
	Err    error
}

// Options tune a Watcher.
type Options struct {
	// Debounce is the quiet period after the last write before uploading.
	Debounce time.Duration
	// Recursive also watches subdirectories, including ones created later.
	Recursive bool
	// Metadata is the template applied to every upload.
	Metadata domain.ScreenshotMetadata
}

// Watcher uploads new images from a directory tree.
type Watcher struct {
	uploads   driving.UploadService
	root      string
	projectID string
	opts      Options

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
	fsw    *fsnotify.Watcher
}

// New creates a watcher for root that uploads into projectID.
func New(uploads driving.UploadService, root, projectID string, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		uploads:   uploads,
		root:      filepath.Clean(root),
		projectID: projectID,
		opts:      opts,
	}
}

// Watch starts watching and returns a channel of upload results. The
// channel is closed once ctx is cancelled or Close is called and every
// started upload has finished.
func (w *Watcher) Watch(ctx context.Context) (<-chan Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if w.done != nil {
		return nil, errors.New("watcher already running")
	}
	if w.uploads == nil {
		return nil, errors.New("upload service not configured")
	}
	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w.fsw = fsw
	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	out := make(chan Result, queueSize)
	queue := make(chan string, queueSize)
	go w.upload(ctx, queue, out)
	go w.loop(ctx, queue)

	logger.Info("watcher: watching %s for project %s", w.root, w.projectID)
	return out, nil
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// loop turns filesystem events into debounced upload requests.
func (w *Watcher) loop(ctx context.Context, queue chan<- string) {
	defer close(queue)
	defer w.fsw.Close()

	pending := make(map[string]*time.Timer)
	fired := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path, ok := w.handleEvent(ev)
			if !ok {
				continue
			}
			if t, exists := pending[path]; exists {
				t.Reset(w.opts.Debounce)
				continue
			}
			pending[path] = time.AfterFunc(w.opts.Debounce, func() {
				select {
				case fired <- path:
				case <-ctx.Done():
				}
			})

		case path := <-fired:
			delete(pending, path)
			select {
			case queue <- path:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// upload runs queued uploads one at a time.
func (w *Watcher) upload(ctx context.Context, queue <-chan string, out chan<- Result) {
	defer close(w.done)
	defer close(out)

	seen := make(map[string]stamp)
	for path := range queue {
		if ctx.Err() != nil {
			continue
		}
		st, err := stampOf(path)
		if err != nil {
			// Removed or renamed away before the debounce ended.
			logger.Debug("watcher: skipping %s: %v", path, err)
			continue
		}
		if seen[path] == st {
			continue
		}

		tx, err := w.uploads.Upload(ctx, driving.UploadRequest{
			ProjectID:  w.projectID,
			SourcePath: path,
			Metadata:   w.opts.Metadata,
		})
		if err == nil {
			seen[path] = st
		}

		select {
		case out <- Result{Path: path, Upload: tx, Err: err}:
		case <-ctx.Done():
		}
	}
}

// handleEvent returns the file to upload for ev, if any. New directories
// are added to the watch list when watching recursively.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if w.isHidden(ev.Name) {
		return "", false
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if w.opts.Recursive && ev.Has(fsnotify.Create) {
			if err := w.addTree(ev.Name); err != nil {
				logger.Warn("watcher: %v", err)
			}
		}
		return "", false
	}
	if !info.Mode().IsRegular() || !IsImage(ev.Name) {
		return "", false
	}
	return ev.Name, true
}

// addTree watches dir and, when recursive, every non-hidden directory
// below it.
func (w *Watcher) addTree(dir string) error {
	if !w.opts.Recursive {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && isHiddenName(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// isHidden reports whether path or any directory between the root and it
// is hidden.
func (w *Watcher) isHidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return isHiddenName(filepath.Base(path))
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if isHiddenName(part) {
			return true
		}
	}
	return false
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// IsImage reports whether path has an extension the watcher uploads.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// stamp identifies one version of a file.
type stamp struct {
	size    int64
	modTime time.Time
}

func stampOf(path string) (stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}, err
	}
	return stamp{size: info.Size(), modTime: info.ModTime()}, nil
}
