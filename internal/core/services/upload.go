package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// Ensure UploadService implements the interface.
var _ driving.UploadService = (*UploadService)(nil)

// UploadService drives upload transactions around the API client and
// decides transaction-level retries. Transport-level retries happen inside
// the client; this service only reschedules uploads that still failed with
// a retryable error.
type UploadService struct {
	api        driven.ProjectAPI
	store      driven.UploadStore
	publisher  driven.NotificationPublisher
	retryDelay func(retryCount int) time.Duration
	instanceID string
	readFile   func(string) ([]byte, error)
}

// NewUploadService creates an upload service. publisher may be nil.
func NewUploadService(
	api driven.ProjectAPI,
	store driven.UploadStore,
	publisher driven.NotificationPublisher,
	cfg domain.ClientConfig,
) *UploadService {
	return &UploadService{
		api:        api,
		store:      store,
		publisher:  publisher,
		retryDelay: cfg.RetryDelay,
		instanceID: cfg.InstanceID,
		readFile:   os.ReadFile,
	}
}

// Upload creates a transaction for req and runs the first attempt.
func (s *UploadService) Upload(ctx context.Context, req driving.UploadRequest) (*domain.UploadTransaction, error) {
	if s.api == nil || s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	if req.ProjectID == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrInvalidInput)
	}

	image := req.Image
	if image == nil && req.SourcePath != "" {
		data, err := s.readFile(req.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		image = data
	}
	if len(image) == 0 {
		return nil, domain.ErrEmptyImage
	}

	meta := s.completeMetadata(req.Metadata, req.SourcePath, image)
	tx := domain.NewUploadTransaction(uuid.NewString(), screenshotID(image), req.ProjectID, int64(len(image)))
	tx.SourcePath = req.SourcePath
	tx.Metadata = meta
	if err := tx.MarkAsCaptured(); err != nil {
		return nil, err
	}
	if err := tx.MarkAsQueued(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	logger.Debug("upload: queued %s (%d bytes) for project %s", tx.ID, tx.TotalBytes, tx.ProjectID)
	return s.attempt(ctx, tx, image, req.Progress)
}

// RetryDue re-runs every Retrying transaction whose retry time has passed.
func (s *UploadService) RetryDue(ctx context.Context) (int, error) {
	if s.api == nil || s.store == nil {
		return 0, domain.ErrNotImplemented
	}
	retrying, err := s.store.ListByStatus(ctx, domain.UploadRetrying)
	if err != nil {
		return 0, fmt.Errorf("list retrying uploads: %w", err)
	}

	attempted := 0
	for i := range retrying {
		if ctx.Err() != nil {
			return attempted, ctx.Err()
		}
		tx := &retrying[i]
		if !tx.IsReadyForRetry() {
			continue
		}
		attempted++
		if _, err := s.rerun(ctx, tx); err != nil {
			logger.Warn("upload: retry %d of %s failed: %v", tx.RetryCount, tx.ID, err)
		}
	}
	return attempted, nil
}

// Retry re-runs a failed or retrying transaction now.
func (s *UploadService) Retry(ctx context.Context, id string) (*domain.UploadTransaction, error) {
	if s.api == nil || s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch tx.Status {
	case domain.UploadRetrying:
	case domain.UploadFailed:
		if err := tx.ScheduleRetry(0); err != nil {
			return tx, err
		}
	default:
		return tx, fmt.Errorf("%w: upload %s is %s", domain.ErrInvalidTransition, tx.ID, tx.Status)
	}
	return s.rerun(ctx, tx)
}

// List returns recent transactions, newest first.
func (s *UploadService) List(ctx context.Context, limit int) ([]domain.UploadTransaction, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.store.List(ctx, limit)
}

// Get returns a transaction by ID.
func (s *UploadService) Get(ctx context.Context, id string) (*domain.UploadTransaction, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.store.Get(ctx, id)
}

// rerun reloads the image from disk and runs another attempt.
func (s *UploadService) rerun(ctx context.Context, tx *domain.UploadTransaction) (*domain.UploadTransaction, error) {
	if tx.SourcePath == "" {
		return s.abandon(ctx, tx, "image source unavailable for retry")
	}
	image, err := s.readFile(tx.SourcePath)
	if err != nil {
		return s.abandon(ctx, tx, fmt.Sprintf("read image: %v", err))
	}
	tx.TotalBytes = int64(len(image))
	return s.attempt(ctx, tx, image, nil)
}

// abandon fails a transaction that can no longer be attempted.
func (s *UploadService) abandon(ctx context.Context, tx *domain.UploadTransaction, reason string) (*domain.UploadTransaction, error) {
	tx.MarkAsFailed(reason, 0)
	if err := s.store.Save(context.WithoutCancel(ctx), tx); err != nil {
		logger.Warn("upload: saving %s: %v", tx.ID, err)
	}
	return tx, errors.New(reason)
}

// attempt runs one upload attempt and commits its outcome.
func (s *UploadService) attempt(
	ctx context.Context,
	tx *domain.UploadTransaction,
	image []byte,
	onProgress func(domain.UploadTransaction),
) (*domain.UploadTransaction, error) {
	var mu sync.Mutex

	mu.Lock()
	if err := tx.MarkAsStarted(); err != nil {
		mu.Unlock()
		return tx, err
	}
	started := *tx
	mu.Unlock()
	if err := s.store.Save(ctx, &started); err != nil {
		return tx, fmt.Errorf("save upload: %w", err)
	}

	// Progress arrives from the transport's writer goroutine.
	progress := func(p domain.UploadProgress) {
		mu.Lock()
		p = imageProgress(p, tx.TotalBytes)
		tx.UpdateProgress(p.Percent, p.BytesUploaded)
		snapshot := *tx
		mu.Unlock()

		s.publish(domain.Notification{Kind: domain.NotifyUploadProgress, UploadID: snapshot.ID, Progress: p})
		if onProgress != nil {
			onProgress(snapshot)
		}
	}

	result, err := s.api.UploadScreenshot(ctx, tx.ProjectID, image, tx.Metadata, progress)

	mu.Lock()
	defer mu.Unlock()

	if err == nil {
		err = tx.MarkAsCompleted(result.ImageID, result.URL)
	}
	if err != nil {
		tx.MarkAsFailed(err.Error(), domain.StatusCode(err))
		switch {
		case ctx.Err() != nil || !domain.IsRetryable(err) || !tx.CanRetry():
		case tx.SourcePath == "":
			// Only uploads read from disk can be replayed later.
			logger.Debug("upload: %s has no source file, not scheduling a retry", tx.ID)
		default:
			delay := s.retryDelay(tx.RetryCount)
			if schedErr := tx.ScheduleRetry(delay); schedErr == nil {
				logger.Info("upload: %s failed (%v), retry %d in %s", tx.ID, err, tx.RetryCount, delay)
			}
		}
		s.save(ctx, tx)
		return tx, err
	}

	s.save(ctx, tx)
	logger.L().Info().
		Str("upload", tx.ID).
		Str("image", tx.RemoteImageID).
		Dur("took", tx.Duration()).
		Msg("upload: completed")
	return tx, nil
}

// imageProgress maps transport progress, which counts the whole multipart
// body, onto the image size so bytes and percent agree.
func imageProgress(p domain.UploadProgress, imageSize int64) domain.UploadProgress {
	if p.TotalBytes <= 0 {
		return domain.NewUploadProgress(0, imageSize)
	}
	return domain.NewUploadProgress(imageSize*p.BytesUploaded/p.TotalBytes, imageSize)
}

// save persists tx even when the attempt was cancelled.
func (s *UploadService) save(ctx context.Context, tx *domain.UploadTransaction) {
	if err := s.store.Save(context.WithoutCancel(ctx), tx); err != nil {
		logger.Warn("upload: saving %s: %v", tx.ID, err)
	}
}

func (s *UploadService) completeMetadata(meta domain.ScreenshotMetadata, path string, image []byte) domain.ScreenshotMetadata {
	if meta.FileName == "" && path != "" {
		meta.FileName = filepath.Base(path)
	}
	if meta.FileName == "" {
		meta.FileName = "screenshot" + extensionFor(http.DetectContentType(image))
	}
	if meta.ContentType == "" {
		meta.ContentType = http.DetectContentType(image)
	}
	if meta.Title == "" {
		meta.Title = meta.FileName
	}
	if meta.CapturedAt.IsZero() {
		meta.CapturedAt = time.Now().UTC()
	}
	if meta.InstanceID == "" {
		meta.InstanceID = s.instanceID
	}
	return meta
}

func (s *UploadService) publish(n domain.Notification) {
	if s.publisher == nil {
		return
	}
	n.At = time.Now().UTC()
	s.publisher.Publish(n)
}

// screenshotID derives a stable id from the image content.
func screenshotID(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:8])
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".bin"
	}
}
