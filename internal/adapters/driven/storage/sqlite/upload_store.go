package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

const uploadColumns = `id, screenshot_id, project_id, status, progress, start_time, completion_time,
	bytes_uploaded, total_bytes, retry_count, next_retry_time, remote_image_id, remote_image_url,
	error_message, last_http_status_code, source_path, metadata, created_at`

// uploadStore implements driven.UploadStore.
type uploadStore struct {
	store *Store
}

var _ driven.UploadStore = (*uploadStore)(nil)

// Save stores or updates a transaction.
func (s *uploadStore) Save(ctx context.Context, tx *domain.UploadTransaction) error {
	if tx == nil || tx.ID == "" {
		return domain.ErrInvalidInput
	}

	metaJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO upload_transactions (`+uploadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			start_time = excluded.start_time,
			completion_time = excluded.completion_time,
			bytes_uploaded = excluded.bytes_uploaded,
			total_bytes = excluded.total_bytes,
			retry_count = excluded.retry_count,
			next_retry_time = excluded.next_retry_time,
			remote_image_id = excluded.remote_image_id,
			remote_image_url = excluded.remote_image_url,
			error_message = excluded.error_message,
			last_http_status_code = excluded.last_http_status_code,
			source_path = excluded.source_path,
			metadata = excluded.metadata
	`, tx.ID, tx.ScreenshotID, tx.ProjectID, string(tx.Status), tx.Progress,
		unixNano(tx.StartTime), unixNano(tx.CompletionTime),
		tx.BytesUploaded, tx.TotalBytes, tx.RetryCount, unixNano(tx.NextRetryTime),
		nullString(tx.RemoteImageID), nullString(tx.RemoteImageURL),
		nullString(tx.ErrorMessage), tx.LastHTTPStatusCode,
		nullString(tx.SourcePath), string(metaJSON), createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}
	return nil
}

// Get retrieves a transaction by ID.
func (s *uploadStore) Get(ctx context.Context, id string) (*domain.UploadTransaction, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+uploadColumns+" FROM upload_transactions WHERE id = ?", id)
	tx, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// List returns the most recent transactions, newest first.
func (s *uploadStore) List(ctx context.Context, limit int) ([]domain.UploadTransaction, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+uploadColumns+" FROM upload_transactions ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying uploads: %w", err)
	}
	return collectUploads(rows)
}

// ListByStatus returns transactions in the given state, oldest first.
func (s *uploadStore) ListByStatus(ctx context.Context, status domain.UploadStatus) ([]domain.UploadTransaction, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+uploadColumns+" FROM upload_transactions WHERE status = ? ORDER BY created_at ASC, id",
		string(status))
	if err != nil {
		return nil, fmt.Errorf("querying uploads by status: %w", err)
	}
	return collectUploads(rows)
}

// Delete removes a transaction.
func (s *uploadStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM upload_transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting upload: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*domain.UploadTransaction, error) {
	var tx domain.UploadTransaction
	var status, metaJSON string
	var start, completion, nextRetry, created int64
	var remoteID, remoteURL, errMsg, sourcePath sql.NullString

	err := row.Scan(&tx.ID, &tx.ScreenshotID, &tx.ProjectID, &status, &tx.Progress,
		&start, &completion, &tx.BytesUploaded, &tx.TotalBytes, &tx.RetryCount, &nextRetry,
		&remoteID, &remoteURL, &errMsg, &tx.LastHTTPStatusCode, &sourcePath, &metaJSON, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning upload: %w", err)
	}

	tx.Status = domain.UploadStatus(status)
	tx.StartTime = fromUnixNano(start)
	tx.CompletionTime = fromUnixNano(completion)
	tx.NextRetryTime = fromUnixNano(nextRetry)
	tx.CreatedAt = fromUnixNano(created)
	tx.RemoteImageID = remoteID.String
	tx.RemoteImageURL = remoteURL.String
	tx.ErrorMessage = errMsg.String
	tx.SourcePath = sourcePath.String
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &tx.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	return &tx, nil
}

func collectUploads(rows *sql.Rows) ([]domain.UploadTransaction, error) {
	defer rows.Close()

	uploads := []domain.UploadTransaction{}
	for rows.Next() {
		tx, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating uploads: %w", err)
	}
	return uploads, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
