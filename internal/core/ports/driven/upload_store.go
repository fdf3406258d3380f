package driven

import (
	"context"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// UploadStore persists upload transactions for history and retries.
type UploadStore interface {
	// Save stores a transaction. Creates if new, updates if exists.
	Save(ctx context.Context, tx *domain.UploadTransaction) error

	// Get retrieves a transaction by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.UploadTransaction, error)

	// List returns the most recent transactions, newest first.
	// A limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]domain.UploadTransaction, error)

	// ListByStatus returns transactions in the given state, oldest first.
	ListByStatus(ctx context.Context, status domain.UploadStatus) ([]domain.UploadTransaction, error)

	// Delete removes a transaction.
	Delete(ctx context.Context, id string) error
}
