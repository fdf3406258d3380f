package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// Ensure UploadStore implements the interface.
var _ driven.UploadStore = (*UploadStore)(nil)

// UploadStore is an in-memory implementation of driven.UploadStore.
type UploadStore struct {
	mu      sync.RWMutex
	uploads map[string]domain.UploadTransaction
	seq     map[string]int
	next    int
}

// NewUploadStore creates a new in-memory upload store.
func NewUploadStore() *UploadStore {
	return &UploadStore{
		uploads: make(map[string]domain.UploadTransaction),
		seq:     make(map[string]int),
	}
}

// Save stores a copy of tx.
func (s *UploadStore) Save(_ context.Context, tx *domain.UploadTransaction) error {
	if tx == nil || tx.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seq[tx.ID]; !ok {
		s.seq[tx.ID] = s.next
		s.next++
	}
	s.uploads[tx.ID] = copyUpload(*tx)
	return nil
}

// Get retrieves a copy of the transaction.
func (s *UploadStore) Get(_ context.Context, id string) (*domain.UploadTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.uploads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	tx = copyUpload(tx)
	return &tx, nil
}

// List returns the most recent transactions, newest first.
func (s *UploadStore) List(_ context.Context, limit int) ([]domain.UploadTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.sorted(func(domain.UploadTransaction) bool { return true })
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListByStatus returns transactions in the given state, oldest first.
func (s *UploadStore) ListByStatus(_ context.Context, status domain.UploadStatus) ([]domain.UploadTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(tx domain.UploadTransaction) bool { return tx.Status == status }), nil
}

// Delete removes a transaction.
func (s *UploadStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, id)
	delete(s.seq, id)
	return nil
}

// sorted returns matching copies ordered by creation time, then insertion.
// Callers must hold the lock.
func (s *UploadStore) sorted(match func(domain.UploadTransaction) bool) []domain.UploadTransaction {
	result := make([]domain.UploadTransaction, 0, len(s.uploads))
	for _, tx := range s.uploads {
		if match(tx) {
			result = append(result, copyUpload(tx))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return s.seq[result[i].ID] < s.seq[result[j].ID]
	})
	return result
}

func copyUpload(tx domain.UploadTransaction) domain.UploadTransaction {
	if tx.Metadata.Tags != nil {
		tx.Metadata.Tags = append([]string(nil), tx.Metadata.Tags...)
	}
	return tx
}
