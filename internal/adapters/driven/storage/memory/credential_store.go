package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore is an in-memory implementation of driven.CredentialStore.
type CredentialStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewCredentialStore creates a new in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		blobs: make(map[string][]byte),
	}
}

func credentialKey(userID, instanceID string) string {
	return strings.ToLower(userID) + "\x00" + strings.ToLower(instanceID)
}

// Store saves a copy of blob.
func (s *CredentialStore) Store(_ context.Context, userID, instanceID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[credentialKey(userID, instanceID)] = append([]byte(nil), blob...)
	return nil
}

// Retrieve returns a copy of the blob, or nil if nothing is stored.
func (s *CredentialStore) Retrieve(_ context.Context, userID, instanceID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[credentialKey(userID, instanceID)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

// Delete removes the blob.
func (s *CredentialStore) Delete(_ context.Context, userID, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, credentialKey(userID, instanceID))
	return nil
}

// Len returns the number of stored blobs.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
