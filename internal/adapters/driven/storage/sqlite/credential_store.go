package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// credentialStore implements driven.CredentialStore. Keys are compared
// case-insensitively, matching domain.SessionKey.
type credentialStore struct {
	store *Store
}

var _ driven.CredentialStore = (*credentialStore)(nil)

func credentialKey(userID, instanceID string) (string, string) {
	return strings.ToLower(userID), strings.ToLower(instanceID)
}

// Store saves or replaces the blob for the pair.
func (s *credentialStore) Store(ctx context.Context, userID, instanceID string, blob []byte) error {
	user, instance := credentialKey(userID, instanceID)
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, instance_id, blob, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, instance_id) DO UPDATE SET
			blob = excluded.blob,
			updated_at = excluded.updated_at
	`, user, instance, blob, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}
	return nil
}

// Retrieve returns the blob, or nil if nothing is stored.
func (s *credentialStore) Retrieve(ctx context.Context, userID, instanceID string) ([]byte, error) {
	user, instance := credentialKey(userID, instanceID)
	var blob []byte
	err := s.store.db.QueryRowContext(ctx,
		"SELECT blob FROM credentials WHERE user_id = ? AND instance_id = ?",
		user, instance,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving credentials: %w", err)
	}
	return blob, nil
}

// Delete removes the blob. Missing entries are ignored.
func (s *credentialStore) Delete(ctx context.Context, userID, instanceID string) error {
	user, instance := credentialKey(userID, instanceID)
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE user_id = ? AND instance_id = ?",
		user, instance)
	if err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}
