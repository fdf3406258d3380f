package driven

import "context"

// CredentialStore persists one opaque credential blob per (user, instance).
// Implementations provide at-rest protection; the core only requires that
// the blob round-trips byte-for-byte.
type CredentialStore interface {
	// Store saves the blob. Creates if new, replaces if it exists.
	Store(ctx context.Context, userID, instanceID string, blob []byte) error

	// Retrieve returns the stored blob.
	// Returns nil and no error if nothing is stored for the pair.
	Retrieve(ctx context.Context, userID, instanceID string) ([]byte, error)

	// Delete removes the blob. Deleting a missing entry is not an error.
	Delete(ctx context.Context, userID, instanceID string) error
}
