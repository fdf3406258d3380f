package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// credentialBlobVersion is bumped when the persisted layout changes.
const credentialBlobVersion = 1

// StoredCredentials is the blob persisted per (user, instance) in the
// credential store. The store treats it as opaque bytes.
type StoredCredentials struct {
	Version int      `json:"version"`
	Session *Session `json:"session"`
	// SavedAt is when the blob was written.
	SavedAt time.Time `json:"saved_at"`
}

// EncodeCredentials serialises a session for the credential store. The
// transient device-flow fields are not persisted.
func EncodeCredentials(s *Session, now time.Time) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	c := s.Clone()
	c.ClearDeviceFlow()
	return json.Marshal(StoredCredentials{
		Version: credentialBlobVersion,
		Session: c,
		SavedAt: now,
	})
}

// DecodeCredentials parses a blob written by EncodeCredentials.
func DecodeCredentials(blob []byte) (*Session, error) {
	var stored StoredCredentials
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, fmt.Errorf("%w: decode credentials: %v", ErrInvalidSession, err)
	}
	if stored.Version != credentialBlobVersion {
		return nil, fmt.Errorf("%w: unsupported credentials version %d", ErrInvalidSession, stored.Version)
	}
	if stored.Session == nil {
		return nil, fmt.Errorf("%w: credentials hold no session", ErrInvalidSession)
	}
	return stored.Session, nil
}
