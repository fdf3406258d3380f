package driving

import "github.com/custodia-labs/viewshot-cli/internal/core/domain"

// SettingsService manages client configuration.
type SettingsService interface {
	// Config returns the effective configuration.
	Config() (domain.ClientConfig, error)

	// Get returns the stored value for a dotted key.
	Get(key string) (any, bool)

	// Set validates and persists a value for a known key.
	Set(key, value string) error

	// Keys lists every known configuration key.
	Keys() []string

	// InstanceID returns the persistent instance id, creating it if needed.
	InstanceID() (string, error)

	// LastUserID returns the user whose session should be restored.
	LastUserID() string

	// SetLastUserID records (or clears, with "") the last signed-in user.
	SetLastUserID(userID string) error
}
