package driven

import "github.com/custodia-labs/viewshot-cli/internal/core/domain"

// ConfigStore provides access to application configuration.
// Keys are dotted paths such as "server.url" or "auth.last_user_id".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString returns "" if the key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 if the key is missing or not numeric.
	GetInt(key string) int

	// GetBool returns false if the key is missing or not a boolean.
	GetBool(key string) bool

	// GetStringSlice returns nil if the key is missing or not a list.
	GetStringSlice(key string) []string

	// Set stores a configuration value in memory. Call Save to persist.
	Set(key string, value any) error

	// Save persists the current configuration to storage.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}

// ConfigOverrides layers values from outside the config file (environment,
// command-line flags) on top of the stored configuration.
type ConfigOverrides interface {
	Apply(cfg *domain.ClientConfig)
}
