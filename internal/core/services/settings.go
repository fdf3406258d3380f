package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	KeyServerURL         = "server.url"
	KeyClientID          = "auth.client_id"
	KeyScope             = "auth.scope"
	KeyInstanceID        = "auth.instance_id"
	KeyLastUserID        = "auth.last_user_id"
	KeyOpenBrowser       = "auth.open_browser"
	KeyDataDir           = "storage.data_dir"
	KeyLogFormat         = "log.format"
	KeyRequestTimeout    = "api.timeout_seconds"
	KeyRequestsPerSecond = "api.requests_per_second"
	KeyBurst             = "api.burst"
	KeyRetryDelay        = "upload.retry_delay_minutes"
	KeyDefaultProject    = "upload.default_project"
	KeyWatchDebounce     = "watch.debounce_ms"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// settableKeys lists the keys `viewshot config set` accepts.
var settableKeys = map[string]valueKind{
	KeyServerURL:         kindString,
	KeyClientID:          kindString,
	KeyScope:             kindString,
	KeyOpenBrowser:       kindBool,
	KeyDataDir:           kindString,
	KeyLogFormat:         kindString,
	KeyRequestTimeout:    kindInt,
	KeyRequestsPerSecond: kindFloat,
	KeyBurst:             kindInt,
	KeyRetryDelay:        kindInt,
	KeyDefaultProject:    kindString,
	KeyWatchDebounce:     kindInt,
}

// SettingsService resolves the effective client configuration.
// Precedence: defaults < config file < overrides, in the order given.
type SettingsService struct {
	configStore driven.ConfigStore
	overrides   []driven.ConfigOverrides
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, overrides ...driven.ConfigOverrides) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		overrides:   overrides,
	}
}

// Config returns the merged, validated configuration.
func (s *SettingsService) Config() (domain.ClientConfig, error) {
	cfg := domain.DefaultClientConfig()

	cfg.ServerURL = s.getString(KeyServerURL, cfg.ServerURL)
	cfg.ClientID = s.getString(KeyClientID, cfg.ClientID)
	cfg.Scope = s.getString(KeyScope, cfg.Scope)
	cfg.InstanceID = s.configStore.GetString(KeyInstanceID)
	cfg.DataDir = s.configStore.GetString(KeyDataDir)
	cfg.LogFormat = domain.LogFormat(s.getString(KeyLogFormat, string(cfg.LogFormat)))
	cfg.OpenBrowser = s.getBool(KeyOpenBrowser, cfg.OpenBrowser)
	cfg.RequestTimeout = s.getSeconds(KeyRequestTimeout, cfg.RequestTimeout)
	cfg.RequestsPerSecond = s.getFloat(KeyRequestsPerSecond, cfg.RequestsPerSecond)
	cfg.Burst = s.getInt(KeyBurst, cfg.Burst)
	cfg.RetryDelayMinutes = s.getInt(KeyRetryDelay, cfg.RetryDelayMinutes)
	cfg.DefaultProjectID = s.configStore.GetString(KeyDefaultProject)
	if ms := s.getInt(KeyWatchDebounce, 0); ms > 0 {
		cfg.WatchDebounce = time.Duration(ms) * time.Millisecond
	}

	for _, o := range s.overrides {
		if o != nil {
			o.Apply(&cfg)
		}
	}

	if cfg.InstanceID == "" {
		id, err := s.InstanceID()
		if err != nil {
			return cfg, err
		}
		cfg.InstanceID = id
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Get returns the stored value for a key.
func (s *SettingsService) Get(key string) (any, bool) {
	return s.configStore.Get(key)
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s expects a non-negative integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("%w: %s expects a positive number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false", domain.ErrInvalidInput, key)
		}
		parsed = b
	default:
		parsed = strings.TrimSpace(value)
	}

	if key == KeyLogFormat && !domain.LogFormat(value).IsValid() {
		return fmt.Errorf("%w: log format %q", domain.ErrInvalidInput, value)
	}
	if key == KeyServerURL {
		probe := domain.DefaultClientConfig()
		probe.ServerURL = value
		if err := probe.Validate(); err != nil {
			return err
		}
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return err
	}
	return s.configStore.Save()
}

// Keys lists every key accepted by Set, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InstanceID returns the persisted instance id, generating one on first use.
func (s *SettingsService) InstanceID() (string, error) {
	if id := s.configStore.GetString(KeyInstanceID); id != "" {
		return id, nil
	}
	id := uuid.NewString()
	if err := s.configStore.Set(KeyInstanceID, id); err != nil {
		return "", fmt.Errorf("store instance id: %w", err)
	}
	if err := s.configStore.Save(); err != nil {
		return "", fmt.Errorf("save instance id: %w", err)
	}
	return id, nil
}

// LastUserID returns the user whose session is restored at startup.
func (s *SettingsService) LastUserID() string {
	return s.configStore.GetString(KeyLastUserID)
}

// SetLastUserID records the last signed-in user. An empty id clears it.
func (s *SettingsService) SetLastUserID(userID string) error {
	if err := s.configStore.Set(KeyLastUserID, userID); err != nil {
		return err
	}
	return s.configStore.Save()
}

// getString returns the config value or the default if not set.
func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

// getInt returns the config value or the default if not set.
func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

// getBool returns the config value or the default if not set.
func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return defaultVal
	}
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	if n := s.getInt(key, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
