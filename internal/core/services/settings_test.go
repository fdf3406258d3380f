package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// overrideFunc adapts a function to driven.ConfigOverrides.
type overrideFunc func(cfg *domain.ClientConfig)

func (f overrideFunc) Apply(cfg *domain.ClientConfig) { f(cfg) }

func TestNewSettingsService(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())
	require.NotNil(t, service)
}

func TestSettingsService_Config_Defaults(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	cfg, err := service.Config()
	require.NoError(t, err)

	defaults := domain.DefaultClientConfig()
	assert.Equal(t, defaults.ServerURL, cfg.ServerURL)
	assert.Equal(t, defaults.ClientID, cfg.ClientID)
	assert.Equal(t, defaults.Burst, cfg.Burst)
	assert.Equal(t, defaults.RequestTimeout, cfg.RequestTimeout)
	assert.True(t, cfg.OpenBrowser)

	// A fresh instance id is generated and persisted.
	assert.NotEmpty(t, cfg.InstanceID)
	assert.Equal(t, cfg.InstanceID, store.GetString(KeyInstanceID))
	assert.Equal(t, 1, store.Saves())
}

func TestSettingsService_Config_StoredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		KeyServerURL:         "https://staging.viewshot.app",
		KeyInstanceID:        "inst-7",
		KeyRequestTimeout:    int64(20),
		KeyRequestsPerSecond: 2.5,
		KeyBurst:             int64(4),
		KeyRetryDelay:        int64(3),
		KeyOpenBrowser:       false,
		KeyDefaultProject:    "p1",
		KeyWatchDebounce:     int64(250),
		KeyLogFormat:         "json",
	})
	service := NewSettingsService(store)

	cfg, err := service.Config()
	require.NoError(t, err)

	assert.Equal(t, "https://staging.viewshot.app", cfg.ServerURL)
	assert.Equal(t, "inst-7", cfg.InstanceID)
	assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 0.0001)
	assert.Equal(t, 4, cfg.Burst)
	assert.Equal(t, 3, cfg.RetryDelayMinutes)
	assert.False(t, cfg.OpenBrowser)
	assert.Equal(t, "p1", cfg.DefaultProjectID)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, domain.LogFormatJSON, cfg.LogFormat)
	assert.Zero(t, store.Saves())
}

func TestSettingsService_Config_OverridesApplyInOrder(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		KeyServerURL:  "https://file.viewshot.app",
		KeyInstanceID: "inst-7",
	})
	env := overrideFunc(func(cfg *domain.ClientConfig) {
		cfg.ServerURL = "https://env.viewshot.app"
		cfg.Verbose = true
	})
	flags := overrideFunc(func(cfg *domain.ClientConfig) {
		cfg.ServerURL = "https://flag.viewshot.app"
	})

	cfg, err := NewSettingsService(store, env, nil, flags).Config()
	require.NoError(t, err)
	assert.Equal(t, "https://flag.viewshot.app", cfg.ServerURL)
	assert.True(t, cfg.Verbose)
}

func TestSettingsService_Config_Invalid(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		KeyServerURL:  "ftp://nope",
		KeyInstanceID: "inst-7",
	})

	_, err := NewSettingsService(store).Config()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ==================== Set Tests ====================

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set(KeyBurst, "7"))
	require.NoError(t, service.Set(KeyRequestsPerSecond, "0.5"))
	require.NoError(t, service.Set(KeyOpenBrowser, "false"))
	require.NoError(t, service.Set(KeyDefaultProject, "  p9 "))
	require.NoError(t, service.Set(KeyServerURL, "http://localhost:8080"))

	assert.Equal(t, 7, store.GetInt(KeyBurst))
	v, ok := service.Get(KeyRequestsPerSecond)
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 0.0001)
	assert.False(t, store.GetBool(KeyOpenBrowser))
	assert.Equal(t, "p9", store.GetString(KeyDefaultProject))
	assert.Equal(t, 5, store.Saves())
}

func TestSettingsService_Set_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "llm.model", "x"},
		{"not an int", KeyBurst, "many"},
		{"negative int", KeyRetryDelay, "-1"},
		{"zero rate", KeyRequestsPerSecond, "0"},
		{"not a bool", KeyOpenBrowser, "sometimes"},
		{"bad log format", KeyLogFormat, "xml"},
		{"bad server url", KeyServerURL, "not a url"},
		{"read-only key", KeyLastUserID, "u-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewConfigStore()
			err := NewSettingsService(store).Set(tt.key, tt.value)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, store.Saves())
		})
	}
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore()).Keys()
	assert.Contains(t, keys, KeyServerURL)
	assert.NotContains(t, keys, KeyInstanceID)
	assert.IsIncreasing(t, keys)
}

// ==================== Instance & Last User Tests ====================

func TestSettingsService_InstanceID_Stable(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	first, err := service.InstanceID()
	require.NoError(t, err)
	second, err := service.InstanceID()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Saves())
}

func TestSettingsService_LastUser(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	assert.Empty(t, service.LastUserID())

	require.NoError(t, service.SetLastUserID("u-42"))
	assert.Equal(t, "u-42", service.LastUserID())

	require.NoError(t, service.SetLastUserID(""))
	assert.Empty(t, service.LastUserID())
}
