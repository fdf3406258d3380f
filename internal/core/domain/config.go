package domain

import (
	"fmt"
	"net/url"
	"time"
)

const unknownDescription = "Unknown"

// LogFormat selects how log lines are rendered.
type LogFormat string

// Available log formats.
const (
	// LogFormatConsole is human-readable coloured output.
	LogFormatConsole LogFormat = "console"

	// LogFormatJSON is one JSON object per line.
	LogFormatJSON LogFormat = "json"
)

// IsValid returns true if the log format is recognised.
func (f LogFormat) IsValid() bool {
	return f == LogFormatConsole || f == LogFormatJSON
}

// Description returns a human-readable description of the format.
func (f LogFormat) Description() string {
	switch f {
	case LogFormatConsole:
		return "Console (human readable)"
	case LogFormatJSON:
		return "JSON (structured)"
	default:
		return unknownDescription
	}
}

// Default client settings.
const (
	DefaultServerURL         = "https://api.viewshot.app"
	DefaultClientID          = "viewshot-cli"
	DefaultScope             = "projects:read screenshots:write offline_access"
	DefaultRequestTimeout    = 60 * time.Second
	DefaultRequestsPerSecond = 5.0
	DefaultBurst             = 10
	DefaultRetryDelayMinutes = 1
	DefaultWatchDebounce     = 750 * time.Millisecond
)

// ClientConfig is the effective configuration after defaults, the config
// file, the environment and command-line flags have been merged.
type ClientConfig struct {
	// ServerURL is the base URL for both OAuth and application endpoints.
	ServerURL string
	ClientID  string
	Scope     string
	// InstanceID disambiguates concurrent host-application instances.
	InstanceID string
	DataDir    string

	LogFormat LogFormat
	Verbose   bool

	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int

	// RetryDelayMinutes is the base of the upload retry backoff.
	RetryDelayMinutes int
	DefaultProjectID  string
	OpenBrowser       bool
	WatchDebounce     time.Duration
}

// DefaultClientConfig returns the built-in defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:         DefaultServerURL,
		ClientID:          DefaultClientID,
		Scope:             DefaultScope,
		LogFormat:         LogFormatConsole,
		RequestTimeout:    DefaultRequestTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
		RetryDelayMinutes: DefaultRetryDelayMinutes,
		OpenBrowser:       true,
		WatchDebounce:     DefaultWatchDebounce,
	}
}

// Validate checks that the configuration can drive a client.
func (c ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server url %q", ErrInvalidInput, c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: server url scheme %q", ErrInvalidInput, u.Scheme)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}
	if !c.LogFormat.IsValid() {
		return fmt.Errorf("%w: log format %q", ErrInvalidInput, c.LogFormat)
	}
	if c.RequestsPerSecond <= 0 || c.Burst <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidInput)
	}
	if c.RetryDelayMinutes < 0 {
		return fmt.Errorf("%w: retry delay must not be negative", ErrInvalidInput)
	}
	return nil
}

// RetryDelay returns the transaction-level retry delay for the given retry
// count: base * 2^retryCount.
func (c ClientConfig) RetryDelay(retryCount int) time.Duration {
	base := time.Duration(c.RetryDelayMinutes) * time.Minute
	return base << uint(max(retryCount, 0))
}
