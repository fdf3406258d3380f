// Package envconfig layers VIEWSHOT_* environment variables (optionally
// loaded from a .env file) over the stored configuration.
package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// Ensure Overrides implements the interface.
var _ driven.ConfigOverrides = (*Overrides)(nil)

// Overrides holds values read from the environment. Nil fields were not set.
type Overrides struct {
	ServerURL         *string        `env:"VIEWSHOT_SERVER_URL"`
	ClientID          *string        `env:"VIEWSHOT_CLIENT_ID"`
	Scope             *string        `env:"VIEWSHOT_SCOPE"`
	InstanceID        *string        `env:"VIEWSHOT_INSTANCE_ID"`
	DataDir           *string        `env:"VIEWSHOT_DATA_DIR"`
	LogFormat         *string        `env:"VIEWSHOT_LOG_FORMAT"`
	Verbose           *bool          `env:"VIEWSHOT_VERBOSE"`
	RequestTimeout    *time.Duration `env:"VIEWSHOT_TIMEOUT"`
	RequestsPerSecond *float64       `env:"VIEWSHOT_REQUESTS_PER_SECOND"`
	Burst             *int           `env:"VIEWSHOT_BURST"`
	RetryDelayMinutes *int           `env:"VIEWSHOT_RETRY_DELAY_MINUTES"`
	DefaultProjectID  *string        `env:"VIEWSHOT_PROJECT"`
	OpenBrowser       *bool          `env:"VIEWSHOT_OPEN_BROWSER"`
}

// Load reads the given .env files (default ".env" in the working
// directory) into the process environment without overriding variables
// that are already set, then parses the VIEWSHOT_* variables.
// Missing .env files are ignored.
func Load(dotenvFiles ...string) (*Overrides, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse reads the VIEWSHOT_* variables from the current environment.
func Parse() (*Overrides, error) {
	o := &Overrides{}
	if err := env.Parse(o); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return o, nil
}

// Apply copies every set value onto cfg.
func (o *Overrides) Apply(cfg *domain.ClientConfig) {
	if o == nil || cfg == nil {
		return
	}
	setString(&cfg.ServerURL, o.ServerURL)
	setString(&cfg.ClientID, o.ClientID)
	setString(&cfg.Scope, o.Scope)
	setString(&cfg.InstanceID, o.InstanceID)
	setString(&cfg.DataDir, o.DataDir)
	setString(&cfg.DefaultProjectID, o.DefaultProjectID)
	if o.LogFormat != nil {
		cfg.LogFormat = domain.LogFormat(*o.LogFormat)
	}
	if o.Verbose != nil {
		cfg.Verbose = *o.Verbose
	}
	if o.RequestTimeout != nil {
		cfg.RequestTimeout = *o.RequestTimeout
	}
	if o.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *o.RequestsPerSecond
	}
	if o.Burst != nil {
		cfg.Burst = *o.Burst
	}
	if o.RetryDelayMinutes != nil {
		cfg.RetryDelayMinutes = *o.RetryDelayMinutes
	}
	if o.OpenBrowser != nil {
		cfg.OpenBrowser = *o.OpenBrowser
	}
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}
