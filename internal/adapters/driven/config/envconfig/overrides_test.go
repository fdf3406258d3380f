package envconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

func TestParse_Unset(t *testing.T) {
	o, err := Parse()
	require.NoError(t, err)

	cfg := domain.DefaultClientConfig()
	o.Apply(&cfg)
	assert.Equal(t, domain.DefaultClientConfig(), cfg)
}

func TestParse_AppliesSetValues(t *testing.T) {
	t.Setenv("VIEWSHOT_SERVER_URL", "https://staging.viewshot.app")
	t.Setenv("VIEWSHOT_LOG_FORMAT", "json")
	t.Setenv("VIEWSHOT_VERBOSE", "true")
	t.Setenv("VIEWSHOT_TIMEOUT", "15s")
	t.Setenv("VIEWSHOT_BURST", "3")
	t.Setenv("VIEWSHOT_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("VIEWSHOT_OPEN_BROWSER", "false")

	o, err := Parse()
	require.NoError(t, err)

	cfg := domain.DefaultClientConfig()
	o.Apply(&cfg)

	assert.Equal(t, "https://staging.viewshot.app", cfg.ServerURL)
	assert.Equal(t, domain.LogFormatJSON, cfg.LogFormat)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.Burst)
	assert.InDelta(t, 0.5, cfg.RequestsPerSecond, 0.0001)
	assert.False(t, cfg.OpenBrowser)
	assert.Equal(t, domain.DefaultClientID, cfg.ClientID)
}

func TestParse_InvalidValue(t *testing.T) {
	t.Setenv("VIEWSHOT_BURST", "many")

	_, err := Parse()
	assert.ErrorContains(t, err, "parsing environment")
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte(
		"VIEWSHOT_PROJECT=proj-from-file\nVIEWSHOT_CLIENT_ID=file-client\n"), 0600))

	t.Setenv("VIEWSHOT_CLIENT_ID", "env-client")
	// Registered so t.Setenv restores it after godotenv sets it.
	t.Setenv("VIEWSHOT_PROJECT", "")
	require.NoError(t, os.Unsetenv("VIEWSHOT_PROJECT"))

	o, err := Load(dotenv)
	require.NoError(t, err)

	cfg := domain.DefaultClientConfig()
	o.Apply(&cfg)
	assert.Equal(t, "proj-from-file", cfg.DefaultProjectID)
	assert.Equal(t, "env-client", cfg.ClientID)
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
