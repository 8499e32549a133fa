package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000/api/v1", cfg.Backend.BaseURL)
	require.Equal(t, 15, cfg.Backend.TimeoutSeconds)

	require.Equal(t, 30, cfg.Connection.IdleTimeoutSeconds)
	require.Equal(t, 1000, cfg.Connection.BackoffBaseMillis)
	require.Equal(t, 30000, cfg.Connection.BackoffMaxMillis)
	require.Equal(t, 5, cfg.Connection.MaxAttempts)
	require.Equal(t, 5, cfg.Connection.PollIntervalSeconds)

	require.Equal(t, 50, cfg.Activity.LogCapacity)
	require.Equal(t, 5, cfg.Recommend.TopN)
}

func TestLoad_Cached(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("VOYAGENT_CONNECTION_MAX_ATTEMPTS", "9")
	t.Setenv("VOYAGENT_BACKEND_BASE_URL", "http://backend.test/api/v1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Connection.MaxAttempts)
	require.Equal(t, "http://backend.test/api/v1", cfg.Backend.BaseURL)
}

func TestLoadFromFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "voyagent.toml")
	content := `
[backend]
base_url = "http://staging.test/api/v1"
timeout_seconds = 30

[connection]
idle_timeout_seconds = 60

[recommend]
top_n = 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	require.Equal(t, "http://staging.test/api/v1", cfg.Backend.BaseURL)
	require.Equal(t, 30, cfg.Backend.TimeoutSeconds)
	require.Equal(t, 60, cfg.Connection.IdleTimeoutSeconds)
	require.Equal(t, 3, cfg.Recommend.TopN)

	// Untouched keys keep their defaults.
	require.Equal(t, 5, cfg.Connection.MaxAttempts)

	// The explicit load becomes the cached config.
	cached, err := Load()
	require.NoError(t, err)
	require.Same(t, cfg, cached)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile("/does/not/exist/voyagent.toml")
	require.Error(t, err)
}
