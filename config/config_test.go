package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `
backends:
  - id: b1
    url: http://127.0.0.1:9001
  - id: b2
    url: http://127.0.0.1:9002
`)

	cfg, err := Load([]string{"--config-file", path})
	require.NoError(t, err)

	assert.Equal(t, RoundRobin, cfg.Balancer.Strategy)
	assert.Equal(t, 50, cfg.Breaker.FailureThreshold)
	assert.Len(t, cfg.Backends, 2)
	assert.Equal(t, "b1", cfg.Backends[0].ID)
	assert.Equal(t, 1, cfg.Backends[0].Weight)
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	path := writeConfigFile(t, `
backends:
  - id: b1
    url: http://127.0.0.1:9001
`)

	_, err := Load([]string{"--config-file", path, "--balancer-strategy", "least-connection"})
	assert.Error(t, err)
}

func TestLoadRejectsNoBackends(t *testing.T) {
	path := writeConfigFile(t, "backends: []\n")
	_, err := Load([]string{"--config-file", path})
	assert.Error(t, err)
}

func TestLoadExpandsEnvInBackendURL(t *testing.T) {
	t.Setenv("TEST_BACKEND_HOST", "127.0.0.1:9003")
	path := writeConfigFile(t, `
backends:
  - id: b1
    url: http://${TEST_BACKEND_HOST}
`)

	cfg, err := Load([]string{"--config-file", path})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9003", cfg.Backends[0].URL)
}
