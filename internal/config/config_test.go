package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
credentials:
  username: user@example.com
  password: hunter2
zones:
  upstairs: "1"
  downstairs: "2"
csv:
  path: /var/log/hvac.csv
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "/var/log/hvac.csv", cfg.CSVPath)
	assert.Equal(t, "1", cfg.Zones["upstairs"])
	assert.Equal(t, "2", cfg.Zones["downstairs"])
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
credentials:
  username: user@example.com
  password: hunter2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hvac_status.csv", cfg.CSVPath)
	assert.Empty(t, cfg.Zones)
}

func TestLoad_MissingCredentials(t *testing.T) {
	path := writeConfig(t, `
credentials:
  username: user@example.com
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "credentials.username and credentials.password")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "not found")
}

func TestResolveZone(t *testing.T) {
	cfg := Config{Zones: map[string]string{"upstairs": "1", "downstairs": "2"}}

	assert.Equal(t, "1", cfg.ResolveZone("upstairs"))
	assert.Equal(t, "1", cfg.ResolveZone("Upstairs"))
	assert.Equal(t, "2", cfg.ResolveZone("DOWNSTAIRS"))
	assert.Equal(t, "3", cfg.ResolveZone("3"), "unknown alias passes through")
}
