package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err, "a missing config file must not be an error")

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 50, cfg.Agent.TimeThresholdMs)
	assert.Equal(t, 8, cfg.Agent.MinCodeLength)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "9090"
mongo:
  dbName: "pharmacy_pos_test"
agent:
  apiBaseURL: "http://localhost:9090/api/v1"
  timeThresholdMs: 80
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "pharmacy_pos_test", cfg.Mongo.DBName)
	assert.Equal(t, "http://localhost:9090/api/v1", cfg.Agent.APIBaseURL)
	assert.Equal(t, 80, cfg.Agent.TimeThresholdMs)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://envhost:27017")
	t.Setenv("AGENT_TOKEN", "env-token")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "mongodb://envhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "env-token", cfg.Agent.Token)
}
