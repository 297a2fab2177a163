package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
broker:
  session_key: abc123
`))
	assert.NoError(t, err)
	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8780", cfg.App.HTTPAddr)
	assert.Equal(t, "https://integrate.definedgesecurities.com/dart/v1", cfg.Broker.APIURL)
	assert.Equal(t, 25, cfg.Broker.TimeoutSeconds)
	assert.Equal(t, 150, cfg.Broker.PlaceDelayMs)
	assert.Equal(t, "data/bracket.db", cfg.Store.PlanDB)
	assert.Equal(t, "data/operations.db", cfg.Store.OpsDB)
}

func TestLoadReadsValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  env: prod
  log_level: debug
  http_addr: ":9000"
broker:
  api_url: https://example.com/v1
  session_key: abc123
  timeout_seconds: 10
  place_delay_ms: -5
store:
  plan_db: /tmp/plans.db
presets:
  path: configs/presets.yaml
  watch: true
`))
	assert.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "https://example.com/v1", cfg.Broker.APIURL)
	assert.Equal(t, 10, cfg.Broker.TimeoutSeconds)
	assert.Equal(t, 0, cfg.Broker.PlaceDelayMs, "negative delay clamps to zero")
	assert.Equal(t, "/tmp/plans.db", cfg.Store.PlanDB)
	assert.True(t, cfg.Presets.Watch)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing session key", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
app:
  env: dev
`))
		assert.Error(t, err)
	})
	t.Run("unknown log level", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
app:
  log_level: loud
broker:
  session_key: abc123
`))
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("empty path", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})
}
