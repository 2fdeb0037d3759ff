package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-platform/internal/measures"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s

database:
  enabled: true
  host: db.internal
  database: checkins

measures:
  default_region: usa
  default_unit: pint
  max_valid_measure: 2000

ingest:
  parallelism: 8

cache:
  enabled: true
  addr: redis:6379
  ttl: 1h

telegram:
  enabled: true
  bot_token: "123:abc"
  chat_id: -100200300
`)

	t.Setenv(ConfigFileEnv, "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 8, cfg.Ingest.Parallelism)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, int64(-100200300), cfg.Telegram.ChatID)
	assert.Equal(t, 4, cfg.Telegram.Weeks)

	aggCfg, err := cfg.AggregationConfig()
	require.NoError(t, err)
	require.NotNil(t, aggCfg.FallbackRegion)
	assert.Equal(t, measures.USA, *aggCfg.FallbackRegion)
	assert.Equal(t, 2000, aggCfg.Measures.MaxValidMeasure)

	pg := cfg.PostgresConfig()
	assert.Equal(t, "checkins", pg.Database)
	assert.Contains(t, pg.DSN(), "host=db.internal")
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "pint", cfg.Measures.DefaultUnit)
	assert.Equal(t, 2500, cfg.Measures.MaxValidMeasure)

	fallback, err := cfg.Measures.FallbackRegion()
	require.NoError(t, err)
	assert.Nil(t, fallback)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("CHECKIN_DATABASE_HOST", "pg.example")
	t.Setenv("CHECKIN_SERVER_PORT", "7000")
	t.Setenv("CHECKIN_MEASURES_DEFAULT_REGION", "eur")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "pg.example", cfg.Database.Host)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "eur", cfg.Measures.DefaultRegion)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad region", func(c *Config) { c.Measures.DefaultRegion = "mars" }, "measures.default_region"},
		{"bad unit", func(c *Config) { c.Measures.DefaultUnit = "gallon" }, "measures.default_unit"},
		{"no parallelism", func(c *Config) { c.Ingest.Parallelism = 0 }, "ingest.parallelism"},
		{"database without host", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Host = ""
		}, "database.host"},
		{"storage without secret", func(c *Config) { c.Storage.Enabled = true }, "storage.owner_secret"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, "telegram.bot_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigFileEnv, "")
			cfg, err := LoadConfig("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
