package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Producer.BaseURL)
	assert.Equal(t, 900, cfg.Session.IdleTimeoutSecs)
	assert.Equal(t, 120, cfg.Session.QueryTimeoutSecs)
	assert.False(t, cfg.Session.UseAgents)
	assert.Equal(t, "sqlite", cfg.Archive.Driver)
	assert.Equal(t, "enrichtable.db", cfg.Archive.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 400, cfg.Server.RowDelayMS)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
producer:
  base_url: http://producer.internal:9000
archive:
  driver: postgres
  database_url: postgres://localhost/enrich
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://producer.internal:9000", cfg.Producer.BaseURL)
	assert.Equal(t, "postgres", cfg.Archive.Driver)
	assert.Equal(t, "postgres://localhost/enrich", cfg.Archive.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 900, cfg.Session.IdleTimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	t.Setenv("ENRICH_LOG_LEVEL", "warn")
	t.Setenv("ENRICH_PRODUCER_BASE_URL", "http://override:7000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "http://override:7000", cfg.Producer.BaseURL)
}

func TestLoadBadYAML(t *testing.T) {
	chtemp(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("{{nope"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Producer.BaseURL = "http://localhost:8080"
	cfg.Session.IdleTimeoutSecs = 900
	cfg.Session.QueryTimeoutSecs = 120
	cfg.Archive.Driver = "sqlite"
	cfg.Server.Port = 8080
	cfg.Server.RowDelayMS = 400
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("run"))
}

func TestValidateRun_MissingProducer(t *testing.T) {
	cfg := validDefaults()
	cfg.Producer.BaseURL = ""

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "producer.base_url is required")
}

func TestValidateRun_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Archive.Driver = "postgres"

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive.database_url is required")

	cfg.Archive.DatabaseURL = "postgres://localhost/enrich"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_BadTimeouts(t *testing.T) {
	cfg := validDefaults()
	cfg.Session.IdleTimeoutSecs = 0
	cfg.Session.QueryTimeoutSecs = -1

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle_timeout_secs")
	assert.Contains(t, err.Error(), "query_timeout_secs")
}

func TestValidateExport_BadDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Archive.Driver = "oracle"

	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive.driver must be sqlite or postgres")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
