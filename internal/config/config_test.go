package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 9000
log_level = "trace"
logs_path = ""
log_to_stdout = true
sentry_enabled = false
mongo_db_name = "renderwise_dev"
redis_host = "localhost"
redis_port = "6379"
prom_metrics_host = "localhost"
prom_metrics_port = "2112"

[production]
host = ""
port = 9000
log_level = "debug"
logs_path = "/var/log/renderwise/service.log"
log_to_stdout = false
sentry_enabled = true
mongo_db_name = "renderwise"
redis_host = "localhost"
redis_port = "6379"
prom_metrics_host = "localhost"
prom_metrics_port = "2112"
content_write_rate_limit_per_min = 120
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := Load("development", path)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "renderwise_dev", cfg.MongoDBName)
	assert.True(t, cfg.LogToStdout)
	// defaulted
	assert.Equal(t, 60, cfg.ContentWriteRateLimitAllowedPerMin)

	cfg, err = Load("production", path)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.SentryEnabled)
	assert.Equal(t, 120, cfg.ContentWriteRateLimitAllowedPerMin)
}

func TestLoad_UnknownEnv(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := Load("staging", path)
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown env")
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("development", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Nil(t, cfg)
	require.Error(t, err)
}
