package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "api-umbrella-logs", cfg.Search.IndexPrefix)
	assert.Equal(t, "UTC", cfg.Search.TimeZone)
	assert.Equal(t, "day", cfg.Search.DefaultInterval)
	assert.Equal(t, 10000, cfg.Search.MaxResultSize)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout())

	assert.Equal(t, "https://localhost:9200", cfg.OpenSearch.URL)
	assert.True(t, cfg.OpenSearch.Insecure)

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Redis.TTL())

	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWaitDuration())

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_WithConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `search:
  index_prefix: logs-v2
  time_zone: America/Denver
  default_interval: hour
  max_result_size: 500
redis:
  enabled: true
  url: redis://cache:6379/2
  ttl_seconds: 300
database_url: postgres://logsearch:secret@db:5432/logsearch
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0600))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "logs-v2", cfg.Search.IndexPrefix)
	assert.Equal(t, "America/Denver", cfg.Search.TimeZone)
	assert.Equal(t, "hour", cfg.Search.DefaultInterval)
	assert.Equal(t, 500, cfg.Search.MaxResultSize)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL())
	assert.Equal(t, "postgres://logsearch:secret@db:5432/logsearch", cfg.DatabaseURL)

	// untouched sections keep their defaults
	assert.Equal(t, "https://localhost:9200", cfg.OpenSearch.URL)
}

func TestLoad_WithEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOGSEARCH_OPENSEARCH_URL", "http://env-opensearch:9200")
	t.Setenv("LOGSEARCH_SEARCH_INDEX_PREFIX", "env-logs")
	t.Setenv("LOGSEARCH_NATS_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-opensearch:9200", cfg.OpenSearch.URL)
	assert.Equal(t, "env-logs", cfg.Search.IndexPrefix)
	assert.True(t, cfg.NATS.Enabled)
}

func TestLoad_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("search: [unclosed"), 0600))

	_, err := Load(configPath)
	assert.Error(t, err)
}
