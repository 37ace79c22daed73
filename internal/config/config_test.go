package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 60, cfg.Dispatch.BatchIntervalSeconds)
	assert.Equal(t, 500, cfg.Dispatch.MaxDrainCount)
	assert.Equal(t, 5, cfg.Dispatch.SinkTimeoutSeconds)
	assert.Equal(t, "https://let-inc.net", cfg.Tracking.FallbackURL())
	assert.Equal(t, "service_account.json", cfg.Sink.ServiceAccountFile)
	assert.Equal(t, 720, cfg.Registry.TTLHours)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9090
tracking:
  domain: track.example.com
dispatch:
  batch_interval_seconds: 15
  max_drain_count: 100
sink:
  sheet_id: sheet-abc
  service_account_file: /etc/beacon/sa.json
registry:
  ttl_hours: 48
  redis_url: redis://localhost:6379/0
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "https://track.example.com", cfg.Tracking.FallbackURL())
	assert.Equal(t, 15, cfg.Dispatch.BatchIntervalSeconds)
	assert.Equal(t, 100, cfg.Dispatch.MaxDrainCount)
	assert.Equal(t, "sheet-abc", cfg.Sink.SheetID)
	assert.Equal(t, "/etc/beacon/sa.json", cfg.Sink.ServiceAccountFile)
	assert.Equal(t, 48, cfg.Registry.TTLHours)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Registry.RedisURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadZeroTTLFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
registry:
  ttl_hours: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 720, cfg.Registry.TTLHours)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("TRACKING_DOMAIN", "t.example.org")
	t.Setenv("SHEET_ID", "env-sheet")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.org/x")
	t.Setenv("REDIS_URL", "redis://envhost:6379")
	t.Setenv("BATCH_INTERVAL_SECONDS", "30")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "https://t.example.org", cfg.Tracking.FallbackURL())
	assert.Equal(t, "env-sheet", cfg.Sink.SheetID)
	assert.Equal(t, "https://hooks.example.org/x", cfg.Sink.WebhookURL)
	assert.Equal(t, "redis://envhost:6379", cfg.Registry.RedisURL)
	assert.Equal(t, 30, cfg.Dispatch.BatchIntervalSeconds)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := LoadFromEnv("")
	assert.Error(t, err)
}
