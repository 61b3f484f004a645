package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "draftroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "STORAGE_DRIVER", "JWT_SECRET", "AUTH_DISABLED", "NATS_URL", "LOG_LEVEL", "DISCORD_WEBHOOK_URL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9000"
storage:
  driver: postgres
auth:
  disabled: false
  secret: from-file
draft:
  recent_picks: 5
  draftable_positions: [QB, RB]
  scheduler:
    enabled: true
    workers: 2
    batch_size: 10
    max_sleep: 15s
sleeper:
  catalog_ttl: 1h
`)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 5, cfg.Draft.RecentPicks)
	assert.Equal(t, 12, cfg.Draft.UpcomingSlots, "unset keys keep defaults")
	assert.Equal(t, []string{"QB", "RB"}, cfg.Draft.DraftablePositions)
	assert.Equal(t, 15*time.Second, cfg.Draft.Scheduler.MaxSleep)
	assert.Equal(t, time.Hour, cfg.Sleeper.CatalogTTL)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.True(t, cfg.Auth.Disabled)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "sqlite"
	cfg.Auth.Disabled = false
	cfg.Outbox.Enabled = true
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "auth.secret")
	assert.Contains(t, err.Error(), "outbox.enabled requires storage.driver")
	assert.Contains(t, err.Error(), "nats.url")
	assert.Contains(t, err.Error(), "log.level")

	assert.NoError(t, Default().Validate())
}

func TestValidate_OutboxIntervals(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = StoragePostgres
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.Outbox.Enabled = true
	require.NoError(t, cfg.Validate())

	cfg.Outbox.PingInterval = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping_interval must be positive")

	cfg.Outbox.PingInterval = time.Minute
	cfg.Outbox.FallbackInterval = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "fallback_interval")

	cfg.Outbox.Enabled = false
	cfg.Outbox.FallbackInterval = 0
	assert.NoError(t, cfg.Validate(), "intervals only matter with the outbox on")
}
