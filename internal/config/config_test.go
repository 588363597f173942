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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Business.HistoryDefaultLimit)
	assert.Equal(t, 5, cfg.Business.MaxRetryCount)
	assert.Equal(t, 500*time.Millisecond, cfg.Business.OutboxInterval)
	assert.Equal(t, "bank.notifications", cfg.Kafka.Topic.Notification)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  port: 5432
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
business:
  max_retry_count: 3
  outbox_interval: 2s
`)
	t.Setenv("BANKCORE_DATABASE_HOST", "db.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Business.MaxRetryCount)
	assert.Equal(t, 2*time.Second, cfg.Business.OutboxInterval)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: oracle\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	for env, want := range map[string]string{
		"BANKCORE_BUSINESS_OUTBOX_INTERVAL":   "business.outbox_interval",
		"BANKCORE_BUSINESS_PURGE_INTERVAL":    "business.purge_interval",
		"BANKCORE_BUSINESS_OUTBOX_BATCH_SIZE": "business.outbox_batch_size",
		"BANKCORE_BUSINESS_RETRY_BASE_DELAY":  "business.retry_base_delay",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, "0")
			_, err := Load("")
			assert.ErrorContains(t, err, want)
		})
	}
}
