package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "tenders.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30, cfg.Scan.ItemCap)
	assert.Equal(t, 5*time.Minute, cfg.Scan.SourceTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "America/Toronto", cfg.Scheduler.Timezone)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.Cron.HighPriority)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.Cron.Maintenance)
	assert.Equal(t, 3, cfg.Scheduler.Retry.Attempts)
	assert.Equal(t, 180*24*time.Hour, cfg.Retention.PurgeAfter)
	assert.False(t, cfg.Telegram.Enabled())
	assert.False(t, cfg.Temporal.Enabled())
	assert.Equal(t, "tenderscanner", cfg.Temporal.TaskQueue)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://scanner@localhost:5432/tenders
log:
  level: debug
  format: console
scan:
  item_cap: 50
scheduler:
  cron:
    municipal: ""
retention:
  purge_after: 720h
telegram:
  bot_token: token
  chat_id: "42"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Scan.ItemCap)
	assert.Empty(t, cfg.Scheduler.Cron.Municipal)
	assert.Equal(t, "30 13 * * *", cfg.Scheduler.Cron.Provincial)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.PurgeAfter)
	assert.True(t, cfg.Telegram.Enabled())
}

func TestLoadExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))
	t.Setenv("TENDER_SCANNER_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TENDER_STORE_DATABASE_URL", "/var/lib/tenders.db")
	t.Setenv("TENDER_SCHEDULER_CRON_HIGH_PRIORITY", "*/5 * * * *")
	t.Setenv("TENDER_TEMPORAL_ADDRESS", "temporal:7233")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tenders.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.Cron.HighPriority)
	assert.True(t, cfg.Temporal.Enabled())
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("TENDER_STORE_DRIVER", "mysql")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("TENDER_SCHEDULER_TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestRetryPolicy(t *testing.T) {
	p := RetryConfig{Attempts: 5, Backoff: time.Minute}.Policy()
	assert.Equal(t, 5, p.Attempts)
	assert.Equal(t, time.Minute, p.Initial)
	assert.Equal(t, 30*time.Minute, p.Max)

	def := RetryConfig{}.Policy()
	assert.Equal(t, 3, def.Attempts)
	assert.Equal(t, 5*time.Minute, def.Initial)
}
