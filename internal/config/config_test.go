package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buyflow/internal/poll"
	"github.com/roach88/buyflow/internal/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buyflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_MatchesPollBudgets(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, poll.Short(), cfg.ShortPoll())
	assert.Equal(t, poll.Long(), cfg.LongPoll())
	assert.True(t, cfg.Quotes.RefreshEnabled)
	assert.Equal(t, store.BackendSQLite, cfg.Backend().Backend)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
store:
  backend: redis
  redis:
    addr: cache:6380
    db: 2
poll:
  interval: 250ms
  short_attempts: 3
quotes:
  refresh_enabled: false
tracing:
  enabled: true
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Logger().Format)
	assert.Equal(t, "stderr", cfg.Log.Output, "unset keys keep defaults")
	assert.Equal(t, store.RedisConfig{Addr: "cache:6380", DB: 2, Key: store.DefaultRedisKey}, cfg.Backend().Redis)
	assert.Equal(t, poll.Config{Interval: 250 * time.Millisecond, Attempts: 3}, cfg.ShortPoll())
	assert.Equal(t, poll.RetriesDefault, cfg.LongPoll().Attempts)
	assert.False(t, cfg.Quotes.RefreshEnabled)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: sqlite\n  path: file.db\n")
	t.Setenv("BUYFLOW_STORE_PATH", "env.db")
	t.Setenv("BUYFLOW_POLL_LONG_ATTEMPTS", "20")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Store.Path)
	assert.Equal(t, 20, cfg.Poll.LongAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"log level":       "log:\n  level: loud\n",
		"backend":         "store:\n  backend: etcd\n",
		"attempts":        "poll:\n  short_attempts: 0\n",
		"sqlite path":     "store:\n  backend: sqlite\n  path: \"\"\n",
		"redis addr form": "store:\n  backend: redis\n  redis:\n    addr: nope\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoad_MissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate_RedisNeedsAddr(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = store.BackendRedis
	cfg.Store.Redis.Addr = ""

	assert.ErrorContains(t, cfg.Validate(), "store.redis.addr")
}
