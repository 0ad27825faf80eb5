package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "workflows", cfg.WorkflowsDir)
	assert.Equal(t, LockBackendMemory, cfg.Locks.Backend)
	assert.Equal(t, 2048, cfg.Variables.RecentHistoryTokens)
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loom.yaml", `
workflows_dir: /etc/loom/workflows
endpoints:
  main:
    strip_prefixes: ["Bot: "]
locks:
  backend: redis
  ttl: 5m
  redis:
    addr: localhost:6379
    db: 2
variables:
  recent_history_tokens: 512
rate_limit:
  rps: 4
  burst: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/loom/workflows", cfg.WorkflowsDir)
	assert.Equal(t, LockBackendRedis, cfg.Locks.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Locks.TTL)
	assert.Equal(t, "localhost:6379", cfg.Locks.Redis.Addr)
	assert.Equal(t, 2, cfg.Locks.Redis.DB)
	assert.Equal(t, 512, cfg.Variables.RecentHistoryTokens)
	assert.Equal(t, 4.0, cfg.RateLimit.RPS)
	assert.Equal(t, map[string][]string{"main": {"Bot: "}}, cfg.EndpointPrefixes())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LOOM_WORKFLOWS_DIR", "/srv/workflows")
	t.Setenv("LOOM_LOCK_BACKEND", "sqlite")
	t.Setenv("LOOM_SQLITE_PATH", "/srv/locks.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/workflows", cfg.WorkflowsDir)
	assert.Equal(t, LockBackendSQLite, cfg.Locks.Backend)
	assert.Equal(t, "/srv/locks.db", cfg.Locks.SQLitePath)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty workflows dir", func(c *Config) { c.WorkflowsDir = "" }},
		{"unknown backend", func(c *Config) { c.Locks.Backend = "etcd" }},
		{"redis without addr", func(c *Config) { c.Locks.Backend = LockBackendRedis }},
		{"sqlite without path", func(c *Config) { c.Locks.Backend = LockBackendSQLite }},
		{"negative rps", func(c *Config) { c.RateLimit.RPS = -1 }},
		{"negative max depth", func(c *Config) { c.MaxDepth = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
