package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Search.CacheResults)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9000
dataset:
  path: data/tasks.csv
patterns:
  path: /etc/labor/task_patterns.yaml
narration:
  model: openai/gpt-4o
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "openai/gpt-4o", cfg.Narration.Model)

	// Relative paths resolve against the config file's directory,
	// absolute paths stay untouched.
	assert.Equal(t, filepath.Join(dir, "data/tasks.csv"), cfg.Dataset.Path)
	assert.Equal(t, "/etc/labor/task_patterns.yaml", cfg.Patterns.Path)

	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Routing.DefaultTopK)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8123")
	t.Setenv("DATABASE_URL", "postgres://labor:secret@db:5432/audit")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("DATASET_PATH", "/srv/data/labor.csv")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://labor:secret@db:5432/audit", cfg.Database.Postgres.DSN)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "/srv/data/labor.csv", cfg.Dataset.Path)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestSQLiteDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:/var/lib/labor-intel.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/labor-intel.db", cfg.Database.SQLite.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad database driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "invalid database driver",
		},
		{
			name:    "bad cache driver",
			mutate:  func(c *Config) { c.Cache.Driver = "memcached" },
			wantErr: "invalid cache driver",
		},
		{
			name:    "confidence out of range",
			mutate:  func(c *Config) { c.Patterns.MinConfidence = 1.5 },
			wantErr: "min_confidence",
		},
		{
			name:    "top_k above max",
			mutate:  func(c *Config) { c.Routing.DefaultTopK = 100 },
			wantErr: "default_top_k",
		},
		{
			name:    "savings fraction out of range",
			mutate:  func(c *Config) { c.Analysis.SavingsFraction = 1.2 },
			wantErr: "savings_fraction",
		},
		{
			name:    "unordered tolerance tiers",
			mutate:  func(c *Config) { c.Analysis.Tolerances.Major = 10.0 },
			wantErr: "tolerance tiers",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
