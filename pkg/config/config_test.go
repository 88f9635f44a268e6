package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "ITEMSERVICE_DB_TYPE", "ITEMSERVICE_DB_PATH", "ITEMSERVICE_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Address())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "itemservice.yaml")
	content := `
server:
  port: 9090
  shutdown_timeout: 2s
storage:
  type: sqlite
  path: /var/lib/itemservice/items.db
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout(), "unset keys keep their defaults")
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "/var/lib/itemservice/items.db", cfg.Storage.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "itemservice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644))

	t.Setenv("PORT", "7000")
	t.Setenv("ITEMSERVICE_DB_TYPE", "sqlite")
	t.Setenv("ITEMSERVICE_DB_PATH", "items.db")
	t.Setenv("ITEMSERVICE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "items.db", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server: [unclosed"), 0644))
	_, err := Load(broken)
	assert.ErrorContains(t, err, "failed to parse config")

	t.Setenv("PORT", "eighty")
	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.ErrorContains(t, err, "invalid PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "out of range"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "out of range"},
		{"unknown backend", func(c *Config) { c.Storage.Type = "duckdb" }, "storage.type"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad duration", func(c *Config) { c.Server.IdleTimeout = "soon" }, "server.idle_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "itemservice.yaml")
	cfg := DefaultConfig()
	cfg.Server.Port = 8181
	cfg.Storage.Type = "sqlite"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
