package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/approval.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Workflow.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Workflow.RetryBackoff)
	assert.Equal(t, 2*time.Second, cfg.Workflow.RetryBackoffMax)
	assert.Equal(t, 256, cfg.Workflow.EventHistorySize)
	assert.Equal(t, 10, cfg.Rules.MaxDepth)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Empty(t, cfg.Permissions.Matrix, "the permission matrix defaults to the built-in roles")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
database:
  path: /tmp/test.db
workflow:
  max_retries: 5
  event_history_size: 0
rules:
  max_depth: 4
permissions:
  matrix:
    auditor:
      - "audit:read"
      - "reports:read"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Workflow.MaxRetries)
	assert.Equal(t, 0, cfg.Workflow.EventHistorySize)
	assert.Equal(t, 4, cfg.Rules.MaxDepth)
	assert.Equal(t, []string{"audit:read", "reports:read"}, cfg.Permissions.Matrix["auditor"])

	// untouched sections keep their defaults
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 50*time.Millisecond, cfg.Workflow.RetryBackoff)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"negative retries", func(c *Config) { c.Workflow.MaxRetries = -1 }, "max_retries"},
		{"zero backoff", func(c *Config) { c.Workflow.RetryBackoff = 0 }, "retry_backoff"},
		{"backoff max below backoff", func(c *Config) { c.Workflow.RetryBackoffMax = time.Millisecond }, "retry_backoff_max"},
		{"zero tx timeout", func(c *Config) { c.Workflow.TxTimeout = 0 }, "tx_timeout"},
		{"negative history", func(c *Config) { c.Workflow.EventHistorySize = -1 }, "event_history_size"},
		{"zero rule depth", func(c *Config) { c.Rules.MaxDepth = 0 }, "max_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
