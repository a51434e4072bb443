package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("HELPDESK_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.Jobs.Enabled)
	assert.Equal(t, 90*24*time.Hour, cfg.Jobs.AuditRetention)
}

func TestLoad_MissingSecretFails(t *testing.T) {
	os.Unsetenv("HELPDESK_AUTH_JWT_SECRET")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helpdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
auth:
  jwt_secret: from-file
  token_ttl: 2h
storage:
  type: s3
  s3_bucket: attachments
`), 0o600))

	t.Setenv("HELPDESK_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "attachments", cfg.Storage.S3Bucket)
}

func TestLoad_UnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helpdesk.yaml")
	write := func(level string) {
		require.NoError(t, os.WriteFile(path, []byte(`
auth:
  jwt_secret: from-file
observability:
  log_level: `+level+`
`), 0o600))
	}
	write("info")

	changes := make(chan *Config, 4)
	require.NoError(t, Watch(path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	}))

	write("debug")
	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Observability.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the file changed")
	}
}

func TestWatch_NeedsPath(t *testing.T) {
	assert.Error(t, Watch("", func(*Config, error) {}))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{URL: "postgres://x"},
			Auth:     AuthConfig{JWTSecret: "k", TokenTTL: time.Hour},
			Storage:  StorageConfig{Type: "filesystem", Root: "/tmp"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "s3_bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "unknown storage.type"},
		{"negative rate", func(c *Config) { c.RateLimit.RPS = -1 }, "ratelimit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
