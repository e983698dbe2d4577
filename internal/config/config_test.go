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
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "garderoba.sqlite3", cfg.Server.DBPath)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 1200*time.Millisecond, cfg.Scan.MinDuration)
	assert.Equal(t, 120*time.Second, cfg.Session.ResendCooldown)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Advice.APIKey)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  admin_email: owner@example.com
redis:
  addr: localhost:6379
scan:
  min_duration: 2s
`), 0o644))

	t.Setenv("GARDEROBA_SERVER_ADDR", ":7070")
	t.Setenv("GARDEROBA_ADVICE_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "owner@example.com", cfg.Server.AdminEmail)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Scan.MinDuration)
	assert.Equal(t, "sk-test", cfg.Advice.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("GARDEROBA_MAIL_SENDER=vault@example.com\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("GARDEROBA_MAIL_SENDER") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "vault@example.com", cfg.Mail.Sender)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Server: ServerConfig{DBPath: "x", Addr: ":1"}, Scan: ScanConfig{MinDuration: -1}}
	assert.Error(t, cfg.Validate())

	cfg.Scan.MinDuration = 0
	cfg.Mail.Sender = "a@b.c"
	assert.Error(t, cfg.Validate())

	cfg.Mail.Region = "eu-west-1"
	assert.NoError(t, cfg.Validate())
}
