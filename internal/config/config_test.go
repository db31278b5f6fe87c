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

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "leafdoctor_gallery", cfg.Storage.Key)
	assert.Equal(t, 1280, cfg.Camera.Width)
	assert.Equal(t, 720, cfg.Camera.Height)
	assert.Equal(t, "environment", cfg.Camera.FacingMode)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, time.Minute, cfg.Sessions.CleanupInterval)
}

func TestLoad_BundledConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, int64(10<<20), cfg.Sessions.MaxUploadBytes)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
log:
  level: debug
ai:
  model: gemini-2.5-flash
  baseURL: https://generativelanguage.googleapis.com/v1beta/openai/
storage:
  driver: mysql
  mysql:
    host: db
    port: 3307
    user: leaf
    password: secret
    name: leafdb
gallery:
  timezone: Europe/Berlin
sessions:
  ttl: 5m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, "leaf:secret@tcp(db:3307)/leafdb?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LEAFDOCTOR_AI_APIKEY", "sk-from-env")
	t.Setenv("LEAFDOCTOR_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.AI.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "log:\n  level: verbose\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_UnknownDriver(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: etcd\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: postgres\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.postgres.dsn")
}

func TestValidate_BadTimezone(t *testing.T) {
	path := writeConfig(t, "gallery:\n  timezone: Mars/Olympus_Mons\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLocation_Local(t *testing.T) {
	c := &Config{}
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
