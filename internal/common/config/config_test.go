package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithPath_Defaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PORT", "")
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, WorkerModeInProcess, cfg.Worker.Mode)
	assert.Equal(t, "json", cfg.Worker.Codec)
	assert.Equal(t, 10*time.Second, cfg.Worker.HandshakeTimeoutDuration())
	assert.Equal(t, "main.ks", cfg.Share.DefaultFilename)
	assert.Equal(t, "Shared via Kast Playground", cfg.Share.Description)
	assert.False(t, cfg.Share.Enabled())
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadWithPath_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: 4100\nworker:\n  mode: process\n  codec: msgpack\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("PORT", "")
	t.Setenv("PLAYGROUND_LOGGING_LEVEL", "debug")

	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, WorkerModeProcess, cfg.Worker.Mode)
	assert.Equal(t, "msgpack", cfg.Worker.Codec)
	assert.Equal(t, "ghp_test", cfg.Share.GitHubToken)
	assert.True(t, cfg.Share.Enabled())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 0},
		Worker:  WorkerConfig{Mode: "thread", Codec: "xml"},
		Logging: LoggingConfig{Level: "loud", Format: "json"},
	}
	err := validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"server.port", "worker.mode", "worker.codec", "worker.handshakeTimeout", "share.defaultFilename", "logging.level"} {
		assert.Contains(t, err.Error(), want)
	}
}
