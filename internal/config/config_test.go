package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `server:
  port: "9000"
  allowedOrigins: ["https://play.example.com"]
redis:
  addr: "localhost:6379"
  ttl: "30m"
game:
  roundDuration: "15s"
  defaultTotalRounds: 8
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("GAME_AUTO_ADVANCE_DELAY", "3s")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "30m", cfg.Redis.TTL)
	assert.Equal(t, 8, cfg.Game.DefaultTotalRounds)
	assert.Equal(t, 15, cfg.Game.RosterPreviewLimit)
	assert.Equal(t, 15*time.Second, Duration(cfg.Game.RoundDuration, 10*time.Second))
	assert.Equal(t, 3*time.Second, Duration(cfg.Game.AutoAdvanceDelay, 0))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "GAME_DEFAULT_TOTAL_ROUNDS"} {
		t.Setenv(key, "")
	}
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 12, cfg.Game.DefaultTotalRounds)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("soon", time.Minute))
	assert.Equal(t, 250*time.Millisecond, Duration("250ms", time.Minute))
}
