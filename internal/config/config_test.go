// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 60*time.Second, cfg.Game.ReconnectGrace)
	assert.Equal(t, 10*time.Second, cfg.Game.RoundIntermission)
	assert.Equal(t, 100, cfg.Game.PointsToWin)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("VOTE_TIMEOUT", "45")
	t.Setenv("VOTE_LOCKOUT", "1m30s")
	t.Setenv("ROTATION_CEILING", "12")
	t.Setenv("POINTS_TO_WIN", "50")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Game.VoteTimeout)
	assert.Equal(t, 90*time.Second, cfg.Game.VoteLockout)
	assert.Equal(t, 12, cfg.Game.RotationCeiling)
	assert.Equal(t, 50, cfg.Game.PointsToWin)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowOrigin)
	assert.NotEmpty(t, cfg.JWTSecret, "a development secret is filled in")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_ADDR=localhost:6379\nREDIS_DB=2\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("REDIS_DB")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("ROTATION_CEILING", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("ROTATION_CEILING", "")
	t.Setenv("RECONNECT_GRACE", "soon")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	prev := log.GetLevel()
	t.Cleanup(func() {
		log.SetLevel(prev)
		log.SetFormatter(&log.TextFormatter{})
	})

	(&Config{LogLevel: "debug", LogFormat: "json"}).ConfigureLogging()
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	(&Config{LogLevel: "nonsense"}).ConfigureLogging()
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
