package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no .env here

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "Asia/Seoul", cfg.Server.TimeZone)
	assert.Equal(t, "gym.db", cfg.DB.Path)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
	assert.Contains(t, cfg.CORS.AllowHeaders, "X-User-ID")
	assert.Equal(t, 5*time.Minute, cfg.CORS.MaxAge)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Zero(t, cfg.Expiry.SweepInterval, "background sweep is opt-in")
	assert.False(t, cfg.Demo.Enabled)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/var/lib/gym/gym.db")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "15m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/var/lib/gym/gym.db", cfg.DB.Path)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, 15*time.Minute, cfg.Expiry.SweepInterval)

	loc, err := cfg.Server.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfig_BadValue(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("METRICS_ENABLED", "maybe")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestServerConfig_UnknownTimeZone(t *testing.T) {
	_, err := ServerConfig{TimeZone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

func TestNewTestConfig(t *testing.T) {
	cfg := NewTestConfig()
	assert.Equal(t, ":memory:", cfg.DB.Path)
	assert.False(t, cfg.Metrics.Enabled)

	loc, err := cfg.Server.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
