package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	for _, k := range []string{"PORT", "READING_STORE", "READING_CHAPTERS_PER_DAY", "READING_BATCH_SIZE", "READING_TIMEZONE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("READING_STORE", "sqlite")
	t.Setenv("READING_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.StoreKind)
	assert.Equal(t, 4, cfg.ChaptersPerDay)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("READING_STORE", "badger")
	t.Setenv("READING_CHAPTERS_PER_DAY", "3")
	t.Setenv("READING_TIMEZONE", "America/New_York")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreBadger, cfg.StoreKind)
	assert.Equal(t, 3, cfg.ChaptersPerDay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("READING_TIMEZONE", "UTC")

	t.Setenv("READING_STORE", "postgres")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("READING_STORE", "memory")
	t.Setenv("PORT", "eighty")
	_, err = Load()
	assert.Error(t, err)
	t.Setenv("PORT", "8080")

	t.Setenv("READING_SWEEP_INTERVAL", "0s")
	_, err = Load()
	assert.ErrorContains(t, err, "sweep interval")

	t.Setenv("READING_SWEEP_INTERVAL", "-5m")
	_, err = Load()
	assert.ErrorContains(t, err, "sweep interval")
	t.Setenv("READING_SWEEP_INTERVAL", "10m")

	t.Setenv("READING_SESSION_IDLE", "-1h")
	_, err = Load()
	assert.ErrorContains(t, err, "session idle")

	t.Setenv("READING_SESSION_IDLE", "0s")
	_, err = Load()
	assert.ErrorContains(t, err, "session idle")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "bogus"}).SlogLevel())
}

func TestLoad_Durations(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("READING_STORE", "memory")
	t.Setenv("READING_TIMEZONE", "UTC")
	t.Setenv("READING_SESSION_IDLE", "90m")
	t.Setenv("READING_SWEEP_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, cfg.SessionIdle)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
}
