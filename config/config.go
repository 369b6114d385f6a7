// Package config loads server configuration from the environment.
//
// A .env file in the working directory is loaded first when present; real
// environment variables win over it. Command-line flags in cmd/server
// override both.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

type Config struct {
	Port           int
	StoreKind      string
	DBPath         string
	BadgerPath     string
	CurriculumPath string
	ChaptersPerDay int
	BatchSize      int
	Timezone       string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	SessionIdle    time.Duration
	SweepInterval  time.Duration
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		StoreKind:      getEnv("READING_STORE", StoreSQLite),
		DBPath:         getEnv("READING_DB_PATH", "reading.db"),
		BadgerPath:     getEnv("READING_BADGER_PATH", "./data/badger"),
		CurriculumPath: getEnv("READING_CURRICULUM", ""),
		Timezone:       getEnv("READING_TIMEZONE", "UTC"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ChaptersPerDay, err = getEnvInt("READING_CHAPTERS_PER_DAY", 4); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getEnvInt("READING_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.SessionIdle, err = getEnvDuration("READING_SESSION_IDLE", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("READING_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.StoreKind {
	case StoreSQLite, StoreBadger, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want sqlite, badger or memory)", c.StoreKind)
	}
	if c.ChaptersPerDay <= 0 {
		return fmt.Errorf("chapters per day must be positive, got %d", c.ChaptersPerDay)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.SessionIdle <= 0 {
		return fmt.Errorf("session idle must be positive, got %s", c.SessionIdle)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone for calendar-day computations.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel to slog; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger on stderr.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
