// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/randytsao24/brigade/internal/geocode"
	"github.com/randytsao24/brigade/internal/predict"
	"github.com/randytsao24/brigade/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Port string
	Env  string

	ModelPath    string
	EncodersPath string
	StationsPath string

	GeocoderURL       string
	GeocoderUserAgent string
	GeocodeTimeout    time.Duration
	GeocodeCacheTTL   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RecorderDriver string
	RecorderDSN    string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8000"),
		Env:               getEnv("ENV", "development"),
		ModelPath:         getEnv("MODEL_PATH", "./models/model-XGB.json"),
		EncodersPath:      getEnv("ENCODERS_PATH", "./models/encoders.json"),
		StationsPath:      getEnv("STATIONS_PATH", "./data/3_external/final_stations_list.csv"),
		GeocoderURL:       getEnv("GEOCODER_URL", geocode.DefaultNominatimURL),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", geocode.DefaultUserAgent),
		GeocodeTimeout:    getDurationEnv("GEOCODE_TIMEOUT_SECONDS", 10) * time.Second,
		GeocodeCacheTTL:   getDurationEnv("GEOCODE_CACHE_TTL_SECONDS", 3600) * time.Second,
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getIntEnv("REDIS_DB", 0),
		RecorderDriver:    strings.ToLower(getEnv("RECORDER_DRIVER", store.DriverNone)),
		RecorderDSN:       getEnv("RECORDER_DSN", ""),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RecorderEnabled reports whether predictions should be persisted.
func (c *Config) RecorderEnabled() bool {
	return c.RecorderDriver != store.DriverNone
}

// ArtifactPaths returns the locations of the model, encoders and station roster.
func (c *Config) ArtifactPaths() predict.Paths {
	return predict.Paths{
		Model:    c.ModelPath,
		Encoders: c.EncodersPath,
		Stations: c.StationsPath,
	}
}

// SlogLevel converts LogLevel for slog handlers. Call Validate first.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	var errs []error

	if c.ModelPath == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}
	if c.EncodersPath == "" {
		errs = append(errs, errors.New("ENCODERS_PATH is required"))
	}
	if c.StationsPath == "" {
		errs = append(errs, errors.New("STATIONS_PATH is required"))
	}
	if c.GeocodeTimeout <= 0 {
		errs = append(errs, errors.New("GEOCODE_TIMEOUT_SECONDS must be positive"))
	}
	if c.GeocodeCacheTTL < 0 {
		errs = append(errs, errors.New("GEOCODE_CACHE_TTL_SECONDS must not be negative"))
	}

	switch c.RecorderDriver {
	case store.DriverNone, store.DriverSQLite:
	case store.DriverPostgres:
		if c.RecorderDSN == "" {
			errs = append(errs, errors.New("RECORDER_DSN is required for the postgres recorder"))
		}
	default:
		errs = append(errs, fmt.Errorf("RECORDER_DRIVER %q is not one of none, sqlite, postgres", c.RecorderDriver))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds)
		}
	}
	return time.Duration(defaultSeconds)
}
