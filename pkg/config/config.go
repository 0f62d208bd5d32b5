// Package config loads pivot process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Env is the resolved process configuration.
type Env struct {
	LogLevel          string
	LogFormat         string
	ExportDir         string
	QueryEndpoint     string
	QueryAPIKey       string
	QueryTimeout      time.Duration
	HTTPAddr          string
	AnimationDuration time.Duration
	LayoutCacheTTL    time.Duration
}

// Load reads the given .env files (".env" when none are named) into the
// process environment without overriding variables already set, then
// resolves Env. Missing files are ignored.
func Load(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return FromEnv(), nil
}

// FromEnv resolves Env from the current environment.
func FromEnv() Env {
	return Env{
		LogLevel:          getEnvString("PIVOT_LOG_LEVEL", "info"),
		LogFormat:         getEnvString("PIVOT_LOG_FORMAT", "console"),
		ExportDir:         getEnvString("PIVOT_EXPORT_DIR", "."),
		QueryEndpoint:     getEnvString("PIVOT_QUERY_ENDPOINT", ""),
		QueryAPIKey:       getEnvString("PIVOT_QUERY_API_KEY", ""),
		QueryTimeout:      getEnvDuration("PIVOT_QUERY_TIMEOUT", 30*time.Second),
		HTTPAddr:          getEnvString("PIVOT_HTTP_ADDR", ":8080"),
		AnimationDuration: getEnvDuration("PIVOT_ANIMATION", 250*time.Millisecond),
		LayoutCacheTTL:    getEnvDuration("PIVOT_LAYOUT_CACHE_TTL", time.Minute),
	}
}

func getEnvString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvDuration accepts Go durations or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Millisecond
		}
	}
	return fallback
}
