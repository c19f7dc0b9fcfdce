package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"silver-moon/server/internal/telemetry"
	"silver-moon/server/logging"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Host          string
	Port          int
	WSPath        string
	PublicBaseURL string
	StaticDir     string

	ContentPath  string
	DungeonsPath string

	InputRate  float64
	InputBurst int
	// IdleTimeout reaps lobbies without activity; zero keeps them forever.
	IdleTimeout time.Duration

	LogLevel    logging.Severity
	LogSinks    []string
	LogJSONPath string

	EnablePprof bool
}

func Default() Config {
	return Config{
		Host:       "0.0.0.0",
		Port:       3000,
		WSPath:     "/ws",
		StaticDir:  "public",
		InputRate:  40,
		InputBurst: 80,
		LogLevel:   logging.SeverityInfo,
		LogSinks:   []string{"console"},
	}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads optional .env files into the process environment and then
// resolves the configuration from it.
func Load(logger telemetry.Logger, files ...string) Config {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Printf("failed to load .env: %v", err)
	}
	return FromEnv(os.LookupEnv, logger)
}

// FromEnv resolves the configuration from lookup. Invalid values are logged
// and replaced by their defaults.
func FromEnv(lookup LookupFunc, logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	cfg := Default()
	env := func(key string) (string, bool) {
		raw, ok := lookup(key)
		raw = strings.TrimSpace(raw)
		return raw, ok && raw != ""
	}

	if raw, ok := env("HOST"); ok {
		cfg.Host = raw
	}
	if raw, ok := env("PORT"); ok {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 && value < 65536 {
			cfg.Port = value
		} else {
			logger.Printf("invalid PORT=%q: using %d", raw, cfg.Port)
		}
	}
	if raw, ok := env("WS_PATH"); ok {
		if !strings.HasPrefix(raw, "/") {
			raw = "/" + raw
		}
		cfg.WSPath = raw
	}
	if raw, ok := env("PUBLIC_BASE_URL"); ok {
		cfg.PublicBaseURL = strings.TrimRight(raw, "/")
	}
	if raw, ok := env("STATIC_DIR"); ok {
		cfg.StaticDir = raw
	}
	if raw, ok := env("CONTENT_PATH"); ok {
		cfg.ContentPath = raw
	}
	if raw, ok := env("DUNGEONS_PATH"); ok {
		cfg.DungeonsPath = raw
	}
	if raw, ok := env("INPUT_RATE"); ok {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value >= 0 {
			cfg.InputRate = value
		} else {
			logger.Printf("invalid INPUT_RATE=%q: using %g", raw, cfg.InputRate)
		}
	}
	if raw, ok := env("INPUT_BURST"); ok {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.InputBurst = value
		} else {
			logger.Printf("invalid INPUT_BURST=%q: using %d", raw, cfg.InputBurst)
		}
	}
	if raw, ok := env("LOBBY_IDLE_TIMEOUT"); ok {
		if value, err := time.ParseDuration(raw); err == nil && value >= 0 {
			cfg.IdleTimeout = value
		} else {
			logger.Printf("invalid LOBBY_IDLE_TIMEOUT=%q: using %s", raw, cfg.IdleTimeout)
		}
	}
	if raw, ok := env("LOG_LEVEL"); ok {
		if value, err := logging.ParseSeverity(raw); err == nil {
			cfg.LogLevel = value
		} else {
			logger.Printf("invalid LOG_LEVEL=%q: %v", raw, err)
		}
	}
	if raw, ok := env("LOG_SINKS"); ok {
		if sinks := logging.ParseSinks(raw); len(sinks) > 0 {
			cfg.LogSinks = sinks
		}
	}
	if raw, ok := env("LOG_JSON_PATH"); ok {
		cfg.LogJSONPath = raw
	}
	if raw, ok := env("ENABLE_PPROF"); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.EnablePprof = value
		} else {
			logger.Printf("invalid ENABLE_PPROF=%q: %v", raw, err)
		}
	}
	return cfg
}

// Logging derives the router configuration.
func (c Config) Logging() logging.Config {
	out := logging.DefaultConfig()
	out.MinimumSeverity = c.LogLevel
	if len(c.LogSinks) > 0 {
		out.EnabledSinks = append([]string(nil), c.LogSinks...)
	}
	out.JSON.FilePath = c.LogJSONPath
	return out
}
