package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"silver-moon/server/internal/telemetry"
	"silver-moon/server/logging"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Printf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(mapLookup(nil), nil)
	if cfg.Port != 3000 || cfg.WSPath != "/ws" || cfg.Host != "0.0.0.0" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Addr() != "0.0.0.0:3000" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.IdleTimeout != 0 || cfg.InputRate != 40 || cfg.InputBurst != 80 {
		t.Fatalf("unexpected default limits: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(mapLookup(map[string]string{
		"HOST":               "127.0.0.1",
		"PORT":               "9090",
		"WS_PATH":            "socket",
		"PUBLIC_BASE_URL":    "https://play.example/",
		"INPUT_RATE":         "10",
		"INPUT_BURST":        "4",
		"LOBBY_IDLE_TIMEOUT": "90s",
		"LOG_LEVEL":          "debug",
		"LOG_SINKS":          "console, json,console",
		"LOG_JSON_PATH":      "/tmp/events.log",
		"ENABLE_PPROF":       "true",
	}), nil)

	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.WSPath != "/socket" {
		t.Fatalf("expected leading slash on ws path, got %q", cfg.WSPath)
	}
	if cfg.PublicBaseURL != "https://play.example" {
		t.Fatalf("expected trimmed base url, got %q", cfg.PublicBaseURL)
	}
	if cfg.InputRate != 10 || cfg.InputBurst != 4 || cfg.IdleTimeout != 90*time.Second {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if !cfg.EnablePprof {
		t.Fatal("expected pprof enabled")
	}

	logCfg := cfg.Logging()
	if logCfg.MinimumSeverity != logging.SeverityDebug {
		t.Fatalf("expected debug severity, got %v", logCfg.MinimumSeverity)
	}
	if !logCfg.HasSink("json") || !logCfg.HasSink("console") || len(logCfg.EnabledSinks) != 2 {
		t.Fatalf("unexpected sinks %v", logCfg.EnabledSinks)
	}
	if logCfg.JSON.FilePath != "/tmp/events.log" {
		t.Fatalf("unexpected json path %q", logCfg.JSON.FilePath)
	}
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	logger := &captureLogger{}
	cfg := FromEnv(mapLookup(map[string]string{
		"PORT":               "http",
		"INPUT_RATE":         "-1",
		"LOBBY_IDLE_TIMEOUT": "soon",
		"LOG_LEVEL":          "loud",
		"ENABLE_PPROF":       "maybe",
	}), logger)

	if cfg.Port != 3000 || cfg.InputRate != 40 || cfg.IdleTimeout != 0 {
		t.Fatalf("expected defaults after invalid input, got %+v", cfg)
	}
	if cfg.LogLevel != logging.SeverityInfo || cfg.EnablePprof {
		t.Fatalf("expected default log level and pprof off, got %+v", cfg)
	}
	if len(logger.lines) != 5 {
		t.Fatalf("expected 5 warnings, got %d: %v", len(logger.lines), logger.lines)
	}
	if !strings.Contains(logger.lines[0], "PORT") {
		t.Fatalf("expected PORT warning first, got %q", logger.lines[0])
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SILVER_MOON_TEST_PORT=7070\n"), 0o644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("SILVER_MOON_TEST_PORT", "")
	os.Unsetenv("SILVER_MOON_TEST_PORT")

	Load(telemetry.LoggerFunc(func(string, ...any) {}), path)
	if got := os.Getenv("SILVER_MOON_TEST_PORT"); got != "7070" {
		t.Fatalf("expected .env value loaded, got %q", got)
	}
}

func TestLoadToleratesMissingDotEnv(t *testing.T) {
	logger := &captureLogger{}
	Load(logger, filepath.Join(t.TempDir(), "missing.env"))
	if len(logger.lines) != 0 {
		t.Fatalf("expected missing .env to be ignored, got %v", logger.lines)
	}
}
