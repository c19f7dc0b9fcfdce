package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"silver-moon/server/internal/config"
	"silver-moon/server/internal/content"
	"silver-moon/server/internal/lobby"
	servernet "silver-moon/server/internal/net"
	"silver-moon/server/internal/net/ws"
	"silver-moon/server/internal/observability"
	"silver-moon/server/internal/telemetry"
	"silver-moon/server/logging"
	loggingSinks "silver-moon/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Logger telemetry.Logger
	Config config.Config
}

// Run serves until ctx is cancelled or the listener fails.
func Run(ctx context.Context, opts Options) error {
	telemetryLogger := opts.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}
	cfg := opts.Config

	logConfig := cfg.Logging()
	sinks, err := buildSinks(logConfig)
	if err != nil {
		return err
	}
	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logConfig, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	store, err := content.Load(content.Paths{Content: cfg.ContentPath, Dungeons: cfg.DungeonsPath})
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}

	counters := telemetry.NewCounters()
	registry := lobby.NewRegistry(lobby.Config{
		Content:   store,
		Publisher: router,
		Metrics:   counters,
		Logger:    telemetryLogger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go registry.Run(runCtx, cfg.IdleTimeout)

	socket := ws.NewHandler(registry, ws.HandlerConfig{
		Logger:     telemetryLogger,
		Publisher:  router,
		Metrics:    counters,
		InputRate:  cfg.InputRate,
		InputBurst: cfg.InputBurst,
	})

	handler := servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Content:  store,
		Registry: registry,
		Socket:   http.HandlerFunc(socket.Handle),
		Runtime: servernet.RuntimeInfo{
			Port:          cfg.Port,
			Host:          cfg.Host,
			WSPath:        cfg.WSPath,
			PublicBaseURL: cfg.PublicBaseURL,
		},
		StaticDir:     cfg.StaticDir,
		Logger:        telemetryLogger,
		Counters:      counters,
		LogStats:      router.Stats,
		Observability: observability.Config{EnablePprof: cfg.EnablePprof},
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		telemetryLogger.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	if cfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout, cfg.Console)})
	}
	if cfg.HasSink("json") {
		// Hide stdout's Close so the sink leaves it open.
		var out io.Writer = struct{ io.Writer }{os.Stdout}
		if cfg.JSON.FilePath != "" {
			file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open json log %s: %w", cfg.JSON.FilePath, err)
			}
			out = file
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(out, cfg.JSON.FlushInterval)})
	}
	if cfg.HasSink("memory") {
		sinks = append(sinks, logging.NamedSink{Name: "memory", Sink: loggingSinks.NewBoundedMemorySink(1024)})
	}
	return sinks, nil
}
