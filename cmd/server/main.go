package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"silver-moon/server/internal/app"
	"silver-moon/server/internal/config"
	"silver-moon/server/internal/telemetry"
)

func main() {
	logger := telemetry.WrapLogger(log.Default())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Options{Logger: logger, Config: config.Load(logger)}); err != nil {
		log.Fatalf("%v", err)
	}
}
