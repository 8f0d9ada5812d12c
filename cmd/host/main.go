package main

import (
	"context"
	_ "github.com/joho/godotenv/autoload"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/socialchef/beacon/internal/config"
	"github.com/socialchef/beacon/internal/logger"
	"github.com/socialchef/beacon/internal/registry"
	"github.com/socialchef/beacon/internal/subsystem"
	"github.com/socialchef/beacon/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	// Initialize logger; the telemetry subsystem attaches its appender to it
	root := logger.New(cfg.Env)
	slog.SetDefault(root.Logger)

	reg := registry.New()
	registry.Put(reg, cfg)

	engine := subsystem.NewEngine(reg, root.Logger, subsystem.NewTelemetry(root))
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("Failed to start host: %v", err)
	}

	emitter := registry.MustGet[telemetry.Emitter](engine.Registry())
	if err := emitter.Emit(ctx, telemetry.Event{
		Category: "session",
		Action:   "started",
		Label:    cfg.ServiceVersion,
	}); err != nil {
		slog.Warn("Failed to emit session event", "error", err)
	}

	slog.Info("Host started", "service", cfg.ServiceName, "env", cfg.Env)
	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := emitter.Emit(shutdownCtx, telemetry.Event{Category: "session", Action: "ended"}); err != nil {
		slog.Warn("Failed to emit session event", "error", err)
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown finished with errors", "error", err)
		os.Exit(1)
	}
}
