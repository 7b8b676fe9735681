package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schedule-tracker/internal/api"
	"schedule-tracker/internal/config"
	"schedule-tracker/internal/telemetry"
	"schedule-tracker/pkg/events"
	"schedule-tracker/pkg/manager"
	"schedule-tracker/pkg/snapshot"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "schedule-tracker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(tel.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	snap, err := snapshot.Open(ctx, cfg.Snapshot())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if snap != nil {
		defer snap.Close()
	}
	bus := events.NewBus()
	store, err := newStore(ctx, snap, bus, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.New(store, bus, logger, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("schedule-tracker listening", "addr", cfg.BindAddr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server exited cleanly")
	return nil
}

// newStore builds the in-memory store, loading from and saving to snap
// when one is configured.
func newStore(ctx context.Context, snap snapshot.Store, bus *events.Bus, logger *slog.Logger) (manager.Manager, error) {
	if snap == nil {
		return manager.NewMemory(manager.WithBus(bus)), nil
	}
	return manager.NewFileBacked(ctx, snap, logger, manager.WithBus(bus))
}
