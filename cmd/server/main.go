package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/gophsync/internal/advisor"
	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/resolve"
	"github.com/iudanet/gophsync/internal/server"
	"github.com/iudanet/gophsync/internal/server/handlers"
	"github.com/iudanet/gophsync/internal/storage/sqlite"
	"github.com/iudanet/gophsync/internal/strategy"
	"github.com/iudanet/gophsync/internal/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const (
	accessTokenTTL  = 24 * time.Hour
	pruneInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := strategy.DefaultRegistry()
	if cfg.StrategiesFile != "" {
		var err error
		if registry, err = strategy.LoadFile(cfg.StrategiesFile, nil); err != nil {
			return fmt.Errorf("failed to load strategies: %w", err)
		}
	}

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	engine := resolve.NewEngine(registry, logger)
	exporter := audit.NewExporter()
	collector := audit.NewCollector(logger, exporter)
	service := sync.NewService(store, store, conflict.NewDetector(registry, logger), engine,
		collector, exporter, cfg.BatchStrategy, logger)

	router := server.NewRouter(logger, handlers.JWTConfig{
		Secret:         []byte(cfg.JWTSecret),
		AccessTokenTTL: accessTokenTTL,
	}, server.Handlers{
		Health:    handlers.NewHealthHandler(logger, store, Version),
		Conflicts: handlers.NewConflictHandler(logger, store, store, engine, advisor.New(registry, logger), collector, exporter),
		Reconcile: handlers.NewReconcileHandler(logger, service),
		Metrics:   handlers.NewMetricsHandler(logger, store, collector, exporter),
	})

	go pruneLoop(ctx, audit.NewTrail(store, cfg.Retention, logger), logger)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Address, "version", Version, "batch_strategy", cfg.BatchStrategy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// pruneLoop периодически удаляет просроченные записи истории
func pruneLoop(ctx context.Context, trail *audit.Trail, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		if _, err := trail.Prune(ctx, time.Now()); err != nil {
			logger.Warn("History prune failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func printVersion() {
	fmt.Printf("GophSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
