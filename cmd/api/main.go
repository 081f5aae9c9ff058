package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/visage-id/visage/internal/api"
	"github.com/visage-id/visage/internal/batch"
	"github.com/visage-id/visage/internal/cache"
	"github.com/visage-id/visage/internal/config"
	"github.com/visage-id/visage/internal/database"
	"github.com/visage-id/visage/internal/face"
	"github.com/visage-id/visage/internal/index"
	"github.com/visage-id/visage/internal/metrics"
	"github.com/visage-id/visage/internal/recognizer"
	"github.com/visage-id/visage/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting Visage API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.NewPool(ctx, database.PoolConfig{
		DSN:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Repositories
	users := repository.NewUserRepository(pool, m.ObserveQuery)
	logs := repository.NewRecognitionLogRepository(pool, m.ObserveQuery)

	// Vision provider. Model loading dominates startup, so warmup runs
	// under its own generous timeout and failure is fatal.
	provider, err := face.NewProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create vision provider: %w", err)
	}

	warmupCtx, cancel := context.WithTimeout(ctx, cfg.ModelLoadTimeout)
	err = provider.Warmup(warmupCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("vision provider warmup failed: %w", err)
	}
	logger.Info("vision provider ready", slog.String("provider", provider.Name()))

	// Result cache
	resultCache := cache.New(cfg, logger)
	defer func() {
		if err := resultCache.Close(); err != nil {
			logger.Error("cache close failed", slog.Any("error", err))
		}
	}()

	// Vector index
	idx := index.New(index.Options{
		M:              cfg.HNSWM,
		EfConstruction: cfg.HNSWEfConstruction,
		EfSearch:       cfg.HNSWEfSearch,
		MaxElements:    cfg.HNSWMaxElements,
		Path:           cfg.IndexPath,
		MetaPath:       cfg.IndexMetaPath,
	}, logger)
	if err := idx.Init(); err != nil {
		return fmt.Errorf("failed to init index: %w", err)
	}

	// Recognition pipeline
	rec := recognizer.New(users, logs, provider, idx, resultCache, m, cfg, logger)

	// Reconcile an empty index against the store: on first run or after a
	// lost snapshot the enrolled population lives only in Postgres.
	activeUsers, err := users.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if idx.Size() == 0 && activeUsers > 0 {
		logger.Info("index empty, rebuilding from store", slog.Int("users", activeUsers))
		stats, err := rec.RebuildIndex(ctx)
		if err != nil {
			logger.Error("startup rebuild failed, serving on store fallback", slog.Any("error", err))
		} else {
			logger.Info("startup rebuild finished",
				slog.Int("indexed", stats.Indexed),
				slog.Int("skipped", stats.Skipped),
				slog.Duration("took", stats.Duration))
		}
	}

	// Prime the gauges before the first scrape
	m.SetActiveUsers(activeUsers)
	m.SetIndexSize(idx.Size())
	if status, err := provider.Status(ctx); err == nil {
		m.SetGPUStatus(status.GPUActive, status.GPUMemoryUsed, status.GPUMemoryTotal)
	}

	// Background workers
	saver := index.NewSaver(idx, logger, cfg.IndexSaveInterval)
	go saver.Start(ctx)

	engine := batch.New(rec, users, m, cfg, logger)
	go engine.Start(ctx)

	// Router
	router := api.NewRouter(logger, &api.Dependencies{
		Recognizer: rec,
		Batch:      engine,
		Index:      idx,
		Cache:      resultCache,
		Provider:   provider,
		Metrics:    m,
		Registry:   registry,
		DB:         pool,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	// Drain in-flight batch jobs, then take the final index snapshot. The
	// saver may be mid-save already; Save serializes and no-ops when clean.
	engine.Stop()
	saver.Stop()
	if idx.NeedsSave() {
		if err := idx.Save(); err != nil {
			logger.Error("final index save failed", slog.Any("error", err))
		}
	}

	logger.Info("server stopped")
	return nil
}
