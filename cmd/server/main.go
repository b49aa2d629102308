package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ledgerkit/importer/internal/config"
	"github.com/ledgerkit/importer/internal/importer"
	"github.com/ledgerkit/importer/internal/logging"
	"github.com/ledgerkit/importer/internal/store"
	"github.com/ledgerkit/importer/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent_jobs", cfg.Import.MaxConcurrentJobs,
		"import_batch_size", cfg.Import.BatchSize,
	)

	ctx := context.Background()

	var (
		jobs       importer.JobStore
		categories importer.CategoryStore
		vendors    importer.VendorStore
		records    importer.RecordStore
	)

	if cfg.Database.InMemory {
		slog.Warn("using in-memory stores, all data is lost on restart")
		mem := store.NewMemory()
		jobs, categories, vendors, records = mem.Jobs(), mem.Categories(), mem.Vendors(), mem.Records()
	} else {
		// Run schema migrations before opening the pool
		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		// Parse and configure connection pool
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			slog.Error("failed to parse database URL", "error", err)
			os.Exit(1)
		}
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)
		poolConfig.MinConns = int32(cfg.Database.MinConns)
		poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		// Log which database we connected to
		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}

		pg := store.NewPostgres(pool)
		jobs, categories, vendors, records = pg.Jobs(), pg.Categories(), pg.Vendors(), pg.Records()
	}

	// Create the import service
	service := importer.NewService(jobs, categories, vendors, records, importer.Options{
		BatchSize:         cfg.Import.BatchSize,
		PreviewRows:       cfg.Import.PreviewRows,
		MaxConcurrentJobs: cfg.Import.MaxConcurrentJobs,
		MaxWaitTime:       cfg.Import.MaxWaitTime,
	})

	server := web.NewServer(service, web.ServerOptions{
		MaxFileSize:    cfg.Import.MaxFileSize,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Start terminal-job cleanup scheduler
	go service.StartCleanupScheduler(jobCtx, importer.CleanupConfig{
		Retention:     cfg.Cleanup.Retention,
		CheckInterval: cfg.Cleanup.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active import jobs to complete (with timeout)
		if active := service.ActiveJobs(); active > 0 {
			slog.Info("waiting for import jobs to complete", "active", active)
			if err := service.WaitForJobs(shutdownCtx); err != nil {
				slog.Warn("import jobs did not complete in time", "error", err)
			} else {
				slog.Info("all import jobs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
