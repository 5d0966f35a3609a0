package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/HOUCINE710/csv-fille-Processed/internal/config"
	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
	"github.com/HOUCINE710/csv-fille-Processed/internal/history"
	"github.com/HOUCINE710/csv-fille-Processed/internal/logging"
	"github.com/HOUCINE710/csv-fille-Processed/internal/metrics"
	"github.com/HOUCINE710/csv-fille-Processed/internal/web"
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
		"policy", cfg.Classifier.Policy,
		"rerun_mode", cfg.Classifier.RerunMode,
		"upload_max_files", cfg.Upload.MaxFiles,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"history_enabled", cfg.Database.Enabled(),
	)

	policy, err := core.ParsePolicy(cfg.Classifier.Policy)
	if err != nil {
		slog.Error("invalid classifier policy", "error", err)
		os.Exit(1)
	}
	mode, err := core.ParseRerunMode(cfg.Classifier.RerunMode)
	if err != nil {
		slog.Error("invalid rerun mode", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		serviceOpts = []core.Option{core.WithLogger(slog.Default())}
		serverOpts  []web.Option
	)

	if cfg.Metrics.Enabled {
		m, err := metrics.New()
		if err != nil {
			slog.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
		serviceOpts = append(serviceOpts, core.WithObserver(m))
		serverOpts = append(serverOpts, web.WithMetrics(m.Handler()))
	}

	if cfg.Database.Enabled() {
		pool, err := connectDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := history.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create history schema", "error", err)
			os.Exit(1)
		}
		serviceOpts = append(serviceOpts, core.WithRecorder(store))
		serverOpts = append(serverOpts, web.WithHistory(store))
	}

	service := core.NewService(core.ServiceConfig{
		Policy: policy,
		Mode:   mode,
		Batch: core.BatchOptions{
			Workers:     cfg.Upload.ParseWorkers,
			MaxFiles:    cfg.Upload.MaxFiles,
			MaxFileSize: cfg.Upload.MaxFileSize,
			Timeout:     cfg.Upload.Timeout,
		},
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		SessionTTL:    cfg.Session.TTL,
	}, serviceOpts...)

	// Evict idle sessions until shutdown
	go service.Sessions().StartJanitor(ctx, cfg.Session.JanitorInterval)

	server := web.NewServer(cfg, service, serverOpts...)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active runs to complete (with timeout)
		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connectDB opens and pings the run-history pool.
func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
