// Package main is the entry point for the Stampboard server. It loads
// configuration, connects the optional backing services, wires the relay hub
// and the image catalog together, and starts the HTTP server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/stampboard/internal/app"
	"github.com/keyxmakerx/stampboard/internal/config"
	"github.com/keyxmakerx/stampboard/internal/database"
	"github.com/keyxmakerx/stampboard/internal/metrics"
	"github.com/keyxmakerx/stampboard/internal/plugins/catalog"
	"github.com/keyxmakerx/stampboard/internal/plugins/stamps"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting Stampboard",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("media_driver", cfg.Media.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.New(reg)
	if err != nil {
		slog.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Connect to MariaDB (optional) ---
	var db *sql.DB
	if cfg.Database.Enabled() {
		db, err = database.NewMariaDB(cfg.Database)
		if err != nil {
			slog.Error("failed to connect to MariaDB", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to MariaDB")

		if _, err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			slog.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// --- Connect to Redis (optional) ---
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
	}

	// --- Media Store ---
	store, mediaDir, err := newMediaStore(ctx, cfg)
	if err != nil {
		slog.Error("media store unavailable", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Catalog ---
	repo := catalog.NewNopIngestionRepository()
	if db != nil {
		repo = catalog.NewIngestionRepository(db)
	}
	fetcher := catalog.NewHTTPFetcher(&http.Client{}, cfg.Ingest.MaxBytes, cfg.Ingest.UserAgent)
	catalogSvc := catalog.NewCatalogService(store, fetcher, repo, catalog.ServiceConfig{
		Root:          cfg.Media.Root,
		MaxConcurrent: int64(cfg.Ingest.MaxConcurrent),
		Observer:      observer,
	})

	// --- Relay Hub ---
	hubOpts := []stamps.Option{stamps.WithObserver(observer)}
	var backplane *stamps.RedisBackplane
	if rdb != nil {
		backplane = stamps.NewRedisBackplane(rdb, cfg.Redis.Channel)
		hubOpts = append(hubOpts, stamps.WithBackplane(backplane))
	}
	hub := stamps.NewHub(hubOpts...)
	if err := hub.Start(ctx); err != nil {
		slog.Error("failed to start relay hub", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Create Application ---
	application := app.New(cfg, app.Services{
		Hub:          hub,
		Catalog:      catalogSvc,
		Metrics:      reg,
		MediaDir:     mediaDir,
		AuditEnabled: db != nil,
	})
	application.RegisterRoutes()

	// --- Graceful Shutdown ---
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
		if backplane != nil {
			backplane.Close()
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newMediaStore builds the store for the configured driver. For the
// filesystem driver it also returns the directory to serve under /media.
func newMediaStore(ctx context.Context, cfg *config.Config) (catalog.Store, string, error) {
	switch cfg.Media.Driver {
	case config.MediaDriverS3:
		s3cfg := cfg.Media.S3
		store, err := catalog.NewS3Store(catalog.S3Options{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			ForcePathStyle:  s3cfg.ForcePathStyle,
			PublicURL:       s3cfg.PublicURL,
		})
		if err != nil {
			return nil, "", err
		}

		checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := store.EnsureBucket(checkCtx); err != nil {
			return nil, "", err
		}
		return store, "", nil

	default:
		if err := os.MkdirAll(cfg.Media.Path, 0755); err != nil {
			return nil, "", err
		}
		return catalog.NewFSStore(cfg.Media.Path, cfg.BaseURL+"/media"), cfg.Media.Path, nil
	}
}

// setupLogging configures the global slog logger. Development uses text
// format for readability. Production uses JSON at the configured level.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel),
		})
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel maps LOG_LEVEL to a slog level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
