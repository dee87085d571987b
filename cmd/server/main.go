// Package main is the entrypoint for the ednaflow API server.
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

	"github.com/kiranshivaraju/ednaflow/internal/api"
	"github.com/kiranshivaraju/ednaflow/internal/api/handler"
	mw "github.com/kiranshivaraju/ednaflow/internal/api/middleware"
	"github.com/kiranshivaraju/ednaflow/internal/api/response"
	"github.com/kiranshivaraju/ednaflow/internal/blob"
	"github.com/kiranshivaraju/ednaflow/internal/cache"
	"github.com/kiranshivaraju/ednaflow/internal/config"
	"github.com/kiranshivaraju/ednaflow/internal/identity"
	"github.com/kiranshivaraju/ednaflow/internal/inference"
	"github.com/kiranshivaraju/ednaflow/internal/ingest"
	"github.com/kiranshivaraju/ednaflow/internal/logging"
	"github.com/kiranshivaraju/ednaflow/internal/store"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var version = "dev"

func main() {
	logging.Setup(os.Stdout, slog.LevelInfo)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "eDNA upload, ingest and annotation API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("EDNA_CONFIG_FILE"),
		"Path to a YAML config file (env EDNA_CONFIG_FILE)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(configPath)
			},
		},
		newMigrateCmd(),
	)
	return rootCmd
}

func run(configPath string) error {
	// 1. Load config: fail fast on invalid config
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(os.Stdout, cfg.SlogLevel())
	slog.Info("config loaded", "env", cfg.Server.Env, "blob_backend", cfg.Blob.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache. Without it the listing cache and rate limiting
	// are off.
	var (
		listCache   cache.Cache
		rateLimit   *mw.RateLimit
		cacheHealth pinger
	)
	if cfg.Redis.URL == "" {
		slog.Warn("REDIS_URL not set; listing cache and rate limiting disabled")
	} else {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")

		listCache = redisCache
		rateLimit = mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin)
		cacheHealth = redisCache
	}

	// 5. Blob store, classifier and identity provider
	blobs, err := blob.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}
	slog.Info("blob store initialized", "backend", cfg.Blob.Backend, "bucket", cfg.Blob.Bucket)

	classifier := inference.NewHTTPClient(cfg.Inference.URL, cfg.Inference.Timeout)
	idp := identity.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)

	// 6. Create store and ingest service
	pgStore := store.NewPostgresStore(pool)
	svc := ingest.NewService(blobs, pgStore, classifier, ingest.Options{
		Cache:          listCache,
		ListCacheTTL:   cfg.Server.ListCacheTTL,
		CleanupOrphans: cfg.Server.CleanupOrphanBlobs,
	})

	// 7. Build router with dependencies
	auth := mw.NewAuth(cfg.Supabase.JWTSecret)
	if !auth.Enabled() {
		slog.Warn("SUPABASE_JWT_SECRET not set; upload routes accept unauthenticated requests")
	}

	router := api.NewRouter(api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, cacheHealth),

		SignUpHandler: handler.NewSignUpHandler(idp),
		LoginHandler:  handler.NewLoginHandler(idp),
		LogoutHandler: handler.NewLogoutHandler(idp),

		CreateUploadHandler: handler.NewCreateUploadHandler(svc, cfg.Server.MaxUploadBytes),
		ListUploadsHandler:  handler.NewListUploadsHandler(svc),
		GetUploadHandler:    handler.NewGetUploadHandler(svc),
		DeleteUploadHandler: handler.NewDeleteUploadHandler(svc),
	})

	// 8. Start HTTP server. The write timeout leaves room for the inference call.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      cfg.Inference.Timeout + 2*time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// pinger is satisfied by both the row store and the cache.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity. A nil cache is
// reported as disabled and does not degrade the service.
func healthHandler(db pinger, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if c == nil {
			checks["cache"] = "disabled"
		} else if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] == "degraded"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
