package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/streamvault/streamvault/internal/catalog"
	"github.com/streamvault/streamvault/internal/catalog/putio"
	"github.com/streamvault/streamvault/internal/catalog/tmdb"
	"github.com/streamvault/streamvault/internal/cleanup"
	"github.com/streamvault/streamvault/internal/config"
	"github.com/streamvault/streamvault/internal/fetch"
	"github.com/streamvault/streamvault/internal/http/rest"
	"github.com/streamvault/streamvault/internal/logctx"
	"github.com/streamvault/streamvault/internal/storage/sqlite"
	"github.com/streamvault/streamvault/internal/store"
	"github.com/streamvault/streamvault/internal/telemetry"
	"github.com/streamvault/streamvault/internal/transfer"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("streamvault starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact index: %w", err)
	}
	defer database.Close()

	repo := sqlite.NewInstrumentedArtifactRepository(sqlite.NewArtifactRepository(database), tel)

	// =========================================================================
	// Start Local Store
	st, err := store.New(cfg.DownloadDir)
	if err != nil {
		return fmt.Errorf("failed to open download dir: %w", err)
	}

	// =========================================================================
	// Start Catalog
	resolver, err := buildResolver(ctx, cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to build catalog resolver: %w", err)
	}

	// =========================================================================
	// Start Fetcher
	tracker := transfer.NewTracker(cfg.TransferRetention)

	fetcher := fetch.NewFetcher(st, tracker, repo, tel, fetch.Config{
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: cfg.BaseBackoff,
		MaxParallel: cfg.MaxParallel,
	})

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	server := setupServer(ctx, st, fetcher, tracker, resolver, tel, cfg)

	go func() {
		logger.Info("Initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	logger.Info("serving media",
		"download_dir", cfg.DownloadDir,
		"catalog_backend", cfg.CatalogBackend,
		"max_chunk_size", cfg.MaxChunkSize,
		"retention", cfg.KeepDownloadedFor.String(),
	)

	// =========================================================================
	// Start Cleanup
	setupCleanup(ctx, repo, st, tracker, cfg)

	// =========================================================================
	// Wait for shutdown
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	}
}

// This is an abstract factory for the catalog resolver.
func buildResolver(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (catalog.Resolver, error) {
	switch cfg.CatalogBackend {
	case "tmdb":
		client := tmdb.NewClient(cfg.TMDBBaseURL, cfg.TMDBReadAccessToken, cfg.OriginURL)

		return catalog.NewInstrumentedResolver(client, tel, "tmdb"), nil
	case "putio":
		client := putio.NewClient(cfg.PutioToken)
		if err := client.Authenticate(ctx); err != nil {
			return nil, fmt.Errorf("authentication error: %w", err)
		}

		return catalog.NewInstrumentedResolver(client, tel, "putio"), nil
	}

	return nil, fmt.Errorf("invalid catalog backend: %s", cfg.CatalogBackend)
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(
	ctx context.Context,
	st *store.Store,
	fetcher *fetch.Fetcher,
	tracker *transfer.Tracker,
	resolver catalog.Resolver,
	tel *telemetry.Telemetry,
	cfg *config.Config,
) *http.Server {
	vHandler := rest.NewVideoHandler(st, fetcher, tracker, resolver, tel, cfg.MaxChunkSize)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Use(telemetry.HTTPLogging)

	r.Mount("/", vHandler.Routes())
	r.Method(http.MethodGet, "/metrics", tel.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func setupCleanup(
	ctx context.Context,
	repo cleanup.Repository,
	st *store.Store,
	tracker *transfer.Tracker,
	cfg *config.Config,
) {
	logger := logctx.LoggerFromContext(ctx)

	go func() {
		cleanupTicker := time.NewTicker(cfg.CleanupInterval)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("cleanup goroutine shutting down.")

				return
			case <-cleanupTicker.C:
				if evicted := tracker.Evict(time.Now()); evicted > 0 {
					logger.Debug("evicted stale transfers", "count", evicted)
				}

				if err := cleanup.DeleteExpiredArtifacts(ctx, repo, st, cfg.KeepDownloadedFor); err != nil {
					logger.Error("failed to delete expired artifacts", "err", err)
				}
			}
		}
	}()
}
