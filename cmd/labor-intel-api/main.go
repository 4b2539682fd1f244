// Package main provides the labor-intel API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/atlasworkforce/labor-intel/internal/cache"
	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/narrate"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
	"github.com/atlasworkforce/labor-intel/internal/retrieval"
	"github.com/atlasworkforce/labor-intel/internal/routing"
	"github.com/atlasworkforce/labor-intel/internal/semantic"
	"github.com/atlasworkforce/labor-intel/internal/storage"
	"github.com/atlasworkforce/labor-intel/pkg/engine"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("dataset", cfg.Dataset.Path).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Bool("development", cfg.IsDevelopment()).
		Msg("Starting labor-intel API")

	eng, audit, store, cleanup, err := buildEngine(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer cleanup()

	router := NewRouter(logger, cfg, eng, audit, store)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

// buildEngine wires the query pipeline. Semantic search, narration, audit
// storage, and caching are optional; a failed stage is logged and skipped so
// the server still answers with computed figures.
func buildEngine(
	ctx context.Context,
	cfg *config.Config,
	logger *observability.Logger,
) (*engine.Engine, *storage.AuditStore, *patterns.Store, func(), error) {
	table, err := dataset.LoadCSV(cfg.Dataset.Path)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info().Int("rows", table.Len()).Msg("dataset loaded")

	store := patterns.LoadStore(cfg.Patterns.Path, logger)
	matcher := patterns.NewMatcher(store, logger)
	router := routing.NewRouter(cfg.Routing, cfg.Search, matcher, logger)

	var searcher semantic.Searcher
	if embedder, err := semantic.NewClient(cfg.Embedding); err != nil {
		logger.Warn().Err(err).Msg("embedding client unavailable, semantic search disabled")
	} else if index, err := semantic.BuildIndex(ctx, table, embedder, logger); err != nil {
		logger.Warn().Err(err).Msg("index build failed, semantic search disabled")
	} else {
		searcher = semantic.NewVectorSearcher(embedder, index, logger)
	}

	svc := retrieval.NewService(table, router, matcher, searcher, cfg, logger)

	var narrator narrate.Narrator
	if client, err := narrate.NewClient(cfg.Narration); err != nil {
		logger.Warn().Err(err).Msg("narration client unavailable, answers degrade to computed figures")
	} else {
		narrator = client
	}

	var closers []func() error

	var audit *storage.AuditStore
	if db, err := storage.Open(cfg.Database); err != nil {
		logger.Warn().Err(err).Msg("audit store unavailable, history endpoints will 503")
	} else {
		audit = storage.NewAuditStore(db)
		closers = append(closers, db.Close)
	}

	cacheClient, err := cache.Open(cfg.Cache)
	if err != nil {
		logger.Warn().Err(err).Msg("cache unavailable, queries run uncached")
		cacheClient = nil
	} else {
		closers = append(closers, cacheClient.Close)
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn().Err(err).Msg("close failed")
			}
		}
	}

	return engine.New(svc, narrator, audit, cacheClient, cfg, logger), audit, store, cleanup, nil
}
