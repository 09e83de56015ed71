// Package main provides the entry point for the library search service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itsbakr/minerva-library/internal/aggregator"
	"github.com/itsbakr/minerva-library/internal/config"
	"github.com/itsbakr/minerva-library/internal/database"
	"github.com/itsbakr/minerva-library/internal/observability"
	"github.com/itsbakr/minerva-library/internal/providers"
	"github.com/itsbakr/minerva-library/internal/providers/arxiv"
	"github.com/itsbakr/minerva-library/internal/providers/biorxiv"
	"github.com/itsbakr/minerva-library/internal/providers/crossref"
	"github.com/itsbakr/minerva-library/internal/providers/doaj"
	"github.com/itsbakr/minerva-library/internal/providers/openalex"
	"github.com/itsbakr/minerva-library/internal/providers/opentextbook"
	"github.com/itsbakr/minerva-library/internal/providers/pmc"
	"github.com/itsbakr/minerva-library/internal/repository"
	httpserver "github.com/itsbakr/minerva-library/internal/server/http"
	"github.com/itsbakr/minerva-library/internal/unpaywall"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("minerva-library server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create the history repository.
	historyRepo := repository.NewPgSearchHistoryRepository(db)

	// Set up metrics if enabled.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("minerva")
	}

	// Assemble the aggregation pipeline.
	provs := buildProviders(cfg)

	var enricher aggregator.Enricher
	if cfg.Enrichment.Enabled {
		client := unpaywall.New(unpaywall.Config{
			BaseURL:   cfg.Enrichment.BaseURL,
			Email:     cfg.Contact.Email,
			Timeout:   cfg.Enrichment.Timeout,
			RateLimit: cfg.Enrichment.RateLimit,
			Enabled:   true,
		})
		enricher = unpaywall.NewEnricher(client, unpaywall.EnricherConfig{
			BatchSize:  cfg.Enrichment.BatchSize,
			BatchPause: cfg.Enrichment.BatchPause,
		}, logger)
	}

	dispatcher := aggregator.NewDispatcher(provs, aggregator.DispatcherConfig{
		ProviderTimeout: cfg.Aggregator.ProviderTimeout,
	}, logger, metrics)

	reconciler := aggregator.NewReconciler(aggregator.ReconcilerConfig{
		TitleSimilarityThreshold: cfg.Aggregator.TitleSimilarityThreshold,
	}, logger)

	ranker := aggregator.NewRanker(aggregator.RankerConfig{
		RecentCutoff: cfg.Aggregator.RecentCutoff,
		MidCutoff:    cfg.Aggregator.MidCutoff,
		OldCutoff:    cfg.Aggregator.OldCutoff,
	})

	engine := aggregator.NewEngine(dispatcher, enricher, reconciler, ranker, logger, metrics)

	// Create the HTTP API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := httpserver.NewServer(httpCfg, engine, historyRepo, db, logger, metrics)

	// Set up the Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP API server in background.
	go func() {
		logger.Info().
			Str("address", httpCfg.Address).
			Msg("HTTP API server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("http_address", httpCfg.Address).
		Int("providers", len(provs)).
		Bool("enrichment", enricher != nil)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("minerva-library is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down minerva-library")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("minerva-library shutdown complete")
	return nil
}

// buildProviders constructs every provider adapter from configuration.
// Declaration order here fixes the order of provider statuses in API responses.
func buildProviders(cfg *config.Config) []providers.Provider {
	pc := cfg.Providers
	email := cfg.Contact.Email

	return []providers.Provider{
		openalex.New(openalex.Config{
			BaseURL:    pc.OpenAlex.BaseURL,
			Email:      email,
			Timeout:    pc.OpenAlex.Timeout,
			RateLimit:  pc.OpenAlex.RateLimit,
			MaxResults: pc.OpenAlex.MaxResults,
			Enabled:    pc.OpenAlex.Enabled,
		}),
		crossref.New(crossref.Config{
			BaseURL:    pc.CrossRef.BaseURL,
			Email:      email,
			Timeout:    pc.CrossRef.Timeout,
			RateLimit:  pc.CrossRef.RateLimit,
			MaxResults: pc.CrossRef.MaxResults,
			Enabled:    pc.CrossRef.Enabled,
		}),
		arxiv.New(arxiv.Config{
			BaseURL:    pc.ArXiv.BaseURL,
			Timeout:    pc.ArXiv.Timeout,
			RateLimit:  pc.ArXiv.RateLimit,
			MaxResults: pc.ArXiv.MaxResults,
			Enabled:    pc.ArXiv.Enabled,
		}),
		doaj.New(doaj.Config{
			BaseURL:    pc.DOAJ.BaseURL,
			Timeout:    pc.DOAJ.Timeout,
			RateLimit:  pc.DOAJ.RateLimit,
			MaxResults: pc.DOAJ.MaxResults,
			Enabled:    pc.DOAJ.Enabled,
		}),
		pmc.New(pmc.Config{
			BaseURL:    pc.PMC.BaseURL,
			Email:      email,
			APIKey:     pc.PMC.APIKey,
			Timeout:    pc.PMC.Timeout,
			RateLimit:  pc.PMC.RateLimit,
			MaxResults: pc.PMC.MaxResults,
			Enabled:    pc.PMC.Enabled,
		}),
		biorxiv.New(biorxiv.Config{
			BaseURL:    pc.BioRxiv.BaseURL,
			Timeout:    pc.BioRxiv.Timeout,
			RateLimit:  pc.BioRxiv.RateLimit,
			MaxResults: pc.BioRxiv.MaxResults,
			Enabled:    pc.BioRxiv.Enabled,
		}),
		opentextbook.New(opentextbook.Config{
			BaseURL:    pc.OpenTextbook.BaseURL,
			Timeout:    pc.OpenTextbook.Timeout,
			RateLimit:  pc.OpenTextbook.RateLimit,
			CacheTTL:   pc.OpenTextbook.CacheTTL,
			MaxResults: pc.OpenTextbook.MaxResults,
			Enabled:    pc.OpenTextbook.Enabled,
		}),
	}
}
