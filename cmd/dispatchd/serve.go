package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beltoedu/dispatchd/internal/classify"
	"github.com/beltoedu/dispatchd/internal/config"
	"github.com/beltoedu/dispatchd/internal/dispatch"
	"github.com/beltoedu/dispatchd/internal/embeddings"
	"github.com/beltoedu/dispatchd/internal/endpoint"
	"github.com/beltoedu/dispatchd/internal/enrich"
	"github.com/beltoedu/dispatchd/internal/httpapi"
	"github.com/beltoedu/dispatchd/internal/logging"
	"github.com/beltoedu/dispatchd/internal/materials"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the full pipeline and blocks until a termination signal.
func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting dispatchd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Int("endpoints", len(cfg.Upstream.Endpoints)))

	registry := endpoint.NewRegistry(cfg.Upstream.Endpoints, endpoint.Config{
		MaxConsecutiveFailures: cfg.Health.MaxConsecutiveFailures,
		RetryInterval:          cfg.Health.RetryInterval.Duration(),
	}, logger)

	prober := endpoint.NewHTTPProber(cfg.Health.ProbeTimeout.Duration())
	monitor := endpoint.NewMonitor(registry, prober, cfg.Health.CheckThreshold.Duration(), logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	store, err := buildMaterialStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing material store: %w", err)
	}

	classifier := classify.New(classify.Config{
		BaseTimeout:           cfg.Dispatch.BaseTimeout.Duration(),
		FileTimeout:           cfg.Dispatch.FileTimeout.Duration(),
		LargeContentTimeout:   cfg.Dispatch.LargeContentTimeout.Duration(),
		LargeContentThreshold: cfg.Dispatch.LargeContentThreshold,
		EnrichTimeout:         cfg.Enrich.Timeout.Duration(),
		EnrichFileTimeout:     cfg.Enrich.FileTimeout.Duration(),
		EnrichLargeTimeout:    cfg.Enrich.LargeTimeout.Duration(),
	})

	enricher := enrich.NewFetcher(enrich.Config{
		BaseURL:        cfg.Enrich.BaseURL,
		MaxDocuments:   cfg.Enrich.MaxDocuments,
		MaxCharsPerDoc: cfg.Enrich.MaxCharsPerDoc,
	}, logger)

	client := dispatch.NewClient(dispatch.ClientConfig{
		APIKey:            cfg.Upstream.APIKey.Value(),
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	}, logger)

	orchestrator := dispatch.NewOrchestrator(classifier, enricher, registry, client, dispatch.Config{
		MaxAttempts:        cfg.Dispatch.MaxAttempts,
		RetryBackoff:       cfg.Dispatch.RetryBackoff.Duration(),
		DefaultModel:       cfg.Upstream.DefaultModel,
		DefaultTemperature: cfg.Upstream.DefaultTemperature,
		DefaultMaxTokens:   cfg.Upstream.DefaultMaxTokens,
	}, logger)

	srv, err := httpapi.NewServer(orchestrator, registry, store, httpapi.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		AuthToken: cfg.Server.AuthToken.Value(),
	}, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildMaterialStore creates the lecture material store backed by the
// embedding service.
func buildMaterialStore(cfg *config.Config, logger *zap.Logger) (*materials.Store, error) {
	embedder, err := embeddings.NewClient(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
	})
	if err != nil {
		return nil, err
	}

	return materials.NewStore(materials.Config{
		Path:         cfg.Materials.Path,
		Collection:   cfg.Materials.Collection,
		ChunkSize:    cfg.Materials.ChunkSize,
		ChunkOverlap: cfg.Materials.ChunkOverlap,
	}, embedder.EmbeddingFunc(), logger)
}
