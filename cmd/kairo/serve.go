package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Micheline922/kairo/internal/auth"
	"github.com/Micheline922/kairo/internal/devotion"
	"github.com/Micheline922/kairo/internal/lock"
	"github.com/Micheline922/kairo/internal/metrics"
	"github.com/Micheline922/kairo/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("text_model", cfg.GenAI.TextModel),
		slog.String("speech_model", cfg.GenAI.SpeechModel),
		slog.String("api_key", maskKey(cfg.GenAI.APIKey)),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("reauth", cfg.Auth.Reauth),
		slog.Duration("unlock_ttl", cfg.Auth.GetUnlockTTLDuration()),
		slog.Float64("rate_limit_rps", cfg.RateLimit.RequestsPerSecond),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.NewMetrics()

	client, err := newModelClient(ctx, cfg, appMetrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	flows := newFlowRegistry(client, cfg, appMetrics, logger)
	logger.Info("AI flows initialized", slog.Int("flows", len(flows.Names())))

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer backend.Close()
	logger.Info("Store initialized", slog.String("backend", cfg.Store.Backend))

	reauth, err := newReauthenticator(cfg)
	if err != nil {
		return fmt.Errorf("failed to create reauthenticator: %w", err)
	}
	locks, err := lock.NewManager(reauth, lock.Config{
		TTL:           cfg.Auth.GetUnlockTTLDuration(),
		CleanupPeriod: cfg.Auth.GetCleanupPeriodDuration(),
	}, appMetrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create journal lock manager: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, logger)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	httpServer, err := server.NewHTTPServer(server.Deps{
		Config:   cfg,
		Flows:    flows,
		Devotion: devotion.NewService(backend, flows, appMetrics),
		Locks:    locks,
		Verifier: verifier,
		Backend:  backend,
		Stats:    client,
		Metrics:  appMetrics,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return locks.Run(gctx) })
	g.Go(func() error { return httpServer.Run(gctx) })

	logger.Info("Service started successfully, waiting for signals...")

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error", slog.String("error", err.Error()))
		return err
	}

	stats := client.GetStats()
	logger.Info("Final model statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)
	logger.Info("Service stopped")
	return nil
}
