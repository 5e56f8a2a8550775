package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustpan/dustpan/service/config"
	"github.com/dustpan/dustpan/service/events"
	"github.com/dustpan/dustpan/service/metrics"
	"github.com/dustpan/dustpan/service/solana"
	"github.com/dustpan/dustpan/service/tokenmeta"
	"github.com/dustpan/dustpan/service/wallet"
	"github.com/dustpan/dustpan/service/workflow"
	"github.com/prometheus/client_golang/prometheus"
)

// runtime wires the collaborators a command needs from environment
// configuration. Each command builds one, uses it, and closes it.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	resolver  *solana.Resolver
	registry  *tokenmeta.Registry
	session   *wallet.LocalSession
	deps      workflow.Deps
	publisher events.Publisher
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})).With("network", cfg.SolanaNetwork)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	client := solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), cfg.SolanaRPCURL, m, logger)
	resolver := solana.NewResolver(client)

	session, err := wallet.NewLocalSession(cfg.KeypairPath)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		p, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher = p
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		registry: tokenmeta.NewRegistry(cfg.TokenListURL, logger),
		session:  session,
		deps: workflow.Deps{
			Anchors:   client,
			Resolver:  resolver,
			Estimator: solana.NewFeeEstimator(client),
			Pipeline:  solana.NewPipeline(client, cfg.ConfirmPollInterval),
			Session:   session,
			Publisher: publisher,
			Metrics:   m,
			Logger:    logger,
		},
		publisher: publisher,
	}, nil
}

func (r *runtime) close() {
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.logger.Warn("failed to close publisher", "error", err)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
