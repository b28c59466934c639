package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/horockey/eureka"
	"github.com/horockey/eureka/internal/config"
	"github.com/horockey/eureka/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, overrides, err := config.Load(config.Embedded(), nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	logger = logger.With().Str("peer_id", cfg.PeerID).Logger()

	logger.Info().Str("profile", cfg.Profile).Msg("config loaded")
	config.LogOverrides(logger, overrides)

	srv, err := eureka.NewServer(
		cfg.Server.APIKey,
		cfg.PeerID,
		eureka.NewStaticDiscovery(cfg.Replication.Peers...),
		serverOpts(cfg, logger)...,
	)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(srv.Metrics()...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	if cfg.Metrics.Port > 0 {
		ms := metrics.NewServer(
			"0.0.0.0:"+strconv.Itoa(cfg.Metrics.Port),
			reg,
			logger.With().Str("scope", "metrics_server").Logger(),
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ms.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(fmt.Errorf("running metrics server: %w", err)).Send()
			}
		}()
	}

	logger.
		Info().
		Int("port", cfg.Server.Port).
		Strs("peers", cfg.Replication.Peers).
		Msg("eureka server starting")

	err = srv.Start(ctx)
	cancel()
	wg.Wait()

	logger.Info().Msg("eureka server stopped")
	return err
}

func serverOpts(cfg *config.Config, logger zerolog.Logger) []eureka.Option {
	opts := []eureka.Option{
		eureka.WithServicePort(cfg.Server.Port),
		eureka.WithLeaseDuration(cfg.Registry.LeaseDuration),
		eureka.WithSweepInterval(cfg.Registry.SweepInterval),
		eureka.WithTombstonesTTL(cfg.Registry.TombstoneTTL),
		eureka.WithIncludeNonUp(cfg.Registry.IncludeNonUp),
		eureka.WithPeerRetry(cfg.Replication.Attempts, cfg.Replication.MinWait, cfg.Replication.MaxWait),
		eureka.WithPeerQueue(cfg.Replication.QueueSize, cfg.Replication.BatchSize),
		eureka.WithLogger(logger.With().Str("scope", "eureka_server").Logger()),
	}
	if cfg.Server.AdvertisedURL != "" {
		opts = append(opts, eureka.WithAdvertisedURL(cfg.Server.AdvertisedURL))
	}
	if cfg.Storage.DataDir != "" {
		opts = append(opts, eureka.WithBadgerDir(cfg.Storage.DataDir))
	}
	return opts
}
