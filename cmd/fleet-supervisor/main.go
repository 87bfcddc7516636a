package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/fleetsupervisor/internal/config"
	"github.com/edvin/fleetsupervisor/internal/db"
	"github.com/edvin/fleetsupervisor/internal/fleet"
	"github.com/edvin/fleetsupervisor/internal/fleet/broker"
	"github.com/edvin/fleetsupervisor/internal/fleet/notify"
	"github.com/edvin/fleetsupervisor/internal/fleet/store"
	"github.com/edvin/fleetsupervisor/internal/logging"
	"github.com/edvin/fleetsupervisor/internal/metrics"
)

const healthMaxAge = 90 * time.Second

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations/fleet", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("fleet-supervisor"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.CoreDatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()

	nodeStore := store.New(corePool)
	connPool := broker.NewConnPool(cfg.GRPCDialTimeout)
	defer connPool.Close()
	controlFactory := broker.NewControlFactory(connPool)

	beacon := fleet.NewLastSeenBeacon(time.Now())

	// The default registry already carries the Go and process collectors
	// and is the one promhttp.Handler serves on /metrics.
	registry := prometheus.DefaultRegisterer

	reconciler, err := fleet.New(logger, nodeStore, controlFactory, fleet.Options{
		QueueCapacity:         cfg.QueueCapacity,
		VerifyInterval:        cfg.VerifyInterval,
		RestartMaxRate:        cfg.RestartMaxRate,
		BrokerRevivedCooldown: cfg.BrokerRevivedCooldown,
		PingMaxAttempts:       cfg.PingMaxAttempts,
		Beacon:                beacon,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build reconciler")
	}
	metricsCollector := fleet.NewMetrics(registry, reconciler.QueueDepth)
	reconciler.SetMetrics(metricsCollector)

	httpServer := metrics.NewServer(cfg.HTTPListenAddr, func() bool { return beacon.Healthy(healthMaxAge) })

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reconciler.Run(gctx)
		return nil
	})

	g.Go(func() error {
		reconciler.RunVerifyAllTimer(gctx)
		return nil
	})

	g.Go(func() error {
		notifyConn, err := pgx.Connect(gctx, cfg.CoreDatabaseURL)
		if err != nil {
			return fmt.Errorf("connect listener: %w", err)
		}
		defer notifyConn.Close(context.Background())

		listener := notify.New(notifyConn, cfg.NotifyChannel, nodeStore, reconciler, logger)
		return listener.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting health and metrics server")
		if err := httpServer.ListenAndServe(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("health/metrics server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		reconciler.RequestShutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("fleet-supervisor exited with error")
		os.Exit(1)
	}
}
