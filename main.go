package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"meanReversionBot/config"
	"meanReversionBot/internal/adapters/binanceclient"
	"meanReversionBot/internal/adapters/logger"
	"meanReversionBot/internal/adapters/sqlite"
	"meanReversionBot/internal/app"
	"meanReversionBot/internal/metrics"
	"meanReversionBot/internal/ports"
	"meanReversionBot/internal/scheduler"
	"meanReversionBot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogFormat, cfg.LogLevelName)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{
		"level":  cfg.LogLevel.String(),
		"format": cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		QuantityPrecision: cfg.QuantityPrecision,
		Logger:            appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Exchange is unreachable")
		log.Fatalf("FATAL: Exchange is unreachable: %v", err)
	}
	if err := binanceClient.SetServerTime(ctx); err != nil {
		appLogger.Warn(ctx, "Failed to synchronize server time", map[string]interface{}{"error": err.Error()})
	}

	// 5. Initialize Policy
	policy, err := strategy.New(cfg.StrategyConfig())
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position policy")
		log.Fatalf("FATAL: Failed to initialize position policy: %v", err)
	}
	appLogger.Info(ctx, "Position policy initialized", map[string]interface{}{
		"mode":               policy.Mode(),
		"stopLossMultiplier": cfg.StopLossMultiplier.String(),
		"safetyFraction":     cfg.SafetyFraction.String(),
	})

	// 6. Metrics
	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry, cfg.Symbol)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to register metrics")
		log.Fatalf("FATAL: Failed to register metrics: %v", err)
	}

	// 7. Initialize Application Service
	service, err := app.NewStrategyService(
		cfg,
		appLogger,
		binanceClient,
		binanceClient,
		binanceClient,
		repo,
		policy,
		recorder,
	)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize strategy service")
		log.Fatalf("FATAL: Failed to initialize strategy service: %v", err)
	}
	if err := service.Restore(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to restore position state")
		log.Fatalf("FATAL: Failed to restore position state: %v", err)
	}

	// 8. Scheduler
	sched, err := scheduler.New(scheduler.Config{
		Interval:   cfg.CycleInterval,
		MaxRetries: cfg.MaxFetchRetries,
		MinBackoff: cfg.ReconnectDelay,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize scheduler")
		log.Fatalf("FATAL: Failed to initialize scheduler: %v", err)
	}

	// 9. Run until a signal or a fatal cycle error
	if err := run(ctx, cfg, appLogger, sched, service, registry); err != nil {
		appLogger.Error(context.Background(), err, "Bot exited with error")
		stop()
		log.Fatalf("FATAL: Bot exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.", map[string]interface{}{
		"state": service.State().String(),
	})
}

func run(
	ctx context.Context,
	cfg *config.Config,
	appLogger ports.Logger,
	sched *scheduler.Scheduler,
	service *app.StrategyService,
	gatherer prometheus.Gatherer,
) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(ctx, func(ctx context.Context) error {
			_, err := service.RunCycle(ctx)
			return err
		})
	})

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, gatherer)
		appLogger.Info(ctx, "Metrics endpoint enabled", map[string]interface{}{"addr": cfg.MetricsAddr})
		g.Go(func() error {
			return metrics.Serve(ctx, srv)
		})
	}

	return g.Wait()
}
