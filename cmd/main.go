package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	agentadapter "autopilot/internal/adapters/agent"
	"autopilot/internal/adapters/chain"
	"autopilot/internal/adapters/config"
	"autopilot/internal/adapters/dedup"
	"autopilot/internal/adapters/errors/noop"
	"autopilot/internal/adapters/errors/sentry"
	"autopilot/internal/adapters/kafka"
	"autopilot/internal/adapters/postgres"
	redisadapter "autopilot/internal/adapters/redis"
	"autopilot/internal/adapters/telegram"
	"autopilot/internal/api"
	"autopilot/internal/api/health"
	"autopilot/internal/api/investments"
	"autopilot/internal/api/strategies"
	"autopilot/internal/api/stream"
	"autopilot/internal/events"
	pgrepo "autopilot/internal/repository/postgres"
	investmentsvc "autopilot/internal/services/investment"
	portfoliosvc "autopilot/internal/services/portfolio"
	strategysvc "autopilot/internal/services/strategy"
	"autopilot/internal/workers"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Databases
	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()

	var rd *redisadapter.Client
	if cfg.Redis.Enabled() {
		rd, err = redisadapter.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rd.Close()
	}

	// Repositories
	strategyRepo := pgrepo.NewStrategyRepository(pg.DB())
	investmentRepo := pgrepo.NewInvestmentRepository(pg.DB())
	actionRepo := pgrepo.NewActionRepository(pg.DB())

	// Dedup store: Redis when available, process-local otherwise
	var dedupStore dedup.Store
	if rd != nil {
		dedupStore = dedup.NewRedisStore(rd)
		log.Info("Callback dedup backed by Redis")
	} else {
		dedupStore = dedup.NewMemoryStore()
		log.Info("Callback dedup backed by process memory")
	}

	// Ledger event publisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
		log.Infow("Kafka producer initialized", "topic", cfg.Kafka.ActionTopic)
	}
	publisher := events.NewPublisher(producer, cfg.Kafka.ActionTopic, log)

	// On-chain balance reader
	chainClient, err := chain.NewClient(cfg.Chain)
	if err != nil {
		log.Fatalf("Failed to init chain client: %v", err)
	}
	if chainClient != nil {
		defer chainClient.Close()
	} else {
		log.Warn("No RPC URL configured, portfolio balances reconcile as zero")
	}
	var reader chain.BalanceReader
	if chainClient != nil {
		reader = chainClient
	}

	// Operator notifications
	notifier, err := telegram.NewNotifier(cfg.Telegram)
	if err != nil {
		log.Warnf("Telegram notifier disabled: %v", err)
	}

	broadcaster := events.NewBroadcaster(cfg.Stream.SubscriberBuffer)
	agentClient := agentadapter.NewClient(cfg.Agent)
	if !agentClient.Enabled() {
		log.Warn("AGENT_SERVICE_URL not set, runs will record pending placeholders")
	}

	// Services
	investmentService := investmentsvc.NewService(
		investmentRepo, strategyRepo, actionRepo,
		agentClient, dedupStore, broadcaster, publisher, notifier, cfg.Agent,
	)
	portfolioService := portfoliosvc.NewService(investmentRepo, strategyRepo, actionRepo, reader, cfg.Agent)
	strategyService := strategysvc.NewService(strategyRepo)

	// Background workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewPendingReaper(
		actionRepo,
		cfg.Workers.PendingReaperInterval,
		cfg.Workers.PendingReaperMaxAge,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := api.NewServer(
		api.ServerConfig{
			Port:        cfg.App.Port,
			ServiceName: cfg.App.Name,
			Version:     version,
		},
		api.Handlers{
			Health:      health.New(pg, rd, cfg.App.Name, version),
			Investments: investments.NewHandler(investmentService, portfolioService),
			Strategies:  strategies.NewHandler(strategyService),
			Stream:      stream.NewHandler(broadcaster, cfg.Stream.MaxConnectionLifetime),
		},
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, serverErr, server, scheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown blocks until a signal or server failure, then drains
// everything gracefully
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	serverErr <-chan error,
	server *api.Server,
	scheduler *workers.Scheduler,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			log.Errorf("HTTP server failed: %v", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server shutdown: %v", err)
	}
	if scheduler.IsRunning() {
		if err := scheduler.Stop(); err != nil {
			log.Warnf("Scheduler shutdown: %v", err)
		}
	}
	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
