package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/http"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/memory"
	metricsadapter "github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/adapters/security"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/ports"
)

type Runtime struct {
	cfg          Config
	logger       *slog.Logger
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcLis      net.Listener
	outbox       *eventadapter.OutboxWorker
	consumer     *eventadapter.ConsumerWorker
	distribution *eventadapter.DistributionWorker
	cleanupFn    func(context.Context)

	// embedWorkers runs the workers inside the API process. Set for the
	// in-memory store, which a separate worker process could not share.
	embedWorkers bool
}

// storage groups the persistence ports so postgres and memory are interchangeable.
type storage struct {
	investments  ports.InvestmentRepository
	participants ports.ParticipantRepository
	rewards      ports.RewardRepository
	plans        ports.PlanRepository
	batchRuns    ports.BatchRunRepository
	claims       ports.RankClaimRepository
	eventDedup   ports.EventDedupRepository
	outbox       ports.OutboxRepository
	ready        func() error
	close        func()
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	logger.Info("bootstrapping m42 investment engine", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){store.close}
	cleanup := func(context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Runtime, error) {
		cleanup(ctx)
		return nil, err
	}

	var planCache ports.PlanCache = memory.NewPlanCache()
	var runLock ports.RunLock = memory.NewRunLock()
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		planCache = cacheadapter.NewRedisPlanCache(redisClient)
		runLock = cacheadapter.NewRedisRunLock(redisClient)
	} else {
		logger.Warn("REDIS_URL not set; plan cache and run lock are process-local")
	}

	var verifier ports.TokenVerifier
	if cfg.JWTSecret != "" || cfg.JWTPublicKeyPEM != "" {
		jwtVerifier, err := security.NewJWTVerifier(cfg.JWTSecret, cfg.JWTPublicKeyPEM, cfg.JWTIssuer)
		if err != nil {
			return fail(fmt.Errorf("init jwt verifier: %w", err))
		}
		verifier = jwtVerifier
	} else {
		logger.Warn("no JWT key configured; accepting development bearer tokens")
	}

	samplePrincipal, err := decimal.NewFromString(cfg.SamplePrincipal)
	if err != nil {
		return fail(fmt.Errorf("parse sample principal: %w", err))
	}

	metrics := metricsadapter.NewPrometheus()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:                  cfg.ServiceID,
			MaturityInterval:             cfg.MaturityInterval,
			BatchMaxAttempts:             cfg.BatchMaxAttempts,
			BatchRetryDelay:              cfg.BatchRetryDelay,
			RunLockTTL:                   cfg.RunLockTTL,
			PlanCacheTTL:                 cfg.PlanCacheTTL,
			EventDedupTTL:                cfg.EventDedupTTL,
			EnableDomainEventConsumption: cfg.EnableDomainEventConsumption,
			SamplePrincipal:              samplePrincipal,
		},
		Investments:  store.investments,
		Participants: store.participants,
		Rewards:      store.rewards,
		Plans:        store.plans,
		PlanCache:    planCache,
		BatchRuns:    store.batchRuns,
		Claims:       store.claims,
		EventDedup:   store.eventDedup,
		RunLock:      runLock,
		Metrics:      metrics,
		Logger:       logger,
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler, httpadapter.RouterOptions{
		Verifier: verifier,
		Metrics:  metrics.Handler(),
		Ready:    store.ready,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewInvestmentInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fail(fmt.Errorf("listen gRPC: %w", err))
	}
	closers = append(closers, func() { _ = lis.Close() })

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	var consumer eventadapter.Consumer = eventadapter.NewDisabledConsumer(logger, "no kafka brokers configured")
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.ServiceID, cfg.KafkaTopicByEvent)
		if err != nil {
			return fail(fmt.Errorf("init kafka publisher: %w", err))
		}
		closers = append(closers, func() { _ = kafkaPublisher.Close() })
		publisher = kafkaPublisher

		consumer = eventadapter.NewDisabledConsumer(logger, "domain event consumption turned off")
		if cfg.EnableDomainEventConsumption {
			kafkaConsumer, err := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, cfg.KafkaConsumerTopics)
			if err != nil {
				return fail(fmt.Errorf("init kafka consumer: %w", err))
			}
			closers = append(closers, func() { _ = kafkaConsumer.Close() })
			consumer = kafkaConsumer
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set; events are logged and upstream sale events are not consumed")
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox: eventadapter.NewOutboxWorker(logger, store.outbox, publisher, eventadapter.OutboxWorkerConfig{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			ClaimTTL:     cfg.OutboxClaimTTL,
			MaxRetries:   cfg.OutboxMaxRetries,
		}),
		consumer:     eventadapter.NewConsumerWorker(logger, consumer, svc, cfg.ConsumerPollInterval),
		distribution: eventadapter.NewDistributionWorker(logger, svc, cfg.ScheduleInterval, cfg.RunDistributionOnStart),
		cleanupFn:    cleanup,
		embedWorkers: cfg.DatabaseURL == "",
	}, nil
}

func openStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DB_URL not set; using in-memory store seeded with the default global plan")
		repos := memory.NewRepositories()
		repos.Plans.Put(domain.DefaultPlanOverride())
		return storage{
			investments:  repos.Investments,
			participants: repos.Participants,
			rewards:      repos.Rewards,
			plans:        repos.Plans,
			batchRuns:    repos.BatchRuns,
			claims:       repos.Claims,
			eventDedup:   repos.EventDedup,
			outbox:       repos.Outbox,
			ready:        func() error { return nil },
			close:        func() {},
		}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return storage{}, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return storage{}, fmt.Errorf("gorm sql db: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return storage{}, fmt.Errorf("run migrations: %w", err)
	}
	repos := postgres.NewRepositories(pool)
	return storage{
		investments:  repos.Investments,
		participants: repos.Participants,
		rewards:      repos.Rewards,
		plans:        repos.Plans,
		batchRuns:    repos.BatchRuns,
		claims:       repos.Claims,
		eventDedup:   repos.EventDedup,
		outbox:       repos.Outbox,
		ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return sqlDB.PingContext(pingCtx)
		},
		close: func() { _ = sqlDB.Close() },
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 5)
	if r.embedWorkers {
		r.startWorkers(ctx, errCh)
	}
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunWorker drives the outbox relay, the sale event consumer and the
// distribution schedule until a signal arrives or one of them fails.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)
	r.startWorkers(ctx, errCh)

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("worker failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) startWorkers(ctx context.Context, errCh chan<- error) {
	run := func(name string, fn func(context.Context) error) {
		go func() {
			r.logger.Info("worker started", "worker", name)
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}
	run("outbox", r.outbox.Run)
	run("consumer", r.consumer.Run)
	run("distribution", r.distribution.Run)
}
