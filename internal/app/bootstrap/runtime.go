package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	authadapter "github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/auth"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/events"
	httpadapter "github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/memory"
	metricsadapter "github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	cleanupFn  func(context.Context)
}

type repositorySet struct {
	Experiments ports.ExperimentRepository
	Campaigns   ports.CampaignReader
	Partners    ports.PartnerRepository
	Earnings    ports.EarningsRepository
	Payouts     ports.PayoutRepository
	Idempotency ports.IdempotencyRepository
	EventDedup  ports.EventDedupRepository
	Outbox      ports.OutboxRepository
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var (
		closers []io.Closer
		checks  []func(context.Context) error
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	repos, storageCheck, err := openStorage(ctx, cfg, &closers)
	if err != nil {
		cleanup()
		return nil, err
	}
	if storageCheck != nil {
		checks = append(checks, storageCheck)
	}

	var cacheStore ports.Cache = memory.NewCache()
	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			cleanup()
			return nil, redisErr
		}
		closers = append(closers, redisClient)
		cacheStore = cache.NewRedisCache(redisClient)
		checks = append(checks, func(ctx context.Context) error {
			return redisPing(ctx, redisClient)
		})
	} else {
		logger.WarnContext(ctx, "redis not configured, using in-process cache")
	}

	var tokens ports.TokenVerifier = authadapter.DevVerifier{}
	if cfg.JWTPublicKeyPEM != "" {
		verifier, jwtErr := authadapter.NewJWTVerifier(cfg.JWTPublicKeyPEM, cfg.JWTIssuer)
		if jwtErr != nil {
			cleanup()
			return nil, jwtErr
		}
		tokens = verifier
	} else {
		logger.WarnContext(ctx, "jwt public key not configured, accepting development tokens")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metricsadapter.NewRecorder(registry)

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:            cfg.ServiceID,
			DefaultCurrency:        cfg.DefaultCurrency,
			BaseUnitRate:           cfg.BaseUnitRate,
			MinimumPayoutThreshold: cfg.MinimumPayoutThreshold,
			SummaryCacheTTL:        cfg.SummaryCacheTTL,
			IdempotencyTTL:         cfg.IdempotencyTTL,
			EventDedupTTL:          cfg.EventDedupTTL,
			PayoutRequestsPerHour:  cfg.PayoutRequestsPerHour,
			StorageTimeout:         cfg.StorageTimeout,
		},
		Experiments: repos.Experiments,
		Campaigns:   repos.Campaigns,
		Partners:    repos.Partners,
		Earnings:    repos.Earnings,
		Payouts:     repos.Payouts,
		Idempotency: repos.Idempotency,
		EventDedup:  repos.EventDedup,
		Cache:       cacheStore,
		Tokens:      tokens,
		Metrics:     recorder,
	})

	handler := httpadapter.NewHandler(service, httpadapter.Options{
		Metrics:   recorder,
		Gatherer:  registry,
		Readiness: readiness(checks),
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumerAdapter := eventadapter.Consumer(eventadapter.NewNoopConsumer(logger))
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, topicRoutes(cfg))
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(
			cfg.KafkaBrokers,
			cfg.KafkaConsumerGroup,
			[]string{cfg.KafkaTopicDeliveryMetrics},
		)
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			closers = append(closers, kafkaConsumer)
		}
	}
	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxMaxRetries)
	consumer := eventadapter.NewConsumerWorker(logger, consumerAdapter, service, cfg.ConsumerPollInterval)

	logger.InfoContext(ctx, "runtime ready",
		"storage_driver", cfg.StorageDriver,
		"redis", cfg.RedisURL != "",
		"kafka_brokers", len(cfg.KafkaBrokers),
	)
	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    service,
		httpServer: httpServer,
		grpcServer: grpcServer,
		health:     healthSrv,
		outbox:     outbox,
		consumer:   consumer,
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

func openStorage(ctx context.Context, cfg Config, closers *[]io.Closer) (repositorySet, func(context.Context) error, error) {
	if cfg.StorageDriver == StorageDriverMemory {
		repos := memory.NewRepositories()
		if cfg.SeedDemoData {
			seedDemoData(repos)
		}
		return repositorySet{
			Experiments: repos.Experiments,
			Campaigns:   repos.Campaigns,
			Partners:    repos.Partners,
			Earnings:    repos.Earnings,
			Payouts:     repos.Payouts,
			Idempotency: repos.Idempotency,
			EventDedup:  repos.EventDedup,
			Outbox:      repos.Outbox,
		}, nil, nil
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return repositorySet{}, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return repositorySet{}, nil, err
	}
	*closers = append(*closers, sqlDB)
	if err := postgres.RunMigrations(ctx, db); err != nil {
		return repositorySet{}, nil, err
	}
	repos := postgres.NewRepositories(db)
	return repositorySet(repos), sqlDB.PingContext, nil
}

// seedDemoData loads one advertiser campaign and one partner so the memory
// driver can be exercised end to end.
func seedDemoData(repos *memory.Repositories) {
	repos.Campaigns.Put(domain.Campaign{
		CampaignID:   "camp-demo",
		AdvertiserID: "adv-demo",
		CreativeIDs:  []string{"cr-demo-1", "cr-demo-2", "cr-demo-3"},
	})
	repos.Partners.Put(domain.Partner{
		PartnerID:        "partner-demo",
		UserID:           "user-partner-demo",
		CommissionRate:   decimal.RequireFromString("0.30"),
		PaymentMethodIDs: []string{"pm-demo"},
	})
}

func topicRoutes(cfg Config) map[string]string {
	return map[string]string{
		domain.EventExperimentCreated:        cfg.KafkaTopicExperiments,
		domain.EventExperimentStatusChanged:  cfg.KafkaTopicExperiments,
		domain.EventExperimentCompleted:      cfg.KafkaTopicExperiments,
		domain.EventEarningsPeriodRecorded:   cfg.KafkaTopicEarnings,
		domain.EventEarningsPeriodTransition: cfg.KafkaTopicEarnings,
		domain.EventPayoutRequested:          cfg.KafkaTopicPayouts,
		domain.EventPayoutStatusChanged:      cfg.KafkaTopicPayouts,
	}
}

func readiness(checks []func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func redisPing(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return err
	}
	errCh := make(chan error, 4)

	if r.cfg.StorageDriver == StorageDriverMemory {
		// Memory state is process-local, so the workers share the API process.
		r.startWorkers(ctx, errCh)
	}
	go func() {
		r.logger.InfoContext(ctx, "http server listening", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.health.Shutdown()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)
	r.startWorkers(ctx, errCh)

	select {
	case <-ctx.Done():
		r.cleanupFn(context.Background())
		return nil
	case err := <-errCh:
		r.cleanupFn(context.Background())
		return err
	}
}

func (r *Runtime) startWorkers(ctx context.Context, errCh chan<- error) {
	go func() {
		if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
}
