package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/campaignkit/drip-engine/internal/config"
	"github.com/campaignkit/drip-engine/internal/handler"
	"github.com/campaignkit/drip-engine/internal/infra/postgresql"
	"github.com/campaignkit/drip-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/campaignkit/drip-engine/internal/infra/redis"
	"github.com/campaignkit/drip-engine/internal/lock"
	"github.com/campaignkit/drip-engine/internal/observability"
	"github.com/campaignkit/drip-engine/internal/provider"
	"github.com/campaignkit/drip-engine/internal/queue"
	"github.com/campaignkit/drip-engine/internal/quiet"
	"github.com/campaignkit/drip-engine/internal/ratelimit"
	"github.com/campaignkit/drip-engine/internal/render"
	"github.com/campaignkit/drip-engine/internal/repository"
	"github.com/campaignkit/drip-engine/internal/service"
	"github.com/campaignkit/drip-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	enrollments := repository.NewGormEnrollmentRepo(db)
	campaigns := repository.NewGormCampaignRepo(db)
	contacts := repository.NewGormContactRepo(db)
	watches := repository.NewGormWatchRepo(db)
	dispatches := repository.NewGormDispatchLogRepo(db)

	// Redis centralizes send spacing and the tick lock across
	// instances. Without it both fall back to process-local state,
	// which only holds for a single instance.
	var (
		rdb     *goredis.Client
		locker  lock.Locker
		limiter ratelimit.RateLimiter
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		locker, err = infraredis.NewRedisLocker(rdb)
		if err != nil {
			logger.Fatal("redis locker initialization failed", zap.Error(err))
		}
		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.MessagesPerSecond)
		if err != nil {
			logger.Fatal("redis rate limiter initialization failed", zap.Error(err))
		}
	} else {
		logger.Warn("REDIS_URL not set; using process-local rate limiter and tick lock")
		locker = lock.NewLocalLocker()
		limiter, err = ratelimit.NewLocalLimiter(cfg.MessagesPerSecond)
		if err != nil {
			logger.Fatal("local rate limiter initialization failed", zap.Error(err))
		}
	}

	quietScheduler, err := quiet.NewScheduler(quiet.Window{
		StartHour: cfg.QuietStartHour,
		EndHour:   cfg.QuietEndHour,
	}, cfg.MinLeadTime())
	if err != nil {
		logger.Fatal("quiet-hours scheduler initialization failed", zap.Error(err))
	}

	channel, err := provider.NewWebhookSMSChannel(cfg.ProviderURL)
	if err != nil {
		logger.Fatal("sms provider client initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	tickService, err := service.NewTickService(
		enrollments, campaigns, contacts, dispatches,
		channel, limiter, locker, quietScheduler, render.NewTemplateRenderer(),
		cfg.WorkerConcurrency, cfg.ClaimTTL(), cfg.TickBudget(),
		logger,
	)
	if err != nil {
		logger.Fatal("tick service initialization failed", zap.Error(err))
	}
	tickService.SetMetrics(metrics)
	tickService.SetDefaultSender(cfg.DefaultSenderID)

	watcherService, err := service.NewWatcherService(
		watches, contacts, campaigns, enrollments, quietScheduler, logger,
	)
	if err != nil {
		logger.Fatal("watcher service initialization failed", zap.Error(err))
	}
	watcherService.SetMetrics(metrics)

	enrollmentService, err := service.NewEnrollmentService(
		enrollments, campaigns, contacts, watches, quietScheduler, logger,
	)
	if err != nil {
		logger.Fatal("enrollment service initialization failed", zap.Error(err))
	}

	// The broker pipeline is optional; without it, delivery callbacks are
	// folded into the dispatch log inline.
	var (
		rabbit       *queue.RabbitMQ
		statusSink   handler.StatusSink
		statusWorker *service.StatusWorker
	)
	if cfg.RabbitMQURL != "" {
		rabbit, err = queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer rabbit.Close()

		publisher := queue.NewRabbitMQPublisher(rabbit)
		statusSink, err = service.NewStatusPublisher(publisher, logger)
		if err != nil {
			logger.Fatal("status publisher initialization failed", zap.Error(err))
		}

		consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
		statusWorker, err = service.NewStatusWorker(consumer, dispatches, cfg.WorkerConcurrency, logger)
		if err != nil {
			logger.Fatal("status worker initialization failed", zap.Error(err))
		}
	} else {
		statusSink, err = service.NewDirectStatusApplier(dispatches, logger)
		if err != nil {
			logger.Fatal("status applier initialization failed", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	healthChecks := []handler.HealthCheck{
		{Name: "postgres", Check: sqlDB.PingContext},
	}
	if rdb != nil {
		healthChecks = append(healthChecks, handler.HealthCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}
	handler.RegisterHealthRoutes(app, healthChecks...)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterTickRoutes(app, tickService, watcherService, cfg.CronSecret, logger); err != nil {
		logger.Fatal("tick route registration failed", zap.Error(err))
	}
	if err := handler.RegisterEnrollmentRoutes(app, enrollmentService); err != nil {
		logger.Fatal("enrollment route registration failed", zap.Error(err))
	}
	if err := handler.RegisterCallbackRoutes(app, statusSink, logger); err != nil {
		logger.Fatal("callback route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("drip-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	if statusWorker != nil {
		g.Go(func() error {
			return statusWorker.Start(ctx)
		})
	}

	if cfg.TickInterval() > 0 {
		loop := service.NewTickLoop(tickService, cfg.TickInterval(), cfg.TickLimit, logger)
		g.Go(func() error {
			return loop.Start(ctx)
		})
	}

	if cfg.WatchInterval() > 0 {
		loop := service.NewWatcherLoop(watcherService, cfg.WatchInterval(), logger)
		g.Go(func() error {
			return loop.Start(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
