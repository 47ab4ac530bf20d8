package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/signhub/envelope-engine/internal/config"
	"github.com/signhub/envelope-engine/internal/handler"
	"github.com/signhub/envelope-engine/internal/infra/postgresql"
	"github.com/signhub/envelope-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/signhub/envelope-engine/internal/infra/redis"
	"github.com/signhub/envelope-engine/internal/observability"
	"github.com/signhub/envelope-engine/internal/queue"
	"github.com/signhub/envelope-engine/internal/repository"
	"github.com/signhub/envelope-engine/internal/sender"
	"github.com/signhub/envelope-engine/internal/service"
	"github.com/signhub/envelope-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	scheduleInterval  = 15 * time.Second
	staleScanInterval = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
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

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	publisher := queue.NewRabbitMQPublisher(mq)
	consumer := queue.NewRabbitMQConsumer(mq, cfg.WorkerConcurrency, logger)

	batchRepo := repository.NewGormBatchRepo(db)
	listRepo := repository.NewGormListRepo(db)
	templateRepo := repository.NewGormTemplateRepo(db)
	envelopeRepo := repository.NewGormEnvelopeRepo(db)
	resultRepo := repository.NewGormResultRepo(db)
	uow := repository.NewGormUnitOfWork(db)

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	batchLock, err := infraredis.NewBatchLock(rdb, cfg.BatchAttemptTimeout+30*time.Second)
	if err != nil {
		logger.Fatal("batch lock initialization failed", zap.Error(err))
	}

	deliverySender, err := sender.NewGatewayDeliverySender(cfg.DeliveryGatewayURL)
	if err != nil {
		logger.Fatal("delivery sender initialization failed", zap.Error(err))
	}

	materializer, err := service.NewMaterializer(templateRepo, envelopeRepo)
	if err != nil {
		logger.Fatal("materializer initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	orchestrator, err := service.NewOrchestrator(
		batchRepo, listRepo, resultRepo, uow, materializer, deliverySender, rateLimiter, logger,
	)
	if err != nil {
		logger.Fatal("orchestrator initialization failed", zap.Error(err))
	}
	orchestrator.SetMetrics(metrics)

	bulkSendService, err := service.NewBulkSendService(batchRepo, listRepo, publisher, cfg.BatchMaxAttempts, logger)
	if err != nil {
		logger.Fatal("bulk send service initialization failed", zap.Error(err))
	}

	workerService, err := service.NewWorkerService(
		batchRepo, orchestrator, consumer, batchLock, cfg.WorkerConcurrency, cfg.BatchAttemptTimeout, logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}
	workerService.SetMetrics(metrics)

	scheduleScanner, err := service.NewScheduleScanner(batchRepo, publisher, scheduleInterval, 0, logger)
	if err != nil {
		logger.Fatal("schedule scanner initialization failed", zap.Error(err))
	}

	staleScanner, err := service.NewStaleBatchScanner(
		batchRepo, publisher, staleScanInterval, cfg.BatchAttemptTimeout+staleScanInterval, 0, logger,
	)
	if err != nil {
		logger.Fatal("stale batch scanner initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "envelope-engine",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterBulkSendRoutes(app, bulkSendService); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("envelope-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down http server")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	g.Go(func() error {
		return workerService.Start(groupCtx)
	})

	g.Go(func() error {
		return scheduleScanner.Start(groupCtx)
	})

	g.Go(func() error {
		return staleScanner.Start(groupCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("envelope-engine terminated", zap.Error(err))
	}

	logger.Info("envelope-engine stopped")
}
