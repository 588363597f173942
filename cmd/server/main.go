package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/handler"
	"bankcore/internal/infrastructure/audit"
	"bankcore/internal/infrastructure/cache"
	"bankcore/internal/infrastructure/database"
	"bankcore/internal/infrastructure/mq"
	"bankcore/internal/job"
	"bankcore/internal/logger"
	"bankcore/internal/repository"
	"bankcore/internal/repository/memory"
	"bankcore/internal/service"
	"bankcore/pkg/idgen"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := make(map[string]handler.HealthCheck)

	var store repository.Store
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on exit")
		store = memory.New()
	} else {
		db, err := database.Open(&cfg.Database, log)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		checks["database"] = sqlDB.PingContext
		store = repository.NewGormStore(db)
	}

	eventSink := service.NewEventSink(store.Outbox(), cfg.Kafka.Topic, log)

	var transferOpts []service.TransferOption
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		transferOpts = append(transferOpts,
			service.WithIdempotencyLocker(service.NewRedisIdempotencyLocker(rdb, cfg.Business.IdempotencyLockTTL, log)))
	}

	var publisher job.Publisher = job.NewLogPublisher(log)
	if cfg.Kafka.Enabled {
		producer, err := mq.NewSyncProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		kafkaPublisher := mq.NewPublisher(producer, cfg.Kafka.Breaker, log)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	var auditWriter audit.Writer = audit.NewLogStore(log)
	if cfg.Mongo.Enabled {
		client, err := audit.ConnectMongo(ctx, &cfg.Mongo)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		mongoStore := audit.NewMongoStore(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Warn("audit indexes not created", zap.Error(err))
		}
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		auditWriter = mongoStore
	}

	transfers := service.NewTransferService(store, eventSink, eventSink, log, transferOpts...)
	accounts := service.NewAccountService(store, eventSink, eventSink, log)
	history := service.NewHistoryService(store, eventSink, cfg.Business, log)

	outboxSender := job.NewOutboxSender(store.Outbox(), store.Owners(), publisher, auditWriter, cfg.Business, log)
	go outboxSender.Start(ctx)

	outboxPurger := job.NewOutboxPurger(store.Outbox(), cfg.Business, log)
	go outboxPurger.Start(ctx)

	router, err := handler.SetupRouter(handler.NewHandler(transfers, accounts, history), cfg.Auth.JWTSecret, log, checks)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
