package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/api"
	"github.com/vultisig/multisigner/config"
	"github.com/vultisig/multisigner/internal/chain"
	"github.com/vultisig/multisigner/internal/notifier"
	"github.com/vultisig/multisigner/internal/scheduler"
	"github.com/vultisig/multisigner/service"
	"github.com/vultisig/multisigner/storage"
	"github.com/vultisig/multisigner/storage/memory"
	"github.com/vultisig/multisigner/storage/postgres"
)

func main() {
	cfg, err := config.ReadConfig("config")
	if err != nil {
		panic(err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Fatalf("invalid log level %q: %v", cfg.Server.LogLevel, err)
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sdClient, err := statsd.New(cfg.Datadog.Host + ":" + cfg.Datadog.Port)
	if err != nil {
		logger.Fatalf("fail to create statsd client: %v", err)
	}

	db := newDatabase(ctx, cfg, logger)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Errorf("fail to close database: %v", err)
		}
	}()

	if cfg.Chain.RestURL == "" {
		logger.Fatal("chain.rest_url is required")
	}
	chainClient := chain.NewClient(cfg.Chain.RestURL, cfg.Chain.Timeout, logger.WithField("service", "chain").Logger)

	opts := []service.Option{
		service.WithStatsd(sdClient),
		service.WithBalanceQuery(chainClient),
	}

	if cfg.Notifier.WebhookURL != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Username: cfg.Redis.User,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Errorf("fail to close asynq client: %v", err)
			}
		}()
		opts = append(opts, service.WithNotifier(notifier.NewQueueNotifier(client, int(cfg.Notifier.MaxRetries), cfg.Notifier.Timeout)))
	}

	if cfg.BlockStorage.Bucket != "" {
		blockStorage, err := storage.NewBlockStorage(*cfg, logger.WithField("service", "block-storage").Logger)
		if err != nil {
			logger.Fatalf("fail to create block storage: %v", err)
		}
		opts = append(opts, service.WithArchiver(blockStorage))
	}

	coordinator, err := service.NewCoordinator(db, chainClient, service.CoordinatorConfig{
		DefaultTimeout:     cfg.Coordinator.DefaultTimeout,
		ExecutionLease:     cfg.Coordinator.ExecutionLease,
		MaxConflictRetries: cfg.Coordinator.MaxConflictRetries,
		ExecuteAtThreshold: cfg.Coordinator.ExecuteAtThreshold,
	}, logger.WithField("service", "coordinator").Logger, opts...)
	if err != nil {
		logger.Fatalf("fail to create coordinator: %v", err)
	}

	sweeper, err := scheduler.NewSweeper(coordinator, cfg.Coordinator.SweepSchedule, logger.WithField("service", "sweeper").Logger)
	if err != nil {
		logger.Fatalf("fail to create expiry sweeper: %v", err)
	}
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if len(cfg.Server.AdminIdentities) == 0 {
		logger.Warn("server.admin_identities is empty, /admin routes are disabled")
	}
	server := api.NewServer(cfg.Server.Port, coordinator, service.NewAuthService(cfg.Server.JWTSecret),
		cfg.Server.AdminIdentities, sdClient, logger.WithField("service", "api").Logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("fail to shutdown server: %v", err)
		}
	}()
	if err := server.StartServer(); err != nil {
		logger.Errorf("server stopped: %v", err)
	}
}

// newDatabase opens postgres when a DSN is configured and falls back to the
// in-process backend otherwise, then puts the configured cache in front.
// config.Validate has already refused the process-local lru cache with a DSN.
func newDatabase(ctx context.Context, cfg *config.Config, logger *logrus.Logger) storage.DatabaseStorage {
	var db storage.DatabaseStorage
	if cfg.Database.DSN != "" {
		pg, err := postgres.NewPostgresBackend(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("fail to connect to database: %v", err)
		}
		db = pg
	} else {
		logger.Warn("database.dsn is empty, proposals are kept in memory")
		db = memory.NewBackend()
	}

	switch cfg.Cache.Kind {
	case "redis":
		redisStorage, err := storage.NewRedisStorage(*cfg)
		if err != nil {
			logger.Fatalf("fail to connect to redis: %v", err)
		}
		return storage.NewCachedStorage(db, redisStorage, logger.WithField("service", "cache").Logger)
	case "lru":
		return storage.NewCachedStorage(db, storage.NewLRUCache(cfg.Cache.Size, cfg.Cache.TTL), logger.WithField("service", "cache").Logger)
	default:
		return db
	}
}
