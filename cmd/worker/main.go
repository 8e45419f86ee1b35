package main

import (
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/config"
	"github.com/vultisig/multisigner/internal/notifier"
	"github.com/vultisig/multisigner/internal/tasks"
)

func main() {
	cfg, err := config.ReadConfig("config")
	if err != nil {
		panic(err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Notifier.WebhookURL == "" {
		logger.Fatal("notifier.webhook_url is required")
	}

	redisAddr := cfg.Redis.Host + ":" + cfg.Redis.Port
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: cfg.Redis.User,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Logger:      logger,
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QUEUE_NAME: 10,
			},
		},
	)

	logger.WithFields(logrus.Fields{
		"redis":   redisAddr,
		"webhook": cfg.Notifier.WebhookURL,
	}).Info("Starting notification worker")

	sender := notifier.NewWebhookSender(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout, cfg.Notifier.MaxRetries, logger)

	// mux maps a type to a handler
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeProposalNotification, sender.HandleProposalNotification)

	if err := srv.Run(mux); err != nil {
		logger.Fatalf("could not run server: %v", err)
	}
}
