package main

import (
	"fmt"
	"log"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/config"
	"github.com/frostvault/frostvault/internal/logging"
	"github.com/frostvault/frostvault/internal/tasks"
	"github.com/frostvault/frostvault/service"
	"github.com/frostvault/frostvault/storage"
)

func main() {
	cfg, err := config.ReadConfig("config")
	if err != nil {
		log.Fatalf("could not read config: %v", err)
	}

	blockStorage, err := storage.NewBlockStorage(cfg)
	if err != nil {
		log.Fatalf("could not connect to block storage: %v", err)
	}

	sdClient, err := statsd.New(fmt.Sprintf("%s:%s", cfg.Server.StatsdHost, cfg.Server.StatsdPort))
	if err != nil {
		log.Fatalf("could not create statsd client: %v", err)
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
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueReceipts: 1,
			},
		},
	)

	logging.Logger.WithFields(logrus.Fields{
		"redis": redisAddr,
	}).Info("Starting worker")

	worker := service.NewReceiptWorker(cfg, sdClient, blockStorage)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeReceiptArchive, worker.HandleReceiptArchive)

	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run worker: %v", err)
	}
}
