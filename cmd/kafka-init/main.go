package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Gatekeeper/internal/config/api-gateway"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"github.com/NordCoder/Gatekeeper/internal/repository/kafka"
	"go.uber.org/zap"
)

// kafka-init creates the account events topic ahead of the api-gateway.
func main() {
	cfgPath := flag.String("config", "config/api-gateway.yaml", "path to the YAML config")
	partitions := flag.Int("partitions", 3, "partitions for the events topic")
	rf := flag.Int("rf", 1, "replication factor")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}
	logger, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Kafka.Enable {
		logger.Info("kafka disabled, nothing to do")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	err = kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, kafka.TopicSpec{
		Name:              cfg.Kafka.Topic,
		NumPartitions:     *partitions,
		ReplicationFactor: *rf,
		MaxWait:           30 * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("ensure topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}
	logger.Info("kafka-init ok", zap.String("topic", cfg.Kafka.Topic))
}
