package main

import (
	"context"

	config "github.com/NordCoder/Gatekeeper/internal/config/api-gateway"
	pg "github.com/NordCoder/Gatekeeper/internal/repository/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pg.DB, error) {
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := db.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("db pool metrics not registered", zap.Error(err))
	}
	logger.Info("db connected", zap.Int32("max_conns", db.Pool.Config().MaxConns))
	return db, nil
}
