package main

import (
	"context"

	config "github.com/NordCoder/Gatekeeper/internal/config/api-gateway"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"go.uber.org/zap"
)

func initOTel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	o, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		return nil, err
	}
	if o.Enabled() {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTEL.OTLPEndpoint))
	}
	return o.Shutdown, nil
}
