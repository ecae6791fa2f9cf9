package main

import (
	"context"
	"fmt"
	"time"

	authcore "github.com/NordCoder/Gatekeeper/internal/auth"
	config "github.com/NordCoder/Gatekeeper/internal/config/api-gateway"
	"github.com/NordCoder/Gatekeeper/internal/domain/user"
	"github.com/NordCoder/Gatekeeper/internal/repository/kafka"
	pg "github.com/NordCoder/Gatekeeper/internal/repository/postgres"
	"github.com/NordCoder/Gatekeeper/internal/services/api-gateway/auth"
	"go.uber.org/zap"
)

type authDeps struct {
	uc     *auth.Usecase
	guard  *auth.Guard
	closer func() error
}

func initEvents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (user.EventPublisher, func() error) {
	if !cfg.Kafka.Enable {
		return kafka.NopEvents{}, func() error { return nil }
	}
	if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, kafka.TopicSpec{Name: cfg.Kafka.Topic, MaxWait: 5 * time.Second}, logger); err != nil {
		logger.Warn("kafka topic not ensured", zap.Error(err))
	}
	p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	logger.Info("account events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	return kafka.NewAccountEvents(p, logger), p.Close
}

func initAuth(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *pg.DB) (*authDeps, error) {
	codec, err := authcore.NewCodec(authcore.CodecConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	users := pg.NewUserRepo(db)
	ledger := pg.NewTokenLedgerRepo(db)
	events, closeEvents := initEvents(ctx, cfg, logger)

	uc, err := auth.NewUseCase(users, ledger, authcore.NewHasher(cfg.Auth.BcryptCost), codec, auth.Config{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		Events:            events,
		Logger:            logger.With(zap.String("component", "auth")),
	})
	if err != nil {
		_ = closeEvents()
		return nil, err
	}
	guard := auth.NewGuard(uc, users, ledger, pg.NewTransactor(db, logger), auth.GuardOpts{
		Events: events,
		Logger: logger.With(zap.String("component", "guard")),
	})

	if cfg.Auth.BootstrapAdminEmail != "" && cfg.Auth.BootstrapAdminPassword != "" {
		id, created, err := uc.BootstrapAdmin(ctx, auth.BootstrapAccount{
			Username: cfg.Auth.BootstrapAdminUsername,
			Email:    cfg.Auth.BootstrapAdminEmail,
			Password: cfg.Auth.BootstrapAdminPassword,
		})
		if err != nil {
			_ = closeEvents()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info("bootstrap admin ready", zap.Int64("user_id", id))
		}
	}
	return &authDeps{uc: uc, guard: guard, closer: closeEvents}, nil
}
