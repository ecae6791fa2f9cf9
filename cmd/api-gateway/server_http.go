package main

import (
	"net/http"
	"time"

	config "github.com/NordCoder/Gatekeeper/internal/config/api-gateway"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	pg "github.com/NordCoder/Gatekeeper/internal/repository/postgres"
	"github.com/NordCoder/Gatekeeper/internal/services/api-gateway/auth"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, deps *authDeps) (*http.Server, error) {
	mux := runtime.NewServeMux()
	ctrl := auth.NewController(deps.uc, deps.guard, logger.With(zap.String("component", "http")))
	if err := ctrl.Register(mux); err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/api/", obs.HTTPHandler(mux, "api"))
	obs.MountOps(root, db.Ping)

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
