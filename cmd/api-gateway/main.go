package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/Gatekeeper/internal/config/api-gateway"
	"github.com/NordCoder/Gatekeeper/internal/services/sweeper"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config/api-gateway.yaml", "path to the YAML config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting api-gateway", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	deps, err := initAuth(rootCtx, cfg, logger, db)
	if err != nil {
		logger.Fatal("auth init", zap.Error(err))
	}
	defer func() { _ = deps.closer() }()

	sweepCtx, stopSweep := context.WithCancel(rootCtx)
	sweepDone := make(chan struct{})
	if cfg.Sweep.Enable {
		r := sweeper.New(logger, deps.uc, sweeper.Config{Tick: cfg.Sweep.Tick, Timeout: cfg.Sweep.Timeout})
		go func() {
			defer close(sweepDone)
			_ = r.Run(sweepCtx)
		}()
	} else {
		close(sweepDone)
	}

	httpSrv, err := buildHTTPServer(cfg, logger, db, deps)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopSweep()
	<-sweepDone
	logger.Info("bye")
}
