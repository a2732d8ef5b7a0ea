package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"empire-mine/internal/app"
	"empire-mine/internal/core/config"
	"empire-mine/internal/core/logger"
	"empire-mine/internal/core/server"
)

// The user API and the admin API share one process, and therefore one
// in-memory user directory, so admin deposits are visible to activations.
func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log.Named("std"), zapcore.InfoLevel)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	reg := a.Registry()
	apiSrv := server.BuildServer(
		server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port), a.APIEngine(reg),
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)
	adminSrv := server.BuildServer(
		server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port), a.AdminEngine(reg),
		5*time.Second, 10*time.Second, 60*time.Second,
	)

	apiURL := server.HumanURL(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	adminURL := server.HumanURL(cfg.App.Admin.Host, cfg.App.Admin.Port)
	log.Info("empire mine starting",
		zap.String("api_v1", apiURL+"/api/v1"),
		zap.String("admin_v1", adminURL+"/admin/v1"),
		zap.String("health", apiURL+"/health"),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, apiSrv, log.Named("api"), 10*time.Second) })
	g.Go(func() error { return server.Run(gctx, adminSrv, log.Named("admin"), 10*time.Second) })
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return
	}
	log.Info("empire mine stopped gracefully")
}
