package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/david/grant-advisor/internal/api"
	"github.com/david/grant-advisor/internal/app"
	"github.com/david/grant-advisor/internal/auth"
	"github.com/david/grant-advisor/internal/config"
	"github.com/david/grant-advisor/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfgFile := flag.String("config", "", "config file (default is grant-advisor.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(config.New(), *cfgFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("creating a logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, logger)
	if err != nil {
		logger.Fatal("jwt secret", zap.Error(err))
	}
	adminSecret := strings.TrimSpace(cfg.Auth.AdminSecret)
	if adminSecret == "" {
		if adminSecret, err = auth.RandomSecret(); err != nil {
			logger.Fatal("admin secret", zap.Error(err))
		}
		logger.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	}

	srv := api.NewServer(api.Options{
		Repo:        a.Store,
		Auth:        auth.NewService(a.Pool, tokens, logger),
		Tokens:      tokens,
		Ingester:    a.Pipeline,
		Advisor:     a.Advisor,
		TopN:        cfg.Matching.TopN,
		AdminSecret: adminSecret,
		CORSOrigins: strings.Split(cfg.Server.CORSOrigins, ","),
		Log:         logger,
	})

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
