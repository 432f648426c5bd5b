package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/intranet/internal/api/http"
	"github.com/spec-kit/intranet/internal/auth"
	"github.com/spec-kit/intranet/internal/config"
	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/observability"
	"github.com/spec-kit/intranet/internal/persistence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	devToken, expiresAt, err := tokens.GenerateToken(cfg.Auth.DevUserID, cfg.Auth.DevUserName, auth.RoleAdmin)
	if err != nil {
		logger.Fatal("failed to issue development token", zap.Error(err))
	}

	app := httptransport.NewApp(httptransport.ServerDeps{
		Name:       cfg.App.Name,
		Version:    cfg.App.Version,
		Timeout:    cfg.Server.RequestTimeout(),
		Logger:     logger,
		Metrics:    observability.NewMetrics("intranet"),
		Postgres:   pg,
		Redis:      redis,
		Dispatcher: events.NewInMemoryDispatcher(),
		Tokens:     tokens,
	})

	logger.Info("development token issued",
		zap.String("user", cfg.Auth.DevUserName),
		zap.Time("expires_at", expiresAt),
		zap.String("token", devToken),
	)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
