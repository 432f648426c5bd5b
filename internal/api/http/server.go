package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/api/http/handlers"
	"github.com/spec-kit/intranet/internal/auth"
	"github.com/spec-kit/intranet/internal/config"
	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/observability"
	"github.com/spec-kit/intranet/internal/persistence"
	"github.com/spec-kit/intranet/internal/repository"
	"github.com/spec-kit/intranet/internal/service"
)

// ServerDeps bundles what the development API server is built from.
// Postgres and Redis may be disabled.
type ServerDeps struct {
	Name       string
	Version    string
	Timeout    time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Dispatcher events.Dispatcher
	Tokens     *auth.TokenManager
}

// NewApp assembles the fiber application.
func NewApp(deps ServerDeps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.NewInMemoryDispatcher()
	}
	deps.Redis.Subscribe(deps.Dispatcher)

	var (
		resourceRepo repository.ResourceRepository
		historyRepo  repository.HistoryRepository
	)
	if deps.Postgres.Enabled() {
		resourceRepo = repository.NewResourceRepository(deps.Postgres.Pool)
		historyRepo = repository.NewHistoryRepository(deps.Postgres.Pool)
	} else {
		mem := repository.NewMemoryStore()
		resourceRepo = mem.Resources()
		historyRepo = mem.History()
	}

	resourceService := service.NewResourceService(service.ResourceDependencies{
		ResourceRepo: resourceRepo,
		HistoryRepo:  historyRepo,
		Dispatcher:   deps.Dispatcher,
		Logger:       deps.Logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               deps.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, deps.Logger, deps.Metrics, deps.Timeout)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(deps.Name, deps.Version, deps.Postgres, deps.Redis),
		Resources:      resourceService,
		AuthMiddleware: auth.NewAuthMiddleware(deps.Tokens),
		Metrics:        deps.Metrics,
	})
	return app
}

// NewEmbedded builds a memory-backed server and a token for talking to it
// in-process.
func NewEmbedded(cfg config.AuthConfig, logger *zap.Logger, metrics *observability.Metrics) (*fiber.App, string, error) {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	token, _, err := tokens.GenerateToken(cfg.DevUserID, cfg.DevUserName, auth.RoleAdmin)
	if err != nil {
		return nil, "", err
	}
	app := NewApp(ServerDeps{
		Name:    "intranet-embedded",
		Version: "embedded",
		Logger:  logger,
		Metrics: metrics,
		Tokens:  tokens,
	})
	return app, token, nil
}
