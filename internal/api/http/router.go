package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/intranet/internal/api/http/handlers"
	"github.com/spec-kit/intranet/internal/auth"
	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/observability"
	"github.com/spec-kit/intranet/internal/service"
)

// APIPrefix is the path every resource collection is mounted under.
const APIPrefix = "/api"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Resources      *service.ResourceService
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Every kind gets the same set of routes
// under its collection path.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group(APIPrefix, cfg.AuthMiddleware.Handle)
	for _, kind := range domain.Kinds() {
		schema := domain.MustSchema(kind)
		h := handlers.NewResourcesHandler(cfg.Resources, kind)

		group := api.Group("/" + schema.Collection)
		group.Get("/", h.List)
		group.Post("/", h.Create)
		group.Get("/:id<int>", h.Get)
		group.Put("/:id<int>", h.Update)
		group.Delete("/:id<int>", auth.RequireRole(auth.RoleAdmin), h.Delete)
		group.Get("/:id<int>/history", h.History)
		group.Post("/:id<int>/history", h.AppendHistory)
		group.Put("/:id<int>/:action", h.Transition)
	}
}
