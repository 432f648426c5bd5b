package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intranet/internal/api/dto"
	"github.com/spec-kit/intranet/internal/persistence"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness. Dependencies that are not configured are reported
// as disabled and do not fail the probe.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	switch {
	case !h.postgres.Enabled():
		depStatus["postgres"] = "disabled"
	case h.postgres.Ping(ctx) != nil:
		depStatus["postgres"] = "unreachable"
		ready = false
	default:
		depStatus["postgres"] = "ok"
	}

	switch {
	case h.redis == nil:
		depStatus["redis"] = "disabled"
	case h.redis.Ping(ctx) != nil:
		depStatus["redis"] = "unreachable"
		ready = false
	default:
		depStatus["redis"] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
		Detail: "one or more dependencies unavailable",
		Code:   "DEPENDENCY_UNAVAILABLE",
	})
}
