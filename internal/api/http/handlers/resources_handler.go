package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intranet/internal/api/dto"
	"github.com/spec-kit/intranet/internal/auth"
	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/service"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

// ResourcesHandler serves one kind's collection.
type ResourcesHandler struct {
	kind    domain.Kind
	service *service.ResourceService
}

// NewResourcesHandler constructs handler.
func NewResourcesHandler(resourceService *service.ResourceService, kind domain.Kind) *ResourcesHandler {
	return &ResourcesHandler{kind: kind, service: resourceService}
}

// List GET /{collection}.
func (h *ResourcesHandler) List(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext(), h.kind)
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse{Data: items})
}

// Get GET /{collection}/:id.
func (h *ResourcesHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	res, err := h.service.Get(c.UserContext(), h.kind, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse{Data: res})
}

// Create POST /{collection}.
func (h *ResourcesHandler) Create(c *fiber.Ctx) error {
	var req domain.Resource
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	res, err := h.service.Create(c.UserContext(), h.kind, auth.ActorName(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.DataResponse{Data: res, Message: "created"})
}

// Update PUT /{collection}/:id.
func (h *ResourcesHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var partial domain.Fields
	if err := c.BodyParser(&partial); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	res, err := h.service.Update(c.UserContext(), h.kind, id, auth.ActorName(c), partial)
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse{Data: res, Message: "updated"})
}

// Delete DELETE /{collection}/:id.
func (h *ResourcesHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), h.kind, id, auth.ActorName(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Transition PUT /{collection}/:id/:action.
func (h *ResourcesHandler) Transition(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	payload := domain.Fields{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return apperrors.NewBadRequest("invalid payload")
		}
	}
	res, err := h.service.Transition(c.UserContext(), h.kind, id, c.Params("action"), auth.ActorName(c), payload)
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse{Data: res, Message: "status updated"})
}

// History GET /{collection}/:id/history.
func (h *ResourcesHandler) History(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), h.kind, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse{Data: entries})
}

// AppendHistory POST /{collection}/:id/history.
func (h *ResourcesHandler) AppendHistory(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.AppendHistoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	entry, err := h.service.AppendHistory(c.UserContext(), h.kind, id, auth.ActorName(c), req.ToEntry())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.DataResponse{Data: entry})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewBadRequest("invalid id")
	}
	return id, nil
}
