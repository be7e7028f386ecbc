package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tonelift/api/internal/events"
	"github.com/tonelift/api/pkg/response"
)

const defaultEventLimit = 50

type EventsHandler struct {
	logger *events.Logger
}

func NewEventsHandler(logger *events.Logger) *EventsHandler {
	return &EventsHandler{logger: logger}
}

// Recent handles GET /api/events/recent
// @Summary      Recent classification events
// @Description  List the most recent job outcome and feedback events, newest first
// @Tags         Events
// @Produce      json
// @Param        limit query int false "Maximum number of events" default(50)
// @Success      200 {array} model.ClassificationEvent
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/events/recent [get]
func (h *EventsHandler) Recent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultEventLimit)
	return response.OK(c, h.logger.Recent(limit))
}
