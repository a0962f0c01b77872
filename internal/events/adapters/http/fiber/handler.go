package fiber

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"user-analytics-service/internal/events/core/domain"
	"user-analytics-service/internal/events/core/usecase"
)

type EventUseCase interface {
	CreateEvent(ctx context.Context, in usecase.CreateEventInput) (*domain.Event, error)
	CreateEventsBatch(ctx context.Context, inputs []usecase.CreateEventInput) ([]*domain.Event, error)
	FindEventsByFilter(ctx context.Context, in usecase.FilterInput) ([]*domain.Event, error)
	FindEventsByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Event, error)
}

type EventHandler struct {
	uc EventUseCase
}

func NewEventHandler(uc EventUseCase) *EventHandler {
	return &EventHandler{uc: uc}
}

// CreateEvent godoc
// @Summary Create a single event
// @Tags Events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "Event payload"
// @Success 201 {object} EventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /events [post]
func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	var req CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}

	e, err := h.uc.CreateEvent(c.UserContext(), toCreateInput(req))
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(toEventResponse(e))
}

// CreateEventsBatch godoc
// @Summary Create a batch of events
// @Description All-or-nothing: a single malformed event rejects the batch
// @Tags Events
// @Accept json
// @Produce json
// @Param request body CreateEventsBatchRequest true "Batch payload"
// @Success 201 {array} EventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /events/batch [post]
func (h *EventHandler) CreateEventsBatch(c *fiber.Ctx) error {
	var req CreateEventsBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}

	inputs := make([]usecase.CreateEventInput, len(req.Events))
	for i, e := range req.Events {
		inputs[i] = toCreateInput(e)
	}

	events, err := h.uc.CreateEventsBatch(c.UserContext(), inputs)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(toEventResponses(events))
}

// GetEventsByFilter godoc
// @Summary List events matching a filter
// @Description Supports userId, event and timestamp range; empty filter returns all events
// @Tags Events
// @Produce json
// @Param userId query string false "User id"
// @Param event query string false "Event type"
// @Param from query string false "Range start (RFC3339)"
// @Param to query string false "Range end (RFC3339)"
// @Success 200 {array} EventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /events/filter [get]
func (h *EventHandler) GetEventsByFilter(c *fiber.Ctx) error {
	from, ok := parseOptionalTime(c.Query("from"))
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_from"})
	}
	to, ok := parseOptionalTime(c.Query("to"))
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_to"})
	}

	events, err := h.uc.FindEventsByFilter(c.UserContext(), usecase.FilterInput{
		UserID:    c.Query("userId"),
		EventType: c.Query("event"),
		From:      from,
		To:        to,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(toEventResponses(events))
}

// GetEventsByDateRange godoc
// @Summary List events in a date range
// @Tags Events
// @Produce json
// @Param start query string true "Range start (RFC3339)"
// @Param end query string true "Range end (RFC3339)"
// @Success 200 {array} EventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /events/date-range [get]
func (h *EventHandler) GetEventsByDateRange(c *fiber.Ctx) error {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_start"})
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_end"})
	}

	events, err := h.uc.FindEventsByDateRange(c.UserContext(), start, end)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(toEventResponses(events))
}

func toCreateInput(req CreateEventRequest) usecase.CreateEventInput {
	return usecase.CreateEventInput{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		EventType: req.Event,
		Timestamp: req.Timestamp,
		Metadata:  req.Metadata,
	}
}

func parseOptionalTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, usecase.ErrInvalidTimestamp),
		errors.Is(err, usecase.ErrInvalidTimeRange),
		errors.Is(err, usecase.ErrEmptyBatch):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_event",
			Message: err.Error(),
		})
	default:
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: "internal_server_error",
		})
	}
}
