package fiber

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"user-analytics-service/internal/analytics/core/domain"
	"user-analytics-service/internal/analytics/core/usecase"
)

type GetAnalyticsUseCase interface {
	GetEventsCountByType(ctx context.Context) ([]domain.EventTypeCount, error)
	GetEventsCountByTypePerUser(ctx context.Context, userID string) ([]domain.EventTypeCount, error)
	GetSessionDurations(ctx context.Context, userID string) ([]domain.SessionDuration, error)
	GetSessionTimelines(ctx context.Context, userID string) ([]domain.SessionTimeline, error)
	GetDeviceCounts(ctx context.Context, userID string) ([]domain.DeviceCount, error)
	GetPageCounts(ctx context.Context, userID string) ([]domain.PageCount, error)
	GetTopPages(ctx context.Context, userID string) ([]domain.TopPage, error)
	GetNavigationFlows(ctx context.Context, userID string) ([]domain.NavigationFlow, error)
}

type AnalyticsHandler struct {
	uc GetAnalyticsUseCase
}

func NewAnalyticsHandler(uc GetAnalyticsUseCase) *AnalyticsHandler {
	return &AnalyticsHandler{uc: uc}
}

// GetEventsCountByType godoc
// @Summary Count events by type across all users
// @Tags Analytics
// @Produce json
// @Success 200 {array} EventTypeCountResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/event-types [get]
func (h *AnalyticsHandler) GetEventsCountByType(c *fiber.Ctx) error {
	counts, err := h.uc.GetEventsCountByType(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toEventTypeCounts(counts))
}

// GetEventsCountByTypePerUser godoc
// @Summary Count one user's events by type
// @Tags Analytics
// @Produce json
// @Param userId query string true "User id"
// @Success 200 {array} EventTypeCountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/event-types-per-user [get]
func (h *AnalyticsHandler) GetEventsCountByTypePerUser(c *fiber.Ctx) error {
	counts, err := h.uc.GetEventsCountByTypePerUser(c.UserContext(), c.Query("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toEventTypeCounts(counts))
}

// GetSessionDurations godoc
// @Summary Session durations in hours for one user
// @Tags Analytics
// @Produce json
// @Param userId query string true "User id"
// @Success 200 {array} SessionDurationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/session-durations [get]
func (h *AnalyticsHandler) GetSessionDurations(c *fiber.Ctx) error {
	durations, err := h.uc.GetSessionDurations(c.UserContext(), c.Query("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSessionDurations(durations))
}

// GetSessionTimelines godoc
// @Summary Per-session event timelines for one user
// @Tags Analytics
// @Produce json
// @Param userId query string true "User id"
// @Success 200 {array} SessionTimelineResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/session-timelines [get]
func (h *AnalyticsHandler) GetSessionTimelines(c *fiber.Ctx) error {
	timelines, err := h.uc.GetSessionTimelines(c.UserContext(), c.Query("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSessionTimelines(timelines))
}

// GetDeviceCounts godoc
// @Summary Event counts per device for one user
// @Tags Analytics
// @Produce json
// @Param userId query string true "User id"
// @Success 200 {array} DeviceCountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/devices [get]
func (h *AnalyticsHandler) GetDeviceCounts(c *fiber.Ctx) error {
	counts, err := h.uc.GetDeviceCounts(c.UserContext(), c.Query("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toDeviceCounts(counts))
}

// GetPageCounts godoc
// @Summary Event counts per page for one user
// @Tags Analytics
// @Produce json
// @Param userId query string true "User id"
// @Success 200 {array} PageCountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/pages [get]
func (h *AnalyticsHandler) GetPageCounts(c *fiber.Ctx) error {
	counts, err := h.uc.GetPageCounts(c.UserContext(), c.Query("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toPageCounts(counts))
}

// GetTopPages godoc
// @Summary Most viewed pages for one user
// @Tags Analytics
// @Produce json
// @Param userId query string true "User id"
// @Success 200 {array} TopPageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/top-pages [get]
func (h *AnalyticsHandler) GetTopPages(c *fiber.Ctx) error {
	pages, err := h.uc.GetTopPages(c.UserContext(), c.Query("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTopPages(pages))
}

// GetNavigationFlows godoc
// @Summary Ordered per-session URL sequences for one user
// @Tags Analytics
// @Produce json
// @Param userId query string true "User id"
// @Success 200 {array} NavigationFlowResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/navigation-flows [get]
func (h *AnalyticsHandler) GetNavigationFlows(c *fiber.Ctx) error {
	flows, err := h.uc.GetNavigationFlows(c.UserContext(), c.Query("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toNavigationFlows(flows))
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usecase.ErrUserIDRequired):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_query",
			Message: err.Error(),
		})
	default:
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: "internal_server_error",
		})
	}
}
