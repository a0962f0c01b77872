package usecase

import (
	"context"
	"errors"
	"sort"

	"user-analytics-service/internal/analytics/core/domain"
)

var ErrUserIDRequired = errors.New("userId is required")

// AnalyticsEngine is the slice of the engine this facade needs.
type AnalyticsEngine interface {
	CountByType(ctx context.Context, userID string) ([]domain.EventTypeCount, error)
	SessionDurations(ctx context.Context, userID string) ([]domain.SessionDuration, error)
	SessionTimelines(ctx context.Context, userID string) ([]domain.SessionTimeline, error)
	CountByDevice(ctx context.Context, userID string) ([]domain.DeviceCount, error)
	CountByPage(ctx context.Context, userID string) ([]domain.PageCount, error)
	TopPages(ctx context.Context, userID string) ([]domain.TopPage, error)
	NavigationFlows(ctx context.Context, userID string) ([]domain.NavigationFlow, error)
}

// GetAnalyticsUseCase exposes one operation per analytics question. It
// validates identifiers, delegates to the engine and pins result order
// where the engine leaves it open.
type GetAnalyticsUseCase struct {
	engine AnalyticsEngine
}

func NewGetAnalyticsUseCase(engine AnalyticsEngine) *GetAnalyticsUseCase {
	return &GetAnalyticsUseCase{engine: engine}
}

// GetEventsCountByType counts all events per type across users.
func (uc *GetAnalyticsUseCase) GetEventsCountByType(ctx context.Context) ([]domain.EventTypeCount, error) {
	return uc.engine.CountByType(ctx, "")
}

// GetEventsCountByTypePerUser counts one user's events per type.
func (uc *GetAnalyticsUseCase) GetEventsCountByTypePerUser(ctx context.Context, userID string) ([]domain.EventTypeCount, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return uc.engine.CountByType(ctx, userID)
}

func (uc *GetAnalyticsUseCase) GetSessionDurations(ctx context.Context, userID string) ([]domain.SessionDuration, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	durations, err := uc.engine.SessionDurations(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(durations, func(i, j int) bool {
		return durations[i].SessionID < durations[j].SessionID
	})
	return durations, nil
}

func (uc *GetAnalyticsUseCase) GetSessionTimelines(ctx context.Context, userID string) ([]domain.SessionTimeline, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return uc.engine.SessionTimelines(ctx, userID)
}

func (uc *GetAnalyticsUseCase) GetDeviceCounts(ctx context.Context, userID string) ([]domain.DeviceCount, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return uc.engine.CountByDevice(ctx, userID)
}

func (uc *GetAnalyticsUseCase) GetPageCounts(ctx context.Context, userID string) ([]domain.PageCount, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return uc.engine.CountByPage(ctx, userID)
}

func (uc *GetAnalyticsUseCase) GetTopPages(ctx context.Context, userID string) ([]domain.TopPage, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return uc.engine.TopPages(ctx, userID)
}

func (uc *GetAnalyticsUseCase) GetNavigationFlows(ctx context.Context, userID string) ([]domain.NavigationFlow, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return uc.engine.NavigationFlows(ctx, userID)
}
