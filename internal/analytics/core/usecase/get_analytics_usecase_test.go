package usecase_test

import (
	"context"
	"errors"
	"testing"

	"user-analytics-service/internal/analytics/core/domain"
	"user-analytics-service/internal/analytics/core/usecase"
)

// fakeEngine scripts engine responses per view.
type fakeEngine struct {
	countByTypeFn func(ctx context.Context, userID string) ([]domain.EventTypeCount, error)
	durationsFn   func(ctx context.Context, userID string) ([]domain.SessionDuration, error)

	lastUserID string
}

func (f *fakeEngine) CountByType(ctx context.Context, userID string) ([]domain.EventTypeCount, error) {
	f.lastUserID = userID
	if f.countByTypeFn != nil {
		return f.countByTypeFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeEngine) SessionDurations(ctx context.Context, userID string) ([]domain.SessionDuration, error) {
	f.lastUserID = userID
	if f.durationsFn != nil {
		return f.durationsFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeEngine) SessionTimelines(ctx context.Context, userID string) ([]domain.SessionTimeline, error) {
	f.lastUserID = userID
	return nil, nil
}

func (f *fakeEngine) CountByDevice(ctx context.Context, userID string) ([]domain.DeviceCount, error) {
	f.lastUserID = userID
	return nil, nil
}

func (f *fakeEngine) CountByPage(ctx context.Context, userID string) ([]domain.PageCount, error) {
	f.lastUserID = userID
	return nil, nil
}

func (f *fakeEngine) TopPages(ctx context.Context, userID string) ([]domain.TopPage, error) {
	f.lastUserID = userID
	return nil, nil
}

func (f *fakeEngine) NavigationFlows(ctx context.Context, userID string) ([]domain.NavigationFlow, error) {
	f.lastUserID = userID
	return nil, nil
}

func TestGetEventsCountByType_NoUserFilter(t *testing.T) {
	eng := &fakeEngine{
		countByTypeFn: func(ctx context.Context, userID string) ([]domain.EventTypeCount, error) {
			return []domain.EventTypeCount{{EventType: "click", Count: 3}}, nil
		},
	}
	uc := usecase.NewGetAnalyticsUseCase(eng)

	counts, err := uc.GetEventsCountByType(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.lastUserID != "" {
		t.Fatalf("global count must not filter by user, got %q", eng.lastUserID)
	}
	if len(counts) != 1 || counts[0].Count != 3 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestGetEventsCountByTypePerUser_RequiresUserID(t *testing.T) {
	uc := usecase.NewGetAnalyticsUseCase(&fakeEngine{})

	_, err := uc.GetEventsCountByTypePerUser(context.Background(), "")
	if !errors.Is(err, usecase.ErrUserIDRequired) {
		t.Fatalf("expected user id required, got %v", err)
	}
}

func TestGetSessionDurations_SortedBySessionID(t *testing.T) {
	eng := &fakeEngine{
		durationsFn: func(ctx context.Context, userID string) ([]domain.SessionDuration, error) {
			return []domain.SessionDuration{
				{SessionID: "s2", UserID: userID, DurationHours: 2},
				{SessionID: "s1", UserID: userID, DurationHours: 1},
			}, nil
		},
	}
	uc := usecase.NewGetAnalyticsUseCase(eng)

	durations, err := uc.GetSessionDurations(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if durations[0].SessionID != "s1" || durations[1].SessionID != "s2" {
		t.Fatalf("expected ascending session order, got %+v", durations)
	}
}

func TestUserScopedViews_RequireUserID(t *testing.T) {
	uc := usecase.NewGetAnalyticsUseCase(&fakeEngine{})
	ctx := context.Background()

	checks := map[string]func() error{
		"durations": func() error { _, err := uc.GetSessionDurations(ctx, ""); return err },
		"timelines": func() error { _, err := uc.GetSessionTimelines(ctx, ""); return err },
		"devices":   func() error { _, err := uc.GetDeviceCounts(ctx, ""); return err },
		"pages":     func() error { _, err := uc.GetPageCounts(ctx, ""); return err },
		"topPages":  func() error { _, err := uc.GetTopPages(ctx, ""); return err },
		"flows":     func() error { _, err := uc.GetNavigationFlows(ctx, ""); return err },
	}

	for name, call := range checks {
		if err := call(); !errors.Is(err, usecase.ErrUserIDRequired) {
			t.Fatalf("%s: expected user id required, got %v", name, err)
		}
	}
}
