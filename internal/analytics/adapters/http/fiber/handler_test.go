package fiber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"user-analytics-service/internal/analytics/core/domain"
	"user-analytics-service/internal/analytics/core/usecase"
)

type fakeAnalyticsUseCase struct {
	countsFn    func(ctx context.Context) ([]domain.EventTypeCount, error)
	durationsFn func(ctx context.Context, userID string) ([]domain.SessionDuration, error)
	flowsFn     func(ctx context.Context, userID string) ([]domain.NavigationFlow, error)
}

func (f *fakeAnalyticsUseCase) GetEventsCountByType(ctx context.Context) ([]domain.EventTypeCount, error) {
	if f.countsFn != nil {
		return f.countsFn(ctx)
	}
	return nil, nil
}

func (f *fakeAnalyticsUseCase) GetEventsCountByTypePerUser(ctx context.Context, userID string) ([]domain.EventTypeCount, error) {
	if userID == "" {
		return nil, usecase.ErrUserIDRequired
	}
	return nil, nil
}

func (f *fakeAnalyticsUseCase) GetSessionDurations(ctx context.Context, userID string) ([]domain.SessionDuration, error) {
	if userID == "" {
		return nil, usecase.ErrUserIDRequired
	}
	if f.durationsFn != nil {
		return f.durationsFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeAnalyticsUseCase) GetSessionTimelines(ctx context.Context, userID string) ([]domain.SessionTimeline, error) {
	return nil, nil
}

func (f *fakeAnalyticsUseCase) GetDeviceCounts(ctx context.Context, userID string) ([]domain.DeviceCount, error) {
	return nil, nil
}

func (f *fakeAnalyticsUseCase) GetPageCounts(ctx context.Context, userID string) ([]domain.PageCount, error) {
	return nil, nil
}

func (f *fakeAnalyticsUseCase) GetTopPages(ctx context.Context, userID string) ([]domain.TopPage, error) {
	return nil, nil
}

func (f *fakeAnalyticsUseCase) GetNavigationFlows(ctx context.Context, userID string) ([]domain.NavigationFlow, error) {
	if userID == "" {
		return nil, usecase.ErrUserIDRequired
	}
	if f.flowsFn != nil {
		return f.flowsFn(ctx, userID)
	}
	return nil, nil
}

func setupTestApp(uc GetAnalyticsUseCase) *fiber.App {
	app := fiber.New()
	h := NewAnalyticsHandler(uc)

	app.Get("/analytics/event-types", h.GetEventsCountByType)
	app.Get("/analytics/event-types-per-user", h.GetEventsCountByTypePerUser)
	app.Get("/analytics/session-durations", h.GetSessionDurations)
	app.Get("/analytics/navigation-flows", h.GetNavigationFlows)

	return app
}

func doRequest(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, body
}

func TestGetEventsCountByType_OK(t *testing.T) {
	uc := &fakeAnalyticsUseCase{
		countsFn: func(ctx context.Context) ([]domain.EventTypeCount, error) {
			return []domain.EventTypeCount{
				{EventType: "click", Count: 3},
				{EventType: "page_view", Count: 2},
			}, nil
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, "/analytics/event-types")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out []EventTypeCountResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(out) != 2 || out[0].Event != "click" || out[0].Count != 3 {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestGetSessionDurations_MissingUserIs400(t *testing.T) {
	app := setupTestApp(&fakeAnalyticsUseCase{})

	resp, body := doRequest(t, app, "/analytics/session-durations")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var out ErrorResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if out.Error != "invalid_query" {
		t.Fatalf("unexpected error body: %+v", out)
	}
}

func TestGetSessionDurations_OK(t *testing.T) {
	uc := &fakeAnalyticsUseCase{
		durationsFn: func(ctx context.Context, userID string) ([]domain.SessionDuration, error) {
			return []domain.SessionDuration{{SessionID: "s1", UserID: userID, DurationHours: 1.5}}, nil
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, "/analytics/session-durations?userId=u1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out []SessionDurationResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].DurationHours != 1.5 || out[0].UserID != "u1" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestGetNavigationFlows_OK(t *testing.T) {
	uc := &fakeAnalyticsUseCase{
		flowsFn: func(ctx context.Context, userID string) ([]domain.NavigationFlow, error) {
			return []domain.NavigationFlow{{SessionID: "s1", URLs: []string{"/a", "/b"}}}, nil
		},
	}
	app := setupTestApp(uc)

	resp, body := doRequest(t, app, "/analytics/navigation-flows?userId=u1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out []NavigationFlowResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(out) != 1 || len(out[0].URLs) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestGetEventsCountByTypePerUser_MissingUserIs400(t *testing.T) {
	app := setupTestApp(&fakeAnalyticsUseCase{})

	resp, _ := doRequest(t, app, "/analytics/event-types-per-user")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
