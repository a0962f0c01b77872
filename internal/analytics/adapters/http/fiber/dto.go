package fiber

import (
	"time"

	"user-analytics-service/internal/analytics/core/domain"
)

type EventTypeCountResponse struct {
	Event string `json:"event" example:"page_view"`
	Count int64  `json:"count" example:"42"`
}

type SessionDurationResponse struct {
	SessionID     string  `json:"sessionId"`
	UserID        string  `json:"userId"`
	DurationHours float64 `json:"durationHours"`
}

type TimelineEntryResponse struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

type SessionTimelineResponse struct {
	SessionID string                  `json:"sessionId"`
	Events    []TimelineEntryResponse `json:"events"`
}

type DeviceCountResponse struct {
	Device string `json:"device" example:"mobile"`
	Total  int64  `json:"total" example:"7"`
}

type PageCountResponse struct {
	Page  string `json:"page" example:"/dashboard"`
	Total int64  `json:"total" example:"7"`
}

type TopPageResponse struct {
	Page  string `json:"page" example:"/home"`
	Views int64  `json:"views" example:"12"`
}

type NavigationFlowResponse struct {
	SessionID string   `json:"sessionId"`
	URLs      []string `json:"urls"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_query"`
	Message string `json:"message,omitempty"`
}

func toEventTypeCounts(in []domain.EventTypeCount) []EventTypeCountResponse {
	out := make([]EventTypeCountResponse, len(in))
	for i, c := range in {
		out[i] = EventTypeCountResponse{Event: c.EventType, Count: c.Count}
	}
	return out
}

func toSessionDurations(in []domain.SessionDuration) []SessionDurationResponse {
	out := make([]SessionDurationResponse, len(in))
	for i, d := range in {
		out[i] = SessionDurationResponse{
			SessionID:     d.SessionID,
			UserID:        d.UserID,
			DurationHours: d.DurationHours,
		}
	}
	return out
}

func toSessionTimelines(in []domain.SessionTimeline) []SessionTimelineResponse {
	out := make([]SessionTimelineResponse, len(in))
	for i, tl := range in {
		entries := make([]TimelineEntryResponse, len(tl.Events))
		for j, e := range tl.Events {
			entries[j] = TimelineEntryResponse{
				Event:     e.EventType,
				Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
				Metadata:  e.Metadata,
			}
		}
		out[i] = SessionTimelineResponse{SessionID: tl.SessionID, Events: entries}
	}
	return out
}

func toDeviceCounts(in []domain.DeviceCount) []DeviceCountResponse {
	out := make([]DeviceCountResponse, len(in))
	for i, d := range in {
		out[i] = DeviceCountResponse{Device: d.Device, Total: d.Total}
	}
	return out
}

func toPageCounts(in []domain.PageCount) []PageCountResponse {
	out := make([]PageCountResponse, len(in))
	for i, p := range in {
		out[i] = PageCountResponse{Page: p.Page, Total: p.Total}
	}
	return out
}

func toTopPages(in []domain.TopPage) []TopPageResponse {
	out := make([]TopPageResponse, len(in))
	for i, p := range in {
		out[i] = TopPageResponse{Page: p.Page, Views: p.Views}
	}
	return out
}

func toNavigationFlows(in []domain.NavigationFlow) []NavigationFlowResponse {
	out := make([]NavigationFlowResponse, len(in))
	for i, f := range in {
		out[i] = NavigationFlowResponse{SessionID: f.SessionID, URLs: f.URLs}
	}
	return out
}
