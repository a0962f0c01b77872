package fiber

import (
	"time"

	"user-analytics-service/internal/events/core/domain"
)

// CreateEventRequest is one event as received on the wire.
// @Description Event creation payload
type CreateEventRequest struct {
	UserID    string         `json:"userId" example:"uid_111111"`
	SessionID string         `json:"sessionId" example:"sid_111111"`
	Event     string         `json:"event" example:"page_view"`
	Timestamp string         `json:"timestamp" example:"2025-07-31T00:00:00Z"`
	Metadata  map[string]any `json:"metadata"`
}

type CreateEventsBatchRequest struct {
	Events []CreateEventRequest `json:"events"`
}

type EventResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_event"`
	Message string `json:"message,omitempty"`
}

func toEventResponse(e *domain.Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Event:     e.EventType,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Metadata:  e.Metadata,
	}
}

func toEventResponses(events []*domain.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = toEventResponse(e)
	}
	return out
}
