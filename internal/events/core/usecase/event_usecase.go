package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-analytics-service/internal/events/core/domain"
	"user-analytics-service/internal/events/core/ports"
)

var (
	ErrInvalidTimestamp = errors.New("timestamp must be a valid RFC3339 instant")
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrEmptyBatch       = errors.New("batch must contain at least one event")
)

type EventUseCase struct {
	store ports.EventStorePort
}

func NewEventUseCase(store ports.EventStorePort) *EventUseCase {
	return &EventUseCase{store: store}
}

// CreateEventInput carries one event as received at the boundary; Timestamp
// is the wire representation (RFC3339) and is parsed here, not in handlers.
type CreateEventInput struct {
	UserID    string
	SessionID string
	EventType string
	Timestamp string
	Metadata  map[string]any
}

func (uc *EventUseCase) CreateEvent(ctx context.Context, in CreateEventInput) (*domain.Event, error) {
	e, err := buildEvent(in)
	if err != nil {
		return nil, err
	}
	return uc.store.InsertEvent(ctx, e)
}

// CreateEventsBatch validates every input before any insert so a malformed
// record fails the batch without touching the store.
func (uc *EventUseCase) CreateEventsBatch(ctx context.Context, inputs []CreateEventInput) ([]*domain.Event, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}

	events := make([]*domain.Event, len(inputs))
	for i, in := range inputs {
		e, err := buildEvent(in)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events[i] = e
	}

	return uc.store.InsertEvents(ctx, events)
}

// FilterInput is the constrained ad-hoc filter exposed to clients. Only
// these fields are supported; nothing is passed through to the store raw.
type FilterInput struct {
	UserID    string
	EventType string
	From      time.Time
	To        time.Time
}

func (uc *EventUseCase) FindEventsByFilter(ctx context.Context, in FilterInput) ([]*domain.Event, error) {
	if !in.From.IsZero() && !in.To.IsZero() && in.From.After(in.To) {
		return nil, ErrInvalidTimeRange
	}

	return uc.store.FindEvents(ctx, ports.Filter{
		UserID:    in.UserID,
		EventType: in.EventType,
		From:      in.From,
		To:        in.To,
	})
}

func (uc *EventUseCase) FindEventsByDateRange(ctx context.Context, start, end time.Time) ([]*domain.Event, error) {
	if start.IsZero() || end.IsZero() || start.After(end) {
		return nil, ErrInvalidTimeRange
	}

	return uc.store.FindEvents(ctx, ports.Filter{From: start, To: end})
}

func buildEvent(in CreateEventInput) (*domain.Event, error) {
	if in.Timestamp == "" {
		return nil, ErrInvalidTimestamp
	}
	ts, err := time.Parse(time.RFC3339, in.Timestamp)
	if err != nil {
		return nil, ErrInvalidTimestamp
	}

	return domain.NewEvent(in.UserID, in.SessionID, in.EventType, ts, in.Metadata)
}
