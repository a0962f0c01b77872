package ports

import (
	"context"
	"errors"
	"time"

	"user-analytics-service/internal/events/core/domain"
)

var (
	// ErrPersistence wraps any backend failure. Callers decide retry policy;
	// adapters never retry and never downgrade a failure to an empty result.
	ErrPersistence = errors.New("persistence error")

	// ErrQuery marks a pipeline referencing an unknown field. It indicates a
	// bug in pipeline construction and is never degraded to an empty result.
	ErrQuery = errors.New("invalid query")
)

// Filter is the supported equality/range filter over stored events.
// Zero-value fields are not applied; the zero Filter matches all records.
type Filter struct {
	UserID    string
	EventType string
	From      time.Time
	To        time.Time
}

// IsZero reports whether no constraint is set.
func (f Filter) IsZero() bool {
	return f.UserID == "" && f.EventType == "" && f.From.IsZero() && f.To.IsZero()
}

// EventStorePort is the contract the core requires from a backing store.
type EventStorePort interface {
	// InsertEvent persists one event and returns it with the store-assigned ID.
	InsertEvent(ctx context.Context, e *domain.Event) (*domain.Event, error)

	// InsertEvents persists a batch all-or-nothing: if any record is rejected
	// the whole batch fails and nothing is kept.
	InsertEvents(ctx context.Context, events []*domain.Event) ([]*domain.Event, error)

	// FindEvents returns all events matching the filter, in insertion order.
	FindEvents(ctx context.Context, f Filter) ([]*domain.Event, error)

	// Aggregate executes a pipeline and returns the result rows. Group rows
	// carry the group key under "_id". Timestamps in rows are time.Time.
	Aggregate(ctx context.Context, pipeline []Stage) ([]Row, error)
}
