package domain

import (
	"time"

	eventdomain "user-analytics-service/internal/events/core/domain"
)

// UnknownBucket is the group key reported for events whose metadata lacks
// the grouping field. Such events are counted, never dropped.
const UnknownBucket = "unknown"

type EventTypeCount struct {
	EventType string
	Count     int64
}

type SessionDuration struct {
	SessionID     string
	UserID        string
	DurationHours float64
}

// TimelineEntry is one event of a session timeline, in store scan order.
type TimelineEntry struct {
	EventType string
	Timestamp time.Time
	Metadata  eventdomain.Metadata
}

type SessionTimeline struct {
	SessionID string
	Events    []TimelineEntry
}

type DeviceCount struct {
	Device string
	Total  int64
}

type PageCount struct {
	Page  string
	Total int64
}

type TopPage struct {
	Page  string
	Views int64
}

// NavigationFlow is the ordered URL sequence of one session. Repeated
// visits to the same URL are kept.
type NavigationFlow struct {
	SessionID string
	URLs      []string
}
