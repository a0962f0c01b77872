package domain

import (
	"errors"
	"time"
)

var ErrInvalidEvent = errors.New("invalid event")

// Metadata holds arbitrary per-event attributes. Only url and device are
// interpreted by the analytics views; everything else is carried opaquely.
type Metadata map[string]any

// GetString returns the metadata value for key if it is present and a string.
func (m Metadata) GetString(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Event is one logged user interaction. Events are immutable once stored;
// ID is assigned by the store on insert.
type Event struct {
	ID        string
	UserID    string
	SessionID string
	EventType string
	Timestamp time.Time
	Metadata  Metadata
}

// NewEvent validates the required fields and returns a ready-to-insert event.
func NewEvent(userID, sessionID, eventType string, timestamp time.Time, metadata Metadata) (*Event, error) {
	if userID == "" || sessionID == "" || eventType == "" {
		return nil, ErrInvalidEvent
	}
	if timestamp.IsZero() {
		return nil, ErrInvalidEvent
	}
	if metadata == nil {
		metadata = Metadata{}
	}

	return &Event{
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: timestamp.UTC(),
		Metadata:  metadata,
	}, nil
}
