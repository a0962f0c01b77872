package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"user-analytics-service/internal/events/core/domain"
	"user-analytics-service/internal/events/core/ports"
)

// EventRepository is an in-memory EventStorePort. It backs tests and the
// memory dev backend, and executes pipelines with the same semantics the
// mongo adapter gets from the server.
type EventRepository struct {
	mu     sync.RWMutex
	events []*domain.Event
}

func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

var _ ports.EventStorePort = (*EventRepository)(nil)

func (r *EventRepository) InsertEvent(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}
	if e == nil || e.UserID == "" || e.SessionID == "" || e.EventType == "" {
		return nil, fmt.Errorf("%w: rejected record", ports.ErrPersistence)
	}

	stored := *e
	stored.ID = uuid.NewString()

	r.mu.Lock()
	r.events = append(r.events, &stored)
	r.mu.Unlock()

	out := stored
	return &out, nil
}

func (r *EventRepository) InsertEvents(ctx context.Context, events []*domain.Event) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	// Validate first so a rejected record fails the whole batch.
	for i, e := range events {
		if e == nil || e.UserID == "" || e.SessionID == "" || e.EventType == "" {
			return nil, fmt.Errorf("%w: rejected record %d", ports.ErrPersistence, i)
		}
	}

	stored := make([]*domain.Event, len(events))
	out := make([]*domain.Event, len(events))
	for i, e := range events {
		c := *e
		c.ID = uuid.NewString()
		stored[i] = &c
		o := c
		out[i] = &o
	}

	r.mu.Lock()
	r.events = append(r.events, stored...)
	r.mu.Unlock()

	return out, nil
}

func (r *EventRepository) FindEvents(ctx context.Context, f ports.Filter) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Event
	for _, e := range r.events {
		if matches(e, f) {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *EventRepository) Aggregate(ctx context.Context, pipeline []ports.Stage) ([]ports.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	r.mu.RLock()
	rows := make([]ports.Row, len(r.events))
	for i, e := range r.events {
		rows[i] = eventRow(e)
	}
	r.mu.RUnlock()

	var err error
	for _, stage := range pipeline {
		switch s := stage.(type) {
		case ports.MatchStage:
			rows = matchRows(rows, s.Filter)
		case ports.SortStage:
			rows, err = sortRows(rows, s.Keys)
		case ports.GroupStage:
			rows, err = groupRows(rows, s)
		case ports.ProjectStage:
			rows = projectRows(rows, s.Fields)
		default:
			err = fmt.Errorf("%w: unsupported stage %T", ports.ErrQuery, stage)
		}
		if err != nil {
			return nil, err
		}
	}

	return rows, nil
}

func matches(e *domain.Event, f ports.Filter) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

func eventRow(e *domain.Event) ports.Row {
	return ports.Row{
		ports.FieldUserID:    e.UserID,
		ports.FieldSessionID: e.SessionID,
		ports.FieldEventType: e.EventType,
		ports.FieldTimestamp: e.Timestamp,
		"metadata":           e.Metadata,
	}
}

// fieldValue resolves a pipeline field path against a row. The bool is false
// when the field is absent from the row (distinct from being unknown).
func fieldValue(row ports.Row, field string) (any, bool, error) {
	switch field {
	case ports.FieldUserID, ports.FieldSessionID, ports.FieldEventType, ports.FieldTimestamp:
		v, ok := row[field]
		return v, ok, nil
	case ports.FieldMetaURL, ports.FieldMetaDev:
		md, ok := row["metadata"].(domain.Metadata)
		if !ok {
			return nil, false, nil
		}
		key := "url"
		if field == ports.FieldMetaDev {
			key = "device"
		}
		s, ok := md.GetString(key)
		if !ok {
			return nil, false, nil
		}
		return s, true, nil
	default:
		// Post-group rows carry accumulator fields directly.
		if v, ok := row[field]; ok {
			return v, true, nil
		}
		return nil, false, fmt.Errorf("%w: unknown field %q", ports.ErrQuery, field)
	}
}

func matchRows(rows []ports.Row, f ports.Filter) []ports.Row {
	var out []ports.Row
	for _, row := range rows {
		userID, _ := row[ports.FieldUserID].(string)
		eventType, _ := row[ports.FieldEventType].(string)
		ts, _ := row[ports.FieldTimestamp].(time.Time)

		if f.UserID != "" && userID != f.UserID {
			continue
		}
		if f.EventType != "" && eventType != f.EventType {
			continue
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && ts.After(f.To) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func sortRows(rows []ports.Row, keys []ports.SortKey) ([]ports.Row, error) {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, _, errA := fieldValue(rows[i], k.Field)
			b, _, errB := fieldValue(rows[j], k.Field)
			if errA != nil && sortErr == nil {
				sortErr = errA
			}
			if errB != nil && sortErr == nil {
				sortErr = errB
			}
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return rows, sortErr
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case int64:
		bv, _ := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		bv, _ := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case nil:
		if b == nil {
			return 0
		}
		return -1
	default:
		return 0
	}
}

func groupRows(rows []ports.Row, s ports.GroupStage) ([]ports.Row, error) {
	type bucket struct {
		key     any
		members []ports.Row
	}

	var order []string
	buckets := map[string]*bucket{}

	for _, row := range rows {
		key, present, err := fieldValue(row, s.By)
		if err != nil {
			return nil, err
		}
		if !present {
			key = nil
		}
		// Group identity is the rendered key; nil renders distinctly.
		id := fmt.Sprintf("%T:%v", key, key)
		b, ok := buckets[id]
		if !ok {
			b = &bucket{key: key}
			buckets[id] = b
			order = append(order, id)
		}
		b.members = append(b.members, row)
	}

	out := make([]ports.Row, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		row := ports.Row{ports.GroupKey: b.key}
		for _, acc := range s.Accumulators {
			v, err := applyAccumulator(b.members, acc)
			if err != nil {
				return nil, err
			}
			row[acc.Name] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func applyAccumulator(members []ports.Row, acc ports.Accumulator) (any, error) {
	switch acc.Op {
	case ports.OpCount:
		return int64(len(members)), nil

	case ports.OpMin, ports.OpMax:
		var best any
		for _, m := range members {
			v, present, err := fieldValue(m, acc.Field)
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (acc.Op == ports.OpMin && c < 0) || (acc.Op == ports.OpMax && c > 0) {
				best = v
			}
		}
		return best, nil

	case ports.OpPushField:
		// Records missing the field contribute nothing, matching $push.
		out := []any{}
		for _, m := range members {
			v, present, err := fieldValue(m, acc.Field)
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
			out = append(out, v)
		}
		return out, nil

	case ports.OpPushEvent:
		out := []any{}
		for _, m := range members {
			out = append(out, ports.Row{
				ports.FieldEventType: m[ports.FieldEventType],
				ports.FieldTimestamp: m[ports.FieldTimestamp],
				"metadata":           m["metadata"],
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unsupported accumulator %d", ports.ErrQuery, acc.Op)
	}
}

func projectRows(rows []ports.Row, fields []string) []ports.Row {
	out := make([]ports.Row, len(rows))
	for i, row := range rows {
		p := ports.Row{}
		for _, f := range fields {
			if v, ok := row[f]; ok {
				p[f] = v
			}
		}
		out[i] = p
	}
	return out
}
