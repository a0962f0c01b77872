package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"user-analytics-service/internal/analytics/core/domain"
	eventdomain "user-analytics-service/internal/events/core/domain"
	"user-analytics-service/internal/events/core/ports"
)

// ErrShape marks a store result row missing an expected field or carrying
// the wrong type. Rows are never patched with guessed values.
var ErrShape = errors.New("malformed result row")

const msPerHour = 3_600_000

// Engine turns pipeline results into typed analytics views. It is stateless:
// every call fetches fresh rows through the store port, so concurrent queries
// and inserts need no coordination here. Read isolation is whatever the store
// provides per call (read committed, no cross-call snapshot).
type Engine struct {
	store ports.EventStorePort
}

func New(store ports.EventStorePort) *Engine {
	return &Engine{store: store}
}

// CountByType counts events per event type, optionally restricted to one
// user. Result is sorted by count descending, ties by event type ascending.
// The store's native sort does not pin tie order, so the slice is re-sorted
// after shaping.
func (e *Engine) CountByType(ctx context.Context, userID string) ([]domain.EventTypeCount, error) {
	var pipeline []ports.Stage
	if userID != "" {
		pipeline = append(pipeline, ports.MatchStage{Filter: ports.Filter{UserID: userID}})
	}
	pipeline = append(pipeline,
		ports.GroupStage{
			By:           ports.FieldEventType,
			Accumulators: []ports.Accumulator{{Name: "count", Op: ports.OpCount}},
		},
		ports.SortStage{Keys: []ports.SortKey{{Field: "count", Desc: true}}},
	)

	rows, err := e.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EventTypeCount, 0, len(rows))
	for _, row := range rows {
		eventType, err := rowString(row, ports.GroupKey)
		if err != nil {
			return nil, err
		}
		count, err := rowInt64(row, "count")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.EventTypeCount{EventType: eventType, Count: count})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EventType < out[j].EventType
	})
	return out, nil
}

// SessionDurations computes per-session durations in hours for one user.
// A single-event session has duration 0. Output order is unspecified here;
// the facade sorts by session id.
func (e *Engine) SessionDurations(ctx context.Context, userID string) ([]domain.SessionDuration, error) {
	pipeline := []ports.Stage{
		ports.MatchStage{Filter: ports.Filter{UserID: userID}},
		ports.GroupStage{
			By: ports.FieldSessionID,
			Accumulators: []ports.Accumulator{
				{Name: "minTime", Op: ports.OpMin, Field: ports.FieldTimestamp},
				{Name: "maxTime", Op: ports.OpMax, Field: ports.FieldTimestamp},
			},
		},
	}

	rows, err := e.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SessionDuration, 0, len(rows))
	for _, row := range rows {
		sessionID, err := rowString(row, ports.GroupKey)
		if err != nil {
			return nil, err
		}
		minTime, err := rowTime(row, "minTime")
		if err != nil {
			return nil, err
		}
		maxTime, err := rowTime(row, "maxTime")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SessionDuration{
			SessionID:     sessionID,
			UserID:        userID,
			DurationHours: float64(maxTime.Sub(minTime).Milliseconds()) / msPerHour,
		})
	}
	return out, nil
}

// SessionTimelines groups one user's events per session in store scan order.
// The entries are deliberately not re-sorted by time: this is the raw session
// log. NavigationFlows is the view that requests chronological order.
func (e *Engine) SessionTimelines(ctx context.Context, userID string) ([]domain.SessionTimeline, error) {
	pipeline := []ports.Stage{
		ports.MatchStage{Filter: ports.Filter{UserID: userID}},
		ports.GroupStage{
			By:           ports.FieldSessionID,
			Accumulators: []ports.Accumulator{{Name: "events", Op: ports.OpPushEvent}},
		},
	}

	rows, err := e.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SessionTimeline, 0, len(rows))
	for _, row := range rows {
		sessionID, err := rowString(row, ports.GroupKey)
		if err != nil {
			return nil, err
		}
		entries, err := rowTimelineEntries(row, "events")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SessionTimeline{SessionID: sessionID, Events: entries})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// CountByDevice counts one user's events per metadata.device. Events without
// a device land in the unknown bucket. Sorted by total descending, ties by
// device ascending.
func (e *Engine) CountByDevice(ctx context.Context, userID string) ([]domain.DeviceCount, error) {
	rows, err := e.countByMetadata(ctx, userID, "", ports.FieldMetaDev)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DeviceCount, len(rows))
	for i, row := range rows {
		out[i] = domain.DeviceCount{Device: row.key, Total: row.total}
	}
	return out, nil
}

// CountByPage counts one user's events per metadata.url, unknown bucket and
// ordering as CountByDevice.
func (e *Engine) CountByPage(ctx context.Context, userID string) ([]domain.PageCount, error) {
	rows, err := e.countByMetadata(ctx, userID, "", ports.FieldMetaURL)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PageCount, len(rows))
	for i, row := range rows {
		out[i] = domain.PageCount{Page: row.key, Total: row.total}
	}
	return out, nil
}

// TopPages counts a user's page_view events per URL, most viewed first,
// ties by page ascending.
func (e *Engine) TopPages(ctx context.Context, userID string) ([]domain.TopPage, error) {
	rows, err := e.countByMetadata(ctx, userID, "page_view", ports.FieldMetaURL)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TopPage, len(rows))
	for i, row := range rows {
		out[i] = domain.TopPage{Page: row.key, Views: row.total}
	}
	return out, nil
}

// NavigationFlows builds each session's URL sequence from the user's
// page_view events. The pre-group sort by (sessionId, timestamp) is what
// guarantees the sequences reflect true visit order; duplicates are kept.
func (e *Engine) NavigationFlows(ctx context.Context, userID string) ([]domain.NavigationFlow, error) {
	pipeline := []ports.Stage{
		ports.MatchStage{Filter: ports.Filter{UserID: userID, EventType: "page_view"}},
		ports.SortStage{Keys: []ports.SortKey{
			{Field: ports.FieldSessionID},
			{Field: ports.FieldTimestamp},
		}},
		ports.GroupStage{
			By: ports.FieldSessionID,
			Accumulators: []ports.Accumulator{
				{Name: "urls", Op: ports.OpPushField, Field: ports.FieldMetaURL},
			},
		},
	}

	rows, err := e.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	out := make([]domain.NavigationFlow, 0, len(rows))
	for _, row := range rows {
		sessionID, err := rowString(row, ports.GroupKey)
		if err != nil {
			return nil, err
		}
		urls, err := rowStrings(row, "urls")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.NavigationFlow{SessionID: sessionID, URLs: urls})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

type keyedCount struct {
	key   string
	total int64
}

func (e *Engine) countByMetadata(ctx context.Context, userID, eventType, field string) ([]keyedCount, error) {
	pipeline := []ports.Stage{
		ports.MatchStage{Filter: ports.Filter{UserID: userID, EventType: eventType}},
		ports.GroupStage{
			By:           field,
			Accumulators: []ports.Accumulator{{Name: "total", Op: ports.OpCount}},
		},
		ports.SortStage{Keys: []ports.SortKey{{Field: "total", Desc: true}}},
	}

	rows, err := e.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	out := make([]keyedCount, 0, len(rows))
	for _, row := range rows {
		key := domain.UnknownBucket
		if v, ok := row[ports.GroupKey]; ok && v != nil {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: field %q is not a string", ErrShape, ports.GroupKey)
			}
			key = s
		}
		total, err := rowInt64(row, "total")
		if err != nil {
			return nil, err
		}
		out = append(out, keyedCount{key: key, total: total})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].total != out[j].total {
			return out[i].total > out[j].total
		}
		return out[i].key < out[j].key
	})
	return out, nil
}

// aggregate runs the pipeline and re-checks the caller's deadline before any
// shaping happens: a cancelled query never returns partially shaped rows.
func (e *Engine) aggregate(ctx context.Context, pipeline []ports.Stage) ([]ports.Row, error) {
	rows, err := e.store.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func rowString(row ports.Row, field string) (string, error) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing field %q", ErrShape, field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q is not a string", ErrShape, field)
	}
	return s, nil
}

func rowInt64(row ports.Row, field string) (int64, error) {
	v, ok := row[field]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrShape, field)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: field %q is not numeric", ErrShape, field)
	}
}

func rowTime(row ports.Row, field string) (time.Time, error) {
	v, ok := row[field]
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("%w: missing field %q", ErrShape, field)
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: field %q is not a timestamp", ErrShape, field)
	}
	return t, nil
}

func rowStrings(row ports.Row, field string) ([]string, error) {
	v, ok := row[field]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrShape, field)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not a sequence", ErrShape, field)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %q contains a non-string entry", ErrShape, field)
		}
		out[i] = s
	}
	return out, nil
}

func rowTimelineEntries(row ports.Row, field string) ([]domain.TimelineEntry, error) {
	v, ok := row[field]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrShape, field)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not a sequence", ErrShape, field)
	}

	out := make([]domain.TimelineEntry, len(items))
	for i, item := range items {
		entry, ok := item.(ports.Row)
		if !ok {
			if m, isMap := item.(map[string]any); isMap {
				entry = ports.Row(m)
			} else {
				return nil, fmt.Errorf("%w: field %q contains a non-row entry", ErrShape, field)
			}
		}
		eventType, err := rowString(entry, ports.FieldEventType)
		if err != nil {
			return nil, err
		}
		ts, err := rowTime(entry, ports.FieldTimestamp)
		if err != nil {
			return nil, err
		}
		out[i] = domain.TimelineEntry{
			EventType: eventType,
			Timestamp: ts,
			Metadata:  entryMetadata(entry),
		}
	}
	return out, nil
}

func entryMetadata(entry ports.Row) eventdomain.Metadata {
	switch md := entry["metadata"].(type) {
	case eventdomain.Metadata:
		return md
	case map[string]any:
		return eventdomain.Metadata(md)
	default:
		return eventdomain.Metadata{}
	}
}
