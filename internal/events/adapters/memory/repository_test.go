package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"user-analytics-service/internal/events/core/domain"
	"user-analytics-service/internal/events/core/ports"
)

var t0 = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func insert(t *testing.T, r *EventRepository, userID, sessionID, eventType string, ts time.Time, md domain.Metadata) *domain.Event {
	t.Helper()
	e, err := domain.NewEvent(userID, sessionID, eventType, ts, md)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	stored, err := r.InsertEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	return stored
}

func TestInsertEvent_AssignsID(t *testing.T) {
	r := NewEventRepository()

	stored := insert(t, r, "u1", "s1", "click", t0, nil)
	if stored.ID == "" {
		t.Fatalf("expected assigned id")
	}
}

func TestInsertEvents_RejectedRecordFailsWholeBatch(t *testing.T) {
	r := NewEventRepository()

	ok, _ := domain.NewEvent("u1", "s1", "click", t0, nil)
	bad := &domain.Event{UserID: "", SessionID: "s1", EventType: "click", Timestamp: t0}

	_, err := r.InsertEvents(context.Background(), []*domain.Event{ok, bad})
	if !errors.Is(err, ports.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	events, err := r.FindEvents(context.Background(), ports.Filter{})
	if err != nil {
		t.Fatalf("FindEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no partial writes, got %d events", len(events))
	}
}

func TestFindEvents_Filter(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "click", t0, nil)
	insert(t, r, "u1", "s1", "page_view", t0.Add(time.Hour), nil)
	insert(t, r, "u2", "s2", "click", t0.Add(2*time.Hour), nil)

	events, err := r.FindEvents(context.Background(), ports.Filter{UserID: "u1", EventType: "click"})
	if err != nil {
		t.Fatalf("FindEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "click" {
		t.Fatalf("unexpected result: %+v", events)
	}

	events, err = r.FindEvents(context.Background(), ports.Filter{From: t0.Add(30 * time.Minute), To: t0.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("FindEvents: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "page_view" {
		t.Fatalf("range filter failed: %+v", events)
	}
}

func TestAggregate_GroupAndCount(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "click", t0, nil)
	insert(t, r, "u1", "s1", "click", t0.Add(time.Minute), nil)
	insert(t, r, "u1", "s1", "signup", t0.Add(2*time.Minute), nil)

	rows, err := r.Aggregate(context.Background(), []ports.Stage{
		ports.GroupStage{
			By:           ports.FieldEventType,
			Accumulators: []ports.Accumulator{{Name: "count", Op: ports.OpCount}},
		},
		ports.SortStage{Keys: []ports.SortKey{{Field: "count", Desc: true}}},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][ports.GroupKey] != "click" || rows[0]["count"] != int64(2) {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
}

func TestAggregate_PreGroupSortFixesPushOrder(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "page_view", t0.Add(time.Minute), domain.Metadata{"url": "/b"})
	insert(t, r, "u1", "s1", "page_view", t0, domain.Metadata{"url": "/a"})

	rows, err := r.Aggregate(context.Background(), []ports.Stage{
		ports.SortStage{Keys: []ports.SortKey{{Field: ports.FieldSessionID}, {Field: ports.FieldTimestamp}}},
		ports.GroupStage{
			By: ports.FieldSessionID,
			Accumulators: []ports.Accumulator{
				{Name: "urls", Op: ports.OpPushField, Field: ports.FieldMetaURL},
			},
		},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	urls, ok := rows[0]["urls"].([]any)
	if !ok || len(urls) != 2 || urls[0] != "/a" || urls[1] != "/b" {
		t.Fatalf("unexpected urls: %v", rows[0]["urls"])
	}
}

func TestAggregate_PushSkipsMissingField(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "page_view", t0, domain.Metadata{"url": "/a"})
	insert(t, r, "u1", "s1", "page_view", t0.Add(time.Minute), nil)

	rows, err := r.Aggregate(context.Background(), []ports.Stage{
		ports.GroupStage{
			By: ports.FieldSessionID,
			Accumulators: []ports.Accumulator{
				{Name: "urls", Op: ports.OpPushField, Field: ports.FieldMetaURL},
			},
		},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	urls := rows[0]["urls"].([]any)
	if len(urls) != 1 || urls[0] != "/a" {
		t.Fatalf("expected missing url skipped, got %v", urls)
	}
}

func TestAggregate_MissingGroupKeyBucketsUnderNil(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "click", t0, domain.Metadata{"device": "mobile"})
	insert(t, r, "u1", "s1", "click", t0.Add(time.Minute), nil)

	rows, err := r.Aggregate(context.Background(), []ports.Stage{
		ports.GroupStage{
			By:           ports.FieldMetaDev,
			Accumulators: []ports.Accumulator{{Name: "total", Op: ports.OpCount}},
		},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(rows))
	}

	var sawNil bool
	for _, row := range rows {
		if row[ports.GroupKey] == nil {
			sawNil = true
			if row["total"] != int64(1) {
				t.Fatalf("unexpected nil-bucket total: %v", row["total"])
			}
		}
	}
	if !sawNil {
		t.Fatalf("expected a nil bucket for the missing device")
	}
}

func TestAggregate_MinMaxOverTimestamps(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "click", t0.Add(time.Hour), nil)
	insert(t, r, "u1", "s1", "click", t0, nil)

	rows, err := r.Aggregate(context.Background(), []ports.Stage{
		ports.GroupStage{
			By: ports.FieldSessionID,
			Accumulators: []ports.Accumulator{
				{Name: "minTime", Op: ports.OpMin, Field: ports.FieldTimestamp},
				{Name: "maxTime", Op: ports.OpMax, Field: ports.FieldTimestamp},
			},
		},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	minTime := rows[0]["minTime"].(time.Time)
	maxTime := rows[0]["maxTime"].(time.Time)
	if !minTime.Equal(t0) || !maxTime.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected min/max: %v / %v", minTime, maxTime)
	}
}

func TestAggregate_UnknownFieldIsQueryError(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "click", t0, nil)

	_, err := r.Aggregate(context.Background(), []ports.Stage{
		ports.GroupStage{
			By:           "metadata.browser",
			Accumulators: []ports.Accumulator{{Name: "total", Op: ports.OpCount}},
		},
	})
	if !errors.Is(err, ports.ErrQuery) {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestAggregate_ProjectKeepsListedFields(t *testing.T) {
	r := NewEventRepository()
	insert(t, r, "u1", "s1", "click", t0, nil)

	rows, err := r.Aggregate(context.Background(), []ports.Stage{
		ports.GroupStage{
			By: ports.FieldSessionID,
			Accumulators: []ports.Accumulator{
				{Name: "count", Op: ports.OpCount},
				{Name: "minTime", Op: ports.OpMin, Field: ports.FieldTimestamp},
			},
		},
		ports.ProjectStage{Fields: []string{ports.GroupKey, "count"}},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if _, ok := rows[0]["minTime"]; ok {
		t.Fatalf("expected minTime dropped by projection")
	}
	if rows[0]["count"] != int64(1) {
		t.Fatalf("expected count kept, got %v", rows[0])
	}
}
