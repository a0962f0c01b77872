package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"user-analytics-service/internal/events/core/domain"
	"user-analytics-service/internal/events/core/ports"
)

// EventRepository implements the event store contract on a Postgres events
// table (id uuid, user_id, session_id, event_type, event_time timestamptz,
// metadata jsonb).
type EventRepository struct {
	db DB
}

func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

var _ ports.EventStorePort = (*EventRepository)(nil)

const insertColumns = "id, user_id, session_id, event_type, event_time, metadata"

func (r *EventRepository) InsertEvent(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	out, err := r.InsertEvents(ctx, []*domain.Event{e})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// InsertEvents writes the batch as a single multi-row INSERT so it is
// all-or-nothing at the statement level.
func (r *EventRepository) InsertEvents(ctx context.Context, events []*domain.Event) ([]*domain.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	var (
		values []string
		args   []any
		out    = make([]*domain.Event, len(events))
	)
	for i, e := range events {
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
		}

		stored := *e
		stored.ID = uuid.NewString()
		out[i] = &stored

		base := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, stored.ID, e.UserID, e.SessionID, e.EventType, e.Timestamp.UTC(), metadataJSON)
	}

	query := fmt.Sprintf("INSERT INTO events (%s) VALUES %s", insertColumns, strings.Join(values, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	return out, nil
}

func (r *EventRepository) FindEvents(ctx context.Context, f ports.Filter) ([]*domain.Event, error) {
	where, args := whereClause(f)

	query := "SELECT " + insertColumns + " FROM events"
	if where != "" {
		query += " WHERE " + where
	}
	// Scan order here is event time; the table has no insertion-order column.
	query += " ORDER BY event_time, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e            domain.Event
			ts           time.Time
			metadataJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.EventType, &ts, &metadataJSON); err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
		}
		e.Timestamp = ts.UTC()

		md := domain.Metadata{}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &md); err != nil {
				return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
			}
		}
		e.Metadata = md
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	return out, nil
}

func (r *EventRepository) Aggregate(ctx context.Context, pipeline []ports.Stage) ([]ports.Row, error) {
	shape, err := parsePipeline(pipeline)
	if err != nil {
		return nil, err
	}

	query, args, err := shape.buildGroupQuery()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}
	defer rows.Close()

	var out []ports.Row
	for rows.Next() {
		row, err := scanGroupRow(rows, shape.group.Accumulators)
		if err != nil {
			return nil, err
		}
		if len(shape.project) > 0 {
			row = projectRow(row, shape.project)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	return out, nil
}

// scanGroupRow scans one result row in the column order buildGroupQuery
// emits: the group key first, then each accumulator.
func scanGroupRow(rows RowScanner, accs []ports.Accumulator) (ports.Row, error) {
	var key sql.NullString
	dest := []any{&key}

	counts := map[string]*int64{}
	times := map[string]*sql.NullTime{}
	blobs := map[string]*[]byte{}

	for _, acc := range accs {
		switch acc.Op {
		case ports.OpCount:
			v := new(int64)
			counts[acc.Name] = v
			dest = append(dest, v)
		case ports.OpMin, ports.OpMax:
			v := new(sql.NullTime)
			times[acc.Name] = v
			dest = append(dest, v)
		case ports.OpPushField, ports.OpPushEvent:
			v := new([]byte)
			blobs[acc.Name] = v
			dest = append(dest, v)
		}
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	row := ports.Row{}
	if key.Valid {
		row[ports.GroupKey] = key.String
	} else {
		row[ports.GroupKey] = nil
	}
	for name, v := range counts {
		row[name] = *v
	}
	for name, v := range times {
		if v.Valid {
			row[name] = v.Time.UTC()
		} else {
			row[name] = nil
		}
	}
	for _, acc := range accs {
		blob, ok := blobs[acc.Name]
		if !ok {
			continue
		}
		items, err := decodeAggArray(*blob, acc.Op == ports.OpPushEvent)
		if err != nil {
			return nil, err
		}
		row[acc.Name] = items
	}

	return row, nil
}

// decodeAggArray unpacks a jsonb_agg result. Event entries get their
// timestamp strings turned back into time.Time so aggregation rows look the
// same regardless of backend.
func decodeAggArray(blob []byte, eventEntries bool) ([]any, error) {
	if len(blob) == 0 {
		return []any{}, nil
	}

	var items []any
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}
	if !eventEntries {
		return items, nil
	}

	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := entry[ports.FieldTimestamp].(string); ok {
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp in aggregated row: %v", ports.ErrPersistence, err)
			}
			entry[ports.FieldTimestamp] = ts.UTC()
		}
		items[i] = entry
	}
	return items, nil
}

func projectRow(row ports.Row, fields []string) ports.Row {
	out := ports.Row{}
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}
