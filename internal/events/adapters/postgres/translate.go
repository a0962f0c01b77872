package postgres

import (
	"fmt"
	"strings"

	"user-analytics-service/internal/events/core/ports"
)

// fieldColumn maps pipeline field paths onto the events table.
var fieldColumn = map[string]string{
	ports.FieldUserID:    "user_id",
	ports.FieldSessionID: "session_id",
	ports.FieldEventType: "event_type",
	ports.FieldTimestamp: "event_time",
	ports.FieldMetaURL:   "metadata->>'url'",
	ports.FieldMetaDev:   "metadata->>'device'",
}

// pipelineShape is the one grouped-query shape this adapter executes:
// optional match, optional pre-group sort (fixes aggregation order),
// exactly one group, optional post-group sort, optional projection.
// That is the full shape the engine emits; anything else is ErrQuery.
type pipelineShape struct {
	match    ports.Filter
	hasMatch bool
	preSort  []ports.SortKey
	group    ports.GroupStage
	postSort []ports.SortKey
	project  []string
}

func parsePipeline(pipeline []ports.Stage) (*pipelineShape, error) {
	shape := &pipelineShape{}
	grouped := false

	for _, stage := range pipeline {
		switch s := stage.(type) {
		case ports.MatchStage:
			if grouped || shape.hasMatch {
				return nil, fmt.Errorf("%w: match stage must come first", ports.ErrQuery)
			}
			shape.match = s.Filter
			shape.hasMatch = true

		case ports.SortStage:
			for _, k := range s.Keys {
				if !grouped {
					if _, ok := fieldColumn[k.Field]; !ok {
						return nil, fmt.Errorf("%w: unknown sort field %q", ports.ErrQuery, k.Field)
					}
				}
			}
			if grouped {
				shape.postSort = s.Keys
			} else {
				shape.preSort = s.Keys
			}

		case ports.GroupStage:
			if grouped {
				return nil, fmt.Errorf("%w: multiple group stages", ports.ErrQuery)
			}
			if _, ok := fieldColumn[s.By]; !ok {
				return nil, fmt.Errorf("%w: unknown group field %q", ports.ErrQuery, s.By)
			}
			shape.group = s
			grouped = true

		case ports.ProjectStage:
			if !grouped {
				return nil, fmt.Errorf("%w: projection before group", ports.ErrQuery)
			}
			shape.project = s.Fields

		default:
			return nil, fmt.Errorf("%w: unsupported stage %T", ports.ErrQuery, stage)
		}
	}

	if !grouped {
		return nil, fmt.Errorf("%w: pipeline has no group stage", ports.ErrQuery)
	}
	return shape, nil
}

// buildGroupQuery renders the shape as one grouped SELECT. Column order is
// "_id" first, then the accumulators in declaration order, which is also the
// scan order the repository relies on.
func (p *pipelineShape) buildGroupQuery() (string, []any, error) {
	selects := []string{fieldColumn[p.group.By] + ` AS "_id"`}

	aggOrder := ""
	if len(p.preSort) > 0 {
		keys := make([]string, len(p.preSort))
		for i, k := range p.preSort {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			keys[i] = fieldColumn[k.Field] + " " + dir
		}
		aggOrder = " ORDER BY " + strings.Join(keys, ", ")
	}

	for _, acc := range p.group.Accumulators {
		expr, err := accumulatorSQL(acc, aggOrder)
		if err != nil {
			return "", nil, err
		}
		selects = append(selects, fmt.Sprintf("%s AS %q", expr, acc.Name))
	}

	where, args := whereClause(p.match)

	query := "SELECT " + strings.Join(selects, ", ") + " FROM events"
	if where != "" {
		query += " WHERE " + where
	}
	query += " GROUP BY 1"

	if len(p.postSort) > 0 {
		keys := make([]string, len(p.postSort))
		for i, k := range p.postSort {
			col, err := p.resultColumn(k.Field)
			if err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			keys[i] = col + " " + dir
		}
		query += " ORDER BY " + strings.Join(keys, ", ")
	}

	return query, args, nil
}

// resultColumn resolves a post-group sort field to a result-set alias.
func (p *pipelineShape) resultColumn(field string) (string, error) {
	if field == ports.GroupKey || field == p.group.By {
		return `"_id"`, nil
	}
	for _, acc := range p.group.Accumulators {
		if acc.Name == field {
			return fmt.Sprintf("%q", acc.Name), nil
		}
	}
	return "", fmt.Errorf("%w: unknown sort field %q", ports.ErrQuery, field)
}

func accumulatorSQL(acc ports.Accumulator, aggOrder string) (string, error) {
	switch acc.Op {
	case ports.OpCount:
		return "COUNT(*)", nil

	case ports.OpMin, ports.OpMax:
		// min/max is only ever taken over the event timestamp.
		if acc.Field != ports.FieldTimestamp {
			return "", fmt.Errorf("%w: min/max only supported on %s", ports.ErrQuery, ports.FieldTimestamp)
		}
		fn := "MIN"
		if acc.Op == ports.OpMax {
			fn = "MAX"
		}
		return fn + "(" + fieldColumn[acc.Field] + ")", nil

	case ports.OpPushField:
		col, ok := fieldColumn[acc.Field]
		if !ok {
			return "", fmt.Errorf("%w: unknown accumulator field %q", ports.ErrQuery, acc.Field)
		}
		// FILTER drops rows missing the field, matching the mongo $push
		// behaviour of skipping missing values.
		return fmt.Sprintf("jsonb_agg(%s%s) FILTER (WHERE %s IS NOT NULL)", col, aggOrder, col), nil

	case ports.OpPushEvent:
		obj := "jsonb_build_object('event', event_type, 'timestamp', to_char(event_time AT TIME ZONE 'UTC', 'YYYY-MM-DD\"T\"HH24:MI:SS.MS\"Z\"'), 'metadata', metadata)"
		return fmt.Sprintf("jsonb_agg(%s%s)", obj, aggOrder), nil

	default:
		return "", fmt.Errorf("%w: unsupported accumulator %d", ports.ErrQuery, acc.Op)
	}
}

func whereClause(f ports.Filter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != "" {
		conds = append(conds, "user_id = "+arg(f.UserID))
	}
	if f.EventType != "" {
		conds = append(conds, "event_type = "+arg(f.EventType))
	}
	if !f.From.IsZero() {
		conds = append(conds, "event_time >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "event_time <= "+arg(f.To))
	}

	return strings.Join(conds, " AND "), args
}
