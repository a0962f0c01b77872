package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"user-analytics-service/internal/events/core/ports"
)

// storedFields are the document fields a pipeline may reference directly.
// The port's field paths double as the collection's field names, matching
// the original events schema.
var storedFields = map[string]bool{
	ports.FieldUserID:    true,
	ports.FieldSessionID: true,
	ports.FieldEventType: true,
	ports.FieldTimestamp: true,
	ports.FieldMetaURL:   true,
	ports.FieldMetaDev:   true,
}

// translatePipeline converts a typed pipeline into a mongo aggregation
// pipeline. Field references are checked against the stored fields plus any
// accumulator outputs defined earlier in the pipeline; anything else is a
// construction bug and fails with ErrQuery.
func translatePipeline(pipeline []ports.Stage) (mongo.Pipeline, error) {
	known := make(map[string]bool, len(storedFields))
	for f := range storedFields {
		known[f] = true
	}

	out := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		switch s := stage.(type) {
		case ports.MatchStage:
			out = append(out, bson.D{{Key: "$match", Value: matchDoc(s.Filter)}})

		case ports.SortStage:
			doc := bson.D{}
			for _, k := range s.Keys {
				if !known[k.Field] {
					return nil, fmt.Errorf("%w: unknown sort field %q", ports.ErrQuery, k.Field)
				}
				dir := 1
				if k.Desc {
					dir = -1
				}
				doc = append(doc, bson.E{Key: k.Field, Value: dir})
			}
			out = append(out, bson.D{{Key: "$sort", Value: doc}})

		case ports.GroupStage:
			if !known[s.By] {
				return nil, fmt.Errorf("%w: unknown group field %q", ports.ErrQuery, s.By)
			}
			doc := bson.D{{Key: ports.GroupKey, Value: "$" + s.By}}
			for _, acc := range s.Accumulators {
				expr, err := accumulatorExpr(acc)
				if err != nil {
					return nil, err
				}
				doc = append(doc, bson.E{Key: acc.Name, Value: expr})
				known[acc.Name] = true
			}
			out = append(out, bson.D{{Key: "$group", Value: doc}})

		case ports.ProjectStage:
			doc := bson.D{}
			for _, f := range s.Fields {
				if !known[f] && f != ports.GroupKey {
					return nil, fmt.Errorf("%w: unknown projected field %q", ports.ErrQuery, f)
				}
				doc = append(doc, bson.E{Key: f, Value: 1})
			}
			out = append(out, bson.D{{Key: "$project", Value: doc}})

		default:
			return nil, fmt.Errorf("%w: unsupported stage %T", ports.ErrQuery, stage)
		}
	}

	return out, nil
}

func matchDoc(f ports.Filter) bson.M {
	doc := bson.M{}
	if f.UserID != "" {
		doc[ports.FieldUserID] = f.UserID
	}
	if f.EventType != "" {
		doc[ports.FieldEventType] = f.EventType
	}
	tsRange := bson.M{}
	if !f.From.IsZero() {
		tsRange["$gte"] = f.From
	}
	if !f.To.IsZero() {
		tsRange["$lte"] = f.To
	}
	if len(tsRange) > 0 {
		doc[ports.FieldTimestamp] = tsRange
	}
	return doc
}

func accumulatorExpr(acc ports.Accumulator) (any, error) {
	switch acc.Op {
	case ports.OpCount:
		return bson.M{"$sum": 1}, nil
	case ports.OpMin:
		if !storedFields[acc.Field] {
			return nil, fmt.Errorf("%w: unknown accumulator field %q", ports.ErrQuery, acc.Field)
		}
		return bson.M{"$min": "$" + acc.Field}, nil
	case ports.OpMax:
		if !storedFields[acc.Field] {
			return nil, fmt.Errorf("%w: unknown accumulator field %q", ports.ErrQuery, acc.Field)
		}
		return bson.M{"$max": "$" + acc.Field}, nil
	case ports.OpPushField:
		if !storedFields[acc.Field] {
			return nil, fmt.Errorf("%w: unknown accumulator field %q", ports.ErrQuery, acc.Field)
		}
		return bson.M{"$push": "$" + acc.Field}, nil
	case ports.OpPushEvent:
		return bson.M{"$push": bson.M{
			ports.FieldEventType: "$" + ports.FieldEventType,
			ports.FieldTimestamp: "$" + ports.FieldTimestamp,
			"metadata":           "$metadata",
		}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported accumulator %d", ports.ErrQuery, acc.Op)
	}
}

// normalizeRow converts driver types so the engine sees plain Go values:
// primitive.DateTime becomes time.Time, bson arrays and documents become
// []any and ports.Row, ObjectIDs become hex strings.
func normalizeRow(m bson.M) ports.Row {
	row := make(ports.Row, len(m))
	for k, v := range m {
		row[k] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case bson.M:
		return map[string]any(normalizeRow(t))
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
