package ports

// Field paths a pipeline may reference. Adapters map these onto their own
// schema and must reject anything else with ErrQuery.
const (
	FieldUserID    = "userId"
	FieldSessionID = "sessionId"
	FieldEventType = "event"
	FieldTimestamp = "timestamp"
	FieldMetaURL   = "metadata.url"
	FieldMetaDev   = "metadata.device"
)

// GroupKey is the row key adapters use for the group-by value.
const GroupKey = "_id"

// Row is one loosely-typed result row from Aggregate.
type Row map[string]any

// Stage is one step of an aggregation pipeline. The closed set of stage
// kinds keeps pipelines type-checkable and executable by an in-memory store.
type Stage interface {
	stage()
}

// MatchStage filters the working set.
type MatchStage struct {
	Filter Filter
}

// SortStage orders the working set. Before a GroupStage it fixes the order
// records enter their groups; after one it orders the result rows.
type SortStage struct {
	Keys []SortKey
}

type SortKey struct {
	Field string
	Desc  bool
}

// GroupStage buckets the working set by one field and applies accumulators
// per bucket. A record missing the group field lands in the bucket whose
// "_id" is nil, it is never dropped.
type GroupStage struct {
	By           string
	Accumulators []Accumulator
}

// AccumulatorOp enumerates the supported per-group computations.
type AccumulatorOp int

const (
	// OpCount counts records in the group; Field is ignored.
	OpCount AccumulatorOp = iota
	// OpMin / OpMax take the minimum / maximum of Field over the group.
	OpMin
	OpMax
	// OpPushField appends the value of Field per record, preserving the
	// order records entered the group and keeping duplicates.
	OpPushField
	// OpPushEvent appends {event, timestamp, metadata} per record as a Row.
	OpPushEvent
)

// Accumulator names one computed output field of a GroupStage.
type Accumulator struct {
	Name  string
	Op    AccumulatorOp
	Field string
}

// ProjectStage keeps only the listed row fields.
type ProjectStage struct {
	Fields []string
}

func (MatchStage) stage()   {}
func (SortStage) stage()    {}
func (GroupStage) stage()   {}
func (ProjectStage) stage() {}
