package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"user-analytics-service/internal/events/core/domain"
	"user-analytics-service/internal/events/core/ports"
)

const eventsCollection = "events"

type EventRepository struct {
	coll *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{coll: db.Collection(eventsCollection)}
}

var _ ports.EventStorePort = (*EventRepository)(nil)

type eventDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	SessionID string             `bson:"sessionId"`
	EventType string             `bson:"event"`
	Timestamp time.Time          `bson:"timestamp"`
	Metadata  map[string]any     `bson:"metadata"`
}

func (r *EventRepository) InsertEvent(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	doc := toDoc(e)

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	stored := *e
	stored.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return &stored, nil
}

func (r *EventRepository) InsertEvents(ctx context.Context, events []*domain.Event) ([]*domain.Event, error) {
	docs := make([]any, len(events))
	for i, e := range events {
		docs[i] = toDoc(e)
	}

	res, err := r.coll.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	out := make([]*domain.Event, len(events))
	for i, e := range events {
		stored := *e
		if i < len(res.InsertedIDs) {
			if oid, ok := res.InsertedIDs[i].(primitive.ObjectID); ok {
				stored.ID = oid.Hex()
			}
		}
		out[i] = &stored
	}
	return out, nil
}

func (r *EventRepository) FindEvents(ctx context.Context, f ports.Filter) ([]*domain.Event, error) {
	cursor, err := r.coll.Find(ctx, matchDoc(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	out := make([]*domain.Event, len(docs))
	for i, d := range docs {
		out[i] = fromDoc(d)
	}
	return out, nil
}

func (r *EventRepository) Aggregate(ctx context.Context, pipeline []ports.Stage) ([]ports.Row, error) {
	mongoPipeline, err := translatePipeline(pipeline)
	if err != nil {
		return nil, err
	}

	cursor, err := r.coll.Aggregate(ctx, mongoPipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrPersistence, err)
	}

	rows := make([]ports.Row, len(raw))
	for i, m := range raw {
		rows[i] = normalizeRow(m)
	}
	return rows, nil
}

func toDoc(e *domain.Event) eventDoc {
	return eventDoc{
		UserID:    e.UserID,
		SessionID: e.SessionID,
		EventType: e.EventType,
		Timestamp: e.Timestamp.UTC(),
		Metadata:  e.Metadata,
	}
}

func fromDoc(d eventDoc) *domain.Event {
	md := domain.Metadata(d.Metadata)
	if md == nil {
		md = domain.Metadata{}
	}
	return &domain.Event{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		SessionID: d.SessionID,
		EventType: d.EventType,
		Timestamp: d.Timestamp.UTC(),
		Metadata:  md,
	}
}
