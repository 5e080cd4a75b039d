package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"rentdesk/internal/app/audit"
)

const collAudit = "audit_log"

// Sink appends audit entries to the audit_log collection.
type Sink struct {
	col *mongo.Collection
}

type entryDocument struct {
	ID         string    `bson:"_id"`
	ActorID    string    `bson:"actor_id"`
	Action     string    `bson:"action"`
	EntityType string    `bson:"entity_type"`
	EntityID   string    `bson:"entity_id"`
	Before     string    `bson:"before,omitempty"`
	After      string    `bson:"after,omitempty"`
	RequestID  string    `bson:"request_id,omitempty"`
	At         time.Time `bson:"at"`
}

func NewSink(ctx context.Context, db *mongo.Database) (*Sink, error) {
	col := db.Collection(collAudit)
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "at", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	return &Sink{col: col}, nil
}

// Write is idempotent on the entry id.
func (s *Sink) Write(ctx context.Context, e audit.Entry) error {
	doc := entryDocument{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Before:     e.BeforeJSON,
		After:      e.AfterJSON,
		RequestID:  e.RequestID,
		At:         e.At.UTC(),
	}
	_, err := s.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

var _ audit.Sink = (*Sink)(nil)
