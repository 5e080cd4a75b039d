package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collSlotLocks = "slot_locks"

// leaseCollection is the part of *mongo.Collection the locker uses.
type leaseCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// Locker keeps one lease document per key in slot_locks. An expired lease is
// taken over by the next caller; the TTL index only garbage collects.
type Locker struct {
	col      leaseCollection
	TTL      time.Duration
	RetryMin time.Duration
	RetryMax time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewLocker(ctx context.Context, db *mongo.Database, ttl time.Duration) (*Locker, error) {
	col := db.Collection(collSlotLocks)
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{col: col, TTL: ttl}, nil
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l.col == nil {
		return nil, errors.New("mongo locker: collection required")
	}
	backoff := l.RetryMin
	if backoff <= 0 {
		backoff = 10 * time.Millisecond
	}
	maxBackoff := l.RetryMax
	if maxBackoff <= 0 {
		maxBackoff = 250 * time.Millisecond
	}
	token := uuid.NewString()
	for {
		ok, err := l.tryAcquire(ctx, key, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			return l.releaser(key, token), nil
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// tryAcquire upserts the lease when the key is free or its lease expired. A
// live lease makes the filter miss and the upsert collide on _id.
func (l *Locker) tryAcquire(ctx context.Context, key, token string) (bool, error) {
	now := l.now()
	filter := bson.M{"_id": key, "expires_at": bson.M{"$lte": now}}
	update := bson.M{"$set": bson.M{"token": token, "expires_at": now.Add(l.TTL), "acquired_at": now}}
	_, err := l.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err == nil {
		return true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return false, err
}

func (l *Locker) releaser(key, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.col.DeleteOne(ctx, bson.M{"_id": key, "token": token}); err != nil && l.Logger != nil {
			l.Logger.Warn("mongo lock release failed", "key", key, "error", err)
		}
	}
}

func (l *Locker) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}
