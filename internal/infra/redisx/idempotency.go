package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rentdesk/internal/app/middleware"
)

// IdempotencyStore keeps command results in redis with a TTL.
type IdempotencyStore struct {
	Client *redis.Client
	TTL    time.Duration
}

type idemValue struct {
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.Client.Get(ctx, fmt.Sprintf(KeyIdempotency, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	var v idemValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: key, Payload: v.Payload, OccurredAt: v.OccurredAt}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	data, err := json.Marshal(idemValue{Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	// first writer wins
	return s.Client.SetNX(ctx, fmt.Sprintf(KeyIdempotency, rec.Key), data, ttl).Err()
}
