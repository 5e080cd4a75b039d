package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"rentdesk/internal/infra/redisx"
)

// releaseScript deletes the key only while we still own it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a lease lock shared by every replica: SET NX PX with a random
// owner token. The lease must outlive the guarded work; the guard refuses to
// commit once its own deadline has passed.
type Locker struct {
	Client *goredis.Client
	TTL    time.Duration
	// RetryMin and RetryMax bound the polling backoff while the key is held.
	RetryMin time.Duration
	RetryMax time.Duration
	Logger   *slog.Logger
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("redis locker: client required")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = redisx.TTLSlotLock
	}
	backoff := l.RetryMin
	if backoff <= 0 {
		backoff = 10 * time.Millisecond
	}
	maxBackoff := l.RetryMax
	if maxBackoff <= 0 {
		maxBackoff = 250 * time.Millisecond
	}

	redisKey := fmt.Sprintf(redisx.KeySlotLock, key)
	token := uuid.NewString()
	for {
		ok, err := l.Client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			return l.releaser(redisKey, token), nil
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

func (l *Locker) releaser(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the caller ctx may already be done; release on a fresh one
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.Client, []string{redisKey}, token).Err(); err != nil && l.Logger != nil {
			l.Logger.Warn("redis lock release failed", "key", redisKey, "error", err)
		}
	}
}
