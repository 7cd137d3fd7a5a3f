// Package locks provides a redis-backed advisory lock used to serialize
// settlement across instances. Without a configured redis the locker degrades
// to a no-op and correctness falls back to the database row locks alone.
package locks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockUnavailable = errors.New("lock_unavailable")

// releaseScript deletes the key only if it still holds our token, so an
// expired-and-reacquired lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	acquireRetryInterval = 50 * time.Millisecond
	acquireWait          = 2 * time.Second
)

type Locker struct {
	client *redis.Client
	log    *zap.Logger
}

func New(client *redis.Client, log *zap.Logger) *Locker {
	return &Locker{client: client, log: log.Named("locks")}
}

// Acquire takes the named lock, waiting briefly if contended, and returns a
// release func. The release is best-effort: the TTL bounds how long a crashed
// holder can block others.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}

	token := uuid.NewString()
	deadline := time.Now().Add(acquireWait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}

	release := func() {
		// Release must survive the caller's context being cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
		}
	}
	return release, nil
}
