package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const lockKey = "custodia:retention:lock"

// releaseScript deletes the lock only when this holder still owns it, so a
// slow sweep cannot release a lock that already expired and moved on.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis, letting one replica of a
// horizontally scaled deployment win each sweep.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker wraps a go-redis client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	holder := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, holder, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire retention lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		if err := releaseScript.Run(context.Background(), l.client, []string{lockKey}, holder).Err(); err != nil && err != redis.Nil {
			log.WithField("error", err).Warn("Failed to release retention lock")
		}
	}
	return release, true, nil
}
