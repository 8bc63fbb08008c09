package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker extends the exclusion scope across processes sharing one Redis.
// The TTL bounds how long a crashed holder can block an auction.
type RedisLocker struct {
	client   redis.UniversalClient
	ttl      time.Duration
	interval time.Duration
	prefix   string
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		interval: 25 * time.Millisecond,
		prefix:   "auction:lock:",
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := l.prefix + key
	token := utils.GenerateID()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, conflict(key, ctx.Err())
			}
			return nil, fmt.Errorf("lock %s: %w: %v", key, biddingerrors.ErrStorage, err)
		}
		if ok {
			return once(func() { l.release(redisKey, token) }), nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, conflict(key, ctx.Err())
		}
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	// the caller's context may already be cancelled; release must still reach redis
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		utils.Warn("lock: failed to release redis lock", map[string]any{"key": redisKey, "error": err.Error()})
	}
}
