// Package webhooklock serializes processing of notifications that share an order id.
package webhooklock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ferrylink/internal/shared/constants"
	"ferrylink/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrContended is returned without running fn when another holder owns the lock
var ErrContended = errors.New("webhook lock contended")

// Locker runs fn while holding an exclusive, TTL-bounded lock on key.
// The lock is released on every exit path. fn receives a context that expires with the lock.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Lua script for compare-and-delete release
// KEYS[1] = lock key
// ARGV[1] = holder token
const luaReleaseLock = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseScript = redis.NewScript(luaReleaseLock)

// RedisLocker is safe across service instances sharing one Redis
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &RedisLocker{redis: client, ttl: ttl, log: log}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	lockKey := constants.BuildWebhookLockKey(key)
	token := uuid.NewString()

	acquired, err := l.redis.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return ErrContended
	}

	defer l.release(ctx, lockKey, token)

	fnCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(fnCtx)
}

// release deletes the key only if we still own it; an expired lock taken over by someone else is left alone
func (l *RedisLocker) release(ctx context.Context, lockKey, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(releaseCtx, l.redis, []string{lockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.log.WithError(err).Warn("Failed to release webhook lock", "key", lockKey)
	}
}
