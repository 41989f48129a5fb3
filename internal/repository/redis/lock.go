package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "storefront:submit:"

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SubmitLock implements repository.SubmitLock with SET NX. The TTL bounds
// how long a crashed submission can block its wizard.
type SubmitLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubmitLock creates the lock.
func NewSubmitLock(client *redis.Client, ttl time.Duration) *SubmitLock {
	return &SubmitLock{client: client, ttl: ttl}
}

// Acquire takes the wizard's submit lock.
func (l *SubmitLock) Acquire(ctx context.Context, wizardID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+wizardID, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx submit lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if token still owns it.
func (l *SubmitLock) Release(ctx context.Context, wizardID, token string) error {
	err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + wizardID}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release submit lock: %w", err)
	}
	return nil
}
