package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

const deferredKeyPrefix = "storefront:deferred:"

// DeferredActionStore keeps one pending command per visitor under a single
// key. SET overwrites, GETDEL takes.
type DeferredActionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDeferredActionStore creates the store. A zero ttl keeps commands until
// they are overwritten or taken.
func NewDeferredActionStore(client *redis.Client, ttl time.Duration) *DeferredActionStore {
	return &DeferredActionStore{client: client, ttl: ttl}
}

// Put replaces the visitor's pending command.
func (s *DeferredActionStore) Put(ctx context.Context, visitorID string, cmd domain.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal deferred action: %w", err)
	}
	if err := s.client.Set(ctx, deferredKeyPrefix+visitorID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set deferred action: %w", err)
	}
	return nil
}

// Take removes and returns the visitor's pending command, or nil.
func (s *DeferredActionStore) Take(ctx context.Context, visitorID string) (*domain.Command, error) {
	data, err := s.client.GetDel(ctx, deferredKeyPrefix+visitorID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis getdel deferred action: %w", err)
	}

	var cmd domain.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("unmarshal deferred action: %w", err)
	}
	return &cmd, nil
}
