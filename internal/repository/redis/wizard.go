package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const wizardKeyPrefix = "storefront:wizard:"

// WizardRepository implements repository.WizardRepository using Redis.
// Every save refreshes the TTL so an active wizard never expires mid-flow.
type WizardRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewWizardRepository creates a new Redis-backed wizard repository.
func NewWizardRepository(client *redis.Client, ttl time.Duration) *WizardRepository {
	return &WizardRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a wizard by ID.
func (r *WizardRepository) Get(ctx context.Context, id string) (*domain.Wizard, error) {
	data, err := r.client.Get(ctx, wizardKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("checkout", id)
		}
		return nil, fmt.Errorf("redis get wizard: %w", err)
	}

	var w domain.Wizard
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal wizard: %w", err)
	}

	return &w, nil
}

// Save persists a wizard with the configured TTL.
func (r *WizardRepository) Save(ctx context.Context, w *domain.Wizard) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal wizard: %w", err)
	}

	if err := r.client.Set(ctx, wizardKeyPrefix+w.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set wizard: %w", err)
	}

	return nil
}

// Delete removes a wizard. Deleting an unknown wizard is not an error.
func (r *WizardRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, wizardKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del wizard: %w", err)
	}
	return nil
}
