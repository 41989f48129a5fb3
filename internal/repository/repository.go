package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// WizardRepository stores open checkout wizards.
type WizardRepository interface {
	Save(ctx context.Context, w *domain.Wizard) error
	// Get returns an apperrors NotFound error for unknown or expired wizards.
	Get(ctx context.Context, id string) (*domain.Wizard, error)
	Delete(ctx context.Context, id string) error
}

// DeferredActionStore holds at most one pending command per visitor.
type DeferredActionStore interface {
	// Put replaces any pending command of the visitor.
	Put(ctx context.Context, visitorID string, cmd domain.Command) error
	// Take atomically removes and returns the pending command, or nil.
	Take(ctx context.Context, visitorID string) (*domain.Command, error)
}

// SubmitLock serializes payment submissions of one wizard.
type SubmitLock interface {
	// Acquire returns ok=false when another submission holds the lock. The
	// returned token must be passed to Release.
	Acquire(ctx context.Context, wizardID string) (token string, ok bool, err error)
	// Release frees the lock only if token still owns it.
	Release(ctx context.Context, wizardID, token string) error
}
