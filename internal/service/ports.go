package service

import (
	"context"
	"time"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
)

// OrderBackend creates and reads orders.
type OrderBackend interface {
	CreateOrder(ctx context.Context, token, idempotencyKey string, req backend.CreateOrderRequest) (string, error)
	GetOrder(ctx context.Context, token, orderID string) (*backend.Order, error)
}

// PaymentBackend creates and verifies payments.
type PaymentBackend interface {
	CreatePayment(ctx context.Context, token, idempotencyKey string, req backend.CreatePaymentRequest) (string, error)
	VerifyPayment(ctx context.Context, token, orderID string, test bool) (*backend.Order, error)
}

// CartBackend reads the shopper's cart.
type CartBackend interface {
	GetCart(ctx context.Context, token string) ([]domain.LineItem, error)
}

// EventPublisher publishes checkout events. Failures are logged by callers
// and never fail the checkout.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, w *domain.Wizard, orderID string) error
	PublishPaymentInitiated(ctx context.Context, w *domain.Wizard, intent *domain.PaymentIntent) error
	PublishPaymentFailed(ctx context.Context, w *domain.Wizard, orderID, stage, reason string) error
	PublishVerified(ctx context.Context, userID string, view *domain.OrderView) error
}

// withTimeout bounds ctx by d. A zero d leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
