// Package notify carries user-facing notifications from services to
// whoever renders them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity shown to the shopper.
type Level string

// Notification levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification codes raised by the checkout flow.
const (
	CodeLoginRequired        = "login_required"
	CodeDeliveryInvalid      = "delivery_invalid"
	CodeTermsRequired        = "terms_required"
	CodeOrderFailed          = "order_creation_failed"
	CodePaymentFailed        = "payment_initiation_failed"
	CodePaymentRedirect      = "payment_redirect"
	CodeVerificationDegraded = "verification_degraded"
)

// Notification is one message for the shopper.
type Notification struct {
	Level    Level     `json:"level"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	UserID   string    `json:"user_id,omitempty"`
	WizardID string    `json:"wizard_id,omitempty"`
	OrderID  string    `json:"order_id,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Handler receives notifications published on a Bus.
type Handler func(ctx context.Context, n Notification)

// Bus fans notifications out to its subscribers. It is created by the
// application root and injected where needed.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	now    func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]Handler),
		now:  time.Now,
	}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Notify delivers n to every subscriber synchronously.
func (b *Bus) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = b.now().UTC()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, n)
	}
}

// LogSink writes every notification to l.
func LogSink(l *slog.Logger) Handler {
	return func(ctx context.Context, n Notification) {
		level := slog.LevelInfo
		switch n.Level {
		case LevelWarning:
			level = slog.LevelWarn
		case LevelError:
			level = slog.LevelError
		}
		l.Log(ctx, level, "notification",
			slog.String("code", n.Code),
			slog.String("message", n.Message),
			slog.String("user_id", n.UserID),
			slog.String("wizard_id", n.WizardID),
			slog.String("order_id", n.OrderID),
		)
	}
}

// Discard drops all notifications.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(context.Context, Notification) {}
