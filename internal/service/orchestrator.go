package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Protocol stages.
const (
	StageCreateOrder   = "create_order"
	StageCreatePayment = "create_payment"
)

var (
	// ErrOrderCreationFailed means no usable order came back from step 1.
	ErrOrderCreationFailed = errors.New("order creation failed")
	// ErrPaymentInitiationFailed means no redirect URL came back from step 2.
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
)

// OrchestrationError describes a failed attempt. OrderID is set when the
// order was created but the payment was not; that order is left pending.
type OrchestrationError struct {
	Stage   string
	OrderID string
	Reason  string
	Err     error
}

func (e *OrchestrationError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Reason)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// AddressDefaults fill blank address fields on the order.
type AddressDefaults struct {
	State   string
	Country string
}

// Timeouts bound each backend call and each event publish. Zero means no
// timeout.
type Timeouts struct {
	Order   time.Duration
	Payment time.Duration
	Verify  time.Duration
	Publish time.Duration
}

// Orchestrator runs the ordered create-order → create-payment protocol.
type Orchestrator struct {
	orders   OrderBackend
	payments PaymentBackend
	events   EventPublisher
	notifier notify.Notifier
	defaults AddressDefaults
	timeouts Timeouts
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	orders OrderBackend,
	payments PaymentBackend,
	events EventPublisher,
	notifier notify.Notifier,
	defaults AddressDefaults,
	timeouts Timeouts,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		orders:   orders,
		payments: payments,
		events:   events,
		notifier: notifier,
		defaults: defaults,
		timeouts: timeouts,
		logger:   logger,
		tracer:   tracing.Tracer("storefront/checkout"),
	}
}

// Execute creates an order for the wizard, then a payment intent for that
// order, and returns where to send the shopper. The payment call never
// starts unless the order call returned an id. Nothing is retried or rolled
// back.
func (o *Orchestrator) Execute(ctx context.Context, w *domain.Wizard, token string) (*domain.PaymentIntent, error) {
	start := time.Now()
	defer func() { orchestrationDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := o.tracer.Start(ctx, "checkout.orchestrate",
		trace.WithAttributes(
			attribute.String("checkout.wizard_id", w.ID),
			attribute.Int("checkout.attempt", w.Attempt),
		),
	)
	defer span.End()

	amount := w.Total()

	orderID, err := o.createOrder(ctx, w, token, amount)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, o.fail(ctx, w, &OrchestrationError{
			Stage:  StageCreateOrder,
			Reason: backend.RejectionMessage(err),
			Err:    fmt.Errorf("%w: %w", ErrOrderCreationFailed, err),
		})
	}
	orchestrationResults.WithLabelValues(StageCreateOrder, "success").Inc()
	span.SetAttributes(attribute.String("checkout.order_id", orderID))

	redirect, err := o.createPayment(ctx, w, token, orderID, amount)

	// The order exists whatever the payment call returned.
	o.publish(ctx, w, "order_created", func(ctx context.Context) error {
		return o.events.PublishOrderCreated(ctx, w, orderID)
	})

	if err != nil {
		tracing.RecordError(span, err)
		return nil, o.fail(ctx, w, &OrchestrationError{
			Stage:   StageCreatePayment,
			OrderID: orderID,
			Reason:  backend.RejectionMessage(err),
			Err:     fmt.Errorf("%w: %w", ErrPaymentInitiationFailed, err),
		})
	}
	orchestrationResults.WithLabelValues(StageCreatePayment, "success").Inc()

	intent := &domain.PaymentIntent{
		OrderID:     orderID,
		Amount:      amount,
		RedirectURL: redirect,
	}

	o.publish(ctx, w, "payment_initiated", func(ctx context.Context) error {
		return o.events.PublishPaymentInitiated(ctx, w, intent)
	})
	o.notifier.Notify(ctx, notify.Notification{
		Level:    notify.LevelInfo,
		Code:     notify.CodePaymentRedirect,
		Message:  "Redirecting to payment...",
		UserID:   w.UserID,
		WizardID: w.ID,
		OrderID:  orderID,
	})

	o.logger.InfoContext(ctx, "payment initiated",
		slog.String("wizard_id", w.ID),
		slog.String("order_id", orderID),
		slog.Int64("total_amount", amount),
		slog.Int("attempt", w.Attempt),
	)

	return intent, nil
}

func (o *Orchestrator) createOrder(ctx context.Context, w *domain.Wizard, token string, amount int64) (string, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.create_order")
	defer span.End()

	req, err := o.buildOrderRequest(w, amount)
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}

	ctx, cancel := withTimeout(ctx, o.timeouts.Order)
	defer cancel()

	orderID, err := o.orders.CreateOrder(ctx, token, w.IdempotencyKey(), req)
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}
	if strings.TrimSpace(orderID) == "" {
		err := fmt.Errorf("%w: empty order id", backend.ErrMalformedResponse)
		tracing.RecordError(span, err)
		return "", err
	}
	return orderID, nil
}

func (o *Orchestrator) createPayment(ctx context.Context, w *domain.Wizard, token, orderID string, amount int64) (string, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.create_payment",
		trace.WithAttributes(attribute.String("checkout.order_id", orderID)),
	)
	defer span.End()

	ctx, cancel := withTimeout(ctx, o.timeouts.Payment)
	defer cancel()

	redirect, err := o.payments.CreatePayment(ctx, token, w.IdempotencyKey(), backend.CreatePaymentRequest{
		OrderID: orderID,
		Amount:  domain.AmountFromCents(amount),
	})
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}
	if redirect == "" {
		err := fmt.Errorf("%w: empty payment url", backend.ErrMalformedResponse)
		tracing.RecordError(span, err)
		return "", err
	}
	return redirect, nil
}

// publish emits a checkout event within the publish timeout. Publish
// errors are logged and never fail the attempt.
func (o *Orchestrator) publish(ctx context.Context, w *domain.Wizard, name string, fn func(context.Context) error) {
	ctx, cancel := withTimeout(ctx, o.timeouts.Publish)
	defer cancel()

	if err := fn(ctx); err != nil {
		o.logger.ErrorContext(ctx, "failed to publish "+name+" event",
			slog.String("wizard_id", w.ID),
			slog.String("error", err.Error()),
		)
	}
}

// fail records a failed attempt and converts it to the user-facing error.
func (o *Orchestrator) fail(ctx context.Context, w *domain.Wizard, oe *OrchestrationError) error {
	orchestrationResults.WithLabelValues(oe.Stage, "failure").Inc()

	o.logger.WarnContext(ctx, "checkout attempt failed",
		slog.String("wizard_id", w.ID),
		slog.String("stage", oe.Stage),
		slog.String("order_id", oe.OrderID),
		slog.Int("attempt", w.Attempt),
		slog.String("error", oe.Error()),
	)

	o.publish(ctx, w, "payment_failed", func(ctx context.Context) error {
		return o.events.PublishPaymentFailed(ctx, w, oe.OrderID, oe.Stage, oe.Error())
	})

	message := ErrOrderCreationFailed.Error()
	code := notify.CodeOrderFailed
	if oe.Stage == StageCreatePayment {
		message = ErrPaymentInitiationFailed.Error()
		code = notify.CodePaymentFailed
	}
	if oe.Reason != "" {
		message = fmt.Sprintf("%s: %s", message, oe.Reason)
	}

	o.notifier.Notify(ctx, notify.Notification{
		Level:    notify.LevelError,
		Code:     code,
		Message:  message,
		UserID:   w.UserID,
		WizardID: w.ID,
		OrderID:  oe.OrderID,
	})

	return apperrors.PaymentFailed(message, oe)
}

// buildOrderRequest assembles the create-order body. The top-level product
// fields describe the first line item.
func (o *Orchestrator) buildOrderRequest(w *domain.Wizard, amount int64) (backend.CreateOrderRequest, error) {
	if len(w.Items) == 0 {
		return backend.CreateOrderRequest{}, domain.ErrEmptyCheckout
	}
	addr, err := NormalizeAddress(w.Address, w.Email, o.defaults)
	if err != nil {
		return backend.CreateOrderRequest{}, err
	}

	items := make([]backend.OrderItem, 0, len(w.Items))
	for _, it := range w.Items {
		price, _ := it.UnitPrice()
		items = append(items, backend.OrderItem{
			ProductID:    it.ProductID,
			SizeSelected: it.SizeSelected,
			Quantity:     it.Quantity,
			Price:        domain.AmountFromCents(price),
		})
	}

	first := w.Items[0]
	return backend.CreateOrderRequest{
		ProductID:    first.ProductID,
		SizeSelected: first.SizeSelected,
		Quantity:     first.Quantity,
		Items:        items,
		Address:      addr,
		Amount:       domain.AmountFromCents(amount),
	}, nil
}

// ErrZipcodeNotNumeric is returned when a zipcode has no digits to send.
var ErrZipcodeNotNumeric = errors.New("zipcode must contain digits")

// NormalizeAddress prepares an address for the backend: the phone keeps
// digits only, the zipcode becomes an integer and blank state or country
// take the configured defaults.
func NormalizeAddress(a domain.Address, email string, defaults AddressDefaults) (backend.OrderAddress, error) {
	zip, err := strconv.Atoi(digitsOnly(a.Zipcode))
	if err != nil {
		return backend.OrderAddress{}, fmt.Errorf("%w: %q", ErrZipcodeNotNumeric, a.Zipcode)
	}

	state := strings.TrimSpace(a.State)
	if state == "" {
		state = defaults.State
	}
	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = defaults.Country
	}

	return backend.OrderAddress{
		Name:                 strings.TrimSpace(a.Name),
		Email:                strings.TrimSpace(email),
		Street:               strings.TrimSpace(a.Street),
		City:                 strings.TrimSpace(a.City),
		State:                state,
		Country:              country,
		ZipCode:              zip,
		Phone:                digitsOnly(a.Phone),
		DeliveryInstructions: strings.TrimSpace(a.DeliveryInstructions),
	}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
