package service

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/tracing"
)

// FallbackMode selects the view synthesized when no tier answers.
type FallbackMode string

// Fallback modes.
const (
	// FallbackOptimistic reports Confirmed/Completed.
	FallbackOptimistic FallbackMode = "optimistic"
	// FallbackUnconfirmed reports Unconfirmed/Pending.
	FallbackUnconfirmed FallbackMode = "unconfirmed"
)

// ReturnParams are read from the gateway's return URL.
type ReturnParams struct {
	OrderID string
	Test    bool
}

// Verifier determines the final state of an order after the gateway
// redirect, trying the gateway verification first, then the order itself,
// then synthesizing a view.
type Verifier struct {
	orders   OrderBackend
	payments PaymentBackend
	events   EventPublisher
	notifier notify.Notifier
	mode     FallbackMode
	timeouts Timeouts
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewVerifier creates a verifier. timeouts.Verify bounds each tier and
// timeouts.Publish the verified event.
func NewVerifier(
	orders OrderBackend,
	payments PaymentBackend,
	events EventPublisher,
	notifier notify.Notifier,
	mode FallbackMode,
	timeouts Timeouts,
	logger *slog.Logger,
) *Verifier {
	if mode == "" {
		mode = FallbackOptimistic
	}
	return &Verifier{
		orders:   orders,
		payments: payments,
		events:   events,
		notifier: notifier,
		mode:     mode,
		timeouts: timeouts,
		logger:   logger,
		tracer:   tracing.Tracer("storefront/checkout"),
	}
}

// Verify resolves the order named by params. Without a token it goes
// straight to the synthesized view. Tier failures are never returned as
// errors; the only error is a missing order id.
func (v *Verifier) Verify(ctx context.Context, params ReturnParams, token string) (*domain.OrderView, error) {
	orderID := strings.TrimSpace(params.OrderID)
	if orderID == "" {
		return nil, apperrors.InvalidInput("orderId is required")
	}

	ctx, span := v.tracer.Start(ctx, "checkout.verify_payment",
		trace.WithAttributes(
			attribute.String("checkout.order_id", orderID),
			attribute.Bool("checkout.test", params.Test),
		),
	)
	defer span.End()

	var view *domain.OrderView
	if token != "" {
		view = v.viaGateway(ctx, orderID, params.Test, token)
		if view == nil {
			view = v.viaOrder(ctx, orderID, token)
		}
	}
	if view == nil {
		view = v.fallback(ctx, orderID, token == "")
	}
	view.Test = params.Test

	span.SetAttributes(
		attribute.String("checkout.verification_source", string(view.Source)),
		attribute.Bool("checkout.verified", view.Verified),
	)
	verificationResults.WithLabelValues(string(view.Source)).Inc()

	pubCtx, cancel := withTimeout(ctx, v.timeouts.Publish)
	defer cancel()
	if err := v.events.PublishVerified(pubCtx, logger.UserIDFromContext(ctx), view); err != nil {
		v.logger.ErrorContext(ctx, "failed to publish verified event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	return view, nil
}

func (v *Verifier) viaGateway(ctx context.Context, orderID string, test bool, token string) *domain.OrderView {
	ctx, span := v.tracer.Start(ctx, "checkout.verify.gateway")
	defer span.End()

	ctx, cancel := withTimeout(ctx, v.timeouts.Verify)
	defer cancel()

	order, err := v.payments.VerifyPayment(ctx, token, orderID, test)
	if err != nil {
		tracing.RecordError(span, err)
		v.logger.WarnContext(ctx, "gateway verification failed, fetching order",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return viewFromOrder(orderID, order, domain.VerifiedByGateway)
}

func (v *Verifier) viaOrder(ctx context.Context, orderID, token string) *domain.OrderView {
	ctx, span := v.tracer.Start(ctx, "checkout.verify.order")
	defer span.End()

	ctx, cancel := withTimeout(ctx, v.timeouts.Verify)
	defer cancel()

	order, err := v.orders.GetOrder(ctx, token, orderID)
	if err != nil {
		tracing.RecordError(span, err)
		v.logger.WarnContext(ctx, "order fetch failed, synthesizing view",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return viewFromOrder(orderID, order, domain.VerifiedByOrder)
}

// fallback synthesizes a view from the id alone.
func (v *Verifier) fallback(ctx context.Context, orderID string, anonymous bool) *domain.OrderView {
	view := &domain.OrderView{
		ID:            orderID,
		OrderStatus:   domain.OrderStatusConfirmed,
		PaymentStatus: domain.PaymentStatusCompleted,
		Source:        domain.VerifiedFallback,
		Verified:      false,
	}
	if v.mode == FallbackUnconfirmed {
		view.OrderStatus = domain.OrderStatusUnconfirmed
		view.PaymentStatus = domain.PaymentStatusPending
	}

	v.logger.WarnContext(ctx, "payment could not be verified",
		slog.String("order_id", orderID),
		slog.Bool("anonymous", anonymous),
		slog.String("fallback_mode", string(v.mode)),
	)
	v.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelWarning,
		Code:    notify.CodeVerificationDegraded,
		Message: "We could not confirm your payment yet. You will receive a confirmation once it is processed.",
		UserID:  logger.UserIDFromContext(ctx),
		OrderID: orderID,
	})
	return view
}

func viewFromOrder(requestedID string, order *backend.Order, source domain.VerificationSource) *domain.OrderView {
	id := order.ID
	if id == "" {
		id = requestedID
	}
	return &domain.OrderView{
		ID:            id,
		OrderStatus:   order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
		Source:        source,
		Verified:      true,
		Order:         order.Raw,
	}
}
