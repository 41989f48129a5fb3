package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// Kafka topics for storefront checkout events.
var (
	TopicOrderCreated     = pkgkafka.Topic("checkout", "order_created")
	TopicPaymentInitiated = pkgkafka.Topic("checkout", "payment_initiated")
	TopicPaymentFailed    = pkgkafka.Topic("checkout", "payment_failed")
	TopicVerified         = pkgkafka.Topic("checkout", "verified")
)

// Aggregate types.
const (
	AggregateTypeCheckout = "checkout"
	AggregateTypeOrder    = "order"
)

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront"

// OrderCreatedData is the payload of a checkout.order_created event.
type OrderCreatedData struct {
	WizardID       string `json:"wizard_id"`
	UserID         string `json:"user_id"`
	OrderID        string `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Attempt        int    `json:"attempt"`
	TotalAmount    int64  `json:"total_amount"`
	ItemCount      int    `json:"item_count"`
}

// PaymentInitiatedData is the payload of a checkout.payment_initiated event.
type PaymentInitiatedData struct {
	WizardID    string `json:"wizard_id"`
	UserID      string `json:"user_id"`
	OrderID     string `json:"order_id"`
	TotalAmount int64  `json:"total_amount"`
}

// PaymentFailedData is the payload of a checkout.payment_failed event.
type PaymentFailedData struct {
	WizardID      string `json:"wizard_id"`
	UserID        string `json:"user_id"`
	OrderID       string `json:"order_id,omitempty"`
	Stage         string `json:"stage"`
	FailureReason string `json:"failure_reason"`
	Attempt       int    `json:"attempt"`
}

// VerifiedData is the payload of a checkout.verified event.
type VerifiedData struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id,omitempty"`
	OrderStatus   string `json:"order_status"`
	PaymentStatus string `json:"payment_status"`
	Source        string `json:"source"`
	Verified      bool   `json:"verified"`
	Test          bool   `json:"test"`
}

// Producer publishes checkout events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, pkgkafka.Aggregate{ID: aggregateID, Type: aggregateType}, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishOrderCreated publishes a checkout.order_created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, w *domain.Wizard, orderID string) error {
	return p.publish(ctx, TopicOrderCreated, w.ID, AggregateTypeCheckout, OrderCreatedData{
		WizardID:       w.ID,
		UserID:         w.UserID,
		OrderID:        orderID,
		IdempotencyKey: w.IdempotencyKey(),
		Attempt:        w.Attempt,
		TotalAmount:    w.Total(),
		ItemCount:      domain.ItemCount(w.Items),
	})
}

// PublishPaymentInitiated publishes a checkout.payment_initiated event.
func (p *Producer) PublishPaymentInitiated(ctx context.Context, w *domain.Wizard, intent *domain.PaymentIntent) error {
	return p.publish(ctx, TopicPaymentInitiated, w.ID, AggregateTypeCheckout, PaymentInitiatedData{
		WizardID:    w.ID,
		UserID:      w.UserID,
		OrderID:     intent.OrderID,
		TotalAmount: intent.Amount,
	})
}

// PublishPaymentFailed publishes a checkout.payment_failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, w *domain.Wizard, orderID, stage, reason string) error {
	return p.publish(ctx, TopicPaymentFailed, w.ID, AggregateTypeCheckout, PaymentFailedData{
		WizardID:      w.ID,
		UserID:        w.UserID,
		OrderID:       orderID,
		Stage:         stage,
		FailureReason: reason,
		Attempt:       w.Attempt,
	})
}

// PublishVerified publishes a checkout.verified event.
func (p *Producer) PublishVerified(ctx context.Context, userID string, view *domain.OrderView) error {
	return p.publish(ctx, TopicVerified, view.ID, AggregateTypeOrder, VerifiedData{
		OrderID:       view.ID,
		UserID:        userID,
		OrderStatus:   view.OrderStatus,
		PaymentStatus: view.PaymentStatus,
		Source:        string(view.Source),
		Verified:      view.Verified,
		Test:          view.Test,
	})
}
