package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestNewEvent_Fields(t *testing.T) {
	type orderCreated struct {
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
	}

	data := orderCreated{OrderID: "ord-123", Amount: 17998}
	event, err := NewEvent(context.Background(), "checkout.order_created",
		Aggregate{ID: "wiz-1", Type: "checkout"}, "storefront", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "checkout.order_created", event.EventType)
	assert.Equal(t, "wiz-1", event.AggregateID)
	assert.Equal(t, "checkout", event.AggregateType)
	assert.Equal(t, "storefront", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.Empty(t, event.CorrelationID)
	assert.Nil(t, event.Metadata)
	assert.JSONEq(t, `{"order_id":"ord-123","amount":17998}`, string(event.Data))
}

func TestNewEvent_CopiesRequestContext(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-abc")
	ctx = logger.WithVisitorID(ctx, "v-1")

	event, err := NewEvent(ctx, "checkout.verified", Aggregate{ID: "ord-9", Type: "order"}, "storefront",
		map[string]string{"source": "gateway"})
	require.NoError(t, err)

	assert.Equal(t, "corr-abc", event.CorrelationID)
	assert.Equal(t, map[string]string{MetadataVisitorID: "v-1"}, event.Metadata)

	raw, err := event.Marshal()
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "corr-abc", wire["correlation_id"])
	assert.Equal(t, "ord-9", wire["aggregate_id"])
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent(context.Background(), "x", Aggregate{ID: "agg-1"}, "svc", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode x data")
}

func TestEvent_Headers(t *testing.T) {
	event := &Event{EventType: "checkout.payment_failed", Source: "storefront"}
	assert.Len(t, event.headers(), 2)

	event.CorrelationID = "corr-1"
	headers := event.headers()
	require.Len(t, headers, 3)
	assert.Equal(t, "correlation_id", headers[2].Key)
	assert.Equal(t, []byte("corr-1"), headers[2].Value)
}

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "storefront", TopicPrefix)
	assert.Equal(t, "storefront.checkout.order_created", Topic("checkout", "order_created"))
	assert.Equal(t, "storefront.checkout.payment_failed", Topic("checkout", "payment_failed"))
}

func TestNewProducer_CreatesInstance(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestKafkaHeaderCarrier_InjectsTraceparent(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := []kafka.Header{{Key: "event_type", Value: []byte("x")}}
	propagation.TraceContext{}.Inject(ctx, &KafkaHeaderCarrier{headers: &headers})

	carrier := &KafkaHeaderCarrier{headers: &headers}
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
	assert.ElementsMatch(t, []string{"event_type", "traceparent"}, carrier.Keys())
}
