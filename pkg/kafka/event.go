package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/utafrali/storefront/pkg/logger"
)

// MetadataVisitorID carries the anonymous browser session of the shopper.
const MetadataVisitorID = "visitor_id"

// Aggregate identifies what an event is about. Its ID is the partition key,
// so events of one checkout stay in order.
type Aggregate struct {
	ID   string
	Type string
}

// Event is the envelope every storefront message is published in.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent wraps data in an envelope of eventType. The request's
// correlation ID and visitor ID are taken from ctx.
func NewEvent(ctx context.Context, eventType string, agg Aggregate, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", eventType, err)
	}

	e := &Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   agg.ID,
		AggregateType: agg.Type,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		Data:          payload,
	}
	if id := logger.VisitorIDFromContext(ctx); id != "" {
		e.Metadata = map[string]string{MetadataVisitorID: id}
	}
	return e, nil
}

// Marshal serializes the event to JSON.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// headers are the routing headers set on every message.
func (e *Event) headers() []kafka.Header {
	h := []kafka.Header{
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "source", Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		h = append(h, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	return h
}
