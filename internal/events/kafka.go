// Package events publishes order events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
)

const EventVersion = 1

// Envelope wraps every message written to the topic
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	TraceID      string          `json:"trace_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements orders.EventPublisher on a Kafka topic
type Publisher struct {
	w        messageWriter
	producer string
	logger   *zap.Logger
}

// NewPublisher creates a Publisher writing asynchronously to topic. Delivery errors are
// logged from the writer's completion callback.
func NewPublisher(brokers []string, topic, producer string, logger *zap.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to deliver events",
					zap.String("topic", topic),
					zap.Int("count", len(messages)),
					zap.Error(err),
				)
			}
		},
	}
	return newPublisher(w, producer, logger)
}

func newPublisher(w messageWriter, producer string, logger *zap.Logger) *Publisher {
	return &Publisher{w: w, producer: producer, logger: logger}
}

// Publish encodes the event in an Envelope keyed by messageKey
func (p *Publisher) Publish(ctx context.Context, event orders.Event) error {
	value, err := p.encode(ctx, event)
	if err != nil {
		return err
	}

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   messageKey(event),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(event.Type)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(EventVersion))},
		},
	})
}

// messageKey keeps an order's events on one partition. An incomplete create has no order
// id and is keyed by the first product it adjusted; a nil key is balanced round robin.
func messageKey(event orders.Event) []byte {
	switch {
	case event.OrderID != 0:
		return []byte(strconv.FormatInt(event.OrderID, 10))
	case event.ProductID != 0:
		return []byte("product-" + strconv.FormatInt(event.ProductID, 10))
	default:
		return nil
	}
}

func (p *Publisher) encode(ctx context.Context, event orders.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    event.Type,
		EventVersion: EventVersion,
		OccurredAt:   time.Now().UTC(),
		Producer:     p.producer,
		Payload:      payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		env.TraceID = sc.TraceID().String()
	}
	return json.Marshal(env)
}

// Close flushes pending messages
func (p *Publisher) Close() error {
	return p.w.Close()
}
