package kafkapublisher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

const (
	// HeaderEventType carries the event type of a message.
	HeaderEventType = "event_type"

	defaultBatchTimeout = 10 * time.Millisecond
	defaultBatchSize    = 100
)

const (
	logMsgPublished     = "published order placed"
	logMsgPublishFailed = "publishing order placed failed"

	logAttrOrderID = "order_id"
	logAttrError   = "error"
)

var (
	// ErrNilWriter is returned when no Kafka writer is given.
	ErrNilWriter = errors.New("kafka writer must not be nil")

	// ErrMarshalingPayloadFailed is returned when the payload cannot be encoded.
	ErrMarshalingPayloadFailed = errors.New("marshaling order placed payload failed")

	// ErrUnmarshalingPayloadFailed is returned when a message value is not a valid payload.
	ErrUnmarshalingPayloadFailed = errors.New("unmarshaling order placed payload failed")

	// ErrUnexpectedEventType is returned when a message carries another event type.
	ErrUnexpectedEventType = errors.New("message is not an order placed event")

	// ErrPublishingFailed is returned when the Kafka write fails.
	ErrPublishingFailed = errors.New("publishing order placed failed")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes OrderPlaced events.
type Publisher struct {
	writer     Writer
	propagator propagation.TextMapPropagator
	now        func() time.Time
	logger     marketplace.ContextualLogger
}

// Option defines a functional option for configuring a Publisher.
type Option func(*Publisher)

// WithPropagator sets the propagator used to inject trace context into headers.
// The default is the global propagator.
func WithPropagator(propagator propagation.TextMapPropagator) Option {
	return func(p *Publisher) {
		p.propagator = propagator
	}
}

// WithClock sets the time source for OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// WithContextualLogger sets the logger for publish outcomes.
func WithContextualLogger(logger marketplace.ContextualLogger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewWriter creates a kafka.Writer for the topic, tuned for low latency.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           defaultBatchTimeout,
		BatchSize:              defaultBatchSize,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewPublisher creates a Publisher on top of the given writer.
func NewPublisher(writer Writer, options ...Option) (Publisher, error) {
	if writer == nil {
		return Publisher{}, ErrNilWriter
	}

	p := Publisher{
		writer:     writer,
		propagator: otel.GetTextMapPropagator(),
		now:        time.Now,
	}

	for _, option := range options {
		option(&p)
	}

	return p, nil
}

// PublishOrderPlaced publishes the OrderPlaced event for a committed checkout.
func (p Publisher) PublishOrderPlaced(ctx context.Context, buyerID uuid.UUID, result marketplace.CheckoutResult) error {
	event := OrderPlacedFrom(buyerID, result, p.now())

	msg, err := BuildMessage(ctx, p.propagator, event)
	if err != nil {
		return err
	}

	if err = p.writer.WriteMessages(ctx, msg); err != nil {
		p.logError(ctx, logMsgPublishFailed, logAttrOrderID, event.OrderID.String(), logAttrError, err.Error())
		return errors.Join(ErrPublishingFailed, err)
	}

	p.logInfo(ctx, logMsgPublished, logAttrOrderID, event.OrderID.String())

	return nil
}

// Close closes the underlying writer.
func (p Publisher) Close() error {
	return p.writer.Close()
}

// BuildMessage encodes the event and injects the trace context of ctx into the headers.
func BuildMessage(ctx context.Context, propagator propagation.TextMapPropagator, event OrderPlaced) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, errors.Join(ErrMarshalingPayloadFailed, err)
	}

	carrier := propagation.MapCarrier{}
	propagator.Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier)+1)
	headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(OrderPlacedEventType)})

	for _, key := range carrier.Keys() {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(carrier.Get(key))})
	}

	return kafka.Message{
		Key:     []byte(event.OrderID.String()),
		Value:   payload,
		Headers: headers,
		Time:    event.OccurredAt,
	}, nil
}

// DecodeOrderPlaced decodes a consumed message and returns ctx enriched with the
// producer's trace context.
func DecodeOrderPlaced(
	ctx context.Context,
	propagator propagation.TextMapPropagator,
	msg kafka.Message,
) (context.Context, OrderPlaced, error) {

	carrier := propagation.MapCarrier{}
	eventType := ""

	for _, header := range msg.Headers {
		if header.Key == HeaderEventType {
			eventType = string(header.Value)
			continue
		}

		carrier[header.Key] = string(header.Value)
	}

	if eventType != OrderPlacedEventType {
		return ctx, OrderPlaced{}, ErrUnexpectedEventType
	}

	var event OrderPlaced
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return ctx, OrderPlaced{}, errors.Join(ErrUnmarshalingPayloadFailed, err)
	}

	return propagator.Extract(ctx, carrier), event, nil
}

func (p Publisher) logInfo(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.InfoContext(ctx, msg, args...)
	}
}

func (p Publisher) logError(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.ErrorContext(ctx, msg, args...)
	}
}
