package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/chefkeenan/Lume/internal/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher turns outbox events into Kafka messages keyed by aggregate id,
// so every event for one order lands on the same partition.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	tracer   trace.Tracer
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic, tracer: otel.Tracer("lume-outbox")}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	// Continue the trace of the request that wrote the event.
	ctx, span := d.tracer.Start(tracing.WithTraceparent(ctx, event.Traceparent), "outbox.dispatch")
	defer span.End()

	headers := make([]kafka.Header, 0, len(event.Headers)+2)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(event.Type)})
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
		Time:    event.CreatedAt,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "type", event.Type, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}

// NewWriter builds the Kafka producer used by the relay.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
