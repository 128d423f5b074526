package publish

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/eventlog"
	"github.com/efreitasn/venue/internal/exchange"
)

// Publisher delivers persisted events to external read-model consumers.
// The core emits events only; projections (book depth, instrument
// lists, trade history) are built downstream from this stream.
type Publisher interface {
	Publish(ctx context.Context, exchangeID domain.ExchangeID, events []exchange.Event) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic, keyed by exchange id
// so that one exchange's events land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes the events in order, using the same envelope encoding
// as the event store.
func (p *KafkaPublisher) Publish(ctx context.Context, exchangeID domain.ExchangeID, events []exchange.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := eventlog.Encode(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(exchangeID),
			Value: value,
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no brokers are configured,
// e.g. in local development.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.ExchangeID, []exchange.Event) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
