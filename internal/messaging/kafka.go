package messaging

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

// messageWriter is the subset of *kafkago.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink publishes notifications to a Kafka topic keyed by event id.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaWriter builds a writer for the given brokers.
func NewKafkaWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaSink wraps a writer. The writer must not carry its own Topic.
func NewKafkaSink(writer messageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

// Publish writes one message.
func (s *KafkaSink) Publish(ctx context.Context, event models.NotificationEvent) error {
	value, err := Encode(event)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafkago.Message{
		Topic: s.topic,
		Key:   []byte(event.ID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "recipient_role", Value: []byte(event.RecipientRole)},
		},
	})
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// NewSink picks Kafka when brokers are configured and falls back to logging.
func NewSink(brokers []string, topic string, logger *zap.Logger) Sink {
	if len(brokers) == 0 {
		return NewLogSink(logger)
	}
	return NewKafkaSink(NewKafkaWriter(brokers), topic)
}
