// Package messaging delivers workflow notifications to downstream consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

// Sink publishes one notification. Delivery is at-least-once; consumers dedupe
// on the event id.
type Sink interface {
	Publish(ctx context.Context, event models.NotificationEvent) error
	Close() error
}

// LogSink writes notifications to the structured log. It is used when no broker
// is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("notifications")}
}

// Publish logs the event.
func (s *LogSink) Publish(_ context.Context, event models.NotificationEvent) error {
	s.logger.Info("notification",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.EventType)),
		zap.String("recipient_id", event.RecipientID),
		zap.String("recipient_role", string(event.RecipientRole)),
		zap.String("report_id", event.ReportID),
		zap.String("action_id", event.ActionID),
		zap.ByteString("payload", event.Payload),
	)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }

// envelope is the message body published for every event.
type envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	RecipientID   string          `json:"recipient_id"`
	RecipientRole string          `json:"recipient_role"`
	ReportID      string          `json:"report_id"`
	ActionID      string          `json:"action_id"`
	OccurredAt    string          `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Encode renders the wire body of an event.
func Encode(event models.NotificationEvent) ([]byte, error) {
	body := envelope{
		ID:            event.ID,
		EventType:     string(event.EventType),
		RecipientID:   event.RecipientID,
		RecipientRole: string(event.RecipientRole),
		ReportID:      event.ReportID,
		ActionID:      event.ActionID,
		OccurredAt:    event.OccurredAt.UTC().Format(time.RFC3339),
	}
	if len(event.Payload) > 0 {
		body.Payload = json.RawMessage(event.Payload)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode notification %s: %w", event.ID, err)
	}
	return raw, nil
}
