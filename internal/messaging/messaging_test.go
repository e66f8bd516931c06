package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/models"
)

type writerStub struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *writerStub) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *writerStub) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() models.NotificationEvent {
	return models.NotificationEvent{
		ID:            "evt-1",
		EventType:     models.EventVerdictIssued,
		RecipientID:   "emp-1",
		RecipientRole: models.RecipientEmployee,
		ReportID:      "rep-1",
		ActionID:      "act-1",
		Payload:       models.JSONPayload(`{"verdict":"uphold"}`),
		OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaSinkPublishesKeyedMessage(t *testing.T) {
	writer := &writerStub{}
	sink := NewKafkaSink(writer, "hris.discipline.notifications")

	require.NoError(t, sink.Publish(context.Background(), sampleEvent()))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "hris.discipline.notifications", msg.Topic)
	assert.Equal(t, []byte("evt-1"), msg.Key)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("VerdictIssued"), msg.Headers[0].Value)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "evt-1", body["id"])
	assert.Equal(t, "employee", body["recipient_role"])
	assert.Equal(t, "2026-03-01T09:00:00Z", body["occurred_at"])
	assert.Equal(t, map[string]interface{}{"verdict": "uphold"}, body["payload"])
}

func TestKafkaSinkPropagatesWriteError(t *testing.T) {
	writer := &writerStub{err: errors.New("broker down")}
	sink := NewKafkaSink(writer, "topic")

	err := sink.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, sink.Close())
	assert.True(t, writer.closed)
}

func TestEncodeOmitsEmptyPayload(t *testing.T) {
	event := sampleEvent()
	event.Payload = nil

	raw, err := Encode(event)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "payload")
}

func TestLogSinkNeverFails(t *testing.T) {
	sink := NewLogSink(nil)
	assert.NoError(t, sink.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, sink.Close())
}

func TestNewSinkFallsBackToLog(t *testing.T) {
	_, isLog := NewSink(nil, "topic", zap.NewNop()).(*LogSink)
	assert.True(t, isLog)

	sink := NewSink([]string{"localhost:9092"}, "hris.discipline.notifications", zap.NewNop())
	kafka, ok := sink.(*KafkaSink)
	require.True(t, ok)
	assert.Equal(t, "hris.discipline.notifications", kafka.topic)
}
