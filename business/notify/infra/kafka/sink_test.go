package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fd1az/fxdesk/business/notify/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNew_Validates(t *testing.T) {
	if _, err := New(Config{Topic: "t"}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := New(Config{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("expected error without topic")
	}
	s, err := New(Config{Brokers: []string{"localhost:9092"}, Topic: "fxdesk.deal-events"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w := s.writer.(*kafka.Writer)
	if w.Topic != "fxdesk.deal-events" || w.BatchTimeout != defaultBatchTimeout {
		t.Errorf("writer = topic %q batch %v", w.Topic, w.BatchTimeout)
	}
}

func TestSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	s := &Sink{writer: w}

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := domain.Event{
		ID:         "ev-1",
		Name:       "deal.failed",
		Key:        "deal-1",
		OccurredAt: at,
		Payload:    json.RawMessage(`{"reason":"Execution timeout"}`),
	}
	if err := s.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "deal-1" || !msg.Time.Equal(at) {
		t.Errorf("key %q time %v", msg.Key, msg.Time)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "deal.failed" {
		t.Errorf("headers = %+v", msg.Headers)
	}

	var decoded domain.Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != "ev-1" || string(decoded.Payload) != `{"reason":"Execution timeout"}` {
		t.Errorf("decoded = %+v", decoded)
	}

	w.err = errors.New("broker unreachable")
	if err := s.Publish(context.Background(), ev); err == nil {
		t.Error("expected write error")
	}

	s.Close()
	if !w.closed {
		t.Error("writer not closed")
	}
}
