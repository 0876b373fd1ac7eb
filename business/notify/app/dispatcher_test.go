package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fd1az/fxdesk/business/notify/domain"
	"github.com/fd1az/fxdesk/internal/logger"
)

type recordingSink struct {
	name string
	err  error
	wait chan struct{}

	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(ctx context.Context, ev domain.Event) error {
	if s.wait != nil {
		<-s.wait
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Name
	}
	return out
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panics" }

func (panickingSink) Publish(context.Context, domain.Event) error { panic("boom") }

type keyed struct {
	ID string `json:"id"`
}

func (k keyed) EventKey() string { return k.ID }

func newTestDispatcher(t *testing.T, buffer int, sinks ...Sink) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(sinks, DispatcherConfig{BufferSize: buffer, SinkTimeout: time.Second}, logger.Discard())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d
}

func TestDispatcher_FansOutInOrder(t *testing.T) {
	first := &recordingSink{name: "first", err: errors.New("sink down")}
	second := &recordingSink{name: "second"}
	d := newTestDispatcher(t, 8, panickingSink{}, first, second)
	d.Start()

	ctx := context.Background()
	d.Notify(ctx, "deal.created", keyed{ID: "deal-1"})
	d.Notify(ctx, "deal.executed", keyed{ID: "deal-1"})

	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, s := range []*recordingSink{first, second} {
		got := s.names()
		if len(got) != 2 || got[0] != "deal.created" || got[1] != "deal.executed" {
			t.Errorf("%s sink got %v", s.name, got)
		}
	}
	if key := second.events[0].Key; key != "deal-1" {
		t.Errorf("Key = %q, want deal-1", key)
	}
	if string(second.events[0].Payload) != `{"id":"deal-1"}` {
		t.Errorf("Payload = %s", second.events[0].Payload)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	blocked := &recordingSink{name: "slow", wait: make(chan struct{})}
	d := newTestDispatcher(t, 1, blocked)
	d.Start()

	ctx := context.Background()
	// the worker takes the first event and blocks in the sink
	d.Notify(ctx, "e1", nil)
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Notify(ctx, "e2", nil)
	d.Notify(ctx, "e3", nil) // buffer full

	close(blocked.wait)
	if err := d.Close(ctx); err != nil {
		t.Fatal(err)
	}

	got := blocked.names()
	if len(got) != 2 || got[0] != "e1" || got[1] != "e2" {
		t.Errorf("delivered %v, want [e1 e2]", got)
	}
}

func TestDispatcher_NotifyNeverBlocksOrPanics(t *testing.T) {
	d := newTestDispatcher(t, 1)

	ctx := context.Background()
	d.Notify(ctx, "bad", func() {}) // not encodable
	d.Notify(ctx, "queued", nil)
	d.Notify(ctx, "overflow", nil)

	if err := d.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	d.Notify(ctx, "after_close", nil)
	d.Start()
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	blocked := &recordingSink{name: "stuck", wait: make(chan struct{})}
	defer close(blocked.wait)

	d := newTestDispatcher(t, 4, blocked)
	d.Start()
	d.Notify(context.Background(), "e1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() error = %v, want deadline exceeded", err)
	}
}
