// Package app contains the notification dispatcher.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/fxdesk/business/notify/domain"
	"github.com/fd1az/fxdesk/internal/logger"
)

const (
	meterName = "github.com/fd1az/fxdesk/business/notify/app"

	defaultBufferSize  = 256
	defaultSinkTimeout = 5 * time.Second
)

// Sink delivers events somewhere. Publish may block up to the context
// deadline.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev domain.Event) error
}

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	BufferSize  int
	SinkTimeout time.Duration
}

type dispatcherMetrics struct {
	published  metric.Int64Counter
	dropped    metric.Int64Counter
	sinkErrors metric.Int64Counter
}

// Dispatcher queues events in a bounded buffer and fans them out to every
// sink from a single worker. Notify never blocks; a full buffer drops.
type Dispatcher struct {
	sinks   []Sink
	config  DispatcherConfig
	logger  logger.LoggerInterface
	metrics dispatcherMetrics

	mu      sync.RWMutex
	queue   chan domain.Event
	closed  bool
	started bool
	done    chan struct{}

	now   func() time.Time
	newID func() string
}

// NewDispatcher creates a dispatcher. Call Start to begin delivery.
func NewDispatcher(sinks []Sink, cfg DispatcherConfig, log logger.LoggerInterface) (*Dispatcher, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}

	d := &Dispatcher{
		sinks:  sinks,
		config: cfg,
		logger: log,
		queue:  make(chan domain.Event, cfg.BufferSize),
		done:   make(chan struct{}),
		now:    time.Now,
		newID:  uuid.NewString,
	}

	meter := otel.Meter(meterName)
	var err error
	if d.metrics.published, err = meter.Int64Counter("notifications_published_total",
		metric.WithDescription("Events delivered to a sink")); err != nil {
		return nil, fmt.Errorf("create published counter: %w", err)
	}
	if d.metrics.dropped, err = meter.Int64Counter("notifications_dropped_total",
		metric.WithDescription("Events dropped because the buffer was full or closed")); err != nil {
		return nil, fmt.Errorf("create dropped counter: %w", err)
	}
	if d.metrics.sinkErrors, err = meter.Int64Counter("notification_sink_errors_total",
		metric.WithDescription("Sink publish failures")); err != nil {
		return nil, fmt.Errorf("create sink error counter: %w", err)
	}
	return d, nil
}

// Start launches the delivery worker. It is a no-op after the first call.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.run()
}

// Notify enqueues an event. Encoding failures and a full buffer are logged
// and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, event string, payload any) {
	ev, err := domain.NewEvent(d.newID(), event, payload, d.now())
	if err != nil {
		d.logger.Error(ctx, "notification dropped", "event", event, "error", err)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	attrs := metric.WithAttributes(attribute.String("event", event))
	if d.closed {
		d.metrics.dropped.Add(ctx, 1, attrs)
		d.logger.Warn(ctx, "notification dropped, dispatcher closed", "event", event, "key", ev.Key)
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.metrics.dropped.Add(ctx, 1, attrs)
		d.logger.Warn(ctx, "notification dropped, buffer full",
			"event", event,
			"key", ev.Key,
			"buffer", d.config.BufferSize)
	}
}

// Close stops accepting events and waits for queued ones to be delivered
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	close(d.queue)
	d.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, ev)
		}
	}
}

func (d *Dispatcher) deliver(sink Sink, ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.SinkTimeout)
	defer cancel()

	attrs := metric.WithAttributes(
		attribute.String("sink", sink.Name()),
		attribute.String("event", ev.Name),
	)

	defer func() {
		if r := recover(); r != nil {
			d.metrics.sinkErrors.Add(ctx, 1, attrs)
			d.logger.Error(ctx, "notification sink panicked",
				"sink", sink.Name(),
				"event", ev.Name,
				"panic", fmt.Sprint(r))
		}
	}()

	if err := sink.Publish(ctx, ev); err != nil {
		d.metrics.sinkErrors.Add(ctx, 1, attrs)
		d.logger.Warn(ctx, "notification sink failed",
			"sink", sink.Name(),
			"event", ev.Name,
			"key", ev.Key,
			"error", err)
		return
	}
	d.metrics.published.Add(ctx, 1, attrs)
}
