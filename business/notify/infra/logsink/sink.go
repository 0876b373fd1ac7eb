// Package logsink writes notification events to the service log.
package logsink

import (
	"context"

	"github.com/fd1az/fxdesk/business/notify/domain"
	"github.com/fd1az/fxdesk/internal/logger"
)

// Sink logs every event at info level.
type Sink struct {
	logger logger.LoggerInterface
}

// New creates a log sink.
func New(log logger.LoggerInterface) *Sink {
	return &Sink{logger: log}
}

func (s *Sink) Name() string { return "log" }

func (s *Sink) Publish(ctx context.Context, ev domain.Event) error {
	s.logger.Info(ctx, "deal event",
		"event", ev.Name,
		"key", ev.Key,
		"eventId", ev.ID,
		"occurredAt", ev.OccurredAt)
	return nil
}
