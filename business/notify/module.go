// Package notify implements best-effort delivery of deal lifecycle events
// to the log, Kafka and WebSocket subscribers.
package notify

import (
	"context"
	"errors"

	"github.com/fd1az/fxdesk/business/notify/app"
	notifyDI "github.com/fd1az/fxdesk/business/notify/di"
	"github.com/fd1az/fxdesk/business/notify/infra/kafka"
	"github.com/fd1az/fxdesk/business/notify/infra/logsink"
	"github.com/fd1az/fxdesk/business/notify/infra/wshub"
	"github.com/fd1az/fxdesk/internal/config"
	"github.com/fd1az/fxdesk/internal/di"
	"github.com/fd1az/fxdesk/internal/logger"
	"github.com/fd1az/fxdesk/internal/monolith"
)

// Module implements the notify bounded context.
type Module struct{}

// RegisterServices registers the dispatcher and its sinks.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, notifyDI.Hub, func(sr di.ServiceRegistry) *wshub.Hub {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if !cfg.Notify.WebSocket {
			return nil
		}
		return wshub.New(wshub.Config{OriginPatterns: cfg.HTTP.AllowedOrigins}, log)
	})

	di.RegisterToken(c, notifyDI.KafkaSink, func(sr di.ServiceRegistry) *kafka.Sink {
		cfg := sr.Get("config").(*config.Config)

		if !cfg.Kafka.Enabled {
			return nil
		}
		sink, err := kafka.New(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			panic("failed to create kafka sink: " + err.Error())
		}
		return sink
	})

	di.RegisterToken(c, notifyDI.Dispatcher, func(sr di.ServiceRegistry) *app.Dispatcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sinks := []app.Sink{logsink.New(log)}
		if k := notifyDI.GetKafkaSink(sr); k != nil {
			sinks = append(sinks, k)
		}
		if h := notifyDI.GetHub(sr); h != nil {
			sinks = append(sinks, h)
		}

		d, err := app.NewDispatcher(sinks, app.DispatcherConfig{BufferSize: cfg.Notify.BufferSize}, log)
		if err != nil {
			panic("failed to create notification dispatcher: " + err.Error())
		}
		return d
	})

	return nil
}

// Startup starts the delivery worker.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()

	notifyDI.GetDispatcher(mono.Services()).Start()

	mono.Logger().Info(ctx, "notify module started",
		"kafka", cfg.Kafka.Enabled,
		"websocket", cfg.Notify.WebSocket,
		"buffer", cfg.Notify.BufferSize)
	return nil
}

// Shutdown drains queued events, then closes the sinks.
func Shutdown(ctx context.Context, sr di.ServiceRegistry) error {
	err := notifyDI.GetDispatcher(sr).Close(ctx)
	if h := notifyDI.GetHub(sr); h != nil {
		h.Close()
	}
	if k := notifyDI.GetKafkaSink(sr); k != nil {
		err = errors.Join(err, k.Close())
	}
	return err
}
