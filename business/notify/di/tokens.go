// Package di contains dependency injection tokens for the notify context.
package di

import (
	"github.com/fd1az/fxdesk/business/notify/app"
	"github.com/fd1az/fxdesk/business/notify/infra/kafka"
	"github.com/fd1az/fxdesk/business/notify/infra/wshub"
	"github.com/fd1az/fxdesk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Dispatcher = di.NewToken[*app.Dispatcher]("notify.Dispatcher")
	// Hub is nil when the WebSocket stream is disabled.
	Hub = di.NewToken[*wshub.Hub]("notify.Hub")
)

// Private dependency tokens - internal to notify module
var (
	// KafkaSink is nil when Kafka is disabled.
	KafkaSink = di.NewToken[*kafka.Sink]("notify:kafkaSink")
)

func GetDispatcher(c di.ServiceRegistry) *app.Dispatcher {
	return di.GetToken(c, Dispatcher)
}

func GetHub(c di.ServiceRegistry) *wshub.Hub {
	return di.GetToken(c, Hub)
}

func GetKafkaSink(c di.ServiceRegistry) *kafka.Sink {
	return di.GetToken(c, KafkaSink)
}
