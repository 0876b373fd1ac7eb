package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/wsconn"
)

const (
	opSubscribe      = "subscribe"
	eventOrderUpdate = "order_update"

	streamReconnects = 5
)

// ErrStreamDisabled is returned by WatchOrder when no WebSocket URL is set.
var ErrStreamDisabled = errors.New("p2p fill stream disabled")

type subscribeMessage struct {
	Op      string `json:"op"`
	OrderID string `json:"orderId"`
}

type streamEvent struct {
	Type string             `json:"type"`
	Data domain.OrderStatus `json:"data"`
}

// WatchOrder opens a fill stream for orderID. The returned channel closes
// after a final state, when ctx ends, or when the stream is lost for good;
// callers fall back to polling in the last case.
func (c *Client) WatchOrder(ctx context.Context, orderID string) (<-chan domain.OrderStatus, error) {
	if c.config.WebSocketURL == "" {
		return nil, ErrStreamDisabled
	}

	cfg := wsconn.DefaultConfig(c.config.WebSocketURL, "p2p-fills")
	cfg.MaxReconnects = streamReconnects
	if c.config.APIKey != "" {
		cfg.Headers = http.Header{"X-API-Key": []string{c.config.APIKey}}
	}

	conn, err := wsconn.New(cfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("p2p fill stream"))
	}

	var (
		updates = make(chan domain.OrderStatus)
		lost    = make(chan struct{}, 1)
		done    = make(chan struct{})
	)

	subscribe := func() {
		err := conn.SendJSON(ctx, subscribeMessage{Op: opSubscribe, OrderID: orderID})
		if err != nil {
			c.logger.Warn(ctx, "p2p fill stream subscribe failed",
				"orderId", orderID,
				"error", err)
		}
	}

	conn.OnMessage(func(_ context.Context, data []byte) {
		var ev streamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Debug(ctx, "unparseable p2p stream message", "error", err)
			return
		}
		if ev.Type != eventOrderUpdate || ev.Data.OrderID != orderID {
			return
		}
		select {
		case updates <- ev.Data:
		case <-done:
		}
	})
	conn.OnStateChange(func(state wsconn.State, err error) {
		switch state {
		case wsconn.StateConnected:
			go subscribe()
		case wsconn.StateReconnecting:
			c.logger.Warn(ctx, "p2p fill stream reconnecting",
				"orderId", orderID,
				"error", err)
		case wsconn.StateDisconnected:
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})

	if err := conn.Connect(ctx); err != nil {
		conn.Close()
		return nil, apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("p2p fill stream"))
	}

	out := make(chan domain.OrderStatus, 1)
	go func() {
		defer close(out)
		defer conn.Close()
		defer close(done)

		for {
			select {
			case <-ctx.Done():
				return
			case <-lost:
				c.logger.Warn(ctx, "p2p fill stream lost", "orderId", orderID)
				return
			case st := <-updates:
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
				if st.State.IsFinal() {
					return
				}
			}
		}
	}()

	return out, nil
}
