// Package wshub broadcasts notification events to WebSocket subscribers.
package wshub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/fxdesk/business/notify/domain"
	"github.com/fd1az/fxdesk/internal/logger"
)

const (
	defaultSendBuffer   = 32
	defaultWriteTimeout = 5 * time.Second
)

// Config holds hub settings.
type Config struct {
	// OriginPatterns are passed to websocket.Accept; empty allows same-origin only.
	OriginPatterns []string
	SendBuffer     int
	WriteTimeout   time.Duration
}

type subscriber struct {
	send   chan []byte
	cancel context.CancelFunc

	mu     sync.Mutex
	status websocket.StatusCode
	reason string
}

func (s *subscriber) stop(status websocket.StatusCode, reason string) {
	s.mu.Lock()
	if s.reason == "" {
		s.status, s.reason = status, reason
	}
	s.mu.Unlock()
	s.cancel()
}

// Hub fans events out to connected dashboards. Subscribers that fall
// behind are disconnected instead of slowing the dispatcher.
type Hub struct {
	config Config
	logger logger.LoggerInterface

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

// New creates a hub.
func New(cfg Config, log logger.LoggerInterface) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Hub{
		config:      cfg,
		logger:      log,
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Publish queues ev for every subscriber.
func (h *Hub) Publish(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subscribers {
		select {
		case s.send <- data:
		default:
			delete(h.subscribers, s)
			s.stop(websocket.StatusPolicyViolation, "subscriber too slow")
			h.logger.Warn(ctx, "websocket subscriber dropped, send buffer full")
		}
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request and streams events until either side
// goes away. Messages sent by the client are not expected.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.config.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	s := &subscriber{send: make(chan []byte, h.config.SendBuffer), cancel: cancel}
	if !h.add(s) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(s)

	h.logger.Debug(ctx, "websocket subscriber connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			status, reason := s.status, s.reason
			s.mu.Unlock()
			if reason != "" {
				conn.Close(status, reason)
			}
			return
		case msg := <-s.send:
			writeCtx, writeCancel := context.WithTimeout(ctx, h.config.WriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			writeCancel()
			if err != nil {
				h.logger.Debug(ctx, "websocket subscriber write failed", "error", err)
				return
			}
		}
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subscribers {
		delete(h.subscribers, s)
		s.stop(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[s] = struct{}{}
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
}
