package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/logger"
)

func fillServer(t *testing.T, events ...streamEvent) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("X-API-Key = %q", got)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var sub subscribeMessage
		if err := json.Unmarshal(data, &sub); err != nil || sub.Op != opSubscribe || sub.OrderID != "ord-1" {
			t.Errorf("subscribe message = %s", data)
			return
		}

		for _, ev := range events {
			b, _ := json.Marshal(ev)
			if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
		// hold the connection until the client leaves
		conn.Read(ctx)
	}))
	t.Cleanup(server.Close)
	return server
}

func streamClient(t *testing.T, wsURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: "http://unused", WebSocketURL: wsURL, APIKey: "secret"}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClient_WatchOrder(t *testing.T) {
	server := fillServer(t,
		streamEvent{Type: eventOrderUpdate, Data: domain.OrderStatus{OrderID: "other", State: domain.OrderFilled}},
		streamEvent{Type: "heartbeat"},
		streamEvent{Type: eventOrderUpdate, Data: domain.OrderStatus{OrderID: "ord-1", State: domain.OrderPending}},
		streamEvent{Type: eventOrderUpdate, Data: domain.OrderStatus{OrderID: "ord-1", State: domain.OrderFilled}},
	)
	c := streamClient(t, "ws"+strings.TrimPrefix(server.URL, "http"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates, err := c.WatchOrder(ctx, "ord-1")
	if err != nil {
		t.Fatalf("WatchOrder() error = %v", err)
	}

	var states []domain.OrderState
	for st := range updates {
		if st.OrderID != "ord-1" {
			t.Errorf("update for %s leaked through", st.OrderID)
		}
		states = append(states, st.State)
	}

	if len(states) != 2 || states[0] != domain.OrderPending || states[1] != domain.OrderFilled {
		t.Errorf("states = %v, want [PENDING FILLED]", states)
	}
}

func TestClient_WatchOrder_ClosesOnContextEnd(t *testing.T) {
	server := fillServer(t)
	c := streamClient(t, "ws"+strings.TrimPrefix(server.URL, "http"))

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := c.WatchOrder(ctx, "ord-1")
	if err != nil {
		t.Fatalf("WatchOrder() error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("expected no updates")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestClient_WatchOrder_Unavailable(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://unused"}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.WatchOrder(context.Background(), "ord-1"); !errors.Is(err, ErrStreamDisabled) {
		t.Errorf("error = %v, want ErrStreamDisabled", err)
	}

	c = streamClient(t, "ws://127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.WatchOrder(ctx, "ord-1"); err == nil {
		t.Error("expected dial error")
	}
}
