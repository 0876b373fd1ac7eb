package p2p

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{BaseURL: server.URL, APIKey: "secret"}, logger.Discard())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}, logger.Discard()); err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestClient_FindCounterparty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != matchEndpoint {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("X-API-Key = %q", got)
		}
		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Symbol != "EUR/USD" || req.Side != "BUY" || req.Amount != "10000" || req.MinCompletedTrades != 50 {
			t.Errorf("match request = %+v", req)
		}
		writeJSON(w, http.StatusOK, domain.Counterparty{
			ID:              "cp-9",
			Name:            "Maria",
			Rating:          4.9,
			CompletedTrades: 812,
			PaymentMethod:   "SEPA",
		})
	})

	cp, err := c.FindCounterparty(context.Background(), domain.CounterpartyQuery{
		Symbol:             "EUR/USD",
		Side:               domain.SideBuy,
		Amount:             decimal.NewFromInt(10000),
		MinRating:          4.5,
		MinCompletedTrades: 50,
		PaymentMethod:      "SEPA",
	})
	if err != nil {
		t.Fatalf("FindCounterparty() error = %v", err)
	}
	if cp == nil || cp.ID != "cp-9" || cp.CompletedTrades != 812 {
		t.Errorf("counterparty = %+v", cp)
	}
}

func TestClient_FindCounterparty_NoneOrUnavailable(t *testing.T) {
	t.Run("not_found_means_none", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "no match"})
		})
		cp, err := c.FindCounterparty(context.Background(), domain.CounterpartyQuery{Symbol: "EUR/USD"})
		if err != nil || cp != nil {
			t.Errorf("FindCounterparty() = %+v, %v; want nil, nil", cp, err)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := c.FindCounterparty(context.Background(), domain.CounterpartyQuery{Symbol: "EUR/USD"})
		if code := apperror.GetCode(err); code != apperror.CodeCounterpartyUnavailable {
			t.Errorf("code = %s, want COUNTERPARTY_UNAVAILABLE", code)
		}
	})
}

func TestClient_PlaceOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ordersEndpoint {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req domain.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.DealID != "deal-1" || !req.Rate.Equal(decimal.RequireFromString("1.1067")) {
			t.Errorf("order request = %+v", req)
		}
		writeJSON(w, http.StatusCreated, placeOrderResponse{OrderID: "ord-77"})
	})

	id, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		DealID:         "deal-1",
		Symbol:         "EUR/USD",
		Side:           domain.SideBuy,
		Amount:         decimal.NewFromInt(10000),
		Rate:           decimal.RequireFromString("1.1067"),
		CounterpartyID: "cp-9",
	})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if id != "ord-77" {
		t.Errorf("order id = %s", id)
	}
}

func TestClient_PlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      any
		wantCode  apperror.Code
		retryable bool
		contains  string
	}{
		{
			name:     "venue_rejects",
			status:   http.StatusBadRequest,
			body:     APIError{Code: -2010, Message: "insufficient liquidity"},
			wantCode: apperror.CodeOrderPlacementFailed,
			contains: "insufficient liquidity",
		},
		{
			name:      "venue_down",
			status:    http.StatusServiceUnavailable,
			body:      map[string]string{},
			wantCode:  apperror.CodeP2PGatewayUnavailable,
			retryable: true,
		},
		{
			name:     "missing_order_id",
			status:   http.StatusOK,
			body:     map[string]string{},
			wantCode: apperror.CodeOrderPlacementFailed,
			contains: "no order id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.PlaceOrder(context.Background(), domain.OrderRequest{DealID: "deal-1"})
			if code := apperror.GetCode(err); code != tt.wantCode {
				t.Fatalf("code = %s, want %s (err %v)", code, tt.wantCode, err)
			}
			if got := apperror.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestClient_GetOrderStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ordersEndpoint + "/ord-77":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"orderId":"ord-77","state":"FILLED","executedRate":"1.1070","executedAmount":"10000","slippagePercent":"0.03","updatedAt":"2024-06-01T12:00:00Z"}`))
		case ordersEndpoint + "/gone":
			writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "unknown order"})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	status, err := c.GetOrderStatus(ctx, "ord-77")
	if err != nil {
		t.Fatalf("GetOrderStatus() error = %v", err)
	}
	if status.State != domain.OrderFilled {
		t.Errorf("State = %s", status.State)
	}
	if !status.ExecutedRate.Equal(decimal.RequireFromString("1.107")) {
		t.Errorf("ExecutedRate = %s", status.ExecutedRate)
	}
	if !status.SlippagePercent.Equal(decimal.RequireFromString("0.03")) {
		t.Errorf("SlippagePercent = %s", status.SlippagePercent)
	}

	_, err = c.GetOrderStatus(ctx, "gone")
	if code := apperror.GetCode(err); code != apperror.CodeOrderNotFound {
		t.Errorf("missing order code = %s, want ORDER_NOT_FOUND", code)
	}
	if apperror.IsRetryable(err) {
		t.Error("missing order must not be retryable")
	}

	_, err = c.GetOrderStatus(ctx, "flaky")
	if !apperror.IsRetryable(err) {
		t.Errorf("bad gateway should be retryable, got %v", err)
	}
}

func TestClient_CancelOrder(t *testing.T) {
	var deletes atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		deletes.Add(1)
		switch r.URL.Path {
		case ordersEndpoint + "/ord-77":
			w.WriteHeader(http.StatusNoContent)
		case ordersEndpoint + "/filled":
			writeJSON(w, http.StatusConflict, APIError{Code: 409, Message: "order already filled"})
		default:
			writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "unknown order"})
		}
	})
	ctx := context.Background()

	if err := c.CancelOrder(ctx, "ord-77"); err != nil {
		t.Errorf("CancelOrder() error = %v", err)
	}
	if code := apperror.GetCode(c.CancelOrder(ctx, "filled")); code != apperror.CodeOrderFailed {
		t.Errorf("cancel filled code = %s, want ORDER_FAILED", code)
	}
	if code := apperror.GetCode(c.CancelOrder(ctx, "nope")); code != apperror.CodeOrderNotFound {
		t.Errorf("cancel unknown code = %s, want ORDER_NOT_FOUND", code)
	}
	if n := deletes.Load(); n != 3 {
		t.Errorf("deletes = %d, want 3", n)
	}
}

func TestClient_BreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "unknown order"})
	})
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		c.GetOrderStatus(ctx, "missing")
	}
	if n := calls.Load(); n != 8 {
		t.Fatalf("4xx answers tripped the breaker: %d calls reached the venue", n)
	}

	failing.Store(true)
	calls.Store(0)
	for i := 0; i < 5; i++ {
		c.GetOrderStatus(ctx, "any")
	}
	_, err := c.GetOrderStatus(ctx, "any")
	if n := calls.Load(); n != 5 {
		t.Errorf("calls after trip = %d, want 5", n)
	}
	if !apperror.IsRetryable(err) {
		t.Errorf("open breaker should surface as retryable, got %v", err)
	}
}
