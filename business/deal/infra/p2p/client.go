// Package p2p implements the P2P venue collaborators of the deal
// orchestrator: an HTTP client for counterparty matching and order
// management, a WebSocket fill stream, and an in-process simulator.
package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fxdesk/business/deal/app"
	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/circuitbreaker"
	"github.com/fd1az/fxdesk/internal/httpclient"
	"github.com/fd1az/fxdesk/internal/logger"
	"github.com/fd1az/fxdesk/internal/ratelimit"
)

var (
	_ app.CounterpartyMatcher = (*Client)(nil)
	_ app.OrderGateway        = (*Client)(nil)
	_ app.FillWatcher         = (*Client)(nil)
)

const (
	tracerName = "github.com/fd1az/fxdesk/business/deal/infra/p2p"

	matchEndpoint  = "/api/v1/counterparties/match"
	ordersEndpoint = "/api/v1/orders"

	defaultTimeout = 15 * time.Second
	defaultRPM     = 300
)

// Config holds configuration for the venue client.
type Config struct {
	BaseURL           string
	WebSocketURL      string // fill stream; empty disables WatchOrder
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
}

// APIError is an error body returned by the venue.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue API error %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

func venueErrorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	apiErr := &APIError{Status: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}

// clientError reports 4xx answers, which say nothing about venue health.
func clientError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return apiErr, true
	}
	return nil, false
}

type matchRequest struct {
	Symbol             string  `json:"symbol"`
	Side               string  `json:"side"`
	Amount             string  `json:"amount"`
	MinRating          float64 `json:"minRating"`
	MinCompletedTrades int     `json:"minCompletedTrades"`
	PaymentMethod      string  `json:"paymentMethod,omitempty"`
}

type placeOrderResponse struct {
	OrderID string `json:"orderId"`
}

// Client talks to the P2P venue REST API.
type Client struct {
	client  httpclient.Client
	config  Config
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	breaker *circuitbreaker.CircuitBreaker[*httpclient.Response]
	limiter *ratelimit.Limiter
}

// NewClient creates a venue client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("p2p venue base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRPM
	}

	tracer := otel.Tracer(tracerName)

	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers["X-API-Key"] = cfg.APIKey
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("p2p-venue"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("p2p-venue")
	cbCfg.IsSuccessful = func(err error) bool {
		_, ok := clientError(err)
		return err == nil || ok
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "p2p venue circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String())
	}

	return &Client{
		client:  client,
		config:  cfg,
		logger:  log,
		tracer:  tracer,
		breaker: circuitbreaker.New[*httpclient.Response](cbCfg),
		limiter: ratelimit.New(cfg.RequestsPerMinute),
	}, nil
}

// call runs one venue request through the limiter and breaker.
func (c *Client) call(ctx context.Context, endpoint string, do func(httpclient.Request) (*httpclient.Response, error)) (*httpclient.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.breaker.Execute(func() (*httpclient.Response, error) {
		req := c.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint)),
			httpclient.WithResponseErrorHandler(venueErrorHandler),
		)
		return do(req)
	})
}

// FindCounterparty asks the venue for the best counterparty meeting query.
// A venue answer of 404 means nobody qualifies and returns nil, nil.
func (c *Client) FindCounterparty(ctx context.Context, query domain.CounterpartyQuery) (*domain.Counterparty, error) {
	ctx, span := c.tracer.Start(ctx, "p2p.find_counterparty",
		trace.WithAttributes(
			attribute.String("symbol", query.Symbol),
			attribute.String("side", string(query.Side)),
			attribute.String("amount", query.Amount.String()),
		))
	defer span.End()

	var cp domain.Counterparty
	_, err := c.call(ctx, "match", func(req httpclient.Request) (*httpclient.Response, error) {
		return req.SetBody(matchRequest{
			Symbol:             query.Symbol,
			Side:               string(query.Side),
			Amount:             query.Amount.String(),
			MinRating:          query.MinRating,
			MinCompletedTrades: query.MinCompletedTrades,
			PaymentMethod:      query.PaymentMethod,
		}).SetResult(&cp).Post(ctx, matchEndpoint)
	})
	if err != nil {
		if apiErr, ok := clientError(err); ok && apiErr.Status == http.StatusNotFound {
			span.SetAttributes(attribute.Bool("counterparty.found", false))
			return nil, nil
		}
		wrapped := apperror.External(apperror.CodeCounterpartyUnavailable, "match "+query.Symbol, err)
		recordError(span, wrapped)
		return nil, wrapped
	}
	if cp.ID == "" {
		return nil, nil
	}

	span.SetAttributes(
		attribute.Bool("counterparty.found", true),
		attribute.String("counterparty.id", cp.ID),
	)
	return &cp, nil
}

// PlaceOrder submits an order and returns the venue order id. Venue
// rejections come back as ORDER_PLACEMENT_FAILED with the venue's message.
func (c *Client) PlaceOrder(ctx context.Context, order domain.OrderRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, "p2p.place_order",
		trace.WithAttributes(
			attribute.String("deal_id", order.DealID),
			attribute.String("counterparty_id", order.CounterpartyID),
		))
	defer span.End()

	var placed placeOrderResponse
	_, err := c.call(ctx, "place_order", func(req httpclient.Request) (*httpclient.Response, error) {
		return req.SetBody(order).SetResult(&placed).Post(ctx, ordersEndpoint)
	})
	if err != nil {
		var wrapped error
		if apiErr, ok := clientError(err); ok {
			wrapped = apperror.New(apperror.CodeOrderPlacementFailed,
				apperror.WithContext(apiErr.Message),
				apperror.WithStatusCode(http.StatusUnprocessableEntity),
				apperror.WithCause(err))
		} else {
			wrapped = apperror.External(apperror.CodeP2PGatewayUnavailable, "place order", err)
		}
		recordError(span, wrapped)
		return "", wrapped
	}
	if placed.OrderID == "" {
		err := apperror.New(apperror.CodeOrderPlacementFailed,
			apperror.WithContext("venue returned no order id"))
		recordError(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("order_id", placed.OrderID))
	c.logger.Debug(ctx, "p2p order placed",
		"dealId", order.DealID,
		"orderId", placed.OrderID)
	return placed.OrderID, nil
}

// GetOrderStatus returns the venue's fill report for orderID.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderStatus, error) {
	ctx, span := c.tracer.Start(ctx, "p2p.get_order_status",
		trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	var status domain.OrderStatus
	_, err := c.call(ctx, "get_order", func(req httpclient.Request) (*httpclient.Response, error) {
		return req.SetResult(&status).Get(ctx, orderPath(orderID))
	})
	if err != nil {
		var wrapped error
		if apiErr, ok := clientError(err); ok && apiErr.Status == http.StatusNotFound {
			wrapped = apperror.NotFound(apperror.CodeOrderNotFound, orderID)
		} else {
			wrapped = apperror.External(apperror.CodeP2PGatewayUnavailable, "order "+orderID, err)
		}
		recordError(span, wrapped)
		return nil, wrapped
	}
	if status.OrderID == "" {
		status.OrderID = orderID
	}

	span.SetAttributes(attribute.String("order.state", string(status.State)))
	return &status, nil
}

// CancelOrder asks the venue to cancel orderID. Orders that are already
// final or unknown to the venue are reported as errors.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := c.tracer.Start(ctx, "p2p.cancel_order",
		trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	_, err := c.call(ctx, "cancel_order", func(req httpclient.Request) (*httpclient.Response, error) {
		return req.Delete(ctx, orderPath(orderID))
	})
	if err != nil {
		var wrapped error
		if apiErr, ok := clientError(err); ok {
			if apiErr.Status == http.StatusNotFound {
				wrapped = apperror.NotFound(apperror.CodeOrderNotFound, orderID)
			} else {
				wrapped = apperror.New(apperror.CodeOrderFailed,
					apperror.WithContext(fmt.Sprintf("cancel %s: %s", orderID, apiErr.Message)),
					apperror.WithStatusCode(http.StatusConflict),
					apperror.WithCause(err))
			}
		} else {
			wrapped = apperror.External(apperror.CodeP2PGatewayUnavailable, "cancel "+orderID, err)
		}
		recordError(span, wrapped)
		return wrapped
	}
	return nil
}

func orderPath(orderID string) string {
	return ordersEndpoint + "/" + url.PathEscape(orderID)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
