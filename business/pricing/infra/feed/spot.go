package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fxdesk/business/pricing/app"
	"github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/asset"
	"github.com/fd1az/fxdesk/internal/cache"
	"github.com/fd1az/fxdesk/internal/circuitbreaker"
	"github.com/fd1az/fxdesk/internal/httpclient"
	"github.com/fd1az/fxdesk/internal/logger"
	"github.com/fd1az/fxdesk/internal/money"
	"github.com/fd1az/fxdesk/internal/ratelimit"
)

var _ app.SpotFeed = (*SpotFeed)(nil)

const (
	bookTickerEndpoint = "/api/v3/ticker/bookTicker"

	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 5 * time.Second
	defaultRPM      = 600
)

// SpotConfig holds configuration for the HTTP spot feed.
type SpotConfig struct {
	BaseURL           string
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
	Source            string // reported in SpotRate.Source
}

// bookTicker is the best bid/ask ticker payload.
type bookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

type feedMetrics struct {
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	fetchErrors metric.Int64Counter
}

func newFeedMetrics(name string) feedMetrics {
	meter := otel.Meter(tracerName)
	var m feedMetrics
	m.cacheHits, _ = meter.Int64Counter(name+"_cache_hits_total",
		metric.WithDescription("Feed lookups served from cache"))
	m.cacheMisses, _ = meter.Int64Counter(name+"_cache_misses_total",
		metric.WithDescription("Feed lookups that reached the venue"))
	m.fetchErrors, _ = meter.Int64Counter(name+"_fetch_errors_total",
		metric.WithDescription("Failed venue fetches"))
	return m
}

// SpotFeed reads best bid/ask tickers from a REST venue and prices the
// symbol at the mid.
type SpotFeed struct {
	client  httpclient.Client
	config  SpotConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	breaker *circuitbreaker.CircuitBreaker[*domain.SpotRate]
	limiter *ratelimit.Limiter
	cache   *cache.Cache[string, domain.SpotRate]
	metrics feedMetrics
	now     func() time.Time
}

// NewSpotFeed creates an HTTP spot feed.
func NewSpotFeed(cfg SpotConfig, log logger.LoggerInterface) (*SpotFeed, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("spot feed base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRPM
	}
	if cfg.Source == "" {
		cfg.Source = "spot-feed"
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("spot-feed"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("spot-feed")
	cbCfg.OnStateChange = logStateChange(log)

	return &SpotFeed{
		client:  client,
		config:  cfg,
		logger:  log,
		tracer:  tracer,
		breaker: circuitbreaker.New[*domain.SpotRate](cbCfg),
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		cache:   cache.New[string, domain.SpotRate](time.Minute),
		metrics: newFeedMetrics("spot_feed"),
		now:     time.Now,
	}, nil
}

// Close stops the cache janitor.
func (f *SpotFeed) Close() {
	f.cache.Close()
}

// GetSpotRate returns the latest rate for symbol, served from cache within
// the configured TTL.
func (f *SpotFeed) GetSpotRate(ctx context.Context, symbol string) (*domain.SpotRate, error) {
	symbol, err := asset.NormalizeSymbol(symbol)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, err.Error())
	}

	attrs := metric.WithAttributes(attribute.String("symbol", symbol))
	if cached, ok := f.cache.Get(ctx, symbol); ok {
		f.metrics.cacheHits.Add(ctx, 1, attrs)
		return &cached, nil
	}
	f.metrics.cacheMisses.Add(ctx, 1, attrs)

	ctx, span := f.tracer.Start(ctx, "feed.spot.get_rate",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	if err := f.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return nil, apperror.External(apperror.CodeSpotFeedAPIError, "rate limiter wait", err)
	}

	rate, err := f.breaker.Execute(func() (*domain.SpotRate, error) {
		return f.fetch(ctx, symbol)
	})
	if err != nil {
		f.metrics.fetchErrors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "spot fetch failed")
		return nil, err
	}

	f.cache.Set(ctx, symbol, *rate, f.config.CacheTTL)

	span.SetAttributes(attribute.String("price", rate.Price.String()))
	return rate, nil
}

func (f *SpotFeed) fetch(ctx context.Context, symbol string) (*domain.SpotRate, error) {
	venue, err := venueSymbol(symbol)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, err.Error())
	}

	var ticker bookTicker
	resp, err := f.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "bookTicker"),
			httpclient.NewLabel("symbol", venue),
		),
		httpclient.WithResponseErrorHandler(apiErrorHandler),
	).
		SetQueryParam("symbol", venue).
		SetResult(&ticker).
		Get(ctx, bookTickerEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodeSpotFeedAPIError,
			fmt.Sprintf("book ticker %s", venue), err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodeSpotFeedAPIError,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String()), nil)
	}

	bid, err := money.Parse(ticker.BidPrice)
	if err != nil {
		return nil, apperror.External(apperror.CodeSpotFeedAPIError, "bad bid price", err)
	}
	ask, err := money.Parse(ticker.AskPrice)
	if err != nil {
		return nil, apperror.External(apperror.CodeSpotFeedAPIError, "bad ask price", err)
	}
	if !bid.IsPositive() || !ask.IsPositive() || ask.LessThan(bid) {
		return nil, apperror.External(apperror.CodeSpotFeedAPIError,
			fmt.Sprintf("crossed or empty book: bid %s ask %s", bid, ask), nil)
	}

	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	rate := domain.NewSpotRate(symbol, mid, bid, ask, f.config.Source, f.now())

	bidQty, errBid := decimal.NewFromString(ticker.BidQty)
	askQty, errAsk := decimal.NewFromString(ticker.AskQty)
	if errBid == nil && errAsk == nil {
		volume := bidQty.Add(askQty)
		rate.Volume = &volume
	}

	f.logger.Debug(ctx, "fetched spot rate",
		"symbol", symbol,
		"bid", bid.String(),
		"ask", ask.String())

	return &rate, nil
}
