package feed

import (
	"context"
	"fmt"
	"net/http"
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
	"github.com/fd1az/fxdesk/internal/ratelimit"
)

var _ app.P2PFeed = (*P2PFeed)(nil)

const (
	advSearchEndpoint = "/bapi/c2c/v2/friendly/c2c/adv/search"

	defaultMinOffers = 3
	defaultTopOffers = 10

	// Offers below this count cost data quality.
	healthyOfferCount    = 10
	offerShortfallWeight = 5
	// Price dispersion above this percent costs data quality.
	maxDispersionPercent = 2
	dispersionPenalty    = 20
)

// P2PConfig holds configuration for the HTTP P2P order book feed.
type P2PConfig struct {
	BaseURL           string
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
	MinOffers         int
	TopOffers         int
	TradeType         string // BUY or SELL side of the book
	Source            string
}

type advSearchRequest struct {
	Asset     string   `json:"asset"`
	Fiat      string   `json:"fiat"`
	TradeType string   `json:"tradeType"`
	Page      int      `json:"page"`
	Rows      int      `json:"rows"`
	PayTypes  []string `json:"payTypes"`
}

type advSearchResponse struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Data    []advEntry `json:"data"`
	Total   int        `json:"total"`
	Success bool       `json:"success"`
}

type advEntry struct {
	Adv struct {
		Price            string `json:"price"`
		TradableQuantity string `json:"tradableQuantity"`
	} `json:"adv"`
	Advertiser struct {
		NickName        string  `json:"nickName"`
		MonthOrderCount int     `json:"monthOrderCount"`
		MonthFinishRate float64 `json:"monthFinishRate"`
	} `json:"advertiser"`
}

// offer is a parsed order book entry.
type offer struct {
	price    decimal.Decimal
	quantity decimal.Decimal
}

// P2PFeed derives an indicative rate from the top of a P2P order book.
type P2PFeed struct {
	client  httpclient.Client
	config  P2PConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	breaker *circuitbreaker.CircuitBreaker[*domain.P2PIndicativeRate]
	limiter *ratelimit.Limiter
	cache   *cache.Cache[string, domain.P2PIndicativeRate]
	metrics feedMetrics
	now     func() time.Time
}

// NewP2PFeed creates an HTTP P2P feed.
func NewP2PFeed(cfg P2PConfig, log logger.LoggerInterface) (*P2PFeed, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("p2p feed base URL is required")
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
	if cfg.MinOffers <= 0 {
		cfg.MinOffers = defaultMinOffers
	}
	if cfg.TopOffers <= 0 {
		cfg.TopOffers = defaultTopOffers
	}
	if cfg.TradeType == "" {
		cfg.TradeType = "BUY"
	}
	if cfg.Source == "" {
		cfg.Source = "p2p-feed"
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("p2p-feed"),
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

	cbCfg := circuitbreaker.DefaultConfig("p2p-feed")
	cbCfg.OnStateChange = logStateChange(log)
	// INSUFFICIENT_OFFERS does not trip the breaker
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || apperror.GetCode(err) == apperror.CodeInsufficientOffers
	}

	return &P2PFeed{
		client:  client,
		config:  cfg,
		logger:  log,
		tracer:  tracer,
		breaker: circuitbreaker.New[*domain.P2PIndicativeRate](cbCfg),
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		cache:   cache.New[string, domain.P2PIndicativeRate](time.Minute),
		metrics: newFeedMetrics("p2p_feed"),
		now:     time.Now,
	}, nil
}

// Close stops the cache janitor.
func (f *P2PFeed) Close() {
	f.cache.Close()
}

// GetIndicativeRate returns the volume-weighted rate over the top offers.
func (f *P2PFeed) GetIndicativeRate(ctx context.Context, symbol string) (*domain.P2PIndicativeRate, error) {
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

	ctx, span := f.tracer.Start(ctx, "feed.p2p.get_indicative_rate",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	if err := f.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return nil, apperror.External(apperror.CodeP2PFeedAPIError, "rate limiter wait", err)
	}

	rate, err := f.breaker.Execute(func() (*domain.P2PIndicativeRate, error) {
		return f.fetch(ctx, symbol)
	})
	if err != nil {
		f.metrics.fetchErrors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "p2p fetch failed")
		return nil, err
	}

	f.cache.Set(ctx, symbol, *rate, f.config.CacheTTL)

	span.SetAttributes(
		attribute.String("rate", rate.Rate.String()),
		attribute.Int("offers", rate.Offers),
		attribute.Int("data_quality", rate.DataQuality),
	)
	return rate, nil
}

func (f *P2PFeed) fetch(ctx context.Context, symbol string) (*domain.P2PIndicativeRate, error) {
	base, quote, err := asset.SplitSymbol(symbol)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, err.Error())
	}

	var result advSearchResponse
	resp, err := f.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "adv_search"),
			httpclient.NewLabel("symbol", base+quote),
		),
		httpclient.WithResponseErrorHandler(apiErrorHandler),
	).
		SetBody(advSearchRequest{
			Asset:     base,
			Fiat:      quote,
			TradeType: f.config.TradeType,
			Page:      1,
			Rows:      f.config.TopOffers,
			PayTypes:  []string{},
		}).
		SetResult(&result).
		Post(ctx, advSearchEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodeP2PFeedAPIError,
			fmt.Sprintf("adv search %s/%s", base, quote), err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodeP2PFeedAPIError,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String()), nil)
	}

	offers := parseOffers(result.Data, f.config.TopOffers)
	if len(offers) < f.config.MinOffers {
		return nil, apperror.New(apperror.CodeInsufficientOffers,
			apperror.WithContext(fmt.Sprintf("%s: %d offers, need %d", symbol, len(offers), f.config.MinOffers)),
			apperror.WithStatusCode(http.StatusServiceUnavailable))
	}

	rate := indicativeRate(symbol, offers, f.config.Source, f.now())

	f.logger.Debug(ctx, "fetched p2p indicative rate",
		"symbol", symbol,
		"rate", rate.Rate.String(),
		"offers", rate.Offers,
		"dataQuality", rate.DataQuality)

	return &rate, nil
}

// parseOffers keeps up to limit entries with a positive price, in book order.
func parseOffers(entries []advEntry, limit int) []offer {
	out := make([]offer, 0, len(entries))
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		price, err := decimal.NewFromString(e.Adv.Price)
		if err != nil || !price.IsPositive() {
			continue
		}
		qty, err := decimal.NewFromString(e.Adv.TradableQuantity)
		if err != nil || qty.IsNegative() {
			qty = decimal.Zero
		}
		out = append(out, offer{price: price, quantity: qty})
	}
	return out
}

// indicativeRate builds the rate from book-ordered offers. The rate is the
// quantity-weighted mean price, or the plain mean when no quantities are
// known. offers must not be empty.
func indicativeRate(symbol string, offers []offer, source string, at time.Time) domain.P2PIndicativeRate {
	var (
		weighted = decimal.Zero
		volume   = decimal.Zero
		sum      = decimal.Zero
		lo       = offers[0].price
		hi       = offers[0].price
	)
	for _, o := range offers {
		weighted = weighted.Add(o.price.Mul(o.quantity))
		volume = volume.Add(o.quantity)
		sum = sum.Add(o.price)
		lo = decimal.Min(lo, o.price)
		hi = decimal.Max(hi, o.price)
	}

	var rate decimal.Decimal
	if volume.IsPositive() {
		rate = weighted.Div(volume)
	} else {
		rate = sum.Div(decimal.NewFromInt(int64(len(offers))))
	}

	quality := 100
	var issues []string
	if n := len(offers); n < healthyOfferCount {
		quality -= (healthyOfferCount - n) * offerShortfallWeight
		issues = append(issues, fmt.Sprintf("Only %d offers", n))
	}
	dispersion := hi.Sub(lo).Div(lo).Mul(decimal.NewFromInt(100))
	if dispersion.GreaterThan(decimal.NewFromInt(maxDispersionPercent)) {
		quality -= dispersionPenalty
		issues = append(issues, "High price dispersion")
	}
	if quality < 0 {
		quality = 0
	}

	return domain.P2PIndicativeRate{
		Symbol:        symbol,
		Rate:          rate,
		TopSellerRate: offers[0].price,
		Offers:        len(offers),
		DataQuality:   quality,
		Issues:        issues,
		Source:        source,
		Timestamp:     at,
	}
}
