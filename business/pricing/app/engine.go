package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/asset"
	"github.com/fd1az/fxdesk/internal/logger"
	"github.com/fd1az/fxdesk/internal/money"
)

// FixedConfigSource resolves the fixed spread config for a symbol and partner.
type FixedConfigSource interface {
	GetActiveFixedSpreadConfig(ctx context.Context, symbol, partnerID string) (*domain.FixedSpreadConfig, error)
}

// VolatilitySource analyzes and feeds the delta history.
type VolatilitySource interface {
	AnalyzeVolatility(ctx context.Context, symbol string, timeWindowHours int) (*domain.VolatilityAnalysis, error)
	RecordDelta(ctx context.Context, spot domain.SpotRate, p2p domain.P2PIndicativeRate)
}

// EngineConfig holds pricing parameters.
type EngineConfig struct {
	FreshnessWindow     time.Duration
	MaxStalenessPenalty int
	DefaultBaseSpread   decimal.Decimal
	DefaultMinSpread    decimal.Decimal
	DefaultMaxSpread    decimal.Decimal
	MinP2PDataQuality   int
}

// DefaultEngineConfig returns a 60s freshness window, a 30 point staleness
// cap and the 0.5/0.1/2.0 percent system spread.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FreshnessWindow:     60 * time.Second,
		MaxStalenessPenalty: 30,
		DefaultBaseSpread:   decimal.RequireFromString("0.5"),
		DefaultMinSpread:    decimal.RequireFromString("0.1"),
		DefaultMaxSpread:    decimal.RequireFromString("2.0"),
		MinP2PDataQuality:   50,
	}
}

type engineMetrics struct {
	calculations metric.Int64Counter
	errors       metric.Int64Counter
	confidence   metric.Int64Histogram
	latency      metric.Float64Histogram
}

// Engine prices symbols by applying configured spreads on top of spot.
type Engine struct {
	configs    FixedConfigSource
	volatility VolatilitySource
	audit      AuditRepository
	spot       SpotFeed
	p2p        P2PFeed
	config     EngineConfig
	logger     logger.LoggerInterface
	tracer     trace.Tracer
	metrics    *engineMetrics
	now        func() time.Time
}

// NewEngine creates a pricing engine. audit, spot and p2p may be nil; Quote
// requires spot.
func NewEngine(
	configs FixedConfigSource,
	volatility VolatilitySource,
	audit AuditRepository,
	spot SpotFeed,
	p2p P2PFeed,
	cfg EngineConfig,
	log logger.LoggerInterface,
) (*Engine, error) {
	e := &Engine{
		configs:    configs,
		volatility: volatility,
		audit:      audit,
		spot:       spot,
		p2p:        p2p,
		config:     cfg,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &engineMetrics{}

	e.metrics.calculations, err = meter.Int64Counter(
		"pricing_calculations_total",
		metric.WithDescription("Total rate calculations"),
	)
	if err != nil {
		return err
	}

	e.metrics.errors, err = meter.Int64Counter(
		"pricing_errors_total",
		metric.WithDescription("Total failed rate calculations"),
	)
	if err != nil {
		return err
	}

	e.metrics.confidence, err = meter.Int64Histogram(
		"pricing_confidence",
		metric.WithDescription("Confidence of produced rates"),
	)
	if err != nil {
		return err
	}

	e.metrics.latency, err = meter.Float64Histogram(
		"pricing_latency_ms",
		metric.WithDescription("Rate calculation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// canonicalSymbol validates and normalizes "BASE/QUOTE".
func canonicalSymbol(symbol string) (string, error) {
	if strings.TrimSpace(symbol) == "" {
		return "", apperror.Validation(apperror.CodeInvalidInput, "symbol is required")
	}
	s, err := asset.NormalizeSymbol(symbol)
	if err != nil {
		return "", apperror.New(apperror.CodeInvalidSymbol,
			apperror.WithCause(err),
			apperror.WithContext(symbol))
	}
	return s, nil
}

func validateSpot(spot domain.SpotRate) error {
	if !spot.Price.IsPositive() {
		return apperror.Validation(apperror.CodeInvalidInput, "spot price must be positive, got "+spot.Price.String())
	}
	return nil
}

// CalculateRate applies the active fixed spread to spot.Price. With no stored
// config the system default applies with a warning. An explicit config
// outside its validity window fails with SPREAD_CONFIG_INACTIVE.
func (e *Engine) CalculateRate(ctx context.Context, symbol string, spot domain.SpotRate, partnerID string) (*domain.PricingResult, error) {
	ctx, span := e.tracer.Start(ctx, "pricing.engine.calculate_rate",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("partner_id", partnerID),
			attribute.String("spot", spot.Price.String()),
		),
	)
	defer span.End()
	start := time.Now()

	result, err := e.fixedSpread(ctx, symbol, spot, partnerID)
	if err != nil {
		e.fail(ctx, span, domain.MethodFixedSpread, err)
		return nil, err
	}

	e.persist(ctx, result)
	e.record(ctx, span, result, start)
	return result, nil
}

func (e *Engine) fixedSpread(ctx context.Context, symbol string, spot domain.SpotRate, partnerID string) (*domain.PricingResult, error) {
	symbol, err := canonicalSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := validateSpot(spot); err != nil {
		return nil, err
	}

	now := e.now()
	var warnings []string

	cfg, err := e.configs.GetActiveFixedSpreadConfig(ctx, symbol, partnerID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		def := domain.SystemDefaultFixedSpread(symbol,
			e.config.DefaultBaseSpread, e.config.DefaultMinSpread, e.config.DefaultMaxSpread, now)
		cfg = &def
		warnings = append(warnings, "No spread configuration for "+symbol+", using system default")
	} else if !domain.IsConfigActive(*cfg, now) {
		return nil, apperror.New(apperror.CodeSpreadConfigInactive,
			apperror.WithContext(fmt.Sprintf("config %s for %s is not active", cfg.ID, symbol)))
	}

	spread := cfg.SpreadFor(spot.Price)
	confidence, stale := domain.StalenessConfidence(spot.Age(now), e.config.FreshnessWindow, e.config.MaxStalenessPenalty)
	if stale > 0 {
		warnings = append(warnings, fmt.Sprintf("Spot rate is stale by %ds", stale))
	}

	return &domain.PricingResult{
		ID:                uuid.NewString(),
		Symbol:            symbol,
		SpotRate:          spot.Price,
		FixedSpread:       spread,
		VolatilitySpread:  decimal.Zero,
		FinalRate:         spot.Price.Add(spread),
		CalculationMethod: domain.MethodFixedSpread,
		Timestamp:         now,
		Confidence:        confidence,
		Warnings:          warnings,
		Metadata: domain.ResultMetadata{
			SpotSource:           spot.Source,
			SpreadConfigID:       cfg.ID,
			HistoricalDataPoints: 1,
			PartnerID:            partnerID,
			SpreadPercent:        cfg.BaseSpreadPercent,
			StalenessSeconds:     stale,
		},
	}, nil
}

// CalculateVolatilityAdjustedRate prices off the analyzer's recommended
// spread instead of the fixed config. The two spreads are never combined.
func (e *Engine) CalculateVolatilityAdjustedRate(ctx context.Context, symbol string, spot domain.SpotRate) (*domain.PricingResult, error) {
	ctx, span := e.tracer.Start(ctx, "pricing.engine.calculate_volatility_adjusted",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("spot", spot.Price.String()),
		),
	)
	defer span.End()
	start := time.Now()

	symbol, err := canonicalSymbol(symbol)
	if err == nil {
		err = validateSpot(spot)
	}
	if err != nil {
		e.fail(ctx, span, domain.MethodVolatilityAdjusted, err)
		return nil, err
	}

	analysis, err := e.volatility.AnalyzeVolatility(ctx, symbol, 0)
	if err != nil {
		e.fail(ctx, span, domain.MethodVolatilityAdjusted, err)
		return nil, err
	}

	now := e.now()
	spread := money.Percent(spot.Price, analysis.RecommendedSpread)
	staleConfidence, stale := domain.StalenessConfidence(spot.Age(now), e.config.FreshnessWindow, e.config.MaxStalenessPenalty)

	warnings := append([]string(nil), analysis.Warnings...)
	if stale > 0 {
		warnings = append(warnings, fmt.Sprintf("Spot rate is stale by %ds", stale))
	}

	result := &domain.PricingResult{
		ID:                uuid.NewString(),
		Symbol:            symbol,
		SpotRate:          spot.Price,
		FixedSpread:       decimal.Zero,
		VolatilitySpread:  spread,
		FinalRate:         spot.Price.Add(spread),
		CalculationMethod: domain.MethodVolatilityAdjusted,
		Timestamp:         now,
		Confidence:        min(analysis.Confidence, staleConfidence),
		Warnings:          warnings,
		Metadata: domain.ResultMetadata{
			SpotSource:           spot.Source,
			SpreadConfigID:       analysis.ConfigID,
			HistoricalDataPoints: analysis.Metrics.DataPoints,
			SpreadPercent:        analysis.RecommendedSpread,
			StalenessSeconds:     stale,
		},
	}

	e.persist(ctx, result)
	e.record(ctx, span, result, start)
	return result, nil
}

// Quote fetches spot and, best-effort, the P2P indicative rate, then prices
// with the fixed spread. A P2P rate is attached for reference, feeds the
// volatility history and marks the result HYBRID_P2P; it never moves the
// final rate.
func (e *Engine) Quote(ctx context.Context, symbol, partnerID string) (*domain.PricingResult, error) {
	ctx, span := e.tracer.Start(ctx, "pricing.engine.quote",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("partner_id", partnerID),
		),
	)
	defer span.End()
	start := time.Now()

	symbol, err := canonicalSymbol(symbol)
	if err != nil {
		e.fail(ctx, span, domain.MethodFixedSpread, err)
		return nil, err
	}

	if e.spot == nil {
		err := apperror.New(apperror.CodeSpotRateUnavailable, apperror.WithContext("no spot feed configured"))
		e.fail(ctx, span, domain.MethodFixedSpread, err)
		return nil, err
	}

	spot, err := e.spot.GetSpotRate(ctx, symbol)
	if err != nil {
		wrapped := apperror.New(apperror.CodeSpotRateUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(symbol))
		e.fail(ctx, span, domain.MethodFixedSpread, wrapped)
		return nil, wrapped
	}

	result, err := e.fixedSpread(ctx, symbol, *spot, partnerID)
	if err != nil {
		e.fail(ctx, span, domain.MethodFixedSpread, err)
		return nil, err
	}

	if e.p2p != nil {
		p2p, err := e.p2p.GetIndicativeRate(ctx, symbol)
		if err != nil {
			e.logger.Debug(ctx, "p2p indicative rate unavailable",
				"symbol", symbol,
				"error", err)
			result.Warnings = append(result.Warnings, "P2P indicative rate unavailable")
		} else {
			rate := p2p.Rate
			result.P2PIndicativeRate = &rate
			result.CalculationMethod = domain.MethodHybridP2P
			if p2p.DataQuality < e.config.MinP2PDataQuality {
				result.Warnings = append(result.Warnings, fmt.Sprintf("Low P2P data quality: %d", p2p.DataQuality))
			}
			if e.volatility != nil {
				e.volatility.RecordDelta(ctx, *spot, *p2p)
			}
		}
	}

	e.persist(ctx, result)
	e.record(ctx, span, result, start)
	return result, nil
}

// persist stores the result for audit; failures are logged.
func (e *Engine) persist(ctx context.Context, result *domain.PricingResult) {
	if e.audit == nil {
		return
	}
	if err := e.audit.SavePricingResult(ctx, result); err != nil {
		e.logger.Warn(ctx, "failed to persist pricing result",
			"symbol", result.Symbol,
			"result_id", result.ID,
			"error", err)
	}
}

func (e *Engine) record(ctx context.Context, span trace.Span, result *domain.PricingResult, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("symbol", result.Symbol),
		attribute.String("method", string(result.CalculationMethod)),
	)
	e.metrics.calculations.Add(ctx, 1, attrs)
	e.metrics.confidence.Record(ctx, int64(result.Confidence), attrs)
	e.metrics.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, attrs)

	span.SetAttributes(
		attribute.String("final_rate", result.FinalRate.String()),
		attribute.String("method", string(result.CalculationMethod)),
		attribute.Int("confidence", result.Confidence),
	)

	e.logger.Debug(ctx, "rate calculated",
		"symbol", result.Symbol,
		"spot", result.SpotRate.String(),
		"final_rate", result.FinalRate.String(),
		"method", result.CalculationMethod,
		"confidence", result.Confidence)
}

func (e *Engine) fail(ctx context.Context, span trace.Span, method domain.CalculationMethod, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.metrics.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(method)),
		attribute.String("code", string(apperror.GetCode(err))),
	))
}
