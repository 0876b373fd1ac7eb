package app

import (
	"context"
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
	"github.com/fd1az/fxdesk/internal/logger"
)

// WarningInsufficientData is attached when the window holds too few samples.
const WarningInsufficientData = "Insufficient historical data"

// VolatilityConfigSource resolves the volatility config for a symbol.
type VolatilityConfigSource interface {
	GetActiveVolatilityConfig(ctx context.Context, symbol string) (*domain.VolatilitySpreadConfig, error)
}

// AnalyzerConfig holds analyzer thresholds.
type AnalyzerConfig struct {
	MinDataPoints       int
	FullConfidencePoint int
	DefaultWindowHours  int
}

// DefaultAnalyzerConfig returns 10 minimum samples, full confidence at 50 and a 24h window.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinDataPoints:       10,
		FullConfidencePoint: 50,
		DefaultWindowHours:  24,
	}
}

type analyzerMetrics struct {
	analyses        metric.Int64Counter
	insufficient    metric.Int64Counter
	volatilityIndex metric.Float64Histogram
}

// VolatilityAnalyzer turns the delta history into a recommended spread.
type VolatilityAnalyzer struct {
	history DeltaHistory
	audit   AuditRepository
	configs VolatilityConfigSource
	config  AnalyzerConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *analyzerMetrics
	now     func() time.Time
}

// NewVolatilityAnalyzer creates an analyzer. audit may be nil.
func NewVolatilityAnalyzer(
	history DeltaHistory,
	audit AuditRepository,
	configs VolatilityConfigSource,
	cfg AnalyzerConfig,
	log logger.LoggerInterface,
) (*VolatilityAnalyzer, error) {
	def := DefaultAnalyzerConfig()
	if cfg.MinDataPoints <= 0 {
		cfg.MinDataPoints = def.MinDataPoints
	}
	if cfg.FullConfidencePoint <= 0 {
		cfg.FullConfidencePoint = def.FullConfidencePoint
	}
	if cfg.DefaultWindowHours <= 0 {
		cfg.DefaultWindowHours = def.DefaultWindowHours
	}

	a := &VolatilityAnalyzer{
		history: history,
		audit:   audit,
		configs: configs,
		config:  cfg,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	if err := a.initMetrics(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *VolatilityAnalyzer) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &analyzerMetrics{}

	a.metrics.analyses, err = meter.Int64Counter(
		"volatility_analyses_total",
		metric.WithDescription("Total volatility analyses"),
	)
	if err != nil {
		return err
	}

	a.metrics.insufficient, err = meter.Int64Counter(
		"volatility_insufficient_data_total",
		metric.WithDescription("Analyses that fell back for lack of samples"),
	)
	if err != nil {
		return err
	}

	a.metrics.volatilityIndex, err = meter.Float64Histogram(
		"volatility_index",
		metric.WithDescription("Coefficient of variation of the P2P-spot delta, percent"),
	)
	if err != nil {
		return err
	}

	return nil
}

// AnalyzeVolatility computes volatility over the trailing window. A
// non-positive window means the default. Too few samples yield a LOW result
// with zero confidence rather than an error.
func (a *VolatilityAnalyzer) AnalyzeVolatility(ctx context.Context, symbol string, timeWindowHours int) (*domain.VolatilityAnalysis, error) {
	if timeWindowHours <= 0 {
		timeWindowHours = a.config.DefaultWindowHours
	}

	ctx, span := a.tracer.Start(ctx, "pricing.volatility.analyze",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.Int("window_hours", timeWindowHours),
		),
	)
	defer span.End()

	cfg, err := a.configs.GetActiveVolatilityConfig(ctx, symbol)
	if err != nil || cfg == nil {
		def := domain.DefaultVolatilityConfig(symbol)
		cfg = &def
	}

	now := a.now()
	since := now.Add(-time.Duration(timeWindowHours) * time.Hour)

	samples, err := a.history.DeltasSince(ctx, symbol, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history unavailable")
		return nil, apperror.New(apperror.CodeHistoryUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(symbol))
	}

	a.metrics.analyses.Add(ctx, 1)
	span.SetAttributes(attribute.Int("data_points", len(samples)))

	metrics := domain.VolatilityMetrics{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		TimeWindowHours: timeWindowHours,
		Variance:        decimal.Zero,
		VolatilityIndex: decimal.Zero,
		RiskLevel:       domain.RiskLow,
		DataPoints:      len(samples),
		CalculatedAt:    now,
	}

	if len(samples) < a.config.MinDataPoints {
		a.metrics.insufficient.Add(ctx, 1)
		a.logger.Debug(ctx, "insufficient volatility history",
			"symbol", symbol,
			"data_points", len(samples),
			"required", a.config.MinDataPoints)

		return &domain.VolatilityAnalysis{
			Metrics:              metrics,
			RecommendedSpread:    cfg.BaseSpread,
			VolatilityAdjustment: decimal.Zero,
			Confidence:           0,
			Warnings:             []string{WarningInsufficientData},
			ConfigID:             cfg.ID,
		}, nil
	}

	computed, err := domain.ComputeMetrics(domain.Deltas(samples))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metrics computation failed")
		return nil, err
	}
	computed.ID = metrics.ID
	computed.Symbol = symbol
	computed.TimeWindowHours = timeWindowHours
	computed.CalculatedAt = now

	recommended, adjustment := cfg.RecommendedSpread(computed.VolatilityIndex)

	var warnings []string
	if computed.RiskLevel == domain.RiskCritical {
		warnings = append(warnings, "Critical volatility: "+computed.VolatilityIndex.StringFixed(2)+"%")
	}

	analysis := &domain.VolatilityAnalysis{
		Metrics:              computed,
		RecommendedSpread:    recommended,
		VolatilityAdjustment: adjustment,
		Confidence:           domain.AnalysisConfidence(len(samples), a.config.FullConfidencePoint, computed.RiskLevel),
		Warnings:             warnings,
		ConfigID:             cfg.ID,
	}

	indexF, _ := computed.VolatilityIndex.Float64()
	a.metrics.volatilityIndex.Record(ctx, indexF, metric.WithAttributes(attribute.String("symbol", symbol)))
	span.SetAttributes(
		attribute.String("risk_level", string(computed.RiskLevel)),
		attribute.String("volatility_index", computed.VolatilityIndex.String()),
	)

	if a.audit != nil {
		if err := a.audit.SaveVolatilityMetrics(ctx, &computed); err != nil {
			a.logger.Warn(ctx, "failed to persist volatility metrics",
				"symbol", symbol,
				"error", err)
		}
	}

	return analysis, nil
}

// RecordDelta stores p2p.Rate - spot.Price as a history sample. Failures are logged.
func (a *VolatilityAnalyzer) RecordDelta(ctx context.Context, spot domain.SpotRate, p2p domain.P2PIndicativeRate) {
	sample := domain.NewDeltaSample(spot, p2p, a.now())
	if err := a.history.RecordDelta(ctx, sample); err != nil {
		a.logger.Warn(ctx, "failed to record rate delta",
			"symbol", spot.Symbol,
			"error", err)
	}
}
