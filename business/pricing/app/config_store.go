package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/cache"
	"github.com/fd1az/fxdesk/internal/logger"
)

// ConfigStoreConfig holds cache settings and the system default volatility config.
type ConfigStoreConfig struct {
	CacheTTL          time.Duration
	DefaultVolatility func(symbol string) domain.VolatilitySpreadConfig
}

// fixedLookup caches a lookup result, including a miss.
type fixedLookup struct {
	cfg   domain.FixedSpreadConfig
	found bool
}

// ConfigStore resolves active spread configurations with a read-through cache.
type ConfigStore struct {
	repo   SpreadConfigRepository
	config ConfigStoreConfig
	logger logger.LoggerInterface
	tracer trace.Tracer

	fixed      *cache.Cache[string, fixedLookup]
	volatility *cache.Cache[string, domain.VolatilitySpreadConfig]

	now func() time.Time
}

// NewConfigStore creates a ConfigStore over repo.
func NewConfigStore(repo SpreadConfigRepository, cfg ConfigStoreConfig, log logger.LoggerInterface) *ConfigStore {
	if cfg.DefaultVolatility == nil {
		cfg.DefaultVolatility = domain.DefaultVolatilityConfig
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &ConfigStore{
		repo:       repo,
		config:     cfg,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		fixed:      cache.New[string, fixedLookup](time.Minute),
		volatility: cache.New[string, domain.VolatilitySpreadConfig](time.Minute),
		now:        time.Now,
	}
}

// Close stops the cache janitors.
func (s *ConfigStore) Close() {
	s.fixed.Close()
	s.volatility.Close()
}

func fixedKey(symbol, partnerID string) string {
	return symbol + "|" + partnerID
}

// GetActiveFixedSpreadConfig resolves partner-specific, then symbol-wide
// config. It returns (nil, nil) when neither exists; the caller applies the
// system default. Store failures surface as CONFIG_UNAVAILABLE.
func (s *ConfigStore) GetActiveFixedSpreadConfig(ctx context.Context, symbol, partnerID string) (*domain.FixedSpreadConfig, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.config.get_fixed_spread",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("partner_id", partnerID),
		),
	)
	defer span.End()

	if partnerID != "" {
		cfg, err := s.lookupFixed(ctx, symbol, partnerID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "config store unavailable")
			return nil, err
		}
		if cfg != nil {
			span.SetAttributes(attribute.String("config_id", cfg.ID))
			return cfg, nil
		}
	}

	cfg, err := s.lookupFixed(ctx, symbol, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "config store unavailable")
		return nil, err
	}
	if cfg != nil {
		span.SetAttributes(attribute.String("config_id", cfg.ID))
	}
	return cfg, nil
}

func (s *ConfigStore) lookupFixed(ctx context.Context, symbol, partnerID string) (*domain.FixedSpreadConfig, error) {
	key := fixedKey(symbol, partnerID)
	if hit, ok := s.fixed.Get(ctx, key); ok {
		if !hit.found {
			return nil, nil
		}
		cfg := hit.cfg
		return &cfg, nil
	}

	cfg, err := s.repo.FindActiveFixedSpread(ctx, symbol, partnerID, s.now())
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("fixed spread lookup for "+symbol))
	}

	if cfg == nil {
		s.fixed.Set(ctx, key, fixedLookup{}, s.config.CacheTTL)
		return nil, nil
	}
	s.fixed.Set(ctx, key, fixedLookup{cfg: *cfg, found: true}, s.config.CacheTTL)
	out := *cfg
	return &out, nil
}

// GetActiveVolatilityConfig always returns a usable config. Missing, inactive
// or unreachable configs fall back to the system default with a warning.
func (s *ConfigStore) GetActiveVolatilityConfig(ctx context.Context, symbol string) (*domain.VolatilitySpreadConfig, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.config.get_volatility",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	if cfg, ok := s.volatility.Get(ctx, symbol); ok {
		return &cfg, nil
	}

	now := s.now()
	cfg, err := s.repo.FindActiveVolatilityConfig(ctx, symbol, now)
	switch {
	case err != nil:
		span.RecordError(err)
		s.logger.Warn(ctx, "volatility config store unavailable, using system default",
			"symbol", symbol,
			"error", err)
		// not cached so the next call retries the store
		def := s.config.DefaultVolatility(symbol)
		return &def, nil
	case cfg == nil:
		s.logger.Debug(ctx, "no volatility config, using system default", "symbol", symbol)
		def := s.config.DefaultVolatility(symbol)
		cfg = &def
	case !domain.IsConfigActive(*cfg, now):
		s.logger.Warn(ctx, "volatility config not active, using system default",
			"symbol", symbol,
			"config_id", cfg.ID)
		def := s.config.DefaultVolatility(symbol)
		cfg = &def
	}

	s.volatility.Set(ctx, symbol, *cfg, s.config.CacheTTL)
	out := *cfg
	return &out, nil
}

// SaveFixedSpreadConfig validates and stores cfg, then invalidates cached
// lookups for its symbol.
func (s *ConfigStore) SaveFixedSpreadConfig(ctx context.Context, cfg domain.FixedSpreadConfig) (*domain.FixedSpreadConfig, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.config.save_fixed_spread",
		trace.WithAttributes(attribute.String("symbol", cfg.Symbol)),
	)
	defer span.End()

	symbol, err := canonicalSymbol(cfg.Symbol)
	if err != nil {
		return nil, err
	}
	cfg.Symbol = symbol

	now := s.now()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.ValidFrom.IsZero() {
		cfg.ValidFrom = now
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	if cfg.PartnerID != nil && *cfg.PartnerID == "" {
		cfg.PartnerID = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.SaveFixedSpread(ctx, &cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, apperror.Wrap(err, apperror.CodeDatabaseError, "save fixed spread config")
	}

	prefix := cfg.Symbol + "|"
	evicted := s.fixed.DeleteFunc(ctx, func(k string) bool { return strings.HasPrefix(k, prefix) })

	s.logger.Info(ctx, "fixed spread config saved",
		"config_id", cfg.ID,
		"symbol", cfg.Symbol,
		"base", cfg.BaseSpreadPercent.String(),
		"evicted", evicted)

	return &cfg, nil
}

// SaveVolatilityConfig validates and stores cfg, then invalidates its symbol.
func (s *ConfigStore) SaveVolatilityConfig(ctx context.Context, cfg domain.VolatilitySpreadConfig) (*domain.VolatilitySpreadConfig, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.config.save_volatility",
		trace.WithAttributes(attribute.String("symbol", cfg.Symbol)),
	)
	defer span.End()

	symbol, err := canonicalSymbol(cfg.Symbol)
	if err != nil {
		return nil, err
	}
	cfg.Symbol = symbol

	now := s.now()
	if cfg.ID == "" || cfg.ID == domain.SystemDefaultConfigID {
		cfg.ID = uuid.NewString()
	}
	if cfg.ValidFrom.IsZero() {
		cfg.ValidFrom = now
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.SaveVolatilityConfig(ctx, &cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, apperror.Wrap(err, apperror.CodeDatabaseError, "save volatility config")
	}

	s.volatility.Delete(ctx, cfg.Symbol)

	s.logger.Info(ctx, "volatility config saved",
		"config_id", cfg.ID,
		"symbol", cfg.Symbol)

	return &cfg, nil
}
