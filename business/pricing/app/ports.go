// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"
	"time"

	"github.com/fd1az/fxdesk/business/pricing/domain"
)

const (
	tracerName = "github.com/fd1az/fxdesk/business/pricing/app"
	meterName  = "github.com/fd1az/fxdesk/business/pricing/app"
)

// SpreadConfigRepository persists spread configurations.
//
// Find methods return the most recently created row with is_active set and
// validFrom <= now for the exact key, or (nil, nil) when none exists. An empty
// partnerID selects the symbol-wide row. Any other error means the store is
// unreachable.
type SpreadConfigRepository interface {
	FindActiveFixedSpread(ctx context.Context, symbol, partnerID string, now time.Time) (*domain.FixedSpreadConfig, error)
	FindActiveVolatilityConfig(ctx context.Context, symbol string, now time.Time) (*domain.VolatilitySpreadConfig, error)
	SaveFixedSpread(ctx context.Context, cfg *domain.FixedSpreadConfig) error
	SaveVolatilityConfig(ctx context.Context, cfg *domain.VolatilitySpreadConfig) error
}

// DeltaHistory stores the P2P-minus-spot time series.
type DeltaHistory interface {
	RecordDelta(ctx context.Context, sample domain.DeltaSample) error
	// DeltasSince returns samples recorded at or after since, oldest first.
	DeltasSince(ctx context.Context, symbol string, since time.Time) ([]domain.DeltaSample, error)
}

// AuditRepository keeps pricing results and volatility metrics for audit.
type AuditRepository interface {
	SavePricingResult(ctx context.Context, result *domain.PricingResult) error
	SaveVolatilityMetrics(ctx context.Context, metrics *domain.VolatilityMetrics) error
}

// SpotFeed provides spot market rates.
type SpotFeed interface {
	GetSpotRate(ctx context.Context, symbol string) (*domain.SpotRate, error)
}

// P2PFeed provides indicative rates derived from the P2P order book.
type P2PFeed interface {
	GetIndicativeRate(ctx context.Context, symbol string) (*domain.P2PIndicativeRate, error)
}
