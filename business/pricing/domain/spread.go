package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/money"
)

// SystemDefaultConfigID identifies synthesized default configs.
const SystemDefaultConfigID = "system-default"

// ActivityWindow is implemented by every config with a validity window.
type ActivityWindow interface {
	Window() (isActive bool, validFrom time.Time, validTo *time.Time)
}

// IsConfigActive reports isActive && validFrom <= now && (validTo == nil || now < validTo).
func IsConfigActive(c ActivityWindow, now time.Time) bool {
	if c == nil {
		return false
	}
	active, from, to := c.Window()
	if !active || from.After(now) {
		return false
	}
	return to == nil || now.Before(*to)
}

// FixedSpreadConfig bounds the spread applied on top of spot, in percent.
type FixedSpreadConfig struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	BaseSpreadPercent decimal.Decimal `json:"baseSpreadPercent"`
	MinSpreadPercent  decimal.Decimal `json:"minSpreadPercent"`
	MaxSpreadPercent  decimal.Decimal `json:"maxSpreadPercent"`
	IsActive          bool            `json:"isActive"`
	ValidFrom         time.Time       `json:"validFrom"`
	ValidTo           *time.Time      `json:"validTo,omitempty"`
	PartnerID         *string         `json:"partnerId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	CreatedBy         string          `json:"createdBy"`
}

// Window implements ActivityWindow.
func (c FixedSpreadConfig) Window() (bool, time.Time, *time.Time) {
	return c.IsActive, c.ValidFrom, c.ValidTo
}

// IsSystemDefault reports whether the config was synthesized rather than stored.
func (c FixedSpreadConfig) IsSystemDefault() bool {
	return c.ID == SystemDefaultConfigID
}

// Validate enforces 0 <= min <= base <= max and a sane window.
func (c FixedSpreadConfig) Validate() error {
	if c.Symbol == "" {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "symbol is required")
	}
	if c.MinSpreadPercent.IsNegative() {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "minSpreadPercent must be >= 0")
	}
	if c.MinSpreadPercent.GreaterThan(c.BaseSpreadPercent) || c.BaseSpreadPercent.GreaterThan(c.MaxSpreadPercent) {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig,
			"spread bounds must satisfy min <= base <= max, got "+
				c.MinSpreadPercent.String()+" <= "+c.BaseSpreadPercent.String()+" <= "+c.MaxSpreadPercent.String())
	}
	if c.ValidTo != nil && !c.ValidTo.After(c.ValidFrom) {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "validTo must be after validFrom")
	}
	return nil
}

// SpreadFor returns clamp(p*base/100, p*min/100, p*max/100).
func (c FixedSpreadConfig) SpreadFor(price decimal.Decimal) decimal.Decimal {
	return money.Clamp(
		money.Percent(price, c.BaseSpreadPercent),
		money.Percent(price, c.MinSpreadPercent),
		money.Percent(price, c.MaxSpreadPercent),
	)
}

// SystemDefaultFixedSpread synthesizes the fallback config for symbol.
func SystemDefaultFixedSpread(symbol string, base, min, max decimal.Decimal, now time.Time) FixedSpreadConfig {
	return FixedSpreadConfig{
		ID:                SystemDefaultConfigID,
		Symbol:            symbol,
		BaseSpreadPercent: base,
		MinSpreadPercent:  min,
		MaxSpreadPercent:  max,
		IsActive:          true,
		ValidFrom:         time.Time{},
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         "system",
	}
}

// VolatilitySpreadConfig drives the volatility-adjusted spread.
type VolatilitySpreadConfig struct {
	ID                   string          `json:"id"`
	Symbol               string          `json:"symbol"`
	BaseSpread           decimal.Decimal `json:"baseSpread"`
	VolatilityMultiplier decimal.Decimal `json:"volatilityMultiplier"`
	LowThreshold         decimal.Decimal `json:"lowThreshold"`
	MediumThreshold      decimal.Decimal `json:"mediumThreshold"`
	HighThreshold        decimal.Decimal `json:"highThreshold"`
	CriticalThreshold    decimal.Decimal `json:"criticalThreshold"`
	MaxVolatilitySpread  decimal.Decimal `json:"maxVolatilitySpread"`
	SmoothingFactor      decimal.Decimal `json:"smoothingFactor"`
	IsActive             bool            `json:"isActive"`
	ValidFrom            time.Time       `json:"validFrom"`
	ValidTo              *time.Time      `json:"validTo,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// Window implements ActivityWindow.
func (c VolatilitySpreadConfig) Window() (bool, time.Time, *time.Time) {
	return c.IsActive, c.ValidFrom, c.ValidTo
}

// Validate checks bounds, ordering of thresholds and the smoothing range.
func (c VolatilitySpreadConfig) Validate() error {
	if c.Symbol == "" {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "symbol is required")
	}
	if c.BaseSpread.IsNegative() || c.VolatilityMultiplier.IsNegative() {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "baseSpread and volatilityMultiplier must be >= 0")
	}
	if c.BaseSpread.GreaterThan(c.MaxVolatilitySpread) {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "baseSpread must not exceed maxVolatilitySpread")
	}
	if c.LowThreshold.IsNegative() ||
		c.LowThreshold.GreaterThan(c.MediumThreshold) ||
		c.MediumThreshold.GreaterThan(c.HighThreshold) ||
		c.HighThreshold.GreaterThan(c.CriticalThreshold) {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "thresholds must be ascending: low <= medium <= high <= critical")
	}
	if c.SmoothingFactor.IsNegative() || c.SmoothingFactor.GreaterThan(decimal.NewFromInt(1)) {
		return apperror.Validation(apperror.CodeInvalidSpreadConfig, "smoothingFactor must be within [0,1]")
	}
	return nil
}

var (
	lowBandCeiling    = decimal.RequireFromString("0.2")
	mediumBandCeiling = decimal.RequireFromString("0.5")
	highBandCeiling   = decimal.RequireFromString("0.8")
)

// Adjustment maps a volatility index onto a spread adjustment, before
// smoothing. Bands are inclusive-lower, exclusive-upper:
//
//	index < low              -> 0
//	[low, medium)            -> ramps 0     -> 0.2*m
//	[medium, high)           -> ramps 0.2*m -> 0.5*m
//	[high, critical)         -> ramps 0.5*m -> 0.8*m
//	index >= critical        -> min(m, maxVolatilitySpread - baseSpread),
//	                            never below the high band's 0.8*m
//
// The floor keeps the adjustment non-decreasing in the index when the
// headroom is smaller than 0.8*m; RecommendedSpread still caps the result at
// maxVolatilitySpread.
func (c VolatilitySpreadConfig) Adjustment(index decimal.Decimal) decimal.Decimal {
	m := c.VolatilityMultiplier

	switch {
	case index.LessThan(c.LowThreshold):
		return decimal.Zero
	case index.LessThan(c.MediumThreshold):
		return ramp(index, c.LowThreshold, c.MediumThreshold, decimal.Zero, lowBandCeiling).Mul(m)
	case index.LessThan(c.HighThreshold):
		return ramp(index, c.MediumThreshold, c.HighThreshold, lowBandCeiling, mediumBandCeiling).Mul(m)
	case index.LessThan(c.CriticalThreshold):
		return ramp(index, c.HighThreshold, c.CriticalThreshold, mediumBandCeiling, highBandCeiling).Mul(m)
	default:
		capped := decimal.Min(m, c.MaxVolatilitySpread.Sub(c.BaseSpread))
		return decimal.Max(capped, highBandCeiling.Mul(m))
	}
}

// RecommendedSpread returns min(base + adjustment*smoothing, maxVolatilitySpread)
// together with the smoothed adjustment.
func (c VolatilitySpreadConfig) RecommendedSpread(index decimal.Decimal) (spread, adjustment decimal.Decimal) {
	adjustment = c.Adjustment(index).Mul(c.SmoothingFactor)
	spread = decimal.Min(c.BaseSpread.Add(adjustment), c.MaxVolatilitySpread)
	return spread, adjustment
}

// ramp interpolates linearly between from and to as x moves across [lo, hi).
// Callers guarantee lo <= x < hi, so hi > lo.
func ramp(x, lo, hi, from, to decimal.Decimal) decimal.Decimal {
	frac, err := money.Div(x.Sub(lo), hi.Sub(lo))
	if err != nil {
		return to
	}
	return from.Add(to.Sub(from).Mul(frac))
}

// DefaultVolatilityConfig returns the system default volatility config.
func DefaultVolatilityConfig(symbol string) VolatilitySpreadConfig {
	return VolatilitySpreadConfig{
		ID:                   SystemDefaultConfigID,
		Symbol:               symbol,
		BaseSpread:           decimal.RequireFromString("0.5"),
		VolatilityMultiplier: decimal.RequireFromString("1.5"),
		LowThreshold:         decimal.NewFromInt(5),
		MediumThreshold:      decimal.NewFromInt(10),
		HighThreshold:        decimal.NewFromInt(15),
		CriticalThreshold:    decimal.NewFromInt(20),
		MaxVolatilitySpread:  decimal.NewFromInt(3),
		SmoothingFactor:      decimal.RequireFromString("0.7"),
		IsActive:             true,
	}
}
