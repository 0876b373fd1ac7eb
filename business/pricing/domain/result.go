package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculationMethod identifies how a rate was produced.
type CalculationMethod string

const (
	MethodFixedSpread        CalculationMethod = "FIXED_SPREAD"
	MethodHybridP2P          CalculationMethod = "HYBRID_P2P"
	MethodVolatilityAdjusted CalculationMethod = "VOLATILITY_ADJUSTED"
)

// ResultMetadata records provenance of a pricing result.
type ResultMetadata struct {
	SpotSource           string          `json:"spotSource"`
	SpreadConfigID       string          `json:"spreadConfigId"`
	HistoricalDataPoints int             `json:"historicalDataPoints"`
	PartnerID            string          `json:"partnerId,omitempty"`
	SpreadPercent        decimal.Decimal `json:"spreadPercent"`
	StalenessSeconds     int64           `json:"stalenessSeconds"`
}

// PricingResult is the immutable output of a rate calculation.
type PricingResult struct {
	ID                string            `json:"id"`
	Symbol            string            `json:"symbol"`
	SpotRate          decimal.Decimal   `json:"spotRate"`
	P2PIndicativeRate *decimal.Decimal  `json:"p2pIndicativeRate,omitempty"`
	FixedSpread       decimal.Decimal   `json:"fixedSpread"`
	VolatilitySpread  decimal.Decimal   `json:"volatilitySpread"`
	FinalRate         decimal.Decimal   `json:"finalRate"`
	CalculationMethod CalculationMethod `json:"calculationMethod"`
	Timestamp         time.Time         `json:"timestamp"`
	Confidence        int               `json:"confidence"`
	Warnings          []string          `json:"warnings"`
	Metadata          ResultMetadata    `json:"metadata"`
}

// TotalSpread returns the spread actually applied to spot.
func (r PricingResult) TotalSpread() decimal.Decimal {
	return r.FinalRate.Sub(r.SpotRate)
}

// StalenessConfidence returns 100 minus one point per second of age beyond
// freshness, capped at maxPenalty.
func StalenessConfidence(age, freshness time.Duration, maxPenalty int) (confidence int, staleSeconds int64) {
	if age <= freshness {
		return 100, 0
	}
	staleSeconds = int64((age - freshness) / time.Second)
	penalty := staleSeconds
	if penalty > int64(maxPenalty) {
		penalty = int64(maxPenalty)
	}
	return 100 - int(penalty), staleSeconds
}
