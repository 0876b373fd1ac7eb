package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/internal/money"
)

// RiskLevel classifies a volatility index.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var (
	riskMediumFloor   = decimal.NewFromInt(5)
	riskHighFloor     = decimal.NewFromInt(10)
	riskCriticalFloor = decimal.NewFromInt(15)
)

// RiskLevelFor maps an index: <5 LOW, [5,10) MEDIUM, [10,15) HIGH, >=15 CRITICAL.
func RiskLevelFor(index decimal.Decimal) RiskLevel {
	switch {
	case index.GreaterThanOrEqual(riskCriticalFloor):
		return RiskCritical
	case index.GreaterThanOrEqual(riskHighFloor):
		return RiskHigh
	case index.GreaterThanOrEqual(riskMediumFloor):
		return RiskMedium
	default:
		return RiskLow
	}
}

// ConfidencePenalty is the number of confidence points lost at this level.
func (r RiskLevel) ConfidencePenalty() int {
	switch r {
	case RiskCritical:
		return 20
	case RiskHigh:
		return 10
	case RiskMedium:
		return 5
	default:
		return 0
	}
}

// VolatilityMetrics is the audit record of one analysis.
type VolatilityMetrics struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	TimeWindowHours   int             `json:"timeWindowHours"`
	Variance          decimal.Decimal `json:"variance"`
	StandardDeviation decimal.Decimal `json:"standardDeviation"`
	MovingAverage     decimal.Decimal `json:"movingAverage"`
	VolatilityIndex   decimal.Decimal `json:"volatilityIndex"`
	RiskLevel         RiskLevel       `json:"riskLevel"`
	DataPoints        int             `json:"dataPoints"`
	CalculatedAt      time.Time       `json:"calculatedAt"`
}

// VolatilityAnalysis is returned by the analyzer.
type VolatilityAnalysis struct {
	Metrics              VolatilityMetrics `json:"metrics"`
	RecommendedSpread    decimal.Decimal   `json:"recommendedSpread"`
	VolatilityAdjustment decimal.Decimal   `json:"volatilityAdjustment"`
	Confidence           int               `json:"confidence"`
	Warnings             []string          `json:"warnings"`
	ConfigID             string            `json:"configId"`
}

// ComputeMetrics derives mean, population variance, standard deviation and
// the coefficient-of-variation index (percent) from deltas. The index is 0
// when the mean is zero.
func ComputeMetrics(deltas []decimal.Decimal) (VolatilityMetrics, error) {
	variance, mean, err := money.Variance(deltas)
	if err != nil {
		return VolatilityMetrics{}, err
	}
	stdDev, err := money.Sqrt(variance)
	if err != nil {
		return VolatilityMetrics{}, err
	}

	index := decimal.Zero
	if !mean.IsZero() {
		ratio, err := money.Div(stdDev, mean.Abs())
		if err != nil {
			return VolatilityMetrics{}, err
		}
		index = ratio.Mul(money.Hundred())
	}

	return VolatilityMetrics{
		Variance:          variance,
		StandardDeviation: stdDev,
		MovingAverage:     mean,
		VolatilityIndex:   index,
		RiskLevel:         RiskLevelFor(index),
		DataPoints:        len(deltas),
	}, nil
}

// SampleConfidence returns 100 minus up to 25 points for sample counts below
// fullAt, rounded to the nearest integer.
func SampleConfidence(n, fullAt int) int {
	if fullAt <= 0 || n >= fullAt {
		return 100
	}
	if n < 0 {
		n = 0
	}
	missing := decimal.NewFromInt(int64(fullAt - n))
	penalty := missing.Mul(decimal.NewFromInt(25)).Div(decimal.NewFromInt(int64(fullAt)))
	return int(decimal.NewFromInt(100).Sub(penalty).Round(0).IntPart())
}

// AnalysisConfidence combines sample and risk penalties, floored at 0.
func AnalysisConfidence(n, fullAt int, risk RiskLevel) int {
	c := SampleConfidence(n, fullAt) - risk.ConfidencePenalty()
	if c < 0 {
		return 0
	}
	return c
}
