package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/pricing/app"
	"github.com/fd1az/fxdesk/business/pricing/domain"
)

var _ app.AuditRepository = (*AuditRepository)(nil)

// AuditRepository keeps pricing results and volatility metrics.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// SavePricingResult inserts one pricing result.
func (r *AuditRepository) SavePricingResult(ctx context.Context, res *domain.PricingResult) error {
	query := `
		INSERT INTO pricing_results (id, symbol, spot_rate, p2p_indicative_rate, fixed_spread, volatility_spread,
			final_rate, calculation_method, confidence, warnings, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	metadataJSON, err := json.Marshal(res.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var p2p decimal.NullDecimal
	if res.P2PIndicativeRate != nil {
		p2p = decimal.NewNullDecimal(*res.P2PIndicativeRate)
	}

	_, err = r.db.ExecContext(ctx, query,
		res.ID,
		res.Symbol,
		res.SpotRate,
		p2p,
		res.FixedSpread,
		res.VolatilitySpread,
		res.FinalRate,
		string(res.CalculationMethod),
		res.Confidence,
		string(warningsJSON),
		string(metadataJSON),
		res.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save pricing result: %w", err)
	}
	return nil
}

// SaveVolatilityMetrics inserts one metrics record.
func (r *AuditRepository) SaveVolatilityMetrics(ctx context.Context, m *domain.VolatilityMetrics) error {
	query := `
		INSERT INTO volatility_metrics (id, symbol, time_window_hours, variance, standard_deviation,
			moving_average, volatility_index, risk_level, data_points, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.Symbol,
		m.TimeWindowHours,
		m.Variance,
		m.StandardDeviation,
		m.MovingAverage,
		m.VolatilityIndex,
		string(m.RiskLevel),
		m.DataPoints,
		m.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("save volatility metrics: %w", err)
	}
	return nil
}
