// Package postgres implements the pricing repositories on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fd1az/fxdesk/business/pricing/app"
	"github.com/fd1az/fxdesk/business/pricing/domain"
)

var _ app.SpreadConfigRepository = (*ConfigRepository)(nil)

// ConfigRepository stores fixed and volatility spread configs.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository creates a ConfigRepository.
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

const fixedColumns = `id, symbol, partner_id, base_spread_percent, min_spread_percent, max_spread_percent,
		is_active, valid_from, valid_to, created_at, updated_at, created_by`

// FindActiveFixedSpread returns the newest row for (symbol, partner) whose
// [valid_from, valid_to) window contains now.
// An empty partnerID matches rows without a partner.
func (r *ConfigRepository) FindActiveFixedSpread(ctx context.Context, symbol, partnerID string, now time.Time) (*domain.FixedSpreadConfig, error) {
	var row *sql.Row
	if partnerID == "" {
		query := `
		SELECT ` + fixedColumns + `
		FROM fixed_spread_configs
		WHERE symbol = $1 AND partner_id IS NULL AND is_active AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY created_at DESC
		LIMIT 1`
		row = r.db.QueryRowContext(ctx, query, symbol, now)
	} else {
		query := `
		SELECT ` + fixedColumns + `
		FROM fixed_spread_configs
		WHERE symbol = $1 AND partner_id = $2 AND is_active AND valid_from <= $3
		  AND (valid_to IS NULL OR valid_to > $3)
		ORDER BY created_at DESC
		LIMIT 1`
		row = r.db.QueryRowContext(ctx, query, symbol, partnerID, now)
	}

	cfg := &domain.FixedSpreadConfig{}
	var partner sql.NullString
	err := row.Scan(
		&cfg.ID,
		&cfg.Symbol,
		&partner,
		&cfg.BaseSpreadPercent,
		&cfg.MinSpreadPercent,
		&cfg.MaxSpreadPercent,
		&cfg.IsActive,
		&cfg.ValidFrom,
		&cfg.ValidTo,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
		&cfg.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query fixed spread config: %w", err)
	}
	if partner.Valid {
		cfg.PartnerID = &partner.String
	}

	return cfg, nil
}

// SaveFixedSpread inserts cfg or updates the row with the same id.
func (r *ConfigRepository) SaveFixedSpread(ctx context.Context, cfg *domain.FixedSpreadConfig) error {
	query := `
		INSERT INTO fixed_spread_configs (` + fixedColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			base_spread_percent = EXCLUDED.base_spread_percent,
			min_spread_percent  = EXCLUDED.min_spread_percent,
			max_spread_percent  = EXCLUDED.max_spread_percent,
			is_active           = EXCLUDED.is_active,
			valid_from          = EXCLUDED.valid_from,
			valid_to            = EXCLUDED.valid_to,
			updated_at          = EXCLUDED.updated_at`

	var partner sql.NullString
	if cfg.PartnerID != nil {
		partner = sql.NullString{String: *cfg.PartnerID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.Symbol,
		partner,
		cfg.BaseSpreadPercent,
		cfg.MinSpreadPercent,
		cfg.MaxSpreadPercent,
		cfg.IsActive,
		cfg.ValidFrom,
		cfg.ValidTo,
		cfg.CreatedAt,
		cfg.UpdatedAt,
		cfg.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("save fixed spread config: %w", err)
	}
	return nil
}

const volatilityColumns = `id, symbol, base_spread, volatility_multiplier, low_threshold, medium_threshold,
		high_threshold, critical_threshold, max_volatility_spread, smoothing_factor,
		is_active, valid_from, valid_to, created_at`

// FindActiveVolatilityConfig returns the newest row for symbol whose window
// contains now.
func (r *ConfigRepository) FindActiveVolatilityConfig(ctx context.Context, symbol string, now time.Time) (*domain.VolatilitySpreadConfig, error) {
	query := `
		SELECT ` + volatilityColumns + `
		FROM volatility_spread_configs
		WHERE symbol = $1 AND is_active AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY created_at DESC
		LIMIT 1`

	cfg := &domain.VolatilitySpreadConfig{}
	err := r.db.QueryRowContext(ctx, query, symbol, now).Scan(
		&cfg.ID,
		&cfg.Symbol,
		&cfg.BaseSpread,
		&cfg.VolatilityMultiplier,
		&cfg.LowThreshold,
		&cfg.MediumThreshold,
		&cfg.HighThreshold,
		&cfg.CriticalThreshold,
		&cfg.MaxVolatilitySpread,
		&cfg.SmoothingFactor,
		&cfg.IsActive,
		&cfg.ValidFrom,
		&cfg.ValidTo,
		&cfg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query volatility config: %w", err)
	}

	return cfg, nil
}

// SaveVolatilityConfig inserts cfg or updates the row with the same id.
func (r *ConfigRepository) SaveVolatilityConfig(ctx context.Context, cfg *domain.VolatilitySpreadConfig) error {
	query := `
		INSERT INTO volatility_spread_configs (` + volatilityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			base_spread           = EXCLUDED.base_spread,
			volatility_multiplier = EXCLUDED.volatility_multiplier,
			low_threshold         = EXCLUDED.low_threshold,
			medium_threshold      = EXCLUDED.medium_threshold,
			high_threshold        = EXCLUDED.high_threshold,
			critical_threshold    = EXCLUDED.critical_threshold,
			max_volatility_spread = EXCLUDED.max_volatility_spread,
			smoothing_factor      = EXCLUDED.smoothing_factor,
			is_active             = EXCLUDED.is_active,
			valid_from            = EXCLUDED.valid_from,
			valid_to              = EXCLUDED.valid_to`

	_, err := r.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.Symbol,
		cfg.BaseSpread,
		cfg.VolatilityMultiplier,
		cfg.LowThreshold,
		cfg.MediumThreshold,
		cfg.HighThreshold,
		cfg.CriticalThreshold,
		cfg.MaxVolatilitySpread,
		cfg.SmoothingFactor,
		cfg.IsActive,
		cfg.ValidFrom,
		cfg.ValidTo,
		cfg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save volatility config: %w", err)
	}
	return nil
}
