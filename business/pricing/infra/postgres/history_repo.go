package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fd1az/fxdesk/business/pricing/app"
	"github.com/fd1az/fxdesk/business/pricing/domain"
)

var _ app.DeltaHistory = (*HistoryRepository)(nil)

// HistoryRepository stores the rate delta time series.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a HistoryRepository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordDelta appends one sample.
func (r *HistoryRepository) RecordDelta(ctx context.Context, s domain.DeltaSample) error {
	query := `
		INSERT INTO rate_deltas (symbol, delta, spot_rate, p2p_rate, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, s.Symbol, s.Delta, s.SpotRate, s.P2PRate, s.RecordedAt); err != nil {
		return fmt.Errorf("record rate delta: %w", err)
	}
	return nil
}

// DeltasSince returns samples for symbol recorded at or after since, oldest first.
func (r *HistoryRepository) DeltasSince(ctx context.Context, symbol string, since time.Time) ([]domain.DeltaSample, error) {
	query := `
		SELECT symbol, delta, spot_rate, p2p_rate, recorded_at
		FROM rate_deltas
		WHERE symbol = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC`

	rows, err := r.db.QueryContext(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("query rate deltas: %w", err)
	}
	defer rows.Close()

	var samples []domain.DeltaSample
	for rows.Next() {
		var s domain.DeltaSample
		if err := rows.Scan(&s.Symbol, &s.Delta, &s.SpotRate, &s.P2PRate, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan rate delta: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate deltas: %w", err)
	}

	return samples, nil
}
