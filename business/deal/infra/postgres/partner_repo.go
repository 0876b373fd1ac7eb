package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/deal/app"
	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
)

var _ app.PartnerDirectory = (*PartnerRepository)(nil)

// PartnerRepository reads and seeds the partners table.
type PartnerRepository struct {
	db *sql.DB
}

// NewPartnerRepository creates a PartnerRepository.
func NewPartnerRepository(db *sql.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

// GetPartner returns the partner with id or PARTNER_NOT_FOUND.
func (r *PartnerRepository) GetPartner(ctx context.Context, id string) (*domain.Partner, error) {
	query := `SELECT id, name, is_active, min_amount, max_amount FROM partners WHERE id = $1`

	var (
		p         domain.Partner
		minAmount decimal.NullDecimal
		maxAmount decimal.NullDecimal
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.IsActive, &minAmount, &maxAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodePartnerNotFound, id)
		}
		return nil, apperror.Internal(apperror.CodeDatabaseError, "get partner", err)
	}
	if minAmount.Valid {
		v := minAmount.Decimal
		p.MinAmount = &v
	}
	if maxAmount.Valid {
		v := maxAmount.Decimal
		p.MaxAmount = &v
	}
	return &p, nil
}

// UpsertPartner inserts p or overwrites the row with the same id.
func (r *PartnerRepository) UpsertPartner(ctx context.Context, p domain.Partner) error {
	query := `
		INSERT INTO partners (id, name, is_active, min_amount, max_amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			is_active  = EXCLUDED.is_active,
			min_amount = EXCLUDED.min_amount,
			max_amount = EXCLUDED.max_amount`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.IsActive,
		nullDecimal(p.MinAmount),
		nullDecimal(p.MaxAmount),
	)
	if err != nil {
		return apperror.Internal(apperror.CodeDatabaseError, "upsert partner", err)
	}
	return nil
}
