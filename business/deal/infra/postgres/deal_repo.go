// Package postgres implements the deal repositories on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/deal/app"
	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
)

var _ app.DealRepository = (*DealRepository)(nil)

const dealColumns = `id, partner_id, symbol, side, amount, rate, total_value, status,
		created_at, updated_at, executed_at, closed_at,
		spot_rate, p2p_rate, spread, volatility_adjustment, confidence, source,
		counterparty, p2p_order_id, notes, version`

// DealRepository stores deals. Updates are compare-and-set on the stored
// status and version.
type DealRepository struct {
	db *sql.DB
}

// NewDealRepository creates a DealRepository.
func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create inserts a new deal.
func (r *DealRepository) Create(ctx context.Context, d *domain.Deal) error {
	query := `
		INSERT INTO deals (` + dealColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	counterparty, err := marshalCounterparty(d.Counterparty)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		d.ID,
		d.PartnerID,
		d.Symbol,
		string(d.Side),
		d.Amount,
		d.Rate,
		d.TotalValue,
		string(d.Status),
		d.CreatedAt,
		d.UpdatedAt,
		d.ExecutedAt,
		d.ClosedAt,
		d.Metadata.SpotRate,
		nullDecimal(d.Metadata.P2PRate),
		d.Metadata.Spread,
		d.Metadata.VolatilityAdjustment,
		d.Metadata.Confidence,
		d.Metadata.Source,
		counterparty,
		nullString(d.P2POrderID),
		sql.NullString{String: d.Notes, Valid: d.Notes != ""},
		d.Version,
	)
	if err != nil {
		return apperror.Internal(apperror.CodeDatabaseError, "insert deal", err)
	}
	return nil
}

// Get returns the deal with id or DEAL_NOT_FOUND.
func (r *DealRepository) Get(ctx context.Context, id string) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	d, err := scanDeal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeDealNotFound, id)
		}
		return nil, apperror.Internal(apperror.CodeDatabaseError, "get deal", err)
	}
	return d, nil
}

// UpdateIfStatus writes the mutable columns of d when the stored status
// equals expected and the stored version equals d.Version.
func (r *DealRepository) UpdateIfStatus(ctx context.Context, d *domain.Deal, expected domain.Status) error {
	query := `
		UPDATE deals SET
			status       = $2,
			updated_at   = $3,
			executed_at  = $4,
			closed_at    = $5,
			counterparty = $6,
			p2p_order_id = $7,
			notes        = $8,
			version      = version + 1
		WHERE id = $1 AND status = $9 AND version = $10`

	counterparty, err := marshalCounterparty(d.Counterparty)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query,
		d.ID,
		string(d.Status),
		d.UpdatedAt,
		d.ExecutedAt,
		d.ClosedAt,
		counterparty,
		nullString(d.P2POrderID),
		sql.NullString{String: d.Notes, Valid: d.Notes != ""},
		string(expected),
		d.Version,
	)
	if err != nil {
		return apperror.Internal(apperror.CodeDatabaseError, "update deal", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Internal(apperror.CodeDatabaseError, "update deal", err)
	}
	if n == 1 {
		d.Version++
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM deals WHERE id = $1`, d.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound(apperror.CodeDealNotFound, d.ID)
		}
		return apperror.Internal(apperror.CodeDatabaseError, "read deal status", err)
	}
	if domain.Status(current) != expected {
		return domain.StateConflict(d.ID, domain.Status(current), expected)
	}
	return domain.ConcurrentUpdate(d.ID, domain.Status(current), d.Version)
}

// List returns deals matching filter, newest first.
func (r *DealRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Deal, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.PartnerID != "" {
		add("partner_id = $%d", filter.PartnerID)
	}
	if filter.Symbol != "" {
		add("symbol = $%d", filter.Symbol)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}

	query := `SELECT ` + dealColumns + ` FROM deals`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeDatabaseError, "list deals", err)
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, apperror.Internal(apperror.CodeDatabaseError, "scan deal", err)
		}
		deals = append(deals, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Internal(apperror.CodeDatabaseError, "list deals", err)
	}
	return deals, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeal(row scanner) (*domain.Deal, error) {
	var (
		d            domain.Deal
		side, status string
		p2pRate      decimal.NullDecimal
		counterparty []byte
		orderID      sql.NullString
		notes        sql.NullString
	)
	err := row.Scan(
		&d.ID,
		&d.PartnerID,
		&d.Symbol,
		&side,
		&d.Amount,
		&d.Rate,
		&d.TotalValue,
		&status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ExecutedAt,
		&d.ClosedAt,
		&d.Metadata.SpotRate,
		&p2pRate,
		&d.Metadata.Spread,
		&d.Metadata.VolatilityAdjustment,
		&d.Metadata.Confidence,
		&d.Metadata.Source,
		&counterparty,
		&orderID,
		&notes,
		&d.Version,
	)
	if err != nil {
		return nil, err
	}

	d.Side = domain.Side(side)
	d.Status = domain.Status(status)
	if p2pRate.Valid {
		rate := p2pRate.Decimal
		d.Metadata.P2PRate = &rate
	}
	if len(counterparty) > 0 {
		var cp domain.Counterparty
		if err := json.Unmarshal(counterparty, &cp); err != nil {
			return nil, fmt.Errorf("decode counterparty: %w", err)
		}
		d.Counterparty = &cp
	}
	if orderID.Valid {
		id := orderID.String
		d.P2POrderID = &id
	}
	d.Notes = notes.String
	return &d, nil
}

func marshalCounterparty(cp *domain.Counterparty) (any, error) {
	if cp == nil {
		return nil, nil
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("marshal counterparty: %w", err)
	}
	return string(b), nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
