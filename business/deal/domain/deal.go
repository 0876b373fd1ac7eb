package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/internal/apperror"
)

// Lifecycle events emitted to the notification sink.
const (
	EventDealCreated   = "deal.created"
	EventDealApproved  = "deal.approved"
	EventDealExecuted  = "deal.executed"
	EventDealFailed    = "deal.failed"
	EventDealCancelled = "deal.cancelled"
)

// Metadata records how the deal rate was priced.
type Metadata struct {
	SpotRate             decimal.Decimal  `json:"spotRate"`
	P2PRate              *decimal.Decimal `json:"p2pRate,omitempty"`
	Spread               decimal.Decimal  `json:"spread"`
	VolatilityAdjustment decimal.Decimal  `json:"volatilityAdjustment"`
	Confidence           int              `json:"confidence"`
	Source               string           `json:"source"`
}

// Counterparty is the P2P venue participant filling the deal.
type Counterparty struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Rating          float64 `json:"rating"`
	CompletedTrades int     `json:"completedTrades"`
	PaymentMethod   string  `json:"paymentMethod"`
}

// Deal is a partner conversion priced at creation and executed on the P2P venue.
type Deal struct {
	ID           string          `json:"id"`
	PartnerID    string          `json:"partnerId"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Amount       decimal.Decimal `json:"amount"`
	Rate         decimal.Decimal `json:"rate"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	ExecutedAt   *time.Time      `json:"executedAt,omitempty"`
	ClosedAt     *time.Time      `json:"closedAt,omitempty"`
	Metadata     Metadata        `json:"metadata"`
	Counterparty *Counterparty   `json:"counterparty,omitempty"`
	P2POrderID   *string         `json:"p2pOrderId,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	// Version is bumped by the repository on every successful update.
	Version int64 `json:"version"`
}

// NewDeal builds a deal in its initial status with totalValue = amount x rate.
func NewDeal(id, partnerID, symbol string, side Side, amount, rate decimal.Decimal, meta Metadata, initial Status, now time.Time) (*Deal, error) {
	if initial != StatusPending && initial != StatusApproved {
		return nil, apperror.Validation(apperror.CodeInvalidDealState,
			fmt.Sprintf("initial status must be PENDING or APPROVED, got %s", initial))
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "amount must be positive")
	}
	if !rate.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "rate must be positive")
	}

	return &Deal{
		ID:         id,
		PartnerID:  partnerID,
		Symbol:     symbol,
		Side:       side,
		Amount:     amount,
		Rate:       rate,
		TotalValue: amount.Mul(rate),
		Status:     initial,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   meta,
	}, nil
}

// Transition moves the deal to next, stamping executedAt on EXECUTED and
// closedAt on terminal statuses.
func (d *Deal) Transition(next Status, now time.Time) error {
	if !CanTransition(d.Status, next) {
		return apperror.Conflict(apperror.CodeInvalidDealState,
			fmt.Sprintf("deal %s cannot move from %s to %s", d.ID, d.Status, next))
	}

	d.Status = next
	d.UpdatedAt = now
	if next == StatusExecuted {
		t := now
		d.ExecutedAt = &t
	}
	if next.IsTerminal() {
		t := now
		d.ClosedAt = &t
	}
	return nil
}

// AppendNote appends a timestamped line. Existing notes are kept.
func (d *Deal) AppendNote(note string, now time.Time) {
	line := fmt.Sprintf("[%s] %s", now.UTC().Format(time.RFC3339), strings.TrimSpace(note))
	if d.Notes == "" {
		d.Notes = line
		return
	}
	d.Notes += "\n" + line
}

// EventKey partitions notifications by deal.
func (d Deal) EventKey() string { return d.ID }

// Profit is (rate - spot) x amount.
func (d Deal) Profit() decimal.Decimal {
	return d.Rate.Sub(d.Metadata.SpotRate).Mul(d.Amount)
}

// ExecutionTime is the time from creation to execution, if executed.
func (d Deal) ExecutionTime() (time.Duration, bool) {
	if d.ExecutedAt == nil {
		return 0, false
	}
	return d.ExecutedAt.Sub(d.CreatedAt), true
}

// Partner is a directory entry allowed to create deals.
type Partner struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	IsActive  bool             `json:"isActive"`
	MinAmount *decimal.Decimal `json:"minAmount,omitempty"`
	MaxAmount *decimal.Decimal `json:"maxAmount,omitempty"`
}

// CheckAmount enforces the partner's optional amount limits.
func (p Partner) CheckAmount(amount decimal.Decimal) error {
	if p.MinAmount != nil && amount.LessThan(*p.MinAmount) {
		return apperror.Validation(apperror.CodeAmountOutOfLimits,
			fmt.Sprintf("amount %s below partner minimum %s", amount, p.MinAmount))
	}
	if p.MaxAmount != nil && amount.GreaterThan(*p.MaxAmount) {
		return apperror.Validation(apperror.CodeAmountOutOfLimits,
			fmt.Sprintf("amount %s above partner maximum %s", amount, p.MaxAmount))
	}
	return nil
}

// ListFilter narrows deal listings. Zero values match everything.
type ListFilter struct {
	PartnerID string
	Symbol    string
	Status    Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// Matches applies the filter to a single deal, ignoring paging.
func (f ListFilter) Matches(d Deal) bool {
	if f.PartnerID != "" && d.PartnerID != f.PartnerID {
		return false
	}
	if f.Symbol != "" && d.Symbol != f.Symbol {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.From != nil && d.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !d.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}
