package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState is the venue-side state of a P2P order.
type OrderState string

const (
	OrderPending   OrderState = "PENDING"
	OrderFilled    OrderState = "FILLED"
	OrderFailed    OrderState = "FAILED"
	OrderCancelled OrderState = "CANCELLED"
)

// IsFinal reports whether the order will not change again.
func (s OrderState) IsFinal() bool {
	return s == OrderFilled || s == OrderFailed || s == OrderCancelled
}

// CounterpartyQuery describes the counterparty a deal needs.
type CounterpartyQuery struct {
	Symbol             string
	Side               Side
	Amount             decimal.Decimal
	MinRating          float64
	MinCompletedTrades int
	PaymentMethod      string
}

// OrderRequest places a P2P order against a counterparty.
type OrderRequest struct {
	DealID         string          `json:"dealId"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Amount         decimal.Decimal `json:"amount"`
	Rate           decimal.Decimal `json:"rate"`
	CounterpartyID string          `json:"counterpartyId"`
	PaymentMethod  string          `json:"paymentMethod"`
}

// OrderStatus is a fill report for a placed order.
type OrderStatus struct {
	OrderID         string          `json:"orderId"`
	State           OrderState      `json:"state"`
	ExecutedRate    decimal.Decimal `json:"executedRate"`
	ExecutedAmount  decimal.Decimal `json:"executedAmount"`
	SlippagePercent decimal.Decimal `json:"slippagePercent"`
	Reason          string          `json:"reason,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ExecutionMetadata describes how an execution went.
type ExecutionMetadata struct {
	ExecutionTime     int64            `json:"executionTime"` // milliseconds
	CounterpartyFound bool             `json:"counterpartyFound"`
	SlippagePercent   *decimal.Decimal `json:"slippagePercent,omitempty"`
}

// ExecutionResult is the outcome of executing a deal. Handled failures are
// reported with Success false rather than as errors.
type ExecutionResult struct {
	DealID         string            `json:"dealId"`
	Success        bool              `json:"success"`
	ExecutedRate   *decimal.Decimal  `json:"executedRate,omitempty"`
	ExecutedAmount *decimal.Decimal  `json:"executedAmount,omitempty"`
	P2POrderID     string            `json:"p2pOrderId,omitempty"`
	Error          string            `json:"error,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Metadata       ExecutionMetadata `json:"metadata"`
}
