// Package app contains application services and port definitions for the deal context.
package app

import (
	"context"

	"github.com/fd1az/fxdesk/business/deal/domain"
	pricingDomain "github.com/fd1az/fxdesk/business/pricing/domain"
)

const (
	tracerName = "github.com/fd1az/fxdesk/business/deal/app"
	meterName  = "github.com/fd1az/fxdesk/business/deal/app"
)

// DealRepository persists deals.
type DealRepository interface {
	Create(ctx context.Context, deal *domain.Deal) error
	// Get returns DEAL_NOT_FOUND when the deal does not exist.
	Get(ctx context.Context, id string) (*domain.Deal, error)
	// UpdateIfStatus writes deal only if the stored status still equals
	// expected and the stored version equals deal.Version, then increments
	// deal.Version. A mismatch returns INVALID_DEAL_STATE carrying the stored
	// status.
	UpdateIfStatus(ctx context.Context, deal *domain.Deal, expected domain.Status) error
	// List returns deals matching filter, newest first.
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Deal, error)
}

// PartnerDirectory resolves partners. Unknown ids return PARTNER_NOT_FOUND.
type PartnerDirectory interface {
	GetPartner(ctx context.Context, id string) (*domain.Partner, error)
}

// Pricer quotes the current rate for a symbol and partner.
type Pricer interface {
	Quote(ctx context.Context, symbol, partnerID string) (*pricingDomain.PricingResult, error)
}

// CounterpartyMatcher finds a P2P counterparty for a deal.
type CounterpartyMatcher interface {
	FindCounterparty(ctx context.Context, query domain.CounterpartyQuery) (*domain.Counterparty, error)
}

// OrderGateway places and tracks orders on the P2P venue.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (string, error)
	GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// FillWatcher streams fill updates for an order. Gateways that implement it
// are monitored by push; others are polled.
type FillWatcher interface {
	WatchOrder(ctx context.Context, orderID string) (<-chan domain.OrderStatus, error)
}

// Notifier publishes deal lifecycle events. Implementations must not block
// and must swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any)
}
