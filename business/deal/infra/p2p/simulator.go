package p2p

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/deal/app"
	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/logger"
)

var (
	_ app.CounterpartyMatcher = (*Simulator)(nil)
	_ app.OrderGateway        = (*Simulator)(nil)
)

const defaultFillDelay = 2 * time.Second

// SimulatorConfig tunes the simulated venue.
type SimulatorConfig struct {
	FillDelay time.Duration
	// Slippage is applied to the requested rate on fill, in percent.
	Slippage decimal.Decimal
}

type simOrder struct {
	request  domain.OrderRequest
	state    domain.OrderState
	placedAt time.Time
}

// Simulator is an in-process venue. It always finds a counterparty that
// just meets the query and fills every order in full after FillDelay.
type Simulator struct {
	config SimulatorConfig
	logger logger.LoggerInterface

	mu     sync.Mutex
	orders map[string]*simOrder

	now   func() time.Time
	newID func() string
}

// NewSimulator creates a simulated venue.
func NewSimulator(cfg SimulatorConfig, log logger.LoggerInterface) *Simulator {
	if cfg.FillDelay < 0 {
		cfg.FillDelay = defaultFillDelay
	}
	return &Simulator{
		config: cfg,
		logger: log,
		orders: make(map[string]*simOrder),
		now:    time.Now,
		newID:  func() string { return "sim-" + uuid.NewString() },
	}
}

// FindCounterparty returns a synthetic counterparty.
func (s *Simulator) FindCounterparty(ctx context.Context, query domain.CounterpartyQuery) (*domain.Counterparty, error) {
	method := query.PaymentMethod
	if method == "" {
		method = "BANK_TRANSFER"
	}
	rating := query.MinRating
	if rating < 4.8 {
		rating = 4.8
	}
	return &domain.Counterparty{
		ID:              "sim-cp-" + query.Symbol,
		Name:            "Simulated counterparty",
		Rating:          rating,
		CompletedTrades: max(query.MinCompletedTrades, 100),
		PaymentMethod:   method,
	}, nil
}

// PlaceOrder records an order that fills after FillDelay.
func (s *Simulator) PlaceOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	if !req.Amount.IsPositive() || !req.Rate.IsPositive() {
		return "", apperror.New(apperror.CodeOrderPlacementFailed,
			apperror.WithContext(fmt.Sprintf("amount %s at rate %s", req.Amount, req.Rate)))
	}

	id := s.newID()
	s.mu.Lock()
	s.orders[id] = &simOrder{
		request:  req,
		state:    domain.OrderPending,
		placedAt: s.now(),
	}
	s.mu.Unlock()

	s.logger.Debug(ctx, "simulated order placed",
		"orderId", id,
		"dealId", req.DealID)
	return id, nil
}

// GetOrderStatus reports PENDING until the fill delay has passed.
func (s *Simulator) GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeOrderNotFound, orderID)
	}

	now := s.now()
	if o.state == domain.OrderPending && now.Sub(o.placedAt) >= s.config.FillDelay {
		o.state = domain.OrderFilled
	}

	status := &domain.OrderStatus{
		OrderID:   orderID,
		State:     o.state,
		UpdatedAt: now,
	}
	if o.state == domain.OrderFilled {
		factor := decimal.NewFromInt(1).Add(s.config.Slippage.Div(decimal.NewFromInt(100)))
		status.ExecutedRate = o.request.Rate.Mul(factor)
		status.ExecutedAmount = o.request.Amount
		status.SlippagePercent = s.config.Slippage
	}
	return status, nil
}

// CancelOrder cancels a pending order.
func (s *Simulator) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return apperror.NotFound(apperror.CodeOrderNotFound, orderID)
	}
	if o.state.IsFinal() {
		return apperror.New(apperror.CodeOrderFailed,
			apperror.WithContext(fmt.Sprintf("cancel %s: order is %s", orderID, o.state)),
			apperror.WithStatusCode(http.StatusConflict))
	}
	o.state = domain.OrderCancelled
	return nil
}
