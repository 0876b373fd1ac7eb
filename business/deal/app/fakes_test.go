package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/deal/domain"
	pricingDomain "github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/logger"
)

type fakeDeals struct {
	mu    sync.Mutex
	deals map[string]domain.Deal
}

func newFakeDeals() *fakeDeals {
	return &fakeDeals{deals: make(map[string]domain.Deal)}
}

func (r *fakeDeals) Create(_ context.Context, deal *domain.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deals[deal.ID] = *deal
	return nil
}

func (r *fakeDeals) Get(_ context.Context, id string) (*domain.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeDealNotFound, id)
	}
	return &d, nil
}

func (r *fakeDeals) UpdateIfStatus(_ context.Context, deal *domain.Deal, expected domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.deals[deal.ID]
	if !ok {
		return apperror.NotFound(apperror.CodeDealNotFound, deal.ID)
	}
	if current.Status != expected {
		return domain.StateConflict(deal.ID, current.Status, expected)
	}
	if current.Version != deal.Version {
		return domain.ConcurrentUpdate(deal.ID, current.Status, deal.Version)
	}
	deal.Version++
	r.deals[deal.ID] = *deal
	return nil
}

func (r *fakeDeals) List(_ context.Context, filter domain.ListFilter) ([]domain.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Deal
	for _, d := range r.deals {
		if filter.Matches(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// set overwrites a stored deal, bypassing the status check.
func (r *fakeDeals) set(d domain.Deal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deals[d.ID] = d
}

func (r *fakeDeals) status(t *testing.T, id string) domain.Status {
	t.Helper()
	d, err := r.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("deal %s not stored: %v", id, err)
	}
	return d.Status
}

// hookedDeals runs callbacks around fakeDeals calls so tests can force a
// specific interleaving of concurrent writers.
type hookedDeals struct {
	*fakeDeals
	afterGet     func(d *domain.Deal)
	beforeUpdate func(d *domain.Deal, expected domain.Status)
	afterUpdate  func(d *domain.Deal, err error)
}

func (r *hookedDeals) Get(ctx context.Context, id string) (*domain.Deal, error) {
	d, err := r.fakeDeals.Get(ctx, id)
	if err == nil && r.afterGet != nil {
		r.afterGet(d)
	}
	return d, err
}

func (r *hookedDeals) UpdateIfStatus(ctx context.Context, deal *domain.Deal, expected domain.Status) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(deal, expected)
	}
	err := r.fakeDeals.UpdateIfStatus(ctx, deal, expected)
	if r.afterUpdate != nil {
		r.afterUpdate(deal, err)
	}
	return err
}

type fakePartners map[string]domain.Partner

func (p fakePartners) GetPartner(_ context.Context, id string) (*domain.Partner, error) {
	partner, ok := p[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodePartnerNotFound, id)
	}
	return &partner, nil
}

type fakePricer struct {
	spot  decimal.Decimal
	final decimal.Decimal
	err   error
}

func (p *fakePricer) Quote(_ context.Context, symbol, partnerID string) (*pricingDomain.PricingResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &pricingDomain.PricingResult{
		ID:                "pr-1",
		Symbol:            symbol,
		SpotRate:          p.spot,
		FixedSpread:       p.final.Sub(p.spot),
		FinalRate:         p.final,
		CalculationMethod: pricingDomain.MethodFixedSpread,
		Timestamp:         time.Now(),
		Confidence:        100,
		Metadata:          pricingDomain.ResultMetadata{SpotSource: "static", PartnerID: partnerID},
	}, nil
}

type fakeMatcher struct {
	counterparty *domain.Counterparty
	err          error
}

func (m *fakeMatcher) FindCounterparty(context.Context, domain.CounterpartyQuery) (*domain.Counterparty, error) {
	return m.counterparty, m.err
}

type fakeGateway struct {
	mu        sync.Mutex
	placeErr  error
	status    domain.OrderStatus
	statusErr error
	placed    []domain.OrderRequest
	cancelled []string
	// onPlace runs after an order is accepted.
	onPlace func()
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req domain.OrderRequest) (string, error) {
	g.mu.Lock()
	if g.placeErr != nil {
		g.mu.Unlock()
		return "", g.placeErr
	}
	g.placed = append(g.placed, req)
	id := fmt.Sprintf("order-%d", len(g.placed))
	onPlace := g.onPlace
	g.mu.Unlock()

	if onPlace != nil {
		onPlace()
	}
	return id, nil
}

func (g *fakeGateway) GetOrderStatus(_ context.Context, orderID string) (*domain.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	st := g.status
	st.OrderID = orderID
	return &st, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, orderID)
	return nil
}

func (g *fakeGateway) placedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.placed)
}

func (g *fakeGateway) cancelledOrders() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelled...)
}

// watchingGateway pushes updates over a channel instead of being polled.
type watchingGateway struct {
	*fakeGateway
	updates []domain.OrderStatus
	polls   int
}

func (g *watchingGateway) WatchOrder(_ context.Context, orderID string) (<-chan domain.OrderStatus, error) {
	ch := make(chan domain.OrderStatus, len(g.updates))
	for _, u := range g.updates {
		u.OrderID = orderID
		ch <- u
	}
	close(ch)
	return ch, nil
}

func (g *watchingGateway) GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderStatus, error) {
	g.mu.Lock()
	g.polls++
	g.mu.Unlock()
	return g.fakeGateway.GetOrderStatus(ctx, orderID)
}

type recordedEvent struct {
	event   string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event: event, payload: payload})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.event
	}
	return out
}

var errVenueDown = errors.New("venue unreachable")

type harness struct {
	orch     *Orchestrator
	deals    *fakeDeals
	partners fakePartners
	pricer   *fakePricer
	matcher  *fakeMatcher
	gateway  *fakeGateway
	notifier *recordingNotifier

	gatewayPort OrderGateway
}

func newHarness(t *testing.T, gateway OrderGateway) *harness {
	t.Helper()

	h := &harness{
		deals: newFakeDeals(),
		partners: fakePartners{
			"p1":       {ID: "p1", Name: "Acme FX", IsActive: true},
			"inactive": {ID: "inactive", Name: "Dormant Ltd", IsActive: false},
		},
		pricer: &fakePricer{
			spot:  decimal.RequireFromString("1.0850"),
			final: decimal.RequireFromString("1.1067"),
		},
		matcher: &fakeMatcher{counterparty: &domain.Counterparty{
			ID: "cp-1", Name: "trader", Rating: 99.1, CompletedTrades: 420, PaymentMethod: "SEPA",
		}},
		notifier: &recordingNotifier{},
	}

	if gateway == nil {
		h.gateway = &fakeGateway{status: filled("1000", "1.1067", "0")}
		gateway = h.gateway
	} else if w, ok := gateway.(*watchingGateway); ok {
		h.gateway = w.fakeGateway
	}

	h.gatewayPort = gateway
	h.orch = h.orchestrator(t, h.deals)
	return h
}

// orchestrator builds an orchestrator over deals sharing the harness collaborators.
func (h *harness) orchestrator(t *testing.T, deals DealRepository) *Orchestrator {
	t.Helper()
	cfg := DefaultOrchestratorConfig()
	cfg.ExecutionTimeout = 200 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond

	orch, err := NewOrchestrator(deals, h.partners, h.pricer, h.matcher, h.gatewayPort, h.notifier, cfg, logger.Discard())
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return orch
}

func filled(amount, rate, slippage string) domain.OrderStatus {
	return domain.OrderStatus{
		State:           domain.OrderFilled,
		ExecutedRate:    decimal.RequireFromString(rate),
		ExecutedAmount:  decimal.RequireFromString(amount),
		SlippagePercent: decimal.RequireFromString(slippage),
		UpdatedAt:       time.Now(),
	}
}

// createPending stores a PENDING EUR/USD deal for p1.
func (h *harness) createPending(t *testing.T) *domain.Deal {
	t.Helper()
	deal, err := h.orch.CreateDeal(context.Background(), CreateDealRequest{
		PartnerID: "p1",
		Symbol:    "EUR/USD",
		Side:      domain.SideBuy,
		Amount:    decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("CreateDeal() error = %v", err)
	}
	return deal
}
