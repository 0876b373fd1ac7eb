package api

import (
	"context"

	dealApp "github.com/fd1az/fxdesk/business/deal/app"
	dealDomain "github.com/fd1az/fxdesk/business/deal/domain"
	pricingDomain "github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
)

type fakePricer struct {
	calculate  func(symbol string, spot pricingDomain.SpotRate, partnerID string) (*pricingDomain.PricingResult, error)
	volatility func(symbol string, spot pricingDomain.SpotRate) (*pricingDomain.PricingResult, error)
	quote      func(symbol, partnerID string) (*pricingDomain.PricingResult, error)
}

func (f *fakePricer) CalculateRate(_ context.Context, symbol string, spot pricingDomain.SpotRate, partnerID string) (*pricingDomain.PricingResult, error) {
	return f.calculate(symbol, spot, partnerID)
}

func (f *fakePricer) CalculateVolatilityAdjustedRate(_ context.Context, symbol string, spot pricingDomain.SpotRate) (*pricingDomain.PricingResult, error) {
	return f.volatility(symbol, spot)
}

func (f *fakePricer) Quote(_ context.Context, symbol, partnerID string) (*pricingDomain.PricingResult, error) {
	return f.quote(symbol, partnerID)
}

type fakeAnalyzer struct {
	hours int
}

func (f *fakeAnalyzer) AnalyzeVolatility(_ context.Context, symbol string, hours int) (*pricingDomain.VolatilityAnalysis, error) {
	f.hours = hours
	return &pricingDomain.VolatilityAnalysis{ConfigID: "default-" + symbol}, nil
}

type fakeConfigs struct {
	active *pricingDomain.FixedSpreadConfig
	saved  []pricingDomain.FixedSpreadConfig
	err    error
}

func (f *fakeConfigs) GetActiveFixedSpreadConfig(context.Context, string, string) (*pricingDomain.FixedSpreadConfig, error) {
	return f.active, f.err
}

func (f *fakeConfigs) SaveFixedSpreadConfig(_ context.Context, cfg pricingDomain.FixedSpreadConfig) (*pricingDomain.FixedSpreadConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	cfg.ID = "cfg-1"
	f.saved = append(f.saved, cfg)
	return &cfg, nil
}

func (f *fakeConfigs) SaveVolatilityConfig(_ context.Context, cfg pricingDomain.VolatilitySpreadConfig) (*pricingDomain.VolatilitySpreadConfig, error) {
	cfg.ID = "vol-1"
	return &cfg, f.err
}

// fakeDeals keeps deals in a map and records the last inputs.
type fakeDeals struct {
	deals      map[string]*dealDomain.Deal
	lastCreate dealApp.CreateDealRequest
	lastFilter dealDomain.ListFilter
	lastStats  dealApp.StatsFilter
	lastReason string
	createErr  error
	execResult *dealDomain.ExecutionResult
	cancelErr  error
}

func newFakeDeals(deals ...dealDomain.Deal) *fakeDeals {
	f := &fakeDeals{deals: make(map[string]*dealDomain.Deal)}
	for i := range deals {
		f.deals[deals[i].ID] = &deals[i]
	}
	return f
}

func (f *fakeDeals) CreateDeal(_ context.Context, req dealApp.CreateDealRequest) (*dealDomain.Deal, error) {
	f.lastCreate = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	d := &dealDomain.Deal{ID: "deal-new", PartnerID: req.PartnerID, Symbol: req.Symbol, Amount: req.Amount, Status: dealDomain.StatusPending}
	f.deals[d.ID] = d
	return d, nil
}

func (f *fakeDeals) GetDeal(_ context.Context, id string) (*dealDomain.Deal, error) {
	d, ok := f.deals[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeDealNotFound, id)
	}
	return d, nil
}

func (f *fakeDeals) ListDeals(_ context.Context, filter dealDomain.ListFilter) ([]dealDomain.Deal, error) {
	f.lastFilter = filter
	var out []dealDomain.Deal
	for _, d := range f.deals {
		if filter.Matches(*d) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeals) GetDealStats(_ context.Context, filter dealApp.StatsFilter) (*dealDomain.DealStats, error) {
	f.lastStats = filter
	return &dealDomain.DealStats{TotalDeals: len(f.deals)}, nil
}

func (f *fakeDeals) ApproveDeal(ctx context.Context, id string) (*dealDomain.Deal, error) {
	d, err := f.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != dealDomain.StatusPending {
		return nil, dealDomain.StateConflict(id, d.Status, dealDomain.StatusPending)
	}
	d.Status = dealDomain.StatusApproved
	return d, nil
}

func (f *fakeDeals) ExecuteDeal(ctx context.Context, id string) (*dealDomain.ExecutionResult, error) {
	if _, err := f.GetDeal(ctx, id); err != nil {
		return nil, err
	}
	return f.execResult, nil
}

func (f *fakeDeals) CancelDeal(_ context.Context, _ string, reason string) (bool, error) {
	f.lastReason = reason
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	return true, nil
}
