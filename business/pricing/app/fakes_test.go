package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fd1az/fxdesk/business/pricing/domain"
)

var errStoreDown = errors.New("connection refused")

type fakeConfigRepo struct {
	mu         sync.Mutex
	fixed      map[string]domain.FixedSpreadConfig // symbol|partner
	volatility map[string]domain.VolatilitySpreadConfig
	err        error
	fixedCalls int
	volCalls   int
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{
		fixed:      make(map[string]domain.FixedSpreadConfig),
		volatility: make(map[string]domain.VolatilitySpreadConfig),
	}
}

func (r *fakeConfigRepo) FindActiveFixedSpread(_ context.Context, symbol, partnerID string, _ time.Time) (*domain.FixedSpreadConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixedCalls++
	if r.err != nil {
		return nil, r.err
	}
	cfg, ok := r.fixed[fixedKey(symbol, partnerID)]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (r *fakeConfigRepo) FindActiveVolatilityConfig(_ context.Context, symbol string, _ time.Time) (*domain.VolatilitySpreadConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volCalls++
	if r.err != nil {
		return nil, r.err
	}
	cfg, ok := r.volatility[symbol]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (r *fakeConfigRepo) SaveFixedSpread(_ context.Context, cfg *domain.FixedSpreadConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	partner := ""
	if cfg.PartnerID != nil {
		partner = *cfg.PartnerID
	}
	r.fixed[fixedKey(cfg.Symbol, partner)] = *cfg
	return nil
}

func (r *fakeConfigRepo) SaveVolatilityConfig(_ context.Context, cfg *domain.VolatilitySpreadConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.volatility[cfg.Symbol] = *cfg
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	samples []domain.DeltaSample
	err     error
	since   time.Time
}

func (h *fakeHistory) RecordDelta(_ context.Context, s domain.DeltaSample) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.samples = append(h.samples, s)
	return nil
}

func (h *fakeHistory) DeltasSince(_ context.Context, symbol string, since time.Time) ([]domain.DeltaSample, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.since = since
	if h.err != nil {
		return nil, h.err
	}
	var out []domain.DeltaSample
	for _, s := range h.samples {
		if s.Symbol == symbol && !s.RecordedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	results []domain.PricingResult
	metrics []domain.VolatilityMetrics
	err     error
}

func (a *fakeAudit) SavePricingResult(_ context.Context, r *domain.PricingResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.results = append(a.results, *r)
	return nil
}

func (a *fakeAudit) SaveVolatilityMetrics(_ context.Context, m *domain.VolatilityMetrics) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.metrics = append(a.metrics, *m)
	return nil
}

type fakeSpot struct {
	rate *domain.SpotRate
	err  error
}

func (f *fakeSpot) GetSpotRate(_ context.Context, _ string) (*domain.SpotRate, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.rate
	return &r, nil
}

type fakeP2P struct {
	rate *domain.P2PIndicativeRate
	err  error
}

func (f *fakeP2P) GetIndicativeRate(_ context.Context, _ string) (*domain.P2PIndicativeRate, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.rate
	return &r, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
