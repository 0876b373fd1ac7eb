// Package memory implements the pricing repositories in process. It backs
// the "memory" database driver and keeps nothing across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fd1az/fxdesk/business/pricing/app"
	"github.com/fd1az/fxdesk/business/pricing/domain"
)

var (
	_ app.SpreadConfigRepository = (*Store)(nil)
	_ app.DeltaHistory           = (*Store)(nil)
	_ app.AuditRepository        = (*Store)(nil)
)

// Default retention limits.
const (
	DefaultMaxSamples = 10_000
	DefaultMaxAudit   = 1_000
)

// Store holds configs, delta history and a bounded audit trail.
type Store struct {
	mu sync.RWMutex

	fixed      []domain.FixedSpreadConfig
	volatility []domain.VolatilitySpreadConfig
	deltas     map[string][]domain.DeltaSample
	results    []domain.PricingResult
	metrics    []domain.VolatilityMetrics

	maxSamples int
	maxAudit   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		deltas:     make(map[string][]domain.DeltaSample),
		maxSamples: DefaultMaxSamples,
		maxAudit:   DefaultMaxAudit,
	}
}

func partnerOf(c domain.FixedSpreadConfig) string {
	if c.PartnerID == nil {
		return ""
	}
	return *c.PartnerID
}

// FindActiveFixedSpread returns the newest row for (symbol, partner) whose
// [validFrom, validTo) window contains now.
func (s *Store) FindActiveFixedSpread(_ context.Context, symbol, partnerID string, now time.Time) (*domain.FixedSpreadConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.FixedSpreadConfig
	for i := range s.fixed {
		c := s.fixed[i]
		if c.Symbol != symbol || partnerOf(c) != partnerID || !domain.IsConfigActive(c, now) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			cp := c
			best = &cp
		}
	}
	return best, nil
}

// SaveFixedSpread upserts by id.
func (s *Store) SaveFixedSpread(_ context.Context, cfg *domain.FixedSpreadConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.fixed {
		if s.fixed[i].ID == cfg.ID {
			s.fixed[i] = *cfg
			return nil
		}
	}
	s.fixed = append(s.fixed, *cfg)
	return nil
}

// FindActiveVolatilityConfig returns the newest row for symbol whose window
// contains now.
func (s *Store) FindActiveVolatilityConfig(_ context.Context, symbol string, now time.Time) (*domain.VolatilitySpreadConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.VolatilitySpreadConfig
	for i := range s.volatility {
		c := s.volatility[i]
		if c.Symbol != symbol || !domain.IsConfigActive(c, now) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			cp := c
			best = &cp
		}
	}
	return best, nil
}

// SaveVolatilityConfig upserts by id.
func (s *Store) SaveVolatilityConfig(_ context.Context, cfg *domain.VolatilitySpreadConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.volatility {
		if s.volatility[i].ID == cfg.ID {
			s.volatility[i] = *cfg
			return nil
		}
	}
	s.volatility = append(s.volatility, *cfg)
	return nil
}

// RecordDelta appends a sample, dropping the oldest beyond the retention limit.
func (s *Store) RecordDelta(_ context.Context, sample domain.DeltaSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := append(s.deltas[sample.Symbol], sample)
	// keep ascending order when samples arrive out of order
	if n := len(series); n > 1 && series[n-1].RecordedAt.Before(series[n-2].RecordedAt) {
		sort.SliceStable(series, func(i, j int) bool { return series[i].RecordedAt.Before(series[j].RecordedAt) })
	}
	if len(series) > s.maxSamples {
		series = series[len(series)-s.maxSamples:]
	}
	s.deltas[sample.Symbol] = series
	return nil
}

// DeltasSince returns samples at or after since, oldest first.
func (s *Store) DeltasSince(_ context.Context, symbol string, since time.Time) ([]domain.DeltaSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.deltas[symbol]
	start := sort.Search(len(series), func(i int) bool { return !series[i].RecordedAt.Before(since) })

	out := make([]domain.DeltaSample, len(series)-start)
	copy(out, series[start:])
	return out, nil
}

// SavePricingResult appends to the audit trail.
func (s *Store) SavePricingResult(_ context.Context, r *domain.PricingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, *r)
	if len(s.results) > s.maxAudit {
		s.results = s.results[len(s.results)-s.maxAudit:]
	}
	return nil
}

// SaveVolatilityMetrics appends to the audit trail.
func (s *Store) SaveVolatilityMetrics(_ context.Context, m *domain.VolatilityMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, *m)
	if len(s.metrics) > s.maxAudit {
		s.metrics = s.metrics[len(s.metrics)-s.maxAudit:]
	}
	return nil
}

// RecentResults returns up to n of the newest pricing results, newest first.
func (s *Store) RecentResults(n int) []domain.PricingResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.results) {
		n = len(s.results)
	}
	out := make([]domain.PricingResult, 0, n)
	for i := len(s.results) - 1; i >= len(s.results)-n; i-- {
		out = append(out, s.results[i])
	}
	return out
}
