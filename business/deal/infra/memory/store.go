// Package memory implements the deal repositories in process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fd1az/fxdesk/business/deal/app"
	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
)

var (
	_ app.DealRepository   = (*Store)(nil)
	_ app.PartnerDirectory = (*Store)(nil)
)

// Store holds deals and partners. Deals are copied on the way in and out.
type Store struct {
	mu       sync.RWMutex
	deals    map[string]domain.Deal
	partners map[string]domain.Partner
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		deals:    make(map[string]domain.Deal),
		partners: make(map[string]domain.Partner),
	}
}

// Create inserts a new deal.
func (s *Store) Create(_ context.Context, d *domain.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deals[d.ID]; ok {
		return apperror.Conflict(apperror.CodeInvalidDealState, "deal "+d.ID+" already exists")
	}
	s.deals[d.ID] = cloneDeal(*d)
	return nil
}

// Get returns the deal with id or DEAL_NOT_FOUND.
func (s *Store) Get(_ context.Context, id string) (*domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deals[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeDealNotFound, id)
	}
	out := cloneDeal(d)
	return &out, nil
}

// UpdateIfStatus replaces the stored deal when its status equals expected
// and its version equals d.Version.
func (s *Store) UpdateIfStatus(_ context.Context, d *domain.Deal, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.deals[d.ID]
	if !ok {
		return apperror.NotFound(apperror.CodeDealNotFound, d.ID)
	}
	if current.Status != expected {
		return domain.StateConflict(d.ID, current.Status, expected)
	}
	if current.Version != d.Version {
		return domain.ConcurrentUpdate(d.ID, current.Status, d.Version)
	}
	d.Version++
	s.deals[d.ID] = cloneDeal(*d)
	return nil
}

// List returns deals matching filter, newest first.
func (s *Store) List(_ context.Context, filter domain.ListFilter) ([]domain.Deal, error) {
	s.mu.RLock()
	out := make([]domain.Deal, 0, len(s.deals))
	for _, d := range s.deals {
		if filter.Matches(d) {
			out = append(out, cloneDeal(d))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Deal{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetPartner returns the partner with id or PARTNER_NOT_FOUND.
func (s *Store) GetPartner(_ context.Context, id string) (*domain.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partners[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodePartnerNotFound, id)
	}
	return &p, nil
}

// UpsertPartner stores p, replacing any partner with the same id.
func (s *Store) UpsertPartner(_ context.Context, p domain.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partners[p.ID] = p
	return nil
}

func cloneDeal(d domain.Deal) domain.Deal {
	if d.Counterparty != nil {
		cp := *d.Counterparty
		d.Counterparty = &cp
	}
	if d.P2POrderID != nil {
		id := *d.P2POrderID
		d.P2POrderID = &id
	}
	if d.ExecutedAt != nil {
		t := *d.ExecutedAt
		d.ExecutedAt = &t
	}
	if d.ClosedAt != nil {
		t := *d.ClosedAt
		d.ClosedAt = &t
	}
	if d.Metadata.P2PRate != nil {
		r := *d.Metadata.P2PRate
		d.Metadata.P2PRate = &r
	}
	return d
}
