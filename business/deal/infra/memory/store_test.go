package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/deal/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newDeal(t *testing.T, id string, at time.Time) *domain.Deal {
	t.Helper()
	d, err := domain.NewDeal(id, "p1", "EUR/USD", domain.SideBuy,
		decimal.NewFromInt(10), decimal.RequireFromString("1.1"),
		domain.Metadata{}, domain.StatusPending, at)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestStore_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := newDeal(t, "d1", t0)
	if err := s.Create(ctx, d); err != nil {
		t.Fatal(err)
	}

	d.Status = domain.StatusExecuting
	if err := s.UpdateIfStatus(ctx, d, domain.StatusPending); err != nil {
		t.Fatalf("first CAS error = %v", err)
	}

	d.Status = domain.StatusCancelled
	err := s.UpdateIfStatus(ctx, d, domain.StatusPending)
	if apperror.GetCode(err) != apperror.CodeInvalidDealState {
		t.Fatalf("stale CAS error = %v, want INVALID_DEAL_STATE", err)
	}

	got, _ := s.Get(ctx, "d1")
	if got.Status != domain.StatusExecuting {
		t.Errorf("status = %s, want EXECUTING", got.Status)
	}

	if err := s.UpdateIfStatus(ctx, newDeal(t, "ghost", t0), domain.StatusPending); apperror.GetCode(err) != apperror.CodeDealNotFound {
		t.Errorf("missing deal error = %v", err)
	}
}

func TestStore_StaleCopyIsRejected(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := newDeal(t, "d1", t0)
	d.Status = domain.StatusExecuting
	if err := s.Create(ctx, d); err != nil {
		t.Fatal(err)
	}

	stale, _ := s.Get(ctx, "d1")
	fresh, _ := s.Get(ctx, "d1")

	orderID := "order-1"
	fresh.P2POrderID = &orderID
	if err := s.UpdateIfStatus(ctx, fresh, domain.StatusExecuting); err != nil {
		t.Fatalf("recording order: %v", err)
	}
	if fresh.Version != 1 {
		t.Errorf("Version = %d, want 1", fresh.Version)
	}

	// same status, older version
	stale.Status = domain.StatusCancelled
	err := s.UpdateIfStatus(ctx, stale, domain.StatusExecuting)
	if apperror.GetCode(err) != apperror.CodeInvalidDealState {
		t.Fatalf("stale write error = %v, want INVALID_DEAL_STATE", err)
	}

	got, _ := s.Get(ctx, "d1")
	if got.Status != domain.StatusExecuting || got.P2POrderID == nil || *got.P2POrderID != orderID {
		t.Errorf("stored deal overwritten: status=%s order=%v", got.Status, got.P2POrderID)
	}
}

func TestStore_ConcurrentCASHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.Create(ctx, newDeal(t, "d1", t0)); err != nil {
		t.Fatal(err)
	}

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := s.Get(ctx, "d1")
			d.Status = domain.StatusExecuting
			if err := s.UpdateIfStatus(ctx, d, domain.StatusPending); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := newDeal(t, "d1", t0)
	orderID := "o-1"
	d.P2POrderID = &orderID
	if err := s.Create(ctx, d); err != nil {
		t.Fatal(err)
	}

	orderID = "mutated"
	got, _ := s.Get(ctx, "d1")
	*got.P2POrderID = "also mutated"

	again, _ := s.Get(ctx, "d1")
	if *again.P2POrderID != "o-1" {
		t.Errorf("P2POrderID = %q, want o-1", *again.P2POrderID)
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i := 0; i < 5; i++ {
		d := newDeal(t, fmt.Sprintf("d%d", i), t0.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			d.PartnerID = "p2"
		}
		if err := s.Create(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.List(ctx, domain.ListFilter{})
	if len(all) != 5 || all[0].ID != "d4" || all[4].ID != "d0" {
		t.Errorf("List() order = %v", ids(all))
	}

	p1, _ := s.List(ctx, domain.ListFilter{PartnerID: "p1", Limit: 2, Offset: 1})
	if got := ids(p1); len(got) != 2 || got[0] != "d2" || got[1] != "d1" {
		t.Errorf("paged = %v, want [d2 d1]", got)
	}

	past, _ := s.List(ctx, domain.ListFilter{Offset: 10})
	if len(past) != 0 {
		t.Errorf("offset past end = %v", ids(past))
	}
}

func TestStore_Partners(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.GetPartner(ctx, "p1"); apperror.GetCode(err) != apperror.CodePartnerNotFound {
		t.Errorf("error = %v, want PARTNER_NOT_FOUND", err)
	}
	if err := s.UpsertPartner(ctx, domain.Partner{ID: "p1", Name: "Acme", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetPartner(ctx, "p1")
	if err != nil || !p.IsActive || p.Name != "Acme" {
		t.Errorf("GetPartner() = %+v, %v", p, err)
	}
}

func ids(deals []domain.Deal) []string {
	out := make([]string, len(deals))
	for i, d := range deals {
		out[i] = d.ID
	}
	return out
}
