package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/pricing/domain"
)

func TestStore_FindActiveFixedSpread(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	partner := "partner-a"

	s := NewStore()
	configs := []domain.FixedSpreadConfig{
		{ID: "old", Symbol: "EUR/USD", IsActive: true, ValidFrom: now.Add(-48 * time.Hour), CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", Symbol: "EUR/USD", IsActive: true, ValidFrom: now.Add(-time.Hour), CreatedAt: now.Add(-time.Hour)},
		{ID: "future", Symbol: "EUR/USD", IsActive: true, ValidFrom: now.Add(time.Hour), CreatedAt: now},
		{ID: "disabled", Symbol: "EUR/USD", IsActive: false, ValidFrom: now.Add(-time.Minute), CreatedAt: now},
		{ID: "partner", Symbol: "EUR/USD", PartnerID: &partner, IsActive: true, ValidFrom: now.Add(-time.Hour), CreatedAt: now.Add(-time.Hour)},
	}
	for i := range configs {
		if err := s.SaveFixedSpread(ctx, &configs[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		partner string
		want    string
	}{
		{"", "new"},
		{"partner-a", "partner"},
		{"partner-b", ""},
	}
	for _, tt := range tests {
		got, err := s.FindActiveFixedSpread(ctx, "EUR/USD", tt.partner, now)
		if err != nil {
			t.Fatal(err)
		}
		if tt.want == "" {
			if got != nil {
				t.Errorf("partner %q: got %s, want nil", tt.partner, got.ID)
			}
			continue
		}
		if got == nil || got.ID != tt.want {
			t.Errorf("partner %q: got %v, want %s", tt.partner, got, tt.want)
		}
	}
}

func TestStore_ExpiredRowDoesNotHideValidOne(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ended := now.Add(-time.Hour)
	partner := "partner-a"

	s := NewStore()
	configs := []domain.FixedSpreadConfig{
		{ID: "standing", Symbol: "EUR/USD", IsActive: true, ValidFrom: now.Add(-72 * time.Hour), CreatedAt: now.Add(-72 * time.Hour)},
		{ID: "promo-ended", Symbol: "EUR/USD", IsActive: true, ValidFrom: now.Add(-24 * time.Hour), ValidTo: &ended, CreatedAt: now.Add(-24 * time.Hour)},
		{ID: "partner-ended", Symbol: "EUR/USD", PartnerID: &partner, IsActive: true, ValidFrom: now.Add(-24 * time.Hour), ValidTo: &ended, CreatedAt: now.Add(-24 * time.Hour)},
	}
	for i := range configs {
		if err := s.SaveFixedSpread(ctx, &configs[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.FindActiveFixedSpread(ctx, "EUR/USD", "", now)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "standing" {
		t.Errorf("symbol default = %v, want standing", got)
	}

	got, err = s.FindActiveFixedSpread(ctx, "EUR/USD", "partner-a", now)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expired partner config returned: %s", got.ID)
	}

	// validTo is exclusive
	got, _ = s.FindActiveFixedSpread(ctx, "EUR/USD", "partner-a", ended)
	if got != nil {
		t.Errorf("config returned at its validTo instant: %s", got.ID)
	}
	got, _ = s.FindActiveFixedSpread(ctx, "EUR/USD", "partner-a", ended.Add(-time.Second))
	if got == nil || got.ID != "partner-ended" {
		t.Errorf("partner config before expiry = %v, want partner-ended", got)
	}

	vStanding := domain.DefaultVolatilityConfig("EUR/USD")
	vStanding.ID, vStanding.ValidFrom, vStanding.CreatedAt = "v-standing", now.Add(-72*time.Hour), now.Add(-72*time.Hour)
	vEnded := domain.DefaultVolatilityConfig("EUR/USD")
	vEnded.ID, vEnded.ValidFrom, vEnded.ValidTo, vEnded.CreatedAt = "v-ended", now.Add(-24*time.Hour), &ended, now.Add(-24*time.Hour)
	_ = s.SaveVolatilityConfig(ctx, &vStanding)
	_ = s.SaveVolatilityConfig(ctx, &vEnded)

	v, err := s.FindActiveVolatilityConfig(ctx, "EUR/USD", now)
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || v.ID != "v-standing" {
		t.Errorf("volatility config = %v, want v-standing", v)
	}
}

func TestStore_SaveFixedSpreadUpserts(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewStore()

	cfg := domain.FixedSpreadConfig{ID: "cfg", Symbol: "EUR/USD", IsActive: true, ValidFrom: now.Add(-time.Minute), CreatedAt: now}
	_ = s.SaveFixedSpread(ctx, &cfg)
	cfg.IsActive = false
	_ = s.SaveFixedSpread(ctx, &cfg)

	got, _ := s.FindActiveFixedSpread(ctx, "EUR/USD", "", now)
	if got != nil {
		t.Errorf("deactivated config still returned: %v", got)
	}
}

func TestStore_DeltaHistory(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	s.maxSamples = 5

	// out of order on purpose
	for _, minute := range []int{0, 2, 1, 3, 4, 5, 6} {
		err := s.RecordDelta(ctx, domain.DeltaSample{
			Symbol:     "USDT/ARS",
			Delta:      decimal.NewFromInt(int64(minute)),
			RecordedAt: base.Add(time.Duration(minute) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.DeltasSince(ctx, "USDT/ARS", base)
	if len(all) != 5 {
		t.Fatalf("retained %d samples, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].RecordedAt.Before(all[i-1].RecordedAt) {
			t.Fatalf("samples not ascending at %d", i)
		}
	}
	if !all[0].Delta.Equal(decimal.NewFromInt(2)) {
		t.Errorf("oldest retained delta = %s, want 2", all[0].Delta)
	}

	recent, _ := s.DeltasSince(ctx, "USDT/ARS", base.Add(5*time.Minute))
	if len(recent) != 2 {
		t.Errorf("got %d samples since minute 5, want 2", len(recent))
	}

	none, _ := s.DeltasSince(ctx, "EUR/USD", base)
	if len(none) != 0 {
		t.Errorf("got %d samples for unknown symbol", len(none))
	}
}

func TestStore_AuditIsBounded(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.maxAudit = 3

	for i := 0; i < 5; i++ {
		_ = s.SavePricingResult(ctx, &domain.PricingResult{ID: string(rune('a' + i))})
	}

	recent := s.RecentResults(10)
	if len(recent) != 3 {
		t.Fatalf("kept %d results, want 3", len(recent))
	}
	if recent[0].ID != "e" || recent[2].ID != "c" {
		t.Errorf("unexpected order: %s..%s", recent[0].ID, recent[2].ID)
	}
}
