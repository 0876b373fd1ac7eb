package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/logger"
)

type engineFixture struct {
	repo    *fakeConfigRepo
	history *fakeHistory
	audit   *fakeAudit
	spot    *fakeSpot
	p2p     *fakeP2P
	engine  *Engine
	now     time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f := &engineFixture{
		repo:    newFakeConfigRepo(),
		history: &fakeHistory{},
		audit:   &fakeAudit{},
		spot:    &fakeSpot{},
		p2p:     &fakeP2P{},
		now:     now,
	}

	store := newTestStore(f.repo)
	store.now = fixedClock(now)
	t.Cleanup(store.Close)

	analyzer, err := NewVolatilityAnalyzer(f.history, f.audit, store, DefaultAnalyzerConfig(), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	analyzer.now = fixedClock(now)

	engine, err := NewEngine(store, analyzer, f.audit, f.spot, f.p2p, DefaultEngineConfig(), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	engine.now = fixedClock(now)
	f.engine = engine
	return f
}

func (f *engineFixture) spotAt(symbol, price string, age time.Duration) domain.SpotRate {
	p := decimal.RequireFromString(price)
	return domain.NewSpotRate(symbol, p, p, p, "test-feed", f.now.Add(-age))
}

func TestEngine_CalculateRate_ConfiguredSpread(t *testing.T) {
	f := newEngineFixture(t)
	cfg := storedFixed("eur-usd-2pct", "EUR/USD", "", "2.0")
	cfg.MinSpreadPercent = decimal.RequireFromString("1.0")
	cfg.MaxSpreadPercent = decimal.RequireFromString("5.0")
	cfg.ValidFrom = f.now.Add(-time.Hour)
	f.repo.fixed[fixedKey("EUR/USD", "")] = cfg

	got, err := f.engine.CalculateRate(context.Background(), "EUR/USD", f.spotAt("EUR/USD", "1.0850", 0), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.FixedSpread.Equal(decimal.RequireFromString("0.0217")) {
		t.Errorf("FixedSpread = %s, want 0.0217", got.FixedSpread)
	}
	if !got.FinalRate.Equal(decimal.RequireFromString("1.1067")) {
		t.Errorf("FinalRate = %s, want 1.1067", got.FinalRate)
	}
	if got.CalculationMethod != domain.MethodFixedSpread {
		t.Errorf("CalculationMethod = %s, want FIXED_SPREAD", got.CalculationMethod)
	}
	if got.Confidence != 100 {
		t.Errorf("Confidence = %d, want 100", got.Confidence)
	}
	if got.Metadata.SpreadConfigID != "eur-usd-2pct" {
		t.Errorf("SpreadConfigID = %s", got.Metadata.SpreadConfigID)
	}
	if got.Metadata.HistoricalDataPoints != 1 {
		t.Errorf("HistoricalDataPoints = %d, want 1", got.Metadata.HistoricalDataPoints)
	}
	if len(got.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", got.Warnings)
	}
	if len(f.audit.results) != 1 {
		t.Errorf("audited %d results, want 1", len(f.audit.results))
	}
}

func TestEngine_CalculateRate_SystemDefault(t *testing.T) {
	f := newEngineFixture(t)

	got, err := f.engine.CalculateRate(context.Background(), "gbp/usd", f.spotAt("GBP/USD", "1.2700", 0), "partner-x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Symbol != "GBP/USD" {
		t.Errorf("Symbol = %s, want GBP/USD", got.Symbol)
	}
	if got.Metadata.SpreadConfigID != domain.SystemDefaultConfigID {
		t.Errorf("SpreadConfigID = %s, want %s", got.Metadata.SpreadConfigID, domain.SystemDefaultConfigID)
	}
	// 1.27 * 0.5% = 0.00635
	if !got.FinalRate.Equal(decimal.RequireFromString("1.27635")) {
		t.Errorf("FinalRate = %s, want 1.27635", got.FinalRate)
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0], "system default") {
		t.Errorf("Warnings = %v", got.Warnings)
	}
}

func TestEngine_CalculateRate_Errors(t *testing.T) {
	expired := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		setup    func(f *engineFixture)
		symbol   string
		price    string
		wantCode apperror.Code
	}{
		{
			name:     "empty_symbol",
			symbol:   "",
			price:    "1.1",
			wantCode: apperror.CodeInvalidInput,
		},
		{
			name:     "malformed_symbol",
			symbol:   "EURUSD",
			price:    "1.1",
			wantCode: apperror.CodeInvalidSymbol,
		},
		{
			name:     "zero_price",
			symbol:   "EUR/USD",
			price:    "0",
			wantCode: apperror.CodeInvalidInput,
		},
		{
			name: "store_unavailable",
			setup: func(f *engineFixture) {
				f.repo.err = errStoreDown
			},
			symbol:   "EUR/USD",
			price:    "1.1",
			wantCode: apperror.CodeConfigUnavailable,
		},
		{
			name: "expired_config",
			setup: func(f *engineFixture) {
				cfg := storedFixed("old", "EUR/USD", "", "1.0")
				cfg.ValidFrom = expired.Add(-24 * time.Hour)
				cfg.ValidTo = &expired
				f.repo.fixed[fixedKey("EUR/USD", "")] = cfg
			},
			symbol:   "EUR/USD",
			price:    "1.1",
			wantCode: apperror.CodeSpreadConfigInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.engine.CalculateRate(context.Background(), tt.symbol, f.spotAt("EUR/USD", tt.price, 0), "")
			if apperror.GetCode(err) != tt.wantCode {
				t.Fatalf("code = %s, want %s (err %v)", apperror.GetCode(err), tt.wantCode, err)
			}
		})
	}
}

func TestEngine_CalculateRate_StalenessLowersConfidence(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{30 * time.Second, 100},
		{80 * time.Second, 80},
		{5 * time.Minute, 70},
	}

	for _, tt := range tests {
		f := newEngineFixture(t)
		got, err := f.engine.CalculateRate(context.Background(), "EUR/USD", f.spotAt("EUR/USD", "1.1", tt.age), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Confidence != tt.want {
			t.Errorf("age %s: Confidence = %d, want %d", tt.age, got.Confidence, tt.want)
		}
	}
}

func TestEngine_AuditFailureDoesNotFailPricing(t *testing.T) {
	f := newEngineFixture(t)
	f.audit.err = errStoreDown

	if _, err := f.engine.CalculateRate(context.Background(), "EUR/USD", f.spotAt("EUR/USD", "1.1", 0), ""); err != nil {
		t.Fatalf("audit failure leaked: %v", err)
	}
}

func TestEngine_CalculateVolatilityAdjustedRate(t *testing.T) {
	f := newEngineFixture(t)
	f.history.samples = samplesOf("USDT/ARS", f.now, "9", "11", "9", "11", "9", "11", "9", "11", "9", "11")

	got, err := f.engine.CalculateVolatilityAdjustedRate(context.Background(), "USDT/ARS", f.spotAt("USDT/ARS", "1000", 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.CalculationMethod != domain.MethodVolatilityAdjusted {
		t.Errorf("CalculationMethod = %s", got.CalculationMethod)
	}
	// recommended 0.71% of 1000
	if !got.VolatilitySpread.Equal(decimal.RequireFromString("7.1")) {
		t.Errorf("VolatilitySpread = %s, want 7.1", got.VolatilitySpread)
	}
	if !got.FixedSpread.IsZero() {
		t.Errorf("FixedSpread = %s, want 0", got.FixedSpread)
	}
	if !got.FinalRate.Equal(decimal.RequireFromString("1007.1")) {
		t.Errorf("FinalRate = %s, want 1007.1", got.FinalRate)
	}
	if got.Confidence != 70 {
		t.Errorf("Confidence = %d, want 70", got.Confidence)
	}
	if got.Metadata.HistoricalDataPoints != 10 {
		t.Errorf("HistoricalDataPoints = %d, want 10", got.Metadata.HistoricalDataPoints)
	}
}

func TestEngine_Quote(t *testing.T) {
	t.Run("attaches_p2p_and_records_delta", func(t *testing.T) {
		f := newEngineFixture(t)
		spot := f.spotAt("USDT/ARS", "1000", 0)
		f.spot.rate = &spot
		f.p2p.rate = &domain.P2PIndicativeRate{Symbol: "USDT/ARS", Rate: decimal.NewFromInt(1020), DataQuality: 40}

		got, err := f.engine.Quote(context.Background(), "USDT/ARS", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.P2PIndicativeRate == nil || !got.P2PIndicativeRate.Equal(decimal.NewFromInt(1020)) {
			t.Errorf("P2PIndicativeRate = %v, want 1020", got.P2PIndicativeRate)
		}
		if got.CalculationMethod != domain.MethodHybridP2P {
			t.Errorf("CalculationMethod = %s, want HYBRID_P2P", got.CalculationMethod)
		}
		// fixed spread still drives the final rate: 1000 + 0.5%
		if !got.FinalRate.Equal(decimal.NewFromInt(1005)) {
			t.Errorf("FinalRate = %s, want 1005", got.FinalRate)
		}
		if len(f.history.samples) != 1 || !f.history.samples[0].Delta.Equal(decimal.NewFromInt(20)) {
			t.Errorf("delta not recorded: %v", f.history.samples)
		}
		found := false
		for _, w := range got.Warnings {
			if strings.Contains(w, "Low P2P data quality") {
				found = true
			}
		}
		if !found {
			t.Errorf("missing data quality warning: %v", got.Warnings)
		}
	})

	t.Run("p2p_failure_is_a_warning", func(t *testing.T) {
		f := newEngineFixture(t)
		spot := f.spotAt("EUR/USD", "1.0850", 0)
		f.spot.rate = &spot
		f.p2p.err = errStoreDown

		got, err := f.engine.Quote(context.Background(), "EUR/USD", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.P2PIndicativeRate != nil {
			t.Error("unexpected p2p rate")
		}
		if got.CalculationMethod != domain.MethodFixedSpread {
			t.Errorf("CalculationMethod = %s, want FIXED_SPREAD", got.CalculationMethod)
		}
	})

	t.Run("spot_failure", func(t *testing.T) {
		f := newEngineFixture(t)
		f.spot.err = errStoreDown

		_, err := f.engine.Quote(context.Background(), "EUR/USD", "")
		if apperror.GetCode(err) != apperror.CodeSpotRateUnavailable {
			t.Fatalf("code = %s, want %s", apperror.GetCode(err), apperror.CodeSpotRateUnavailable)
		}
	})
}
