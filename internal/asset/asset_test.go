package asset_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/internal/asset"
)

func TestRegistry_ParsePair(t *testing.T) {
	r := asset.DefaultRegistry()

	tests := []struct {
		symbol  string
		want    string
		wantErr bool
	}{
		{"EUR/USD", "EUR/USD", false},
		{"eur/usd", "EUR/USD", false},
		{"USDT-ARS", "USDT/ARS", false},
		{"btc_usdt", "BTC/USDT", false},
		{"EURUSD", "", true},
		{"EUR/", "", true},
		{"/USD", "", true},
		{"EUR/EUR", "", true},
		{"XXX/USD", "", true},
		{"EUR/USD/GBP", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			pair, err := r.ParsePair(tt.symbol)
			if tt.wantErr {
				if !errors.Is(err, asset.ErrInvalidPair) {
					t.Errorf("ParsePair(%q) err = %v, want ErrInvalidPair", tt.symbol, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePair(%q) unexpected error: %v", tt.symbol, err)
			}
			if pair.Symbol() != tt.want {
				t.Errorf("Symbol = %s, want %s", pair.Symbol(), tt.want)
			}
		})
	}
}

func TestPair_Inverse(t *testing.T) {
	p := asset.Pair{Base: asset.EUR, Quote: asset.USD}
	if p.Inverse().Symbol() != "USD/EUR" {
		t.Errorf("Inverse = %s, want USD/EUR", p.Inverse().Symbol())
	}
}

func TestAsset_ValidateAmount(t *testing.T) {
	tests := []struct {
		a       *asset.Asset
		amount  string
		wantErr error
	}{
		{asset.EUR, "10000", nil},
		{asset.EUR, "10000.25", nil},
		{asset.EUR, "10000.255", asset.ErrTooManyDecimals},
		{asset.JPY, "100.5", asset.ErrTooManyDecimals},
		{asset.BTC, "0.00000001", nil},
		{asset.USD, "-1", asset.ErrNegativeAmount},
	}

	for _, tt := range tests {
		err := tt.a.ValidateAmount(decimal.RequireFromString(tt.amount))
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s.ValidateAmount(%s) = %v, want %v", tt.a, tt.amount, err, tt.wantErr)
		}
	}
}

func TestRegistry_RegisterDuplicatePanics(t *testing.T) {
	r := asset.NewRegistry()
	r.Register(asset.EUR)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register(asset.NewAsset("eur", "Euro again", asset.KindFiat, 2))
}

func TestRegistry_All(t *testing.T) {
	r := asset.DefaultRegistry()
	all := r.All()
	if len(all) != r.Count() {
		t.Fatalf("All returned %d, Count %d", len(all), r.Count())
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Code() >= all[i].Code() {
			t.Fatalf("All not sorted at %d: %s >= %s", i, all[i-1], all[i])
		}
	}
}
