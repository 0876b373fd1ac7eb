package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/business/pricing/app"
	"github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apperror"
	"github.com/fd1az/fxdesk/internal/asset"
)

var _ app.SpotFeed = (*StaticFeed)(nil)

// StaticFeed serves fixed prices. Used when no spot venue is configured.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	now    func() time.Time
}

// NewStaticFeed parses symbol -> price pairs.
func NewStaticFeed(prices map[string]string) (*StaticFeed, error) {
	f := &StaticFeed{
		prices: make(map[string]decimal.Decimal, len(prices)),
		now:    time.Now,
	}
	for symbol, raw := range prices {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("static price for %s: %w", symbol, err)
		}
		if err := f.Set(symbol, price); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Set replaces the price for symbol.
func (f *StaticFeed) Set(symbol string, price decimal.Decimal) error {
	symbol, err := asset.NormalizeSymbol(symbol)
	if err != nil {
		return fmt.Errorf("static price: %w", err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("static price for %s must be positive", symbol)
	}

	f.mu.Lock()
	f.prices[symbol] = price
	f.mu.Unlock()
	return nil
}

// GetSpotRate returns the configured price with a zero bid/ask spread.
func (f *StaticFeed) GetSpotRate(_ context.Context, symbol string) (*domain.SpotRate, error) {
	symbol, err := asset.NormalizeSymbol(symbol)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidSymbol, err.Error())
	}

	f.mu.RLock()
	price, ok := f.prices[symbol]
	f.mu.RUnlock()
	if !ok {
		return nil, apperror.External(apperror.CodeSpotRateUnavailable,
			fmt.Sprintf("no static price for %s", symbol), nil)
	}

	rate := domain.NewSpotRate(symbol, price, price, price, "static", f.now())
	return &rate, nil
}
