// Package domain contains the core domain types for the pricing context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpotRate is a single observation from the spot feed.
type SpotRate struct {
	Symbol    string           `json:"symbol"`
	Price     decimal.Decimal  `json:"price"`
	Bid       decimal.Decimal  `json:"bid"`
	Ask       decimal.Decimal  `json:"ask"`
	Spread    decimal.Decimal  `json:"spread"` // Ask - Bid
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
	Volume    *decimal.Decimal `json:"volume,omitempty"`
}

// NewSpotRate builds a SpotRate, deriving the bid/ask spread.
func NewSpotRate(symbol string, price, bid, ask decimal.Decimal, source string, ts time.Time) SpotRate {
	return SpotRate{
		Symbol:    symbol,
		Price:     price,
		Bid:       bid,
		Ask:       ask,
		Spread:    ask.Sub(bid),
		Source:    source,
		Timestamp: ts,
	}
}

// Age returns how old the observation is at now. Future timestamps count as fresh.
func (r SpotRate) Age(now time.Time) time.Duration {
	if r.Timestamp.After(now) {
		return 0
	}
	return now.Sub(r.Timestamp)
}

// P2PIndicativeRate is the rate derived from the P2P order book.
type P2PIndicativeRate struct {
	Symbol        string          `json:"symbol"`
	Rate          decimal.Decimal `json:"rate"`          // volume-weighted over top offers
	TopSellerRate decimal.Decimal `json:"topSellerRate"` // best offer
	Offers        int             `json:"offers"`
	DataQuality   int             `json:"dataQuality"` // 0..100
	Issues        []string        `json:"issues,omitempty"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
}

// DeltaSample is one point of the P2P-minus-spot time series.
type DeltaSample struct {
	Symbol     string          `json:"symbol"`
	Delta      decimal.Decimal `json:"delta"`
	SpotRate   decimal.Decimal `json:"spotRate"`
	P2PRate    decimal.Decimal `json:"p2pRate"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// NewDeltaSample computes delta = p2p.Rate - spot.Price.
func NewDeltaSample(spot SpotRate, p2p P2PIndicativeRate, at time.Time) DeltaSample {
	return DeltaSample{
		Symbol:     spot.Symbol,
		Delta:      p2p.Rate.Sub(spot.Price),
		SpotRate:   spot.Price,
		P2PRate:    p2p.Rate,
		RecordedAt: at,
	}
}

// Deltas extracts the delta values in order.
func Deltas(samples []DeltaSample) []decimal.Decimal {
	out := make([]decimal.Decimal, len(samples))
	for i, s := range samples {
		out[i] = s.Delta
	}
	return out
}
