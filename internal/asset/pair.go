package asset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPair is returned when a symbol is not BASE/QUOTE.
var ErrInvalidPair = errors.New("asset: invalid pair symbol")

// Pair is a BASE/QUOTE currency pair. A rate on the pair is the amount of
// quote per one unit of base.
type Pair struct {
	Base  *Asset
	Quote *Asset
}

// Symbol returns the canonical "BASE/QUOTE" form.
func (p Pair) Symbol() string {
	return p.Base.Code() + "/" + p.Quote.Code()
}

func (p Pair) String() string { return p.Symbol() }

// Inverse returns QUOTE/BASE.
func (p Pair) Inverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// SplitSymbol splits "BASE/QUOTE" (also accepting '-' and '_') into codes.
func SplitSymbol(symbol string) (base, quote string, err error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	sep := strings.IndexAny(s, "/-_")
	if sep <= 0 || sep == len(s)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPair, symbol)
	}
	base, quote = s[:sep], s[sep+1:]
	if strings.ContainsAny(quote, "/-_") || base == quote {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPair, symbol)
	}
	return base, quote, nil
}

// NormalizeSymbol returns the canonical "BASE/QUOTE" form of symbol.
func NormalizeSymbol(symbol string) (string, error) {
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + "/" + quote, nil
}
