// Package asset models the currencies the desk prices and the pairs built
// from them.
package asset

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrEmptyCode       = errors.New("asset: empty code")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for asset")
	ErrNegativeAmount  = errors.New("asset: negative amount")
)

// Kind classifies an asset.
type Kind uint8

const (
	KindFiat Kind = iota
	KindCrypto
	KindStablecoin
)

func (k Kind) String() string {
	switch k {
	case KindFiat:
		return "fiat"
	case KindCrypto:
		return "crypto"
	case KindStablecoin:
		return "stablecoin"
	default:
		return "unknown"
	}
}

// Asset is a currency identified by its upper-case code.
type Asset struct {
	code     string
	name     string
	kind     Kind
	decimals int32
}

// NewAsset creates an asset. Codes are normalized to upper case.
func NewAsset(code, name string, kind Kind, decimals int32) *Asset {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		panic(ErrEmptyCode)
	}
	if decimals < 0 || decimals > 18 {
		panic("asset: suspicious decimals")
	}
	return &Asset{code: code, name: name, kind: kind, decimals: decimals}
}

// Code returns the ticker code (e.g., "EUR", "USDT").
func (a *Asset) Code() string { return a.code }

// Name returns the human-readable name, falling back to the code.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.code
	}
	return a.name
}

// Kind returns the asset class.
func (a *Asset) Kind() Kind { return a.kind }

// Decimals returns the smallest unit precision.
func (a *Asset) Decimals() int32 { return a.decimals }

// IsFiat reports whether this is a fiat currency.
func (a *Asset) IsFiat() bool { return a.kind == KindFiat }

func (a *Asset) String() string { return a.code }

// Equals compares two assets by code.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.code == other.code
}

// ValidateAmount checks that amount is non-negative and representable in
// the asset's smallest unit.
func (a *Asset) ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !amount.Equal(amount.Truncate(a.decimals)) {
		return ErrTooManyDecimals
	}
	return nil
}
