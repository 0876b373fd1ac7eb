// Package money holds the decimal helpers every monetary computation goes
// through. Results are shopspring decimals and never round-trip through floats.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/internal/apperror"
)

// SqrtPrecision is the number of decimal places kept by Sqrt.
const SqrtPrecision int32 = 24

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Hundred returns 100, used for percent conversions.
func Hundred() decimal.Decimal { return hundred }

// Div divides a by b, failing on a zero divisor.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, apperror.New(apperror.CodeDivisionByZero,
			apperror.WithContext(a.String()+" / 0"))
	}
	return a.Div(b), nil
}

// Percent returns value * pct / 100.
func Percent(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(hundred)
}

// Clamp bounds v to [lo, hi]. When lo > hi, lo wins.
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(v, hi))
}

// Sqrt computes the square root with Newton's method at SqrtPrecision places.
func Sqrt(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, apperror.New(apperror.CodeNegativeSquareRoot,
			apperror.WithContext(d.String()))
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}

	precision := SqrtPrecision + 4
	epsilon := decimal.New(1, -precision)

	// seed from the float approximation, then refine
	f, _ := d.Float64()
	x := decimal.NewFromFloat(math.Sqrt(f))
	if !x.IsPositive() {
		x = d
	}

	for i := 0; i < 100; i++ {
		next := x.Add(d.DivRound(x, precision)).DivRound(two, precision)
		if next.Sub(x).Abs().LessThanOrEqual(epsilon) {
			x = next
			break
		}
		x = next
	}

	return x.Round(SqrtPrecision), nil
}

// Mean returns the arithmetic mean.
func Mean(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, apperror.New(apperror.CodeEmptySeries, apperror.WithContext("mean"))
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values)))), nil
}

// Variance returns the population variance and the mean it was computed from.
func Variance(values []decimal.Decimal) (variance, mean decimal.Decimal, err error) {
	mean, err = Mean(values)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	sum := decimal.Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))), mean, nil
}

// Parse strictly parses a decimal string.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidFormat, "empty decimal")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext(s))
	}
	return d, nil
}
