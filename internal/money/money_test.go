package money

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fxdesk/internal/apperror"
)

func TestDiv(t *testing.T) {
	got, err := Div(decimal.RequireFromString("1"), decimal.RequireFromString("4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("Div = %s, want 0.25", got)
	}

	_, err = Div(decimal.NewFromInt(1), decimal.Zero)
	if apperror.GetCode(err) != apperror.CodeDivisionByZero {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeDivisionByZero)
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.RequireFromString("1.1012"), decimal.RequireFromString("0.5"))
	want := decimal.RequireFromString("0.005506")
	if !got.Equal(want) {
		t.Errorf("Percent = %s, want %s", got, want)
	}
}

func TestClamp(t *testing.T) {
	lo := decimal.RequireFromString("1")
	hi := decimal.RequireFromString("2")

	tests := []struct {
		in, want string
	}{
		{"0.5", "1"},
		{"1.5", "1.5"},
		{"3", "2"},
		{"1", "1"},
		{"2", "2"},
	}
	for _, tt := range tests {
		got := Clamp(decimal.RequireFromString(tt.in), lo, hi)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Clamp(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSqrt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"4", "2"},
		{"0.0004", "0.02"},
		{"2", "1.414213562373095048801689"},
		{"1000000", "1000"},
	}

	for _, tt := range tests {
		got, err := Sqrt(decimal.RequireFromString(tt.in))
		if err != nil {
			t.Fatalf("Sqrt(%s) error: %v", tt.in, err)
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Sqrt(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := Sqrt(decimal.NewFromInt(-1)); apperror.GetCode(err) != apperror.CodeNegativeSquareRoot {
		t.Errorf("Sqrt(-1) code = %s, want %s", apperror.GetCode(err), apperror.CodeNegativeSquareRoot)
	}
}

func TestVariance(t *testing.T) {
	values := []decimal.Decimal{
		decimal.RequireFromString("2"),
		decimal.RequireFromString("4"),
		decimal.RequireFromString("4"),
		decimal.RequireFromString("4"),
		decimal.RequireFromString("5"),
		decimal.RequireFromString("5"),
		decimal.RequireFromString("7"),
		decimal.RequireFromString("9"),
	}

	variance, mean, err := Variance(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mean.Equal(decimal.NewFromInt(5)) {
		t.Errorf("mean = %s, want 5", mean)
	}
	if !variance.Equal(decimal.NewFromInt(4)) {
		t.Errorf("variance = %s, want 4", variance)
	}

	if _, _, err := Variance(nil); apperror.GetCode(err) != apperror.CodeEmptySeries {
		t.Errorf("Variance(nil) code = %s, want %s", apperror.GetCode(err), apperror.CodeEmptySeries)
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(" 1.1067 ")
	if err != nil || !got.Equal(decimal.RequireFromString("1.1067")) {
		t.Errorf("Parse = %s, %v", got, err)
	}
	if _, err := Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
	if _, err := Parse("abc"); apperror.GetCode(err) != apperror.CodeInvalidFormat {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidFormat)
	}
}

func BenchmarkSqrt(b *testing.B) {
	d := decimal.RequireFromString("0.000123456789")
	for i := 0; i < b.N; i++ {
		_, _ = Sqrt(d)
	}
}
