package analysis

import (
	"math"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestAsFloat64(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
		ok    bool
	}{
		{name: "float64", input: float64(1.5), want: 1.5, ok: true},
		{name: "float32", input: float32(2.5), want: 2.5, ok: true},
		{name: "int64", input: int64(7), want: 7, ok: true},
		{name: "int32", input: int32(7), want: 7, ok: true},
		{name: "int16", input: int16(7), want: 7, ok: true},
		{name: "int", input: 7, want: 7, ok: true},
		{name: "string", input: "7", ok: false},
		{name: "nil", input: nil, ok: false},
		{name: "bool", input: true, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asFloat64(tt.input)
			if ok != tt.ok {
				t.Fatalf("asFloat64(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("asFloat64(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	t.Run("pgtype numeric", func(t *testing.T) {
		n := pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}
		got, ok := asFloat64(n)
		if !ok {
			t.Fatal("asFloat64(Numeric) not ok")
		}
		if got != 12.5 {
			t.Errorf("asFloat64(Numeric) = %v, want 12.5", got)
		}
	})

	t.Run("null pgtype numeric", func(t *testing.T) {
		if _, ok := asFloat64(pgtype.Numeric{}); ok {
			t.Error("asFloat64(null Numeric) should not be ok")
		}
	})
}

func TestNormalizeValue(t *testing.T) {
	t.Run("numeric becomes float64", func(t *testing.T) {
		n := pgtype.Numeric{Int: big.NewInt(42), Exp: 0, Valid: true}
		got := normalizeValue(n)
		if f, ok := got.(float64); !ok || f != 42 {
			t.Errorf("normalizeValue(Numeric) = %v (%T), want 42.0", got, got)
		}
	})

	t.Run("other values pass through", func(t *testing.T) {
		if got := normalizeValue("hello"); got != "hello" {
			t.Errorf("normalizeValue(string) = %v, want hello", got)
		}
		if got := normalizeValue(int64(3)); got != int64(3) {
			t.Errorf("normalizeValue(int64) = %v, want 3", got)
		}
		if got := normalizeValue(nil); got != nil {
			t.Errorf("normalizeValue(nil) = %v, want nil", got)
		}
	})
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		input  float64
		digits int
		want   float64
	}{
		{3.14159, 2, 3.14},
		{3.14159, 4, 3.1416},
		{2.5, 0, 3},
		{-1.2345, 2, -1.23},
		{0, 2, 0},
	}

	for _, tt := range tests {
		if got := roundTo(tt.input, tt.digits); got != tt.want {
			t.Errorf("roundTo(%v, %d) = %v, want %v", tt.input, tt.digits, got, tt.want)
		}
	}

	if got := roundTo(math.Inf(1), 2); !math.IsInf(got, 1) {
		t.Errorf("roundTo(+Inf) = %v, want +Inf", got)
	}
	if got := roundTo(math.NaN(), 2); !math.IsNaN(got) {
		t.Errorf("roundTo(NaN) = %v, want NaN", got)
	}
}
