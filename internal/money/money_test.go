package money

import (
	"math"
	"testing"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"half up", 3879.345, 3879.35},
		{"monthly cost from RAL", 50431.5 / 13, 3879.35},
		{"already rounded", 20, 20},
		{"NaN", math.NaN(), 0},
		{"Inf", math.Inf(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round2(tt.in); got != tt.want {
				t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFixed(t *testing.T) {
	if got := Fixed(3470, 2); got != "3470.00" {
		t.Errorf("Fixed = %q, want 3470.00", got)
	}
	if got := Fixed(82.5, 1); got != "82.5" {
		t.Errorf("Fixed = %q, want 82.5", got)
	}
}

func TestSanitize(t *testing.T) {
	for _, v := range []float64{-1, math.NaN(), math.Inf(-1)} {
		if got := Sanitize(v); got != 0 {
			t.Errorf("Sanitize(%v) = %v, want 0", v, got)
		}
	}
	if got := Sanitize(12.5); got != 12.5 {
		t.Errorf("Sanitize(12.5) = %v", got)
	}
}

func TestSum(t *testing.T) {
	if got := Sum(0.1, 0.2); got != 0.3 {
		t.Errorf("Sum = %v, want 0.3", got)
	}
}
