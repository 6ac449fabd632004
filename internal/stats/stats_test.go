package stats

import "testing"

func TestMedianAndMAD(t *testing.T) {
	median, mad, ok := MedianAndMAD([]float64{1, 2, 3, 4, 100})
	if !ok {
		t.Fatal("expected ok")
	}
	if median != 3 {
		t.Errorf("expected median 3, got %v", median)
	}
	if mad != 1 {
		t.Errorf("expected mad 1, got %v", mad)
	}
}

func TestMedianAndMAD_Empty(t *testing.T) {
	if _, _, ok := MedianAndMAD(nil); ok {
		t.Error("expected ok=false for empty input")
	}
}

func TestMedian_EvenLength(t *testing.T) {
	m, ok := Median([]float64{4, 1, 3, 2})
	if !ok || m != 2.5 {
		t.Errorf("expected 2.5, got %v (ok=%v)", m, ok)
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input was reordered: %v", in)
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		num, den int
		want     float64
	}{
		{1, 4, 0.25},
		{3, 0, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Fraction(tt.num, tt.den); got != tt.want {
			t.Errorf("Fraction(%d, %d) = %v, want %v", tt.num, tt.den, got, tt.want)
		}
	}
}
