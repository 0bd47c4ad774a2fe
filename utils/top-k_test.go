package utils

import (
	"slices"
	"testing"
)

func TestTopK(t *testing.T) {
	vals := []float64{0.3, 0.9, 0.1, 0.9, 0.5, 0.7}

	got := TopK(vals, 3)
	if want := []int{1, 3, 5}; !slices.Equal(got, want) {
		t.Errorf("TopK(3) = %v, want %v", got, want)
	}

	got = TopK(vals, 10)
	if want := []int{1, 3, 5, 4, 0, 2}; !slices.Equal(got, want) {
		t.Errorf("TopK(10) = %v, want %v", got, want)
	}

	if got := TopK(vals, 0); len(got) != 0 {
		t.Errorf("TopK(0) = %v", got)
	}
	if got := TopK(nil, 2); len(got) != 0 {
		t.Errorf("TopK on empty = %v", got)
	}
}
