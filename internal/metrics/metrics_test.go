package metrics

import (
	"strings"
	"testing"
)

func TestLabelSetBound(t *testing.T) {
	s := newLabelSet(2)

	tests := []struct {
		label string
		want  string
	}{
		{"DARK", "DARK"},
		{"LIGHT", "LIGHT"},
		{"MEDIUM", OtherLabel},
		{"DARK", "DARK"},
		{"", OtherLabel},
		{strings.Repeat("x", maxLabelLength+1), OtherLabel},
	}
	for _, tt := range tests {
		if got := s.bound(tt.label); got != tt.want {
			t.Errorf("bound(%.10q) = %s, want %s", tt.label, got, tt.want)
		}
	}
}

func TestObserveTopLabelManyLabels(t *testing.T) {
	for i := 0; i < maxTopLabels*2; i++ {
		ObserveTopLabel(strings.Repeat("L", i+1))
	}
	if got := len(topLabels.seen); got > maxTopLabels {
		t.Errorf("Expected at most %d tracked labels, got %d", maxTopLabels, got)
	}
}
