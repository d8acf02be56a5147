package prune

import "testing"

func TestSummaryIsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		summary  Summary
		expected bool
	}{
		{"empty", Summary{}, true},
		{"has rows", Summary{MessageIDCount: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.summary.IsEmpty(); got != tt.expected {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPrintSummaryAndResultDoNotPanic(t *testing.T) {
	summary := &Summary{MessageIDCount: 42}
	opts := Options{}

	PrintSummary(summary, opts)
	PrintResult(summary)
}
