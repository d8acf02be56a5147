package pricing

import "testing"

func TestFallback_KnownModel(t *testing.T) {
	e, ok := Fallback("gpt-4o")
	if !ok {
		t.Fatal("expected gpt-4o to be in the fallback table")
	}
	if e.CacheReadCostPerToken.IsZero() {
		t.Error("expected a defaulted cache-read rate")
	}
	if e.CacheWriteCostPerToken.IsZero() {
		t.Error("expected a defaulted cache-write rate")
	}
}

func TestFallback_UnknownModel(t *testing.T) {
	if _, ok := Fallback("not-a-real-model"); ok {
		t.Error("expected no fallback entry for an unknown model")
	}
}
