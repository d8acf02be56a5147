package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewEntry_DefaultsCachePricing(t *testing.T) {
	input := decimal.NewFromFloat(0.000003)
	output := decimal.NewFromFloat(0.000015)

	e := newEntry(input, output, nil, nil)

	wantCacheRead := input.Mul(decimal.NewFromFloat(0.10))
	wantCacheWrite := input.Mul(decimal.NewFromFloat(1.25))

	if !e.CacheReadCostPerToken.Equal(wantCacheRead) {
		t.Errorf("CacheReadCostPerToken = %s, want %s", e.CacheReadCostPerToken, wantCacheRead)
	}
	if !e.CacheWriteCostPerToken.Equal(wantCacheWrite) {
		t.Errorf("CacheWriteCostPerToken = %s, want %s", e.CacheWriteCostPerToken, wantCacheWrite)
	}
}

func TestNewEntry_ExplicitCachePricingOverridesDefault(t *testing.T) {
	input := decimal.NewFromFloat(0.000003)
	output := decimal.NewFromFloat(0.000015)
	explicitRead := decimal.NewFromFloat(0.0000009)

	e := newEntry(input, output, &explicitRead, nil)

	if !e.CacheReadCostPerToken.Equal(explicitRead) {
		t.Errorf("CacheReadCostPerToken = %s, want explicit %s", e.CacheReadCostPerToken, explicitRead)
	}
	wantCacheWrite := input.Mul(decimal.NewFromFloat(1.25))
	if !e.CacheWriteCostPerToken.Equal(wantCacheWrite) {
		t.Errorf("CacheWriteCostPerToken = %s, want default %s", e.CacheWriteCostPerToken, wantCacheWrite)
	}
}

func TestCatalog_LoadSkipsIncompleteEntries(t *testing.T) {
	c := NewCatalog("http://example.invalid", t.TempDir()+"/cache.json", 0)

	data := []byte(`{
		"complete/model": {"input_cost_per_token": 0.000003, "output_cost_per_token": 0.000015},
		"missing-output": {"input_cost_per_token": 0.000003},
		"with-cache-read": {"input_cost_per_token": 0.000003, "output_cost_per_token": 0.000015, "cache_read_input_token_cost": 0.0000003}
	}`)

	if err := c.load(data); err != nil {
		t.Fatalf("load() error = %v", err)
	}

	snapshot := c.snapshot()
	if _, ok := snapshot["missing-output"]; ok {
		t.Error("entry missing output_cost_per_token should be skipped")
	}
	if _, ok := snapshot["complete/model"]; !ok {
		t.Error("complete entry should be present")
	}

	e := snapshot["with-cache-read"]
	want := decimal.NewFromFloat(0.0000003)
	if !e.CacheReadCostPerToken.Equal(want) {
		t.Errorf("CacheReadCostPerToken = %s, want explicit %s", e.CacheReadCostPerToken, want)
	}
}
