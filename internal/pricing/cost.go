package pricing

import "github.com/shopspring/decimal"

// Usage is the raw token counts a cost calculation is derived from.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheReadTokens  int64
	CacheWriteTokens int64
	ReasoningTokens  int64
}

// Cost computes the §4.2 cost formula against a resolved pricing entry:
// each token count multiplied by its per-token rate and summed, reasoning
// tokens billed at the output rate, rounded half-even to 4 fractional digits.
func Cost(u Usage, e Entry) decimal.Decimal {
	total := decimal.Zero
	total = total.Add(termCost(u.InputTokens, e.InputCostPerToken))
	total = total.Add(termCost(u.OutputTokens, e.OutputCostPerToken))
	total = total.Add(termCost(u.CacheReadTokens, e.CacheReadCostPerToken))
	total = total.Add(termCost(u.CacheWriteTokens, e.CacheWriteCostPerToken))
	total = total.Add(termCost(u.ReasoningTokens, e.OutputCostPerToken))
	return total.RoundBank(4)
}

func termCost(count int64, costPerToken decimal.Decimal) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(count).Mul(costPerToken)
}

// CacheEfficiency is cache_read / (cache_read + input) as a percentage
// rounded to 2 decimals. A zero denominator yields 0.00, except when there
// are cache-read tokens with no input tokens at all, which is 100.00.
func CacheEfficiency(cacheReadTokens, inputTokens int64) decimal.Decimal {
	denominator := cacheReadTokens + inputTokens
	if denominator == 0 {
		return decimal.Zero
	}
	if inputTokens == 0 {
		return decimal.NewFromInt(100)
	}
	ratio := decimal.NewFromInt(cacheReadTokens).Div(decimal.NewFromInt(denominator))
	return ratio.Mul(decimal.NewFromInt(100)).Round(2)
}
