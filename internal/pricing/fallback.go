package pricing

import "github.com/shopspring/decimal"

var million = decimal.NewFromInt(1_000_000)

// fallbackTable holds input/output cost per million tokens for the models
// the original hardcodes in MODEL_PRICING. The sync orchestrator consults
// it whenever the catalog has no match for the requested model, which
// includes the case where the catalog is empty because it could not be
// fetched.
var fallbackTable = map[string]struct {
	inputPerMillion  float64
	outputPerMillion float64
}{
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-5-sonnet-20240620": {3.00, 15.00},
	"claude-3-5-haiku-20241022":  {0.80, 4.00},
	"claude-3-opus-20240229":     {15.00, 75.00},
	"claude-3-sonnet-20240229":   {3.00, 15.00},
	"claude-3-haiku-20240307":    {0.25, 1.25},
	"gpt-4o":                     {2.50, 10.00},
	"gpt-4o-mini":                {0.15, 0.60},
	"gpt-4-turbo":                {10.00, 30.00},
	"gpt-3.5-turbo":              {0.50, 1.50},
	"gemini-1.5-pro":             {1.25, 5.00},
	"gemini-1.5-flash":           {0.075, 0.30},
}

// Fallback resolves a model against the built-in table, applying the §4.1
// cache-pricing defaults (10% of input for read, 125% of input for write)
// since the built-in table carries no cache columns at all.
func Fallback(model string) (Entry, bool) {
	row, ok := fallbackTable[model]
	if !ok {
		return Entry{}, false
	}
	input := decimal.NewFromFloat(row.inputPerMillion).Div(million)
	output := decimal.NewFromFloat(row.outputPerMillion).Div(million)
	return newEntry(input, output, nil, nil), true
}
