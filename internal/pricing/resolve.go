package pricing

import (
	"regexp"
	"sort"
	"strings"
)

// preferredProviders mirrors PREFERRED_PROVIDERS from the original pricing
// fetcher: providers tried first when building prefixed candidates and when
// ranking fuzzy matches.
var preferredProviders = []string{"xai/", "anthropic/", "openai/", "google/", "mistral/"}

// resellerProviders rank last in a fuzzy match: they re-sell a model under
// a cloud-specific prefix and are a worse signal than a direct provider.
var resellerProviders = []string{"azure_ai/", "bedrock/", "vertex_ai/"}

var versionDigitHyphenDigit = regexp.MustCompile(`(\d)-(\d)`)
var versionDigitDotDigit = regexp.MustCompile(`(\d)\.(\d)`)

// Resolve implements §4.1's five-step model-name resolution against the
// currently loaded catalog snapshot. Returns ok=false ("not-found") when no
// step matches.
func (c *Catalog) Resolve(shortName string) (Entry, bool) {
	entries := c.snapshot()
	if len(entries) == 0 {
		return Entry{}, false
	}

	// Step 1: exact match.
	if e, ok := entries[shortName]; ok {
		return e, true
	}

	// Step 2: version normalization, both directions.
	normalizedForward := versionDigitHyphenDigit.ReplaceAllString(shortName, "$1.$2")
	normalizedReverse := versionDigitDotDigit.ReplaceAllString(shortName, "$1-$2")
	for _, candidate := range []string{normalizedForward, normalizedReverse} {
		if candidate == shortName {
			continue
		}
		if e, ok := entries[candidate]; ok {
			return e, true
		}
	}

	// Step 3: provider-prefixed candidates, original and normalized forms,
	// in preferred-provider order.
	for _, prefix := range preferredProviders {
		for _, candidate := range []string{shortName, normalizedForward, normalizedReverse} {
			if e, ok := entries[prefix+candidate]; ok {
				return e, true
			}
		}
	}

	// Step 4: fuzzy last resort.
	words := fuzzyWords(shortName)
	if len(words) == 0 {
		return Entry{}, false
	}

	var candidates []string
	for key := range entries {
		if containsAllWords(strings.ToLower(key), words) {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return Entry{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return providerPriority(candidates[i]) < providerPriority(candidates[j])
	})
	return entries[candidates[0]], true
}

func fuzzyWords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == '.' || r == ' ' || r == '\t'
	})
	return fields
}

func containsAllWords(key string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(key, w) {
			return false
		}
	}
	return true
}

// providerPriority ranks preferred prefixes 0..len-1, reseller prefixes
// 100..102, and everything else 50 — matching _provider_priority exactly.
func providerPriority(key string) int {
	for i, p := range preferredProviders {
		if strings.HasPrefix(key, p) {
			return i
		}
	}
	for i, p := range resellerProviders {
		if strings.HasPrefix(key, p) {
			return 100 + i
		}
	}
	return 50
}
