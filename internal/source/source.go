// Package source normalizes and validates the "source" field carried on
// every sync request (e.g. "cursor", "claude-code", "codex"). Unlike a
// fixed tool registry, sources here are opaque client-supplied strings:
// any lowercase string up to 50 characters is accepted.
package source

import (
	"fmt"
	"strings"
)

const MaxLength = 50

// Normalize lowercases and trims a source string.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Validate rejects an empty or over-length source.
func Validate(s string) error {
	if s == "" {
		return fmt.Errorf("source must not be empty")
	}
	if len(s) > MaxLength {
		return fmt.Errorf("source exceeds %d characters", MaxLength)
	}
	return nil
}

// NormalizeModel lowercases and trims a model name. It does not check
// length; ValidateModel enforces the upper bound usage_records.model
// carries.
func NormalizeModel(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

const MaxModelLength = 100

// ValidateModel rejects an empty or over-length model name.
func ValidateModel(m string) error {
	if m == "" {
		return fmt.Errorf("model must not be empty")
	}
	if len(m) > MaxModelLength {
		return fmt.Errorf("model exceeds %d characters", MaxModelLength)
	}
	return nil
}
