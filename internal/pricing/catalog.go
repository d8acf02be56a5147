// Package pricing implements the pricing catalog (C1) and cost calculator
// (C2): a disk-cached fetch of a third-party model-pricing document, a
// multi-step model-name resolver, and decimal cost arithmetic over the
// resolved entry.
package pricing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agusmdev/burntop/internal/logger"
)

// Entry is one resolved pricing row, lifted from float JSON into decimal on
// parse per the design note that catalog rates "arrive as floats but should
// be lifted into decimal on parse". CacheReadCostPerToken and
// CacheWriteCostPerToken are always populated: newEntry applies the §4.1
// defaults (10% / 125% of input) whenever the source omits them.
type Entry struct {
	InputCostPerToken      decimal.Decimal
	OutputCostPerToken     decimal.Decimal
	CacheReadCostPerToken  decimal.Decimal
	CacheWriteCostPerToken decimal.Decimal
}

var (
	cacheReadDefaultRate  = decimal.NewFromFloat(0.10)
	cacheWriteDefaultRate = decimal.NewFromFloat(1.25)
)

// newEntry builds an Entry from explicit input/output rates, defaulting
// cache-read and cache-write pricing from the input rate when the caller
// passes nil for either.
func newEntry(input, output decimal.Decimal, cacheRead, cacheWrite *decimal.Decimal) Entry {
	e := Entry{InputCostPerToken: input, OutputCostPerToken: output}
	if cacheRead != nil {
		e.CacheReadCostPerToken = *cacheRead
	} else {
		e.CacheReadCostPerToken = input.Mul(cacheReadDefaultRate)
	}
	if cacheWrite != nil {
		e.CacheWriteCostPerToken = *cacheWrite
	} else {
		e.CacheWriteCostPerToken = input.Mul(cacheWriteDefaultRate)
	}
	return e
}

type catalogEntryJSON struct {
	InputCostPerToken        *float64 `json:"input_cost_per_token"`
	OutputCostPerToken       *float64 `json:"output_cost_per_token"`
	CacheReadInputTokenCost  *float64 `json:"cache_read_input_token_cost"`
}

// Catalog fetches and caches the pricing document, and resolves short model
// names against it (§4.1).
type Catalog struct {
	url       string
	cachePath string
	ttl       time.Duration
	client    *http.Client

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCatalog constructs a catalog. The HTTP client carries the §5-mandated
// 30 second fetch timeout.
func NewCatalog(url, cachePath string, ttl time.Duration) *Catalog {
	return &Catalog{
		url:       url,
		cachePath: cachePath,
		ttl:       ttl,
		client:    &http.Client{Timeout: 30 * time.Second},
		entries:   make(map[string]Entry),
	}
}

// Refresh loads the catalog into memory: from disk cache if fresh, else via
// HTTPS GET with an atomic cache write, falling back to a stale cache or an
// empty catalog on failure. Safe to call concurrently; the parsed map is
// swapped atomically under a lock per §5 "lock-free atomic swap" intent.
func (c *Catalog) Refresh(ctx context.Context) error {
	if data, ok := c.readFreshCache(); ok {
		return c.load(data)
	}

	data, err := c.fetch(ctx)
	if err != nil {
		logger.Warn("pricing catalog fetch failed, falling back to cache", "error", err)
		if stale, ok := c.readAnyCache(); ok {
			return c.load(stale)
		}
		logger.Warn("no pricing cache available, using empty catalog")
		c.swap(make(map[string]Entry))
		return nil
	}

	if err := c.writeCache(data); err != nil {
		logger.Warn("failed to persist pricing cache", "error", err)
	}
	return c.load(data)
}

func (c *Catalog) readFreshCache() ([]byte, bool) {
	info, err := os.Stat(c.cachePath)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Catalog) readAnyCache() ([]byte, bool) {
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Catalog) fetch(ctx context.Context) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// writeCache persists data via temp-file-then-rename so concurrent readers
// never observe a partially written file.
func (c *Catalog) writeCache(data []byte) error {
	dir := filepath.Dir(c.cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".pricing-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, c.cachePath)
}

func (c *Catalog) load(data []byte) error {
	var raw map[string]catalogEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed := make(map[string]Entry, len(raw))
	for key, v := range raw {
		if v.InputCostPerToken == nil || v.OutputCostPerToken == nil {
			continue
		}
		input := decimal.NewFromFloat(*v.InputCostPerToken)
		output := decimal.NewFromFloat(*v.OutputCostPerToken)
		var cacheRead *decimal.Decimal
		if v.CacheReadInputTokenCost != nil {
			d := decimal.NewFromFloat(*v.CacheReadInputTokenCost)
			cacheRead = &d
		}
		parsed[key] = newEntry(input, output, cacheRead, nil)
	}
	c.swap(parsed)
	return nil
}

func (c *Catalog) swap(entries map[string]Entry) {
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

func (c *Catalog) snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return "unexpected status fetching pricing catalog"
}
