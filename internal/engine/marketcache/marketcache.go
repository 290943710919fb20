// Package marketcache holds the latest bar/tick/quote per symbol plus a
// bounded recent-bars ring, backing the execution pipeline's reference
// price lookup and the strategy context's latest_bar/tick/quote/recent_bars
// accessors.
package marketcache

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

const defaultRecentBars = 256

// Cache tracks the most recent market data observed per symbol.
type Cache struct {
	mu sync.RWMutex

	latestBar   map[symbol.ID]data.Bar
	latestTick  map[symbol.ID]data.Tick
	latestQuote map[symbol.ID]data.Quote
	recentBars  map[symbol.ID][]data.Bar
	capacity    int
}

// New returns an empty Cache retaining up to capacity recent bars per
// symbol (defaultRecentBars if capacity <= 0).
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultRecentBars
	}
	return &Cache{
		latestBar:   make(map[symbol.ID]data.Bar),
		latestTick:  make(map[symbol.ID]data.Tick),
		latestQuote: make(map[symbol.ID]data.Quote),
		recentBars:  make(map[symbol.ID][]data.Bar),
		capacity:    capacity,
	}
}

// OnBar records b as the latest bar for its symbol and appends it to the
// symbol's recent-bars ring, evicting the oldest entry past capacity.
func (c *Cache) OnBar(b data.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestBar[b.Symbol] = b
	ring := append(c.recentBars[b.Symbol], b)
	if len(ring) > c.capacity {
		ring = ring[len(ring)-c.capacity:]
	}
	c.recentBars[b.Symbol] = ring
}

// OnTick records tk as the latest tick for its symbol.
func (c *Cache) OnTick(tk data.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestTick[tk.Symbol] = tk
}

// OnQuote records q as the latest quote for its symbol.
func (c *Cache) OnQuote(q data.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestQuote[q.Symbol] = q
}

// LatestBar returns the most recent bar for sym, if any.
func (c *Cache) LatestBar(sym symbol.ID) (data.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.latestBar[sym]
	return b, ok
}

// LatestTick returns the most recent tick for sym, if any.
func (c *Cache) LatestTick(sym symbol.ID) (data.Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tk, ok := c.latestTick[sym]
	return tk, ok
}

// LatestQuote returns the most recent quote for sym, if any.
func (c *Cache) LatestQuote(sym symbol.ID) (data.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.latestQuote[sym]
	return q, ok
}

// RecentBars returns up to n of the most recent bars for sym, oldest first.
func (c *Cache) RecentBars(sym symbol.ID, n int) []data.Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ring := c.recentBars[sym]
	if n <= 0 || n > len(ring) {
		n = len(ring)
	}
	out := make([]data.Bar, n)
	copy(out, ring[len(ring)-n:])
	return out
}

// LatestBarClose implements execution.ReferencePriceSource.
func (c *Cache) LatestBarClose(sym uint32) (float64, bool) {
	b, ok := c.LatestBar(symbol.ID(sym))
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// LatestTickPrice implements execution.ReferencePriceSource.
func (c *Cache) LatestTickPrice(sym uint32) (float64, bool) {
	tk, ok := c.LatestTick(symbol.ID(sym))
	if !ok {
		return 0, false
	}
	return tk.Price, true
}
