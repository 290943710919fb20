// Package bookcache holds the latest order-book snapshot per symbol,
// backing the execution pipeline's depth-walk path and the strategy
// context's latest_order_book accessor.
package bookcache

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Cache tracks the most recent order book observed per symbol.
type Cache struct {
	mu     sync.RWMutex
	latest map[symbol.ID]data.OrderBook
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{latest: make(map[symbol.ID]data.OrderBook)}
}

// OnBook records book as the latest snapshot for its symbol.
func (c *Cache) OnBook(book data.OrderBook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[book.Symbol] = book
}

// Latest returns the most recent order book for sym, if any.
func (c *Cache) Latest(sym symbol.ID) (data.OrderBook, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.latest[sym]
	return b, ok
}

// LatestBook implements the sym-as-uint32 half of
// execution.ReferencePriceSource.
func (c *Cache) LatestBook(sym uint32) (*data.OrderBook, bool) {
	b, ok := c.Latest(symbol.ID(sym))
	if !ok {
		return nil, false
	}
	return &b, true
}
