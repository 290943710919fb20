package backtest

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/engine/generator"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// barFeed, tickFeed, and bookFeed hold the raw per-symbol data a backtest
// run will dispatch, in dispatch order. Event itself carries only a
// timestamp, symbol, and sub-kind (§4.1) — not the bar/tick/book payload —
// so LoadData tees the caller's iterators into these FIFOs as they're
// drained, and handleMarket pops the head of the matching symbol's FIFO
// instead of re-reading a cache that hasn't been updated yet.
type barFeed struct {
	mu    sync.Mutex
	items map[symbol.ID][]data.Bar
}

func newBarFeed() *barFeed { return &barFeed{items: make(map[symbol.ID][]data.Bar)} }

func (f *barFeed) push(b data.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[b.Symbol] = append(f.items[b.Symbol], b)
}

func (f *barFeed) pop(sym symbol.ID) (data.Bar, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.items[sym]
	if len(q) == 0 {
		return data.Bar{}, false
	}
	b := q[0]
	f.items[sym] = q[1:]
	return b, true
}

type tickFeed struct {
	mu    sync.Mutex
	items map[symbol.ID][]data.Tick
}

func newTickFeed() *tickFeed { return &tickFeed{items: make(map[symbol.ID][]data.Tick)} }

func (f *tickFeed) push(tk data.Tick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[tk.Symbol] = append(f.items[tk.Symbol], tk)
}

func (f *tickFeed) pop(sym symbol.ID) (data.Tick, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.items[sym]
	if len(q) == 0 {
		return data.Tick{}, false
	}
	tk := q[0]
	f.items[sym] = q[1:]
	return tk, true
}

type bookFeed struct {
	mu    sync.Mutex
	items map[symbol.ID][]data.OrderBook
}

func newBookFeed() *bookFeed { return &bookFeed{items: make(map[symbol.ID][]data.OrderBook)} }

func (f *bookFeed) push(b data.OrderBook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[b.Symbol] = append(f.items[b.Symbol], b)
}

func (f *bookFeed) pop(sym symbol.ID) (data.OrderBook, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.items[sym]
	if len(q) == 0 {
		return data.OrderBook{}, false
	}
	b := q[0]
	f.items[sym] = q[1:]
	return b, true
}

// teeBars wraps a generator.BarIterator, pushing every bar it yields onto
// feed as a side effect of the generator draining it.
type teeBars struct {
	inner generator.BarIterator
	feed  *barFeed
}

func (t teeBars) Next() (data.Bar, bool) {
	b, ok := t.inner.Next()
	if ok {
		t.feed.push(b)
	}
	return b, ok
}

type teeTicks struct {
	inner generator.TickIterator
	feed  *tickFeed
}

func (t teeTicks) Next() (data.Tick, bool) {
	tk, ok := t.inner.Next()
	if ok {
		t.feed.push(tk)
	}
	return tk, ok
}

type teeBooks struct {
	inner generator.BookIterator
	feed  *bookFeed
}

func (t teeBooks) Next() (data.OrderBook, bool) {
	b, ok := t.inner.Next()
	if ok {
		t.feed.push(b)
	}
	return b, ok
}
