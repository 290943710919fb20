// Package dataload adapts the on-disk mmapfile columnar format to the
// generator.BarIterator/TickIterator/BookIterator interfaces the backtest
// engine consumes, so cmd/regimeflow can point --data-dir at a directory
// of per-symbol files instead of the engine ever knowing mmapfile exists.
//
// Directory convention: for a symbol named "AAPL", Load looks for
// <dir>/AAPL.bars.rgf, <dir>/AAPL.ticks.rgf, and <dir>/AAPL.books.rgf.
// Any of the three may be absent for a given symbol; a symbol with none
// of the three present is silently skipped, since a backtest may mix
// symbols with different data granularities. When a symbol has a ticks
// file but no bars file and AggregateConfig.Enabled is set, Load
// synthesizes bars from the ticks through databuild.BarBuilder instead of
// leaving that symbol bar-less.
package dataload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/databuild"
	"github.com/regimeflow/regimeflow/internal/mmapfile"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

type barIterator struct {
	view mmapfile.BarView
	sym  symbol.ID
	idx  int
	n    int
}

func (it *barIterator) Next() (data.Bar, bool) {
	if it.idx >= it.n {
		return data.Bar{}, false
	}
	r := it.view.Index(it.idx)
	it.idx++
	return data.Bar{
		Timestamp: clock.Timestamp(r.Timestamp),
		Symbol:    it.sym,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}, true
}

type tickIterator struct {
	view mmapfile.TickView
	sym  symbol.ID
	idx  int
	n    int
}

func (it *tickIterator) Next() (data.Tick, bool) {
	if it.idx >= it.n {
		return data.Tick{}, false
	}
	r := it.view.Index(it.idx)
	it.idx++
	return data.Tick{
		Timestamp: clock.Timestamp(r.Timestamp),
		Symbol:    it.sym,
		Price:     r.Price,
		Quantity:  r.Quantity,
		Flags:     data.TickFlag(r.Flags),
	}, true
}

type bookIterator struct {
	view mmapfile.BookView
	sym  symbol.ID
	idx  int
	n    int
}

func (it *bookIterator) Next() (data.OrderBook, bool) {
	if it.idx >= it.n {
		return data.OrderBook{}, false
	}
	r := it.view.Index(it.idx)
	it.idx++
	out := data.OrderBook{Timestamp: clock.Timestamp(r.Timestamp), Symbol: it.sym}
	for lvl := 0; lvl < data.BookLevelCount && lvl < mmapfile.BookLevelCount; lvl++ {
		out.Bids[lvl] = data.BookLevel{Price: r.Bids[lvl].Price, Quantity: r.Bids[lvl].Quantity, NumOrders: r.Bids[lvl].NumOrders}
		out.Asks[lvl] = data.BookLevel{Price: r.Asks[lvl].Price, Quantity: r.Asks[lvl].Quantity, NumOrders: r.Asks[lvl].NumOrders}
	}
	return out, true
}

// aggregatedBarIterator feeds a raw tick iterator through a BarBuilder,
// synthesizing bars for symbols whose data directory only has a ticks
// file. It reads the ticks through its own tickIterator (the caller builds
// a second mmapfile.TickView cursor over the same file), so it does not
// interfere with the raw tick stream handed to the engine's TickIterator.
type aggregatedBarIterator struct {
	ticks   *tickIterator
	builder *databuild.BarBuilder
	flushed bool
}

func (it *aggregatedBarIterator) Next() (data.Bar, bool) {
	for {
		tick, ok := it.ticks.Next()
		if !ok {
			break
		}
		if bar, closed := it.builder.Add(tick); closed {
			return bar, true
		}
	}
	if !it.flushed {
		it.flushed = true
		return it.builder.Flush()
	}
	return data.Bar{}, false
}

// barSource is satisfied by both barIterator (read straight off a bars
// file) and aggregatedBarIterator (synthesized from a ticks file).
type barSource interface {
	Next() (data.Bar, bool)
}

// multiBar/multiTick/multiBook concatenate one iterator per symbol. The
// generator sorts its entire drained stream by (timestamp, priority,
// symbol, sub-kind) before enqueuing (see generator.EnqueueAll), so the
// order these are drained in doesn't need to already be time-merged
// across symbols — only each symbol's own column is time-ordered, which
// the file format guarantees by construction.
type multiBar struct {
	iters []barSource
	cur   int
}

func (m *multiBar) Next() (data.Bar, bool) {
	for m.cur < len(m.iters) {
		if b, ok := m.iters[m.cur].Next(); ok {
			return b, true
		}
		m.cur++
	}
	return data.Bar{}, false
}

type multiTick struct {
	iters []*tickIterator
	cur   int
}

func (m *multiTick) Next() (data.Tick, bool) {
	for m.cur < len(m.iters) {
		if t, ok := m.iters[m.cur].Next(); ok {
			return t, true
		}
		m.cur++
	}
	return data.Tick{}, false
}

type multiBook struct {
	iters []*bookIterator
	cur   int
}

func (m *multiBook) Next() (data.OrderBook, bool) {
	for m.cur < len(m.iters) {
		if b, ok := m.iters[m.cur].Next(); ok {
			return b, true
		}
		m.cur++
	}
	return data.OrderBook{}, false
}

// Set holds the loaded bar/tick/book iterators (any may be nil if no
// symbol had that kind of file) plus the open mmap handles, which the
// caller must Close once the backtest has drained them.
type Set struct {
	Bars  *multiBar
	Ticks *multiTick
	Books *multiBook

	closers []io.Closer
}

// Close unmaps every file opened by Load, returning the first error
// encountered (if any) after attempting to close the rest.
func (s *Set) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AggregateConfig controls the synthetic bar built for a symbol that has a
// ticks file but no bars file (databuild.BarBuilder). A zero-value
// AggregateConfig disables aggregation: such a symbol simply contributes no
// bars.
type AggregateConfig struct {
	Enabled   bool
	Trigger   databuild.Trigger
	Threshold float64
}

// Load opens the bar/tick/book files for each of symbols under dir,
// interning each symbol name into reg, and returns a Set ready to pass to
// backtest.Engine.LoadData.
func Load(dir string, symbols []string, reg *symbol.Registry, agg AggregateConfig) (*Set, error) {
	set := &Set{}
	var bars []barSource
	var ticks []*tickIterator
	var books []*bookIterator

	for _, name := range symbols {
		id := reg.Intern(name)

		barsPath := filepath.Join(dir, name+".bars.rgf")
		haveBars := fileExists(barsPath)
		if haveBars {
			bf, err := mmapfile.OpenBars(barsPath)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("dataload: open bars for %s: %w", name, err)
			}
			set.closers = append(set.closers, bf)
			bars = append(bars, &barIterator{view: bf.Bars(), sym: id, n: bf.RecordCount()})
		}

		if path := filepath.Join(dir, name+".ticks.rgf"); fileExists(path) {
			tf, err := mmapfile.OpenTicks(path)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("dataload: open ticks for %s: %w", name, err)
			}
			set.closers = append(set.closers, tf)
			ticks = append(ticks, &tickIterator{view: tf.Ticks(), sym: id, n: tf.RecordCount()})

			if agg.Enabled && !haveBars {
				bars = append(bars, &aggregatedBarIterator{
					ticks:   &tickIterator{view: tf.Ticks(), sym: id, n: tf.RecordCount()},
					builder: databuild.NewBarBuilder(id, agg.Trigger, agg.Threshold),
				})
			}
		}

		if path := filepath.Join(dir, name+".books.rgf"); fileExists(path) {
			bkf, err := mmapfile.OpenBooks(path)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("dataload: open books for %s: %w", name, err)
			}
			set.closers = append(set.closers, bkf)
			books = append(books, &bookIterator{view: bkf.Books(), sym: id, n: bkf.RecordCount()})
		}
	}

	if len(bars) > 0 {
		set.Bars = &multiBar{iters: bars}
	}
	if len(ticks) > 0 {
		set.Ticks = &multiTick{iters: ticks}
	}
	if len(books) > 0 {
		set.Books = &multiBook{iters: books}
	}
	return set, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
