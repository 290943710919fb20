// Package generator assembles one deterministic, priority-ordered event
// stream from independent bar/tick/book sources, synthesizing DayStart,
// EndOfDay, and Timer events around the data per §4.3.
package generator

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/events"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// BarIterator yields Bars in increasing timestamp order.
type BarIterator interface {
	Next() (data.Bar, bool)
}

// TickIterator yields Ticks in increasing timestamp order.
type TickIterator interface {
	Next() (data.Tick, bool)
}

// BookIterator yields OrderBook snapshots in increasing timestamp order.
type BookIterator interface {
	Next() (data.OrderBook, bool)
}

// Config controls which synthetic events the generator adds around the
// data streams.
type Config struct {
	EmitStartOfDay      bool
	EmitEndOfDay        bool
	EmitRegimeCheck     bool
	RegimeCheckInterval clock.Duration
}

// Generator merges optional bar/tick/book iterators into one
// priority-ordered event stream.
type Generator struct {
	Bars  BarIterator
	Ticks TickIterator
	Books BookIterator
	Cfg   Config
}

// New returns a Generator; any of Bars/Ticks/Books may be nil.
func New(bars BarIterator, ticks TickIterator, books BookIterator, cfg Config) *Generator {
	return &Generator{Bars: bars, Ticks: ticks, Books: books, Cfg: cfg}
}

// item is an intermediate sort key before the synthetic events are
// spliced in: timestamp asc, priority asc, symbol asc, market-subkind asc.
type item struct {
	ts      clock.Timestamp
	sym     symbol.ID
	subKind events.MarketSubKind
	ev      events.Event
}

// EnqueueAll drains every configured iterator, sorts the combined stream,
// splices in DayStart/EndOfDay/Timer events per Cfg, and pushes everything
// onto q. Draining the (up to three) independent iterators runs
// concurrently via an errgroup; the merge itself is sequential so the
// result is deterministic regardless of how many streams were provided.
func (g *Generator) EnqueueAll(q *events.Queue) error {
	var barItems, tickItems, bookItems []item

	grp, _ := errgroup.WithContext(context.Background())
	if g.Bars != nil {
		grp.Go(func() error {
			for {
				b, ok := g.Bars.Next()
				if !ok {
					return nil
				}
				ev := events.NewMarketEvent(b.Timestamp, b.Symbol, events.MarketBar)
				barItems = append(barItems, item{ts: b.Timestamp, sym: b.Symbol, subKind: events.MarketBar, ev: ev})
			}
		})
	}
	if g.Ticks != nil {
		grp.Go(func() error {
			for {
				tk, ok := g.Ticks.Next()
				if !ok {
					return nil
				}
				ev := events.NewMarketEvent(tk.Timestamp, tk.Symbol, events.MarketTick)
				tickItems = append(tickItems, item{ts: tk.Timestamp, sym: tk.Symbol, subKind: events.MarketTick, ev: ev})
			}
		})
	}
	if g.Books != nil {
		grp.Go(func() error {
			for {
				bk, ok := g.Books.Next()
				if !ok {
					return nil
				}
				ev := events.NewMarketEvent(bk.Timestamp, bk.Symbol, events.MarketBook)
				bookItems = append(bookItems, item{ts: bk.Timestamp, sym: bk.Symbol, subKind: events.MarketBook, ev: ev})
			}
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	all := make([]item, 0, len(barItems)+len(tickItems)+len(bookItems))
	all = append(all, barItems...)
	all = append(all, tickItems...)
	all = append(all, bookItems...)

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.ts != b.ts {
			return a.ts < b.ts
		}
		if a.ev.Priority != b.ev.Priority {
			return a.ev.Priority < b.ev.Priority
		}
		if a.sym != b.sym {
			return a.sym < b.sym
		}
		return a.subKind < b.subKind
	})

	synthetic := g.synthesize(all)
	merged := make([]item, 0, len(all)+len(synthetic))
	merged = append(merged, all...)
	merged = append(merged, synthetic...)
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].ev, merged[j].ev
		if a.Timestamp == b.Timestamp && a.Priority == b.Priority {
			return dayBoundaryRank(a) < dayBoundaryRank(b)
		}
		return events.Less(a, b)
	})

	for _, it := range merged {
		q.Push(it.ev)
	}
	return nil
}

// dayBoundaryRank places a DayStart before, and an EndOfDay after, the
// other events sharing its timestamp and priority.
func dayBoundaryRank(e events.Event) int {
	switch e.Market.SubKind {
	case events.MarketDayStart:
		return 0
	case events.MarketDayEnd:
		return 2
	}
	return 1
}

// synthesize builds DayStart/EndOfDay/Timer events from the sorted data
// stream per Cfg.
func (g *Generator) synthesize(sorted []item) []item {
	if len(sorted) == 0 {
		return nil
	}

	var out []item

	if g.Cfg.EmitStartOfDay || g.Cfg.EmitEndOfDay {
		var lastDate int64 = -1
		var lastTS clock.Timestamp
		for _, it := range sorted {
			d := it.ts.DateKey()
			if d != lastDate {
				if lastDate != -1 && g.Cfg.EmitEndOfDay {
					out = append(out, item{ts: lastTS, ev: events.NewMarketEvent(lastTS, 0, events.MarketDayEnd)})
				}
				if g.Cfg.EmitStartOfDay {
					out = append(out, item{ts: it.ts, ev: events.NewMarketEvent(it.ts, 0, events.MarketDayStart)})
				}
				lastDate = d
			}
			lastTS = it.ts
		}
		if g.Cfg.EmitEndOfDay {
			out = append(out, item{ts: lastTS, ev: events.NewMarketEvent(lastTS, 0, events.MarketDayEnd)})
		}
	}

	if g.Cfg.EmitRegimeCheck && g.Cfg.RegimeCheckInterval > 0 {
		start := sorted[0].ts
		end := sorted[len(sorted)-1].ts
		for ts := start; ts <= end; ts = ts.Add(g.Cfg.RegimeCheckInterval) {
			ev := events.NewMarketEvent(ts, 0, events.MarketTimer)
			ev.Market.TimerID = "regime_check"
			out = append(out, item{ts: ts, ev: ev})
		}
	}

	return out
}
