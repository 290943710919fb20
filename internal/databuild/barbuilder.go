// Package databuild assembles streaming ticks into Bars, one of the
// features present in the original implementation's bar construction path
// but dropped from the distilled specification; kept here because the
// event generator and backtest engine both need a way to turn a tick feed
// into bars when only tick files are available.
package databuild

import (
	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Trigger selects when an in-progress bar closes.
type Trigger int

const (
	// TriggerVolume closes a bar once accumulated volume reaches Threshold.
	TriggerVolume Trigger = iota
	// TriggerTickCount closes a bar once Threshold ticks have accumulated.
	TriggerTickCount
	// TriggerTime closes a bar once the tick timestamp crosses the next
	// Threshold-microsecond boundary from the bar's open timestamp.
	TriggerTime
)

// BarBuilder accumulates ticks for one symbol into Bars, closing a bar per
// Trigger/Threshold and emitting it through Emit.
type BarBuilder struct {
	Symbol    symbol.ID
	Trigger   Trigger
	Threshold float64

	open        bool
	openTS      clock.Timestamp
	o, h, l, c  float64
	volume      uint64
	tradeCount  uint64
	dollarTotal float64
}

// NewBarBuilder returns a builder for sym using the given trigger and
// threshold (share volume, tick count, or microseconds, per trigger).
func NewBarBuilder(sym symbol.ID, trigger Trigger, threshold float64) *BarBuilder {
	return &BarBuilder{Symbol: sym, Trigger: trigger, Threshold: threshold}
}

// Add folds one tick into the in-progress bar, returning a completed Bar
// and true if the tick closed it. The tick that closes a time-triggered
// bar starts the next bar (it is not itself included in the closed bar).
func (b *BarBuilder) Add(tick data.Tick) (data.Bar, bool) {
	if !b.open {
		b.start(tick)
	} else if b.Trigger == TriggerTime && b.crossedTimeBoundary(tick.Timestamp) {
		closed := b.close()
		b.start(tick)
		b.volume = uint64(tick.Quantity)
		b.tradeCount = 1
		b.dollarTotal = tick.Price * tick.Quantity
		return closed, true
	}

	b.h = max(b.h, tick.Price)
	b.l = min(b.l, tick.Price)
	b.c = tick.Price
	b.volume += uint64(tick.Quantity)
	b.tradeCount++
	b.dollarTotal += tick.Price * tick.Quantity

	switch b.Trigger {
	case TriggerVolume:
		if float64(b.volume) >= b.Threshold {
			return b.close(), true
		}
	case TriggerTickCount:
		if float64(b.tradeCount) >= b.Threshold {
			return b.close(), true
		}
	}
	return data.Bar{}, false
}

func (b *BarBuilder) start(tick data.Tick) {
	b.open = true
	b.openTS = tick.Timestamp
	b.o = tick.Price
	b.h = tick.Price
	b.l = tick.Price
	b.c = tick.Price
	b.volume = 0
	b.tradeCount = 0
	b.dollarTotal = 0
}

func (b *BarBuilder) crossedTimeBoundary(ts clock.Timestamp) bool {
	return int64(ts.Sub(b.openTS)) >= int64(b.Threshold)
}

func (b *BarBuilder) close() data.Bar {
	var vwap float64
	if b.volume > 0 {
		vwap = b.dollarTotal / float64(b.volume)
	}
	bar := data.Bar{
		Timestamp:  b.openTS,
		Symbol:     b.Symbol,
		Open:       b.o,
		High:       b.h,
		Low:        b.l,
		Close:      b.c,
		Volume:     b.volume,
		TradeCount: b.tradeCount,
		VWAP:       vwap,
	}
	b.open = false
	return bar
}

// Flush closes any in-progress bar, for use at end-of-stream. Returns
// false if no ticks had been accumulated.
func (b *BarBuilder) Flush() (data.Bar, bool) {
	if !b.open || b.tradeCount == 0 {
		return data.Bar{}, false
	}
	return b.close(), true
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
