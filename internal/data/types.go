// Package data defines the value types that flow through the replay
// pipeline: Bar, Tick, Quote, and OrderBook. These are plain structs with
// validation helpers; ownership rules (who may mutate, when a value is
// safe to retain) are documented per field group in the functions that
// hand them out, not encoded in the type system.
package data

import (
	"math"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Bar is an OHLCV aggregate over an interval defined by time, volume,
// tick-count, or dollar-volume (see BarType).
type Bar struct {
	Timestamp  clock.Timestamp
	Symbol     symbol.ID
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     uint64
	TradeCount uint64
	VWAP       float64
}

// Validate checks the invariants from the data model: high >= low,
// high >= max(open, close), low <= min(open, close), and all prices finite
// and positive.
func (b Bar) Validate() error {
	if !finitePositive(b.Open) || !finitePositive(b.High) || !finitePositive(b.Low) || !finitePositive(b.Close) {
		return regimeerr.New(regimeerr.InvalidArgument, "bar prices must be finite and positive")
	}
	if b.High < b.Low {
		return regimeerr.New(regimeerr.InvalidArgument, "bar high must be >= low")
	}
	if b.High < math.Max(b.Open, b.Close) {
		return regimeerr.New(regimeerr.InvalidArgument, "bar high must be >= max(open, close)")
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return regimeerr.New(regimeerr.InvalidArgument, "bar low must be <= min(open, close)")
	}
	return nil
}

func finitePositive(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}

// TickFlag carries venue/condition bits for a Tick.
type TickFlag uint32

// Tick is a single trade print.
type Tick struct {
	Timestamp clock.Timestamp
	Symbol    symbol.ID
	Price     float64
	Quantity  float64
	Flags     TickFlag
}

func (t Tick) Validate() error {
	if !finitePositive(t.Price) {
		return regimeerr.New(regimeerr.InvalidArgument, "tick price must be finite and positive")
	}
	if !finitePositive(t.Quantity) {
		return regimeerr.New(regimeerr.InvalidArgument, "tick quantity must be finite and positive")
	}
	return nil
}

// Quote is a best bid/ask snapshot.
type Quote struct {
	Timestamp clock.Timestamp
	Symbol    symbol.ID
	Bid       float64
	Ask       float64
	BidSize   float64
	AskSize   float64
}

// BookLevelCount is the fixed depth carried per side in an OrderBook.
const BookLevelCount = 10

// BookLevel is one price level of a book side.
type BookLevel struct {
	Price     float64
	Quantity  float64
	NumOrders int64
}

// OrderBook is a fixed-depth snapshot of the top BookLevelCount levels per
// side. Empty levels have Price == 0 and Quantity == 0.
type OrderBook struct {
	Timestamp clock.Timestamp
	Symbol    symbol.ID
	Bids      [BookLevelCount]BookLevel
	Asks      [BookLevelCount]BookLevel
}

// BestBid returns the first non-empty bid level, or the zero value if the
// book has no bids.
func (b OrderBook) BestBid() BookLevel {
	return firstNonEmpty(b.Bids)
}

// BestAsk returns the first non-empty ask level, or the zero value if the
// book has no asks.
func (b OrderBook) BestAsk() BookLevel {
	return firstNonEmpty(b.Asks)
}

func firstNonEmpty(levels [BookLevelCount]BookLevel) BookLevel {
	for _, l := range levels {
		if l.Price != 0 || l.Quantity != 0 {
			return l
		}
	}
	return BookLevel{}
}

// TotalQuantity sums quantity across all populated levels of one side.
func TotalQuantity(levels [BookLevelCount]BookLevel) float64 {
	var total float64
	for _, l := range levels {
		total += l.Quantity
	}
	return total
}
