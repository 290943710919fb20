// Package strategy defines the Strategy interface and the Context a
// strategy uses to observe market state and submit orders, mirroring the
// engine's facade over order management, portfolio accounting, market/book
// caches, timers, and regime state.
package strategy

import (
	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/config"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/events"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/portfolio"
	"github.com/regimeflow/regimeflow/internal/regime"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Strategy reacts to the events the engine dispatches, using a Context to
// read market state and submit orders. All methods receive the same
// Context; implementations may ignore events they don't care about.
type Strategy interface {
	OnBar(ctx *Context, bar data.Bar) error
	OnTick(ctx *Context, tick data.Tick) error
	OnQuote(ctx *Context, quote data.Quote) error
	OnOrderBook(ctx *Context, book data.OrderBook) error
	OnTimer(ctx *Context, timerID string) error
	OnDayStart(ctx *Context) error
	OnDayEnd(ctx *Context) error
	OnFill(ctx *Context, fill orders.Fill) error
	OnRegimeChange(ctx *Context, transition regime.Transition) error
}

// marketDataCache is the subset of engine/marketcache.Cache a Context needs.
type marketDataCache interface {
	LatestBar(symbol.ID) (data.Bar, bool)
	LatestTick(symbol.ID) (data.Tick, bool)
	LatestQuote(symbol.ID) (data.Quote, bool)
	RecentBars(symbol.ID, int) []data.Bar
}

// orderBookCache is the subset of engine/bookcache.Cache a Context needs.
type orderBookCache interface {
	Latest(symbol.ID) (data.OrderBook, bool)
}

// timerService is the subset of engine/timerservice.Service a Context needs.
type timerService interface {
	Schedule(id string, interval clock.Duration, now clock.Timestamp)
	Cancel(id string)
}

// clockSource supplies the engine's current simulated/live time, satisfied
// by engine/loop.Loop.
type clockSource interface {
	CurrentTime() clock.Timestamp
}

// orderSubmitter is the subset of orders.Manager a Context needs.
type orderSubmitter interface {
	SubmitOrder(o orders.Order, now clock.Timestamp) (uint64, error)
	CancelOrder(id uint64, now clock.Timestamp) error
}

// Context is passed to every Strategy callback. It is the only way a
// strategy observes engine state or submits orders, so it can be swapped
// between backtest and live wiring without the strategy knowing the
// difference.
type Context struct {
	orderManager orderSubmitter
	portfolio    *portfolio.Portfolio
	clock        clockSource
	marketData   marketDataCache
	orderBooks   orderBookCache
	timers       timerService
	regime       regime.Tracker
	params       *config.Params
}

// NewContext wires a Context from its engine-side collaborators. Any of
// orderManager, marketData, orderBooks, timers, or regimeTracker may be nil
// (e.g. in a unit test), in which case the corresponding methods degrade to
// their zero value rather than panicking.
func NewContext(
	orderManager orderSubmitter,
	pf *portfolio.Portfolio,
	clk clockSource,
	marketData marketDataCache,
	orderBooks orderBookCache,
	timers timerService,
	regimeTracker regime.Tracker,
	params *config.Params,
) *Context {
	return &Context{
		orderManager: orderManager,
		portfolio:    pf,
		clock:        clk,
		marketData:   marketData,
		orderBooks:   orderBooks,
		timers:       timers,
		regime:       regimeTracker,
		params:       params,
	}
}

// Params returns the strategy-scoped parameter bag, possibly nil.
func (c *Context) Params() *config.Params {
	return c.params
}

// SubmitOrder stamps CreatedAt/UpdatedAt (if unset) and records the current
// regime as order metadata before forwarding to the order manager.
func (c *Context) SubmitOrder(o orders.Order) (uint64, error) {
	if c.orderManager == nil {
		return 0, regimeerr.New(regimeerr.InvalidState, "order manager not available")
	}

	now := c.CurrentTime()
	if o.CreatedAt == 0 {
		o.CreatedAt = now
		o.UpdatedAt = now
	}
	if o.Metadata == nil {
		o.Metadata = make(map[string]string)
	}
	o.Metadata["regime"] = c.CurrentRegime().Regime.String()

	return c.orderManager.SubmitOrder(o, now)
}

// CancelOrder cancels a previously submitted order by ID.
func (c *Context) CancelOrder(id uint64) error {
	if c.orderManager == nil {
		return regimeerr.New(regimeerr.InvalidState, "order manager not available")
	}
	return c.orderManager.CancelOrder(id, c.CurrentTime())
}

// Portfolio returns the account's portfolio.
func (c *Context) Portfolio() *portfolio.Portfolio {
	return c.portfolio
}

// LatestBar returns the most recent bar for sym, if any.
func (c *Context) LatestBar(sym symbol.ID) (data.Bar, bool) {
	if c.marketData == nil {
		return data.Bar{}, false
	}
	return c.marketData.LatestBar(sym)
}

// LatestTick returns the most recent tick for sym, if any.
func (c *Context) LatestTick(sym symbol.ID) (data.Tick, bool) {
	if c.marketData == nil {
		return data.Tick{}, false
	}
	return c.marketData.LatestTick(sym)
}

// LatestQuote returns the most recent quote for sym, if any.
func (c *Context) LatestQuote(sym symbol.ID) (data.Quote, bool) {
	if c.marketData == nil {
		return data.Quote{}, false
	}
	return c.marketData.LatestQuote(sym)
}

// RecentBars returns up to n of the most recent bars for sym, oldest-first.
func (c *Context) RecentBars(sym symbol.ID, n int) []data.Bar {
	if c.marketData == nil {
		return nil
	}
	return c.marketData.RecentBars(sym, n)
}

// LatestOrderBook returns the most recent order book for sym, if any.
func (c *Context) LatestOrderBook(sym symbol.ID) (data.OrderBook, bool) {
	if c.orderBooks == nil {
		return data.OrderBook{}, false
	}
	return c.orderBooks.Latest(sym)
}

// CurrentRegime returns the tracker's current state, or the zero State
// (whose Regime is Bull, the zero Type) if no tracker is wired.
func (c *Context) CurrentRegime() regime.State {
	if c.regime == nil {
		return regime.State{}
	}
	return c.regime.CurrentState()
}

// ScheduleTimer arms (or re-arms) a recurring named timer.
func (c *Context) ScheduleTimer(id string, interval clock.Duration) {
	if c.timers == nil {
		return
	}
	c.timers.Schedule(id, interval, c.CurrentTime())
}

// CancelTimer cancels a previously scheduled timer.
func (c *Context) CancelTimer(id string) {
	if c.timers == nil {
		return
	}
	c.timers.Cancel(id)
}

// CurrentTime returns the engine's current simulated/live time.
func (c *Context) CurrentTime() clock.Timestamp {
	if c.clock == nil {
		return 0
	}
	return c.clock.CurrentTime()
}

// DispatchEvent routes e to the matching Strategy callback, looking up the
// event's actual payload (Bar/Tick/.../OrderBook) from the market/book
// caches by Symbol — Event itself carries only the coordinates (§4.1), not
// the data. It is the glue the backtest/live engines use to drive a
// Strategy from the event loop's Dispatcher.
//
// Order fills are not delivered through the event stream: Event's Order
// payload carries only an OrderID, so the backtest/live engine wires
// Strategy.OnFill directly off orders.Manager.OnFill instead of through
// DispatchEvent.
func DispatchEvent(s Strategy, ctx *Context, e events.Event) error {
	if e.Type != events.TypeMarket {
		return nil
	}

	switch e.Market.SubKind {
	case events.MarketBar:
		if bar, ok := ctx.LatestBar(e.Symbol); ok {
			return s.OnBar(ctx, bar)
		}
	case events.MarketTick:
		if tick, ok := ctx.LatestTick(e.Symbol); ok {
			return s.OnTick(ctx, tick)
		}
	case events.MarketQuote:
		if quote, ok := ctx.LatestQuote(e.Symbol); ok {
			return s.OnQuote(ctx, quote)
		}
	case events.MarketBook:
		if book, ok := ctx.LatestOrderBook(e.Symbol); ok {
			return s.OnOrderBook(ctx, book)
		}
	case events.MarketDayStart:
		return s.OnDayStart(ctx)
	case events.MarketDayEnd:
		return s.OnDayEnd(ctx)
	case events.MarketTimer:
		return s.OnTimer(ctx, e.Market.TimerID)
	}
	return nil
}
