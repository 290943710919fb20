// Package backtest wires the event generator, loop, dispatcher, order
// manager, execution pipeline, portfolio, regime tracker, and hook manager
// into a single deterministic offline run, mirroring BacktestEngine's role
// in the original C++ engine: install_default_handlers connects order
// submission to the execution pipeline and fills back into the portfolio,
// while the dispatcher's market handler updates the caches, marks the
// portfolio to market, advances the regime tracker, and drives the
// strategy.
package backtest

import (
	"github.com/rs/zerolog"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/config"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/engine/bookcache"
	"github.com/regimeflow/regimeflow/internal/engine/dispatcher"
	"github.com/regimeflow/regimeflow/internal/engine/generator"
	"github.com/regimeflow/regimeflow/internal/engine/loop"
	"github.com/regimeflow/regimeflow/internal/engine/marketcache"
	"github.com/regimeflow/regimeflow/internal/engine/timerservice"
	"github.com/regimeflow/regimeflow/internal/events"
	"github.com/regimeflow/regimeflow/internal/execution"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/plugins/hooks"
	"github.com/regimeflow/regimeflow/internal/portfolio"
	"github.com/regimeflow/regimeflow/internal/regime"
	"github.com/regimeflow/regimeflow/internal/strategy"
)

// regimeUpdater is implemented by regime.Tracker implementations (e.g.
// threshold.Tracker) that fold in bar closes; Tracker itself only exposes
// CurrentState, so this is detected with a type assertion.
type regimeUpdater interface {
	Update(close float64, ts clock.Timestamp)
}

// transitionNotifier is implemented by regime.Tracker implementations that
// support subscribing to regime transitions.
type transitionNotifier interface {
	OnTransition(fn regime.TransitionCallback)
}

// combinedPrices adapts marketcache.Cache + bookcache.Cache to
// execution.ReferencePriceSource, since no single cache implements all
// three methods the pipeline needs.
type combinedPrices struct {
	market *marketcache.Cache
	books  *bookcache.Cache
}

func (c combinedPrices) LatestBarClose(sym uint32) (float64, bool) {
	return c.market.LatestBarClose(sym)
}

func (c combinedPrices) LatestTickPrice(sym uint32) (float64, bool) {
	return c.market.LatestTickPrice(sym)
}

func (c combinedPrices) LatestBook(sym uint32) (*data.OrderBook, bool) {
	return c.books.LatestBook(sym)
}

// Engine wires every backtest collaborator and runs the event loop.
type Engine struct {
	queue      *events.Queue
	dispatcher *dispatcher.Dispatcher
	loop       *loop.Loop

	orderManager *orders.Manager
	portfolio    *portfolio.Portfolio
	marketData   *marketcache.Cache
	orderBooks   *bookcache.Cache
	timers       *timerservice.Service
	pipeline     *execution.Pipeline
	regime       regime.Tracker
	hooks        *hooks.Manager

	bars  *barFeed
	ticks *tickFeed
	books *bookFeed

	strategy    strategy.Strategy
	strategyCtx *strategy.Context

	log     zerolog.Logger
	started bool
}

// New constructs an Engine with initialCapital of starting cash. log
// defaults to zerolog.Nop() if the zero value is passed, matching the
// library's own silent-by-default convention.
func New(initialCapital float64, currency string, log zerolog.Logger) *Engine {
	queue := events.NewQueue()
	pf := portfolio.New(initialCapital, currency)
	md := marketcache.New(256)
	books := bookcache.New()
	timers := timerservice.New()
	om := orders.NewManager()
	pipeline := execution.NewPipeline(combinedPrices{market: md, books: books})
	hm := hooks.New()

	e := &Engine{
		queue:        queue,
		orderManager: om,
		portfolio:    pf,
		marketData:   md,
		orderBooks:   books,
		timers:       timers,
		pipeline:     pipeline,
		hooks:        hm,
		bars:         newBarFeed(),
		ticks:        newTickFeed(),
		books:        newBookFeed(),
		log:          log,
	}

	e.dispatcher = dispatcher.New(e.handleMarket, e.handleOrder, nil, nil)
	e.loop = loop.New(queue, e.dispatcher, log)
	e.installDefaultHandlers()
	return e
}

func (e *Engine) installDefaultHandlers() {
	e.orderManager.OnFill(func(f orders.Fill) {
		e.portfolio.UpdatePosition(f)
	})
	e.orderManager.OnFill(func(f orders.Fill) {
		if e.strategy != nil {
			if err := e.strategy.OnFill(e.strategyCtx, f); err != nil {
				e.log.Error().Err(err).Uint64("order_id", f.OrderID).Msg("strategy OnFill error")
			}
		}
	})

	e.orderManager.OnOrderUpdate(func(o orders.Order) {
		if o.Status != orders.StatusPending {
			return
		}
		fills, _, err := e.pipeline.Submit(o, e.loop.CurrentTime())
		if err != nil {
			e.log.Error().Err(err).Uint64("order_id", o.ID).Msg("execution pipeline error")
			return
		}
		for _, f := range fills {
			e.orderManager.ProcessFill(f, e.loop.CurrentTime())
		}
	})
}

func (e *Engine) handleOrder(events.Event) error {
	return nil
}

func (e *Engine) handleMarket(ev events.Event) error {
	e.timers.DuePush(ev.Timestamp, e.queue)

	switch ev.Market.SubKind {
	case events.MarketBar:
		bar, ok := e.bars.pop(ev.Symbol)
		if !ok {
			return nil
		}
		if e.hooks.Invoke(hooks.KindBar, hooks.Context{"bar": bar}) == hooks.Cancel {
			return nil
		}
		e.marketData.OnBar(bar)
		e.portfolio.MarkToMarket(bar.Symbol, bar.Close, bar.Timestamp)
		e.portfolio.RecordSnapshot(bar.Timestamp)
		e.advanceRegime(bar)
		if e.strategy != nil {
			return e.strategy.OnBar(e.strategyCtx, bar)
		}
	case events.MarketTick:
		tick, ok := e.ticks.pop(ev.Symbol)
		if !ok {
			return nil
		}
		if e.hooks.Invoke(hooks.KindTick, hooks.Context{"tick": tick}) == hooks.Cancel {
			return nil
		}
		e.marketData.OnTick(tick)
		if e.strategy != nil {
			return e.strategy.OnTick(e.strategyCtx, tick)
		}
	case events.MarketQuote:
		if quote, ok := e.marketData.LatestQuote(ev.Symbol); ok && e.strategy != nil {
			return e.strategy.OnQuote(e.strategyCtx, quote)
		}
	case events.MarketBook:
		book, ok := e.books.pop(ev.Symbol)
		if !ok {
			return nil
		}
		if e.hooks.Invoke(hooks.KindBook, hooks.Context{"book": book}) == hooks.Cancel {
			return nil
		}
		e.orderBooks.OnBook(book)
		if e.strategy != nil {
			return e.strategy.OnOrderBook(e.strategyCtx, book)
		}
	case events.MarketDayStart:
		if e.hooks.Invoke(hooks.KindDayStart, hooks.Context{}) == hooks.Cancel {
			return nil
		}
		if e.strategy != nil {
			return e.strategy.OnDayStart(e.strategyCtx)
		}
	case events.MarketDayEnd:
		if e.hooks.Invoke(hooks.KindDayEnd, hooks.Context{}) == hooks.Cancel {
			return nil
		}
		if e.strategy != nil {
			return e.strategy.OnDayEnd(e.strategyCtx)
		}
	case events.MarketTimer:
		if e.strategy != nil {
			return e.strategy.OnTimer(e.strategyCtx, ev.Market.TimerID)
		}
	}
	return nil
}

func (e *Engine) advanceRegime(bar data.Bar) {
	ru, ok := e.regime.(regimeUpdater)
	if !ok {
		return
	}
	ru.Update(bar.Close, bar.Timestamp)
}

// SetRegimeTracker installs tracker as the engine's regime facade,
// subscribing to its transitions if it supports OnTransition.
func (e *Engine) SetRegimeTracker(tracker regime.Tracker) {
	e.regime = tracker
	if tn, ok := tracker.(transitionNotifier); ok {
		tn.OnTransition(func(t regime.Transition) {
			if e.hooks.Invoke(hooks.KindRegimeChange, hooks.Context{"transition": t}) == hooks.Cancel {
				return
			}
			if e.strategy != nil {
				_ = e.strategy.OnRegimeChange(e.strategyCtx, t)
			}
		})
	}
}

// LoadData builds an event generator over the given iterators and enqueues
// the entire derived event stream up front, per the deterministic,
// fully-materialized-before-run model of a backtest. Each iterator is teed
// into the engine's bar/tick/book feeds as the generator drains it, so the
// raw payload is available by symbol when its event is later dispatched.
func (e *Engine) LoadData(bars generator.BarIterator, ticks generator.TickIterator, books generator.BookIterator, cfg generator.Config) error {
	var tb generator.BarIterator
	if bars != nil {
		tb = teeBars{inner: bars, feed: e.bars}
	}
	var tt generator.TickIterator
	if ticks != nil {
		tt = teeTicks{inner: ticks, feed: e.ticks}
	}
	var tk generator.BookIterator
	if books != nil {
		tk = teeBooks{inner: books, feed: e.books}
	}
	g := generator.New(tb, tt, tk, cfg)
	return g.EnqueueAll(e.queue)
}

// SetStrategy installs the strategy and builds its Context from the
// engine's collaborators.
func (e *Engine) SetStrategy(s strategy.Strategy, params *config.Params) {
	e.strategy = s
	e.strategyCtx = strategy.NewContext(
		e.orderManager,
		e.portfolio,
		e.loop,
		e.marketData,
		e.orderBooks,
		e.timers,
		e.regime,
		params,
	)
}

// OnPreSubmit registers a risk/validation callback run before every order
// is accepted, e.g. risk.Checker.PreSubmit or risk.KillSwitch.PreSubmit.
func (e *Engine) OnPreSubmit(fn orders.PreSubmitFunc) {
	e.orderManager.OnPreSubmit(fn)
}

// RegisterHook exposes the hook manager for plugin-style interception.
func (e *Engine) RegisterHook(kind hooks.Kind, priority int, fn hooks.Func) {
	e.hooks.Register(kind, priority, fn)
}

// OrderManager returns the engine's order manager.
func (e *Engine) OrderManager() *orders.Manager { return e.orderManager }

// Portfolio returns the engine's portfolio.
func (e *Engine) Portfolio() *portfolio.Portfolio { return e.portfolio }

// Queue returns the engine's event queue, for callers that need to enqueue
// synthetic events directly.
func (e *Engine) Queue() *events.Queue { return e.queue }

func (e *Engine) ensureStarted() {
	if e.started {
		return
	}
	e.hooks.Invoke(hooks.KindBacktestStart, hooks.Context{})
	e.started = true
}

func (e *Engine) maybeStop() {
	if e.started && e.queue.Empty() {
		e.hooks.Invoke(hooks.KindBacktestEnd, hooks.Context{"results": e.Results()})
		e.started = false
	}
}

// Run drains the event queue to exhaustion.
func (e *Engine) Run() {
	e.ensureStarted()
	e.loop.Run()
	e.maybeStop()
}

// RunUntil drains events up to and including timestamp t.
func (e *Engine) RunUntil(t clock.Timestamp) {
	e.ensureStarted()
	e.loop.RunUntil(t)
	e.maybeStop()
}

// Step processes a single event, returning false if the queue was empty.
func (e *Engine) Step() bool {
	e.ensureStarted()
	processed := e.loop.Step()
	e.maybeStop()
	return processed
}

// Stop halts the event loop cooperatively before its next iteration.
func (e *Engine) Stop() {
	e.loop.Stop()
}

// Results summarizes a completed or in-progress run.
type Results struct {
	FinalEquity float64
	EquityCurve []portfolio.Snapshot
	Fills       []orders.Fill
	Regime      regime.State
}

// Results snapshots the engine's current portfolio and regime state.
func (e *Engine) Results() Results {
	curve := e.portfolio.EquityCurve()
	var finalEquity float64
	if len(curve) > 0 {
		finalEquity, _ = curve[len(curve)-1].Equity.Float64()
	}
	var state regime.State
	if e.regime != nil {
		state = e.regime.CurrentState()
	}
	return Results{
		FinalEquity: finalEquity,
		EquityCurve: curve,
		Fills:       e.portfolio.Fills(),
		Regime:      state,
	}
}
