package live

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/common/spsc"
	"github.com/regimeflow/regimeflow/internal/config"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/engine/bookcache"
	"github.com/regimeflow/regimeflow/internal/engine/marketcache"
	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/portfolio"
	"github.com/regimeflow/regimeflow/internal/regime"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
	"github.com/regimeflow/regimeflow/internal/risk"
	"github.com/regimeflow/regimeflow/internal/strategy"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// marketQueueCapacity bounds the SPSC ring the broker-adapter callback
// goroutine pushes into and the event-loop goroutine drains; once full,
// the incoming update is dropped and an AlertMarketQueueOverflow is
// recorded rather than blocking the adapter's own read loop (§5, §7).
const marketQueueCapacity = 4096

// loopTick is how often the event-loop goroutine wakes to drain the
// market-data queue and due timers when nothing else wakes it, mirroring
// the 50ms cadence Expansion C names for the live run loop.
const loopTick = 50 * time.Millisecond

// regimeRetrainTick is the cadence of the regime-retrain goroutine
// (Expansion C.3), which gives RetrainFunc a chance to refit on a
// schedule independent of the market-data-driven event loop.
const regimeRetrainTick = 200 * time.Millisecond

// managerSubmitter adapts *Manager to strategy.Context's orderSubmitter
// interface, which (being shared with the backtest engine) has no
// context.Context parameter; submitCtx bounds every broker round-trip a
// strategy callback triggers.
type managerSubmitter struct {
	mgr       *Manager
	submitCtx context.Context
}

func (s managerSubmitter) SubmitOrder(o orders.Order, now clock.Timestamp) (uint64, error) {
	return s.mgr.SubmitOrder(s.submitCtx, o, now)
}

func (s managerSubmitter) CancelOrder(id uint64, now clock.Timestamp) error {
	return s.mgr.CancelOrder(s.submitCtx, id)
}

type wallClock struct{}

func (wallClock) CurrentTime() clock.Timestamp { return clock.Now() }

// RetrainFunc refits the regime model against accumulated features; it is
// the plug point Expansion C.3 names for regime_retrain_interval /
// regime_retrain_min_samples, since the actual fitting algorithm is
// strategy-specific and out of this module's scope.
type RetrainFunc func(ctx context.Context) error

// Engine is the live counterpart of backtest.Engine: it wires a
// broker.Adapter, a Manager, an EventBus, rate limiting, a daily-loss kill
// switch, reconnect-with-backoff, the audit logger, and a dashboard/health
// readout into a running process, driving a Strategy exactly the way the
// backtest engine does (§4.9/§5/§6/Expansion C).
type Engine struct {
	cfg     config.LiveConfig
	adapter broker.Adapter
	manager *Manager
	bus     *EventBus

	marketQueue *spsc.Ring[any]

	portfolio *portfolio.Portfolio
	market    *marketcache.Cache
	books     *bookcache.Cache
	riskCheck *risk.Checker
	kill      *risk.KillSwitch
	rate      *RateLimiter
	alerts    *AlertRing
	health    *healthSampler
	audit     AuditLogger
	reconnect *Reconnector
	regime    regime.Tracker
	retrain   RetrainFunc

	strategy    strategy.Strategy
	strategyCtx *strategy.Context

	log zerolog.Logger

	mu             sync.Mutex
	lastMarketAt   time.Time
	equity         float64
	pendingReports map[string]broker.ExecutionReport

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New constructs an Engine around adapter, not yet started.
func New(cfg config.LiveConfig, adapter broker.Adapter, pf *portfolio.Portfolio, log zerolog.Logger) *Engine {
	manager := NewManager(adapter)
	e := &Engine{
		cfg:         cfg,
		adapter:     adapter,
		manager:     manager,
		bus:         NewEventBus(),
		marketQueue: spsc.NewRing[any](marketQueueCapacity),
		portfolio:   pf,
		market:      marketcache.New(256),
		books:       bookcache.New(),
		rate:        NewRateLimiter(cfg.MaxOrdersPerSecond, cfg.MaxOrdersPerMinute),
		kill:        risk.NewKillSwitch(cfg.DailyLossLimit, cfg.DailyLossLimitPct),
		alerts:      NewAlertRing(),
		health:         newHealthSampler(),
		audit:          NewZerologAuditLogger(log),
		log:            log,
		pendingReports: make(map[string]broker.ExecutionReport),
	}
	e.reconnect = NewReconnector(ReconnectConfig{
		Enabled:     cfg.Reconnect.Enabled,
		Initial:     time.Duration(cfg.Reconnect.InitialMs) * time.Millisecond,
		Max:         time.Duration(cfg.Reconnect.MaxMs) * time.Millisecond,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
	}, func(n ReconnectNotification) {
		e.audit.LogReconnect(n)
		if !n.Connected {
			e.alerts.Push(AlertReconnectFailure, "reconnect attempt failed", clock.Now())
		}
	})

	e.strategyCtx = strategy.NewContext(
		managerSubmitter{mgr: manager, submitCtx: context.Background()},
		pf,
		wallClock{},
		e.market,
		e.books,
		nil,
		e.regime,
		nil,
	)

	adapter.OnMarketData(e.onMarketData)
	manager.OnExecution(e.onExecution)
	manager.OnOrderUpdate(e.onOrderUpdate)
	pf.OnEquityUpdate(e.onEquitySnapshot)
	return e
}

// SetRiskChecker installs a pre-trade risk.Checker consulted before every
// submission, wired in addition to the daily kill switch.
func (e *Engine) SetRiskChecker(c *risk.Checker) { e.riskCheck = c }

// SetRegimeTracker installs the regime facade the strategy context exposes.
func (e *Engine) SetRegimeTracker(tracker regime.Tracker) {
	e.regime = tracker
	e.strategyCtx = strategy.NewContext(
		managerSubmitter{mgr: e.manager, submitCtx: context.Background()},
		e.portfolio, wallClock{}, e.market, e.books, nil, tracker, nil,
	)
}

// SetRetrainFunc installs the periodic regime-retrain callback.
func (e *Engine) SetRetrainFunc(fn RetrainFunc) { e.retrain = fn }

// SetStrategy installs the strategy this engine drives.
func (e *Engine) SetStrategy(s strategy.Strategy) { e.strategy = s }

// Manager returns the engine's live order manager.
func (e *Engine) Manager() *Manager { return e.manager }

// Portfolio returns the engine's portfolio.
func (e *Engine) Portfolio() *portfolio.Portfolio { return e.portfolio }

// SubmitOrder validates o against the rate limiter, the optional risk
// checker, and the daily-loss kill switch (in that order) before handing
// it to the order manager, matching §5/§6's "strategy-order callback path"
// description of where these guards sit.
func (e *Engine) SubmitOrder(ctx context.Context, o orders.Order) (uint64, error) {
	if e.rate != nil && !e.rate.Allow(time.Now()) {
		return 0, regimeerr.New(regimeerr.InvalidState, "order rejected: rate limit exceeded")
	}
	if e.cfg.MaxOrderValue > 0 && o.LimitPrice > 0 && o.LimitPrice*o.Quantity > e.cfg.MaxOrderValue {
		return 0, regimeerr.New(regimeerr.InvalidState, "order rejected: exceeds max order value")
	}
	if e.riskCheck != nil {
		if reason, ok := e.riskCheck.Check(o); !ok {
			return 0, regimeerr.New(regimeerr.InvalidState, reason)
		}
	}
	if err := e.kill.Check(e.currentEquity()); err != nil {
		return 0, err
	}
	id, err := e.manager.SubmitOrder(ctx, o, clock.Now())
	if err != nil {
		e.alerts.Push(AlertOrderError, err.Error(), clock.Now())
	}
	return id, err
}

// onEquitySnapshot caches the portfolio's latest recomputed equity; the
// portfolio's own equity curve is only appended to by an explicit
// RecordSnapshot call, so the kill switch and dashboard read this cache
// instead of EquityCurve (which the engine never populates on its own).
func (e *Engine) onEquitySnapshot(s portfolio.Snapshot) {
	eq, _ := s.Equity.Float64()
	e.mu.Lock()
	e.equity = eq
	e.mu.Unlock()
}

func (e *Engine) currentEquity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.equity
}

// onMarketData is the broker.MarketDataCallback installed in New: it runs
// on the adapter's own goroutine, so it only pushes onto the bounded SPSC
// queue (never blocks on strategy work) and republishes onto the event
// bus for any other subscriber (e.g. a dashboard).
func (e *Engine) onMarketData(payload any) {
	e.mu.Lock()
	e.lastMarketAt = time.Now()
	e.mu.Unlock()

	if !e.marketQueue.Push(payload) {
		e.alerts.Push(AlertMarketQueueOverflow, "market data queue full, dropping update", clock.Now())
		return
	}
	e.bus.Publish(TopicMarketData, payload)
}

// onExecution runs on the manager's callback goroutine immediately before
// onOrderUpdate for the same report (Manager.HandleExecutionReport fires
// execution callbacks, then update callbacks, in that order); it republishes
// the report and stashes it keyed by broker order id so onOrderUpdate, which
// carries the order's Side, can apply a correctly signed fill.
func (e *Engine) onExecution(r broker.ExecutionReport) {
	e.bus.Publish(TopicExecution, r)
	if r.Status != broker.StatusFilled && r.Status != broker.StatusPartiallyFilled {
		return
	}
	if r.LastFillQty == 0 {
		return
	}
	e.mu.Lock()
	e.pendingReports[r.BrokerOrderID] = r
	e.mu.Unlock()
}

func (e *Engine) onOrderUpdate(o broker.Order) {
	e.audit.LogOrder(o)

	e.mu.Lock()
	r, ok := e.pendingReports[o.BrokerOrderID]
	if ok {
		delete(e.pendingReports, o.BrokerOrderID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	fill := orders.Fill{
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Quantity:   r.LastFillQty * o.Side.Sign(),
		Price:      r.LastFillPrice,
		Commission: r.Commission,
		Timestamp:  r.Timestamp,
	}
	e.portfolio.UpdatePosition(fill)
	e.audit.LogFill(fill)
	if e.riskCheck != nil {
		e.riskCheck.UpdatePosition(o.Symbol, fill.Quantity)
		e.riskCheck.UpdateDailyVolume(fill.Price * r.LastFillQty)
	}
}

// drainMarket pops every pending market-data payload, updating the caches
// and portfolio marks, then drives the strategy if one is installed.
func (e *Engine) drainMarket() {
	for {
		payload, ok := e.marketQueue.Pop()
		if !ok {
			return
		}
		switch v := payload.(type) {
		case data.Bar:
			e.market.OnBar(v)
			e.portfolio.MarkToMarket(v.Symbol, v.Close, v.Timestamp)
			if e.strategy != nil {
				if err := e.strategy.OnBar(e.strategyCtx, v); err != nil {
					e.log.Error().Err(err).Msg("strategy OnBar error")
				}
			}
		case data.Tick:
			e.market.OnTick(v)
			e.portfolio.MarkToMarket(v.Symbol, v.Price, v.Timestamp)
			if e.riskCheck != nil {
				e.riskCheck.SetReferencePrice(v.Symbol, v.Price)
			}
			if e.strategy != nil {
				if err := e.strategy.OnTick(e.strategyCtx, v); err != nil {
					e.log.Error().Err(err).Msg("strategy OnTick error")
				}
			}
		case data.Quote:
			e.market.OnQuote(v)
			if e.strategy != nil {
				if err := e.strategy.OnQuote(e.strategyCtx, v); err != nil {
					e.log.Error().Err(err).Msg("strategy OnQuote error")
				}
			}
		case data.OrderBook:
			e.books.OnBook(v)
			if e.strategy != nil {
				if err := e.strategy.OnOrderBook(e.strategyCtx, v); err != nil {
					e.log.Error().Err(err).Msg("strategy OnOrderBook error")
				}
			}
		}
	}
}

// Start connects the broker (retrying per the reconnect policy), launches
// the event-loop, regime-retrain, reconciliation, heartbeat-watchdog, and
// daily-kill-switch goroutines under an errgroup.Group, and returns once
// the first connection succeeds. Start returns immediately after wiring;
// callers block on ctx.Done() themselves and call Stop, which waits for
// the group to exit.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	e.group = group

	if err := e.reconnect.Run(ctx, e.adapter.Connect); err != nil {
		cancel()
		return regimeerr.Wrap(regimeerr.BrokerError, "live engine: initial connect failed", err)
	}

	e.bus.Start()
	e.kill.StartDay(e.currentEquity())

	group.Go(func() error { return e.eventLoop(groupCtx) })
	if e.retrain != nil {
		group.Go(func() error { return e.regimeLoop(groupCtx) })
	}
	if e.cfg.HeartbeatTimeout > 0 {
		group.Go(func() error { return e.heartbeatLoop(groupCtx) })
	}
	if e.cfg.OrderReconcileInterval > 0 {
		group.Go(func() error { return e.reconcileLoop(groupCtx) })
	}
	group.Go(func() error { return e.killSwitchLoop(groupCtx) })

	return nil
}

func (e *Engine) eventLoop(ctx context.Context) error {
	ticker := time.NewTicker(loopTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.drainMarket()
		}
	}
}

func (e *Engine) regimeLoop(ctx context.Context) error {
	ticker := time.NewTicker(regimeRetrainTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.retrain(ctx); err != nil {
				e.log.Warn().Err(err).Msg("regime retrain failed")
			}
		}
	}
}

func (e *Engine) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.HeartbeatTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.mu.Lock()
			stalled := time.Since(e.lastMarketAt) > e.cfg.HeartbeatTimeout
			e.mu.Unlock()
			if stalled {
				e.alerts.Push(AlertHeartbeatStall, "no market data within heartbeat timeout", clock.Now())
			}
		}
	}
}

func (e *Engine) reconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.OrderReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.manager.ReconcileWithBroker(ctx, clock.Now()); err != nil {
				e.log.Warn().Err(err).Msg("order reconciliation failed")
			}
		}
	}
}

// killSwitchLoop re-evaluates the daily loss limit once a second and
// best-effort flattens (cancels every open order) the first time it trips
// in a run; §7's "surface as live alert" is honored via AlertDailyLossBreach
// regardless of whether the flatten itself fully succeeds. Open positions
// are not closed: no exit orders are submitted.
func (e *Engine) killSwitchLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	tripped := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := e.kill.Check(e.currentEquity())
			if err != nil && !tripped {
				tripped = true
				e.alerts.Push(AlertDailyLossBreach, err.Error(), clock.Now())
				if cancelErr := e.manager.CancelAll(ctx); cancelErr != nil {
					e.log.Error().Err(cancelErr).Msg("kill switch: best-effort flatten failed")
				}
			}
		}
	}
}

// Stop cancels every supervised goroutine and waits for them to exit,
// then disconnects the broker and stops the event bus.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	var groupErr error
	if e.group != nil {
		groupErr = e.group.Wait()
	}
	e.bus.Stop()
	if err := e.adapter.Disconnect(); err != nil && groupErr == nil {
		groupErr = err
	}
	return groupErr
}

// SubscribeMarketData forwards to the broker adapter.
func (e *Engine) SubscribeMarketData(symbols []symbol.ID) error {
	return e.adapter.SubscribeMarketData(symbols)
}

// GetDashboardSnapshot returns the engine's current read-only state
// summary (Expansion C.7).
func (e *Engine) GetDashboardSnapshot() DashboardSnapshot {
	open := e.manager.OpenOrders()
	return DashboardSnapshot{
		Timestamp:      clock.Now(),
		Connected:      e.adapter.IsConnected(),
		TradingEnabled: !e.kill.Tripped(),
		OpenOrders:     len(open),
		Equity:         e.currentEquity(),
		RealizedPnL:    mustFloat64(e.portfolio.RealizedPnL()),
		RecentAlerts:   e.alerts.Recent(),
	}
}

// GetSystemHealth samples the process-level health readout.
func (e *Engine) GetSystemHealth() SystemHealth {
	return e.health.sample(clock.Now())
}

func mustFloat64(d interface{ Float64() (float64, bool) }) float64 {
	v, _ := d.Float64()
	return v
}
