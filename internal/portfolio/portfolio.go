// Package portfolio implements position accounting and realized/unrealized
// PnL per §4.7. Cash, commission, and PnL accumulate in
// github.com/shopspring/decimal to avoid float drift over a long equity
// curve; fill price/quantity arrive as float64 (the data model's currency)
// and are converted at the boundary.
package portfolio

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/money"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Position is the net holding in one symbol, with its cost basis.
type Position struct {
	Symbol       symbol.ID
	Quantity     float64
	AvgCost      float64
	CurrentPrice float64
	LastUpdate   clock.Timestamp
}

// Snapshot is a point-in-time view of the whole portfolio.
type Snapshot struct {
	Timestamp     clock.Timestamp
	Cash          money.Decimal
	Equity        money.Decimal
	GrossExposure money.Decimal
	NetExposure   money.Decimal
	Leverage      float64
	Positions     map[symbol.ID]Position
}

// PositionCallback is invoked after a position changes.
type PositionCallback func(Position)

// EquityCallback is invoked after equity is recomputed.
type EquityCallback func(Snapshot)

// Portfolio tracks cash, open positions, fills applied, and the running
// equity curve for one backtest or live run.
type Portfolio struct {
	mu sync.Mutex

	currency string
	cash     money.Decimal
	realized money.Decimal

	positions map[symbol.ID]*Position
	fills     []orders.Fill
	snapshots []Snapshot

	onPosition []PositionCallback
	onEquity   []EquityCallback
}

// New returns a Portfolio seeded with initialCapital of cash.
func New(initialCapital float64, currency string) *Portfolio {
	return &Portfolio{
		currency:  currency,
		cash:      money.FromFloat(initialCapital),
		positions: make(map[symbol.ID]*Position),
	}
}

func (p *Portfolio) OnPositionUpdate(fn PositionCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPosition = append(p.onPosition, fn)
}

func (p *Portfolio) OnEquityUpdate(fn EquityCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEquity = append(p.onEquity, fn)
}

// UpdatePosition applies a fill: cash moves by -(price*qty + commission)
// (fill.Quantity is signed, carrying the side), and the position's cost
// basis and realized PnL update per the §4.7 algorithm:
//
//   - Same-direction add, or opening from flat: the new average cost is the
//     size-weighted mean of the old and new legs.
//   - Reducing or crossing through zero: the closed portion realizes
//     min(|fill.qty|, |old_qty|) * (fill.price - old_avg_cost) * sign(old_qty)
//     into realized PnL. Crossing through zero resets avg_cost to the fill
//     price for the new leg; landing exactly at zero resets it to zero.
//
// This is the one place in the engine that uses fill.Quantity's sign
// directly for accounting, as opposed to OrderManager.ProcessFill's
// abs-quantity convention for FilledQuantity — see SPEC_FULL.md's §9
// resolution.
func (p *Portfolio) UpdatePosition(f orders.Fill) {
	p.mu.Lock()

	cost := money.FromFloat(f.Price).Mul(money.FromFloat(f.Quantity))
	commission := money.FromFloat(f.Commission)
	p.cash = p.cash.Sub(cost).Sub(commission)

	pos, ok := p.positions[f.Symbol]
	if !ok {
		pos = &Position{Symbol: f.Symbol}
		p.positions[f.Symbol] = pos
	}

	oldQty := pos.Quantity
	oldAvg := pos.AvgCost
	newQtyLeg := f.Quantity

	switch {
	case oldQty == 0:
		pos.Quantity = newQtyLeg
		pos.AvgCost = f.Price
	case sameSign(oldQty, newQtyLeg):
		totalQty := oldQty + newQtyLeg
		pos.Quantity = totalQty
		pos.AvgCost = (oldAvg*oldQty + f.Price*newQtyLeg) / totalQty
	default:
		// Reducing or crossing: realize PnL on the closed portion.
		closedQty := minAbs(newQtyLeg, oldQty)
		dir := 1.0
		if oldQty < 0 {
			dir = -1.0
		}
		realizedDelta := closedQty * (f.Price - oldAvg) * dir
		p.realized = p.realized.Add(money.FromFloat(realizedDelta))

		newQty := oldQty + newQtyLeg
		pos.Quantity = newQty
		switch {
		case newQty == 0:
			pos.AvgCost = 0
		case sign(newQty) == sign(newQtyLeg):
			// crossed through zero: the remaining position is the new leg
			pos.AvgCost = f.Price
		default:
			pos.AvgCost = oldAvg
		}
	}

	pos.CurrentPrice = f.Price
	pos.LastUpdate = f.Timestamp
	p.fills = append(p.fills, f)
	updated := *pos
	cbs := append([]PositionCallback(nil), p.onPosition...)
	p.mu.Unlock()

	for _, cb := range cbs {
		cb(updated)
	}
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}

func sign(a float64) int {
	switch {
	case a > 0:
		return 1
	case a < 0:
		return -1
	default:
		return 0
	}
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func minAbs(a, b float64) float64 {
	aa, ab := absF(a), absF(b)
	if aa < ab {
		return aa
	}
	return ab
}

// MarkToMarket updates one symbol's current price and recomputes equity.
func (p *Portfolio) MarkToMarket(sym symbol.ID, price float64, ts clock.Timestamp) {
	p.mu.Lock()
	if pos, ok := p.positions[sym]; ok {
		pos.CurrentPrice = price
		pos.LastUpdate = ts
	}
	p.mu.Unlock()
	p.recomputeEquity(ts)
}

// MarkToMarketAll updates current prices for every symbol in prices and
// recomputes equity once.
func (p *Portfolio) MarkToMarketAll(prices map[symbol.ID]float64, ts clock.Timestamp) {
	p.mu.Lock()
	for sym, price := range prices {
		if pos, ok := p.positions[sym]; ok {
			pos.CurrentPrice = price
			pos.LastUpdate = ts
		}
	}
	p.mu.Unlock()
	p.recomputeEquity(ts)
}

func (p *Portfolio) recomputeEquity(ts clock.Timestamp) {
	p.mu.Lock()
	equity := p.cash
	gross := money.Zero
	net := money.Zero
	positionsCopy := make(map[symbol.ID]Position, len(p.positions))
	for sym, pos := range p.positions {
		value := money.FromFloat(pos.Quantity).Mul(money.FromFloat(pos.CurrentPrice))
		equity = equity.Add(value)
		gross = gross.Add(value.Abs())
		net = net.Add(value)
		positionsCopy[sym] = *pos
	}
	leverage := 0.0
	if ef, _ := equity.Float64(); ef != 0 {
		gf, _ := gross.Float64()
		leverage = gf / ef
	}
	snap := Snapshot{
		Timestamp:     ts,
		Cash:          p.cash,
		Equity:        equity,
		GrossExposure: gross,
		NetExposure:   net,
		Leverage:      leverage,
		Positions:     positionsCopy,
	}
	cbs := append([]EquityCallback(nil), p.onEquity...)
	p.mu.Unlock()

	for _, cb := range cbs {
		cb(snap)
	}
}

// RecordSnapshot appends the current portfolio state to the equity curve.
func (p *Portfolio) RecordSnapshot(ts clock.Timestamp) Snapshot {
	p.mu.Lock()
	equity := p.cash
	gross := money.Zero
	net := money.Zero
	positionsCopy := make(map[symbol.ID]Position, len(p.positions))
	for sym, pos := range p.positions {
		value := money.FromFloat(pos.Quantity).Mul(money.FromFloat(pos.CurrentPrice))
		equity = equity.Add(value)
		gross = gross.Add(value.Abs())
		net = net.Add(value)
		positionsCopy[sym] = *pos
	}
	leverage := 0.0
	if ef, _ := equity.Float64(); ef != 0 {
		gf, _ := gross.Float64()
		leverage = gf / ef
	}
	snap := Snapshot{
		Timestamp:     ts,
		Cash:          p.cash,
		Equity:        equity,
		GrossExposure: gross,
		NetExposure:   net,
		Leverage:      leverage,
		Positions:     positionsCopy,
	}
	p.snapshots = append(p.snapshots, snap)
	p.mu.Unlock()
	return snap
}

// EquityCurve returns the recorded snapshots in recording order.
func (p *Portfolio) EquityCurve() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// ReplacePositions atomically replaces the position set, used when the
// live engine reconciles with broker-reported positions.
func (p *Portfolio) ReplacePositions(positions map[symbol.ID]Position, ts clock.Timestamp) {
	p.mu.Lock()
	p.positions = make(map[symbol.ID]*Position, len(positions))
	for sym, pos := range positions {
		copied := pos
		copied.LastUpdate = ts
		p.positions[sym] = &copied
	}
	p.mu.Unlock()
	p.recomputeEquity(ts)
}

// Position returns a copy of the current position for sym, if any.
func (p *Portfolio) Position(sym symbol.ID) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[sym]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() money.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// RealizedPnL returns the accumulated realized PnL.
func (p *Portfolio) RealizedPnL() money.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

// Fills returns every fill applied to the portfolio, in application order.
func (p *Portfolio) Fills() []orders.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]orders.Fill, len(p.fills))
	copy(out, p.fills)
	return out
}
