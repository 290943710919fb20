// Package execution implements the pluggable execution pipeline of §4.6:
// slippage/commission/impact/latency model composition, with an optional
// order-book depth walk.
package execution

import (
	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/orders"
)

// Model produces raw fills for an order against a reference price.
type Model interface {
	Execute(order orders.Order, referencePrice float64, ts clock.Timestamp) []orders.Fill
}

// CommissionModel computes a currency commission for one fill.
type CommissionModel interface {
	Commission(order orders.Order, fill orders.Fill) float64
}

// TransactionCostModel computes an additional cost folded into commission.
type TransactionCostModel interface {
	Cost(order orders.Order, fill orders.Fill) float64
}

// ImpactModel computes a signed price adjustment in basis points. The sign
// convention (Buy adds, Sell subtracts) is applied by the pipeline, not by
// the model: Impact returns a non-negative magnitude.
type ImpactModel interface {
	ImpactBps(order orders.Order, book *data.OrderBook) float64
}

// LatencyModel returns additional latency added to the execution timestamp.
type LatencyModel interface {
	Latency() clock.Duration
}

// ZeroModel fills the full order quantity in one shot at the reference
// price plus/minus nothing.
type ZeroModel struct{}

func (ZeroModel) Execute(order orders.Order, referencePrice float64, ts clock.Timestamp) []orders.Fill {
	qty := order.RemainingQuantity() * order.Side.Sign()
	return []orders.Fill{{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Quantity:  qty,
		Price:     referencePrice,
		Timestamp: ts,
	}}
}

// FixedSlippageModel fills at referencePrice adjusted by a fixed number of
// basis points against the order's side.
type FixedSlippageModel struct {
	Bps float64
}

func (m FixedSlippageModel) Execute(order orders.Order, referencePrice float64, ts clock.Timestamp) []orders.Fill {
	adj := referencePrice * (m.Bps / 10000)
	price := referencePrice + adj*order.Side.Sign()
	qty := order.RemainingQuantity() * order.Side.Sign()
	return []orders.Fill{{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Quantity:  qty,
		Price:     price,
		Timestamp: ts,
	}}
}

// ZeroCommission charges nothing.
type ZeroCommission struct{}

func (ZeroCommission) Commission(orders.Order, orders.Fill) float64 { return 0 }

// PerShareCommission charges a fixed amount per unit of quantity.
type PerShareCommission struct {
	PerShare float64
}

func (c PerShareCommission) Commission(_ orders.Order, fill orders.Fill) float64 {
	qty := fill.Quantity
	if qty < 0 {
		qty = -qty
	}
	return qty * c.PerShare
}

// ZeroCost adds nothing.
type ZeroCost struct{}

func (ZeroCost) Cost(orders.Order, orders.Fill) float64 { return 0 }

// ZeroImpact never moves the price.
type ZeroImpact struct{}

func (ZeroImpact) ImpactBps(orders.Order, *data.OrderBook) float64 { return 0 }

// FixedImpact always returns the same magnitude, regardless of book depth.
type FixedImpact struct {
	Bps float64
}

func (m FixedImpact) ImpactBps(orders.Order, *data.OrderBook) float64 { return m.Bps }

// OrderBookImpact scales impact by the order's participation against the
// opposite side's total depth, capped at MaxBps. If the opposite side has
// no depth, the full MaxBps applies.
type OrderBookImpact struct {
	MaxBps float64
}

func (m OrderBookImpact) ImpactBps(order orders.Order, book *data.OrderBook) float64 {
	if book == nil {
		return m.MaxBps
	}
	var oppositeQty float64
	if order.Side == orders.SideBuy {
		oppositeQty = data.TotalQuantity(book.Asks)
	} else {
		oppositeQty = data.TotalQuantity(book.Bids)
	}
	if oppositeQty <= 0 {
		return m.MaxBps
	}
	participation := order.Quantity / oppositeQty
	if participation > 1 {
		participation = 1
	}
	if participation < 0 {
		participation = 0
	}
	return participation * m.MaxBps
}

// ZeroLatency adds no delay.
type ZeroLatency struct{}

func (ZeroLatency) Latency() clock.Duration { return 0 }

// FixedLatency always adds the same delay.
type FixedLatency struct {
	Delay clock.Duration
}

func (m FixedLatency) Latency() clock.Duration { return m.Delay }
