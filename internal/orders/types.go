// Package orders defines the Order/Fill data model and the OrderManager
// state machine described in §3/§4.5: validation, submission, cancellation,
// modification, and fill application, all guarded by a single mutex with
// callbacks invoked outside the lock to avoid re-entrant deadlock.
package orders

import (
	"fmt"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Side indicates whether an order buys or sells.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Sign returns +1 for Buy and -1 for Sell, matching the signed-quantity
// convention the portfolio uses for fills.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Type is the order's execution semantics.
type Type int

const (
	TypeMarket Type = iota
	TypeLimit
	TypeStop
	TypeStopLimit
)

func (t Type) String() string {
	switch t {
	case TypeMarket:
		return "MARKET"
	case TypeLimit:
		return "LIMIT"
	case TypeStop:
		return "STOP"
	case TypeStopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls how long an order remains eligible to execute.
type TimeInForce int

const (
	TIFDay TimeInForce = iota
	TIFGTC
	TIFIOC
	TIFFOK
)

// Status is the order's position in the §4.5 state machine:
//
//	Created → Pending → (PartiallyFilled*) → Filled
//	                ↘ Cancelled
//	                ↘ Rejected
type Status int

const (
	StatusCreated Status = iota
	StatusPending
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusPending:
		return "PENDING"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsOpen reports whether the order can still receive fills or be modified.
func (s Status) IsOpen() bool {
	return s == StatusCreated || s == StatusPending || s == StatusPartiallyFilled
}

// IsTerminal reports whether the order's state machine has no further
// transitions.
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// Order is a single order tracked by the OrderManager.
type Order struct {
	ID       uint64
	Symbol   symbol.ID
	Side     Side
	Type     Type
	Quantity float64
	LimitPrice float64
	StopPrice  float64
	TIF        TimeInForce
	Status     Status

	// FilledQuantity always accumulates abs(fill.Quantity), independent of
	// side — this is the OrderManager's own fill-quantity convention,
	// distinct from Portfolio's signed-quantity cash accounting (§9 open
	// question). Exactly one convention holds per API surface.
	FilledQuantity float64
	AvgFillPrice   float64

	StrategyID string
	CreatedAt  clock.Timestamp
	UpdatedAt  clock.Timestamp
	Metadata   map[string]string
}

// RemainingQuantity returns the unfilled quantity.
func (o *Order) RemainingQuantity() float64 {
	return o.Quantity - o.FilledQuantity
}

// IsFilled reports whether the order has been completely filled.
func (o *Order) IsFilled() bool {
	return o.FilledQuantity >= o.Quantity
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{ID:%d, %s %d %.4f@%.4f, Filled:%.4f, Status:%s}",
		o.ID, o.Side, o.Symbol, o.Quantity, o.LimitPrice, o.FilledQuantity, o.Status)
}

// Modification carries the subset of order fields that may be changed by
// ModifyOrder. A nil pointer means "leave unchanged".
type Modification struct {
	Quantity   *float64
	LimitPrice *float64
	StopPrice  *float64
	TIF        *TimeInForce
}

// Fill is a single execution applied to an order. Quantity is signed: its
// sign carries the side (this is the convention Portfolio.UpdatePosition
// relies on for cash and PnL accounting).
type Fill struct {
	ID        uint64
	OrderID   uint64
	Symbol    symbol.ID
	Quantity  float64
	Price     float64
	Commission float64
	Timestamp clock.Timestamp
}
