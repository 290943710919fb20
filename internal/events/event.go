// Package events defines the engine's Event type and the priority-ordered
// EventQueue that every component — generator, loop, execution pipeline,
// hooks — pushes into and pops from.
package events

import (
	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Type classifies an Event's payload for dispatch.
type Type uint8

const (
	TypeSystem Type = iota
	TypeMarket
	TypeOrder
	TypeUser
)

func (t Type) String() string {
	switch t {
	case TypeSystem:
		return "System"
	case TypeMarket:
		return "Market"
	case TypeOrder:
		return "Order"
	case TypeUser:
		return "User"
	default:
		return "Unknown"
	}
}

// Default priorities per type; lower dispatches first at equal timestamp.
const (
	PrioritySystem uint8 = 0
	PriorityMarket uint8 = 10
	PriorityOrder  uint8 = 20
	PriorityUser   uint8 = 30
)

// DefaultPriority returns the default priority for t.
func DefaultPriority(t Type) uint8 {
	switch t {
	case TypeSystem:
		return PrioritySystem
	case TypeMarket:
		return PriorityMarket
	case TypeOrder:
		return PriorityOrder
	case TypeUser:
		return PriorityUser
	default:
		return PriorityUser
	}
}

// MarketSubKind distinguishes the kind of market data carried by a Market
// event, used as a generator-time tiebreaker (§4.3's sort key) and by the
// dispatcher to avoid a second type switch on the payload.
type MarketSubKind uint8

const (
	MarketBar MarketSubKind = iota
	MarketTick
	MarketQuote
	MarketBook
	MarketDayStart
	MarketDayEnd
	MarketTimer
)

// SystemKind distinguishes System event sub-types.
type SystemKind uint8

const (
	SystemBacktestStart SystemKind = iota
	SystemBacktestEnd
)

// OrderKind distinguishes Order event sub-types.
type OrderKind uint8

const (
	OrderSubmitted OrderKind = iota
	OrderFilled
	OrderUpdated
	OrderCancelled
	OrderRejected
)

// MarketPayload carries market-data events. It holds only the SubKind, not
// the bar/tick/quote/book itself; TimerID is set only for MarketTimer.
type MarketPayload struct {
	SubKind MarketSubKind
	TimerID string
}

// OrderPayload carries order-lifecycle events: the Kind and the OrderID it
// refers to.
type OrderPayload struct {
	Kind    OrderKind
	OrderID uint64
}

// SystemPayload carries engine lifecycle events.
type SystemPayload struct {
	Kind SystemKind
}

// Event is the unit the EventQueue orders and the dispatcher routes.
// Exactly one of Market/Order/System is meaningful, selected by Type; the
// concrete data (the Bar, the Fill, the Order) is looked up by the
// dispatcher from the relevant cache/manager via Symbol/OrderPayload.OrderID
// rather than embedded here, keeping Event itself small and value-copyable.
type Event struct {
	Timestamp clock.Timestamp
	Type      Type
	Priority  uint8
	Sequence  uint64
	Symbol    symbol.ID

	Market MarketPayload
	Order  OrderPayload
	System SystemPayload
}

// NewMarketEvent constructs a Market event with the default priority.
func NewMarketEvent(ts clock.Timestamp, sym symbol.ID, subKind MarketSubKind) Event {
	return Event{
		Timestamp: ts,
		Type:      TypeMarket,
		Priority:  PriorityMarket,
		Symbol:    sym,
		Market:    MarketPayload{SubKind: subKind},
	}
}

// NewSystemEvent constructs a System event with the default priority.
func NewSystemEvent(ts clock.Timestamp, kind SystemKind) Event {
	return Event{
		Timestamp: ts,
		Type:      TypeSystem,
		Priority:  PrioritySystem,
		System:    SystemPayload{Kind: kind},
	}
}

// NewOrderEvent constructs an Order event with the default priority.
func NewOrderEvent(ts clock.Timestamp, kind OrderKind, orderID uint64) Event {
	return Event{
		Timestamp: ts,
		Type:      TypeOrder,
		Priority:  PriorityOrder,
		Order:     OrderPayload{Kind: kind, OrderID: orderID},
	}
}

// Less implements the total order from §4.1: timestamp asc, then priority
// asc, then sequence asc.
func Less(a, b Event) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Sequence < b.Sequence
}
