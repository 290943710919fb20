// Package broker defines the external broker-adapter interface consumed by
// the live order manager and live engine (§6) — connection lifecycle,
// market-data subscriptions, order entry, account/position/open-order
// queries, and callback registration — plus the wire-level types that
// cross that boundary: execution reports, account/position snapshots, and
// the broker-facing order status machine of §4.9. Concrete wire protocols
// are out of scope per §1; paperbroker and wsbroker are the two adapters
// this module ships.
package broker

import (
	"context"
	"fmt"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Status is a live order's position in the broker-facing state machine of
// §4.9, distinct from orders.Status (the backtest order manager's simpler
// machine): live orders pass through PendingNew/New before they can be
// (Partially)Filled, and an invalid transition lands in Error rather than
// being rejected outright.
type Status int

const (
	StatusPendingNew Status = iota
	StatusNew
	StatusPartiallyFilled
	StatusFilled
	StatusPendingCancel
	StatusCancelled
	StatusRejected
	StatusExpired
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPendingNew:
		return "PendingNew"
	case StatusNew:
		return "New"
	case StatusPartiallyFilled:
		return "PartiallyFilled"
	case StatusFilled:
		return "Filled"
	case StatusPendingCancel:
		return "PendingCancel"
	case StatusCancelled:
		return "Cancelled"
	case StatusRejected:
		return "Rejected"
	case StatusExpired:
		return "Expired"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions are accepted (§4.9).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired, StatusError:
		return true
	default:
		return false
	}
}

// validTransitions is the §4.9 table. Any (from, to) pair missing here
// (including any transition out of a terminal state) is invalid; the
// caller sets the order's status to Error instead.
var validTransitions = map[Status]map[Status]bool{
	StatusPendingNew:      set(StatusNew, StatusPartiallyFilled, StatusFilled, StatusRejected, StatusCancelled, StatusExpired, StatusError),
	StatusNew:             set(StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusRejected, StatusExpired, StatusError),
	StatusPartiallyFilled: set(StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusRejected, StatusExpired, StatusError),
	StatusPendingCancel:   set(StatusCancelled, StatusRejected, StatusExpired, StatusError),
}

func set(ss ...Status) map[Status]bool {
	m := make(map[Status]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// IsValidTransition reports whether the state machine in §4.9 permits
// moving from from to to. Terminal states accept no transitions at all,
// matching property 4 in §8.
func IsValidTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	return validTransitions[from][to]
}

// Order is the live counterpart of orders.Order: the same submission
// fields plus the broker correlation ids and broker-facing status and
// timestamps described in §3's LiveOrder.
type Order struct {
	orders.Order

	BrokerOrderID string
	BrokerExecID  string
	LiveStatus    Status

	SubmittedAt clock.Timestamp
	AckedAt     clock.Timestamp
	FilledAt    clock.Timestamp

	// ErrorMessage is set when LiveStatus == StatusError, per §7's
	// state-machine-misuse policy: "Invalid transition from X to Y".
	ErrorMessage string
}

func (o *Order) String() string {
	return fmt.Sprintf("LiveOrder{ID:%d, Broker:%s, %s %d %.4f, Filled:%.4f, Status:%s}",
		o.ID, o.BrokerOrderID, o.Side, o.Symbol, o.Quantity, o.FilledQuantity, o.LiveStatus)
}

// ExecutionReport is what an Adapter delivers for an order lifecycle event:
// a fill, an ack, a rejection, a cancel confirmation, and so on.
// LiveOrderManager.HandleExecutionReport (§4.9) applies it to the matching
// Order.
type ExecutionReport struct {
	BrokerOrderID string
	BrokerExecID  string
	Symbol        symbol.ID
	Status        Status
	FilledQty     float64 // cumulative filled quantity reported by the broker
	LastFillQty   float64 // size of this specific fill, if any (0 for non-fill reports)
	LastFillPrice float64
	Commission    float64
	Message       string
	Timestamp     clock.Timestamp
}

// OpenOrderReport is one row of a broker's "get open orders" response,
// consumed by LiveOrderManager.ReconcileWithBroker.
type OpenOrderReport struct {
	BrokerOrderID string
	Symbol        symbol.ID
	Side          orders.Side
	Type          orders.Type
	Quantity      float64
	LimitPrice    float64
	FilledQty     float64
	AvgFillPrice  float64
	Status        Status
}

// AccountInfo is the broker's account-level snapshot (cash, buying power).
type AccountInfo struct {
	Cash        float64
	BuyingPower float64
	Equity      float64
	Currency    string
}

// PositionInfo is one broker-reported position.
type PositionInfo struct {
	Symbol       symbol.ID
	Quantity     float64
	AvgCost      float64
	CurrentPrice float64
}

// MarketDataCallback delivers a decoded market update (bar/tick/quote/book)
// as an opaque payload; the live engine's codec/adapter pair agree on its
// concrete type.
type MarketDataCallback func(any)

// ExecutionCallback delivers one ExecutionReport.
type ExecutionCallback func(ExecutionReport)

// PositionCallback delivers a broker-pushed position update.
type PositionCallback func(PositionInfo)

// RateLimitHints are the broker's own advertised throughput ceilings, used
// when the engine config leaves max_orders_per_second at 0 (§6).
type RateLimitHints struct {
	MaxOrdersPerSecond   int
	MaxMessagesPerSecond int
}

// Adapter is the external collaborator interface named in §6: connection
// lifecycle, subscriptions, order entry, account/position/open-order
// queries, callback registration, and a poll entry point for adapters that
// are not self-driving (e.g. REST polling rather than a push stream).
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	SubscribeMarketData(symbols []symbol.ID) error
	UnsubscribeMarketData(symbols []symbol.ID) error

	SubmitOrder(ctx context.Context, o orders.Order) (brokerOrderID string, err error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	ModifyOrder(ctx context.Context, brokerOrderID string, mod orders.Modification) error

	GetAccountInfo(ctx context.Context) (AccountInfo, error)
	GetPositions(ctx context.Context) ([]PositionInfo, error)
	GetOpenOrders(ctx context.Context) ([]OpenOrderReport, error)

	OnMarketData(cb MarketDataCallback)
	OnExecutionReport(cb ExecutionCallback)
	OnPositionUpdate(cb PositionCallback)

	RateLimitHints() RateLimitHints

	// Poll lets adapters without a push-driven read loop (e.g. a REST-only
	// broker) get a tick from the engine's own run loop. Adapters that
	// drive themselves (e.g. wsbroker's own read goroutine) may no-op it.
	Poll(ctx context.Context) error
}
