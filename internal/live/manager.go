// Package live implements the live-trading substrate of §4.9/§4.10/§5/§6:
// the LiveOrderManager and its broker-state reconciliation, the event bus
// that fans broker callbacks out to the event-loop thread, rate limiting,
// the daily-loss kill switch's best-effort flatten, and the engine that
// wires all of it together against a pluggable broker.Adapter.
package live

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
)

// ExecutionCallback is invoked after an execution report is applied,
// outside the manager's lock, mirroring orders.Manager's callback
// discipline.
type ExecutionCallback func(broker.ExecutionReport)

// OrderCallback is invoked after any Order field changes.
type OrderCallback func(broker.Order)

// Manager is the live counterpart of orders.Manager (§4.9): it owns the
// internal-id-keyed Order map, translates broker_order_id <-> internal id,
// and applies the broker-facing state machine instead of §4.5's simpler
// one. A single mutex guards the maps; callbacks run after it is released.
type Manager struct {
	mu       sync.Mutex
	adapter  broker.Adapter
	orders   map[uint64]*broker.Order
	byBroker map[string]uint64
	nextID   uint64

	onExecution []ExecutionCallback
	onUpdate    []OrderCallback
}

// NewManager returns a Manager submitting through adapter.
func NewManager(adapter broker.Adapter) *Manager {
	m := &Manager{
		adapter:  adapter,
		orders:   make(map[uint64]*broker.Order),
		byBroker: make(map[string]uint64),
		nextID:   1,
	}
	adapter.OnExecutionReport(m.HandleExecutionReport)
	return m
}

func (m *Manager) OnExecution(fn ExecutionCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExecution = append(m.onExecution, fn)
}

func (m *Manager) OnOrderUpdate(fn OrderCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = append(m.onUpdate, fn)
}

func validate(o *orders.Order) error {
	if o.Symbol == 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "order symbol must be set")
	}
	if o.Quantity <= 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "order quantity must be > 0")
	}
	if (o.Type == orders.TypeLimit || o.Type == orders.TypeStopLimit) && o.LimitPrice <= 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "limit price must be > 0 for limit orders")
	}
	if (o.Type == orders.TypeStop || o.Type == orders.TypeStopLimit) && o.StopPrice <= 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "stop price must be > 0 for stop orders")
	}
	return nil
}

// SubmitOrder validates o (the §4.5 rules apply unchanged at the live
// boundary), requests submission from the broker adapter, and on success
// records it as PendingNew. Returns the internal id.
func (m *Manager) SubmitOrder(ctx context.Context, o orders.Order, now clock.Timestamp) (uint64, error) {
	if err := validate(&o); err != nil {
		return 0, err
	}

	m.mu.Lock()
	o.ID = m.nextID
	m.nextID++
	m.mu.Unlock()

	o.CreatedAt = now
	o.UpdatedAt = now
	o.Status = orders.StatusPending
	if _, hasClientID := o.Metadata["client_order_id"]; !hasClientID {
		if o.Metadata == nil {
			o.Metadata = make(map[string]string, 1)
		}
		o.Metadata["client_order_id"] = uuid.NewString()
	}

	brokerID, err := m.adapter.SubmitOrder(ctx, o)
	if err != nil {
		return 0, regimeerr.Wrap(regimeerr.BrokerError, "broker rejected order submission", err)
	}

	lo := &broker.Order{
		Order:         o,
		BrokerOrderID: brokerID,
		LiveStatus:    broker.StatusPendingNew,
		SubmittedAt:   now,
	}

	m.mu.Lock()
	m.orders[o.ID] = lo
	m.byBroker[brokerID] = o.ID
	stored := *lo
	m.mu.Unlock()

	m.fireUpdate(stored)
	return o.ID, nil
}

// CancelOrder forwards to the broker adapter using the stored broker id.
func (m *Manager) CancelOrder(ctx context.Context, id uint64) error {
	m.mu.Lock()
	lo, ok := m.orders[id]
	m.mu.Unlock()
	if !ok {
		return regimeerr.New(regimeerr.NotFound, "order not found")
	}
	return m.adapter.CancelOrder(ctx, lo.BrokerOrderID)
}

// CancelAll cancels every currently open order.
func (m *Manager) CancelAll(ctx context.Context) error {
	for _, o := range m.OpenOrders() {
		if err := m.CancelOrder(ctx, o.ID); err != nil {
			return err
		}
	}
	return nil
}

// CancelOrdersForSymbol cancels every open order on sym.
func (m *Manager) CancelOrdersForSymbol(ctx context.Context, sym uint32) error {
	for _, o := range m.OpenOrders() {
		if uint32(o.Symbol) != sym {
			continue
		}
		if err := m.CancelOrder(ctx, o.ID); err != nil {
			return err
		}
	}
	return nil
}

// ModifyOrder forwards a modification to the broker adapter. Whether this
// is actually supported is broker-dependent (§4.9); adapters that can't
// modify return a BrokerError.
func (m *Manager) ModifyOrder(ctx context.Context, id uint64, mod orders.Modification) error {
	m.mu.Lock()
	lo, ok := m.orders[id]
	m.mu.Unlock()
	if !ok {
		return regimeerr.New(regimeerr.NotFound, "order not found")
	}
	return m.adapter.ModifyOrder(ctx, lo.BrokerOrderID, mod)
}

// HandleExecutionReport applies report's state-machine transition to the
// matching order (looked up by BrokerOrderID), updating filled quantity
// and the size-weighted average fill price on (Partially)Filled and
// stamping FilledAt on Filled. An invalid (from, to) transition sets the
// order's status to Error with "Invalid transition from X to Y" and
// leaves quantities untouched (§7, §8 property 4); the order is otherwise
// left unmodified so the position can be investigated. Callbacks run
// outside the lock.
func (m *Manager) HandleExecutionReport(report broker.ExecutionReport) {
	m.mu.Lock()
	id, ok := m.byBroker[report.BrokerOrderID]
	if !ok {
		m.mu.Unlock()
		return
	}
	lo := m.orders[id]
	from := lo.LiveStatus

	if !broker.IsValidTransition(from, report.Status) {
		lo.ErrorMessage = fmt.Sprintf("Invalid transition from %s to %s", from, report.Status)
		lo.LiveStatus = broker.StatusError
		lo.UpdatedAt = report.Timestamp
		updated := *lo
		m.mu.Unlock()
		m.fireUpdate(updated)
		return
	}

	lo.LiveStatus = report.Status
	lo.UpdatedAt = report.Timestamp
	if report.BrokerExecID != "" {
		lo.BrokerExecID = report.BrokerExecID
	}

	switch report.Status {
	case broker.StatusNew:
		lo.AckedAt = report.Timestamp
	case broker.StatusPartiallyFilled, broker.StatusFilled:
		prevFilled := lo.FilledQuantity
		lo.FilledQuantity = report.FilledQty
		if lo.FilledQuantity > 0 && report.LastFillQty > 0 {
			lo.AvgFillPrice = (lo.AvgFillPrice*prevFilled + report.LastFillPrice*report.LastFillQty) / lo.FilledQuantity
		}
		if report.Status == broker.StatusFilled {
			lo.FilledAt = report.Timestamp
		}
	}

	updated := *lo
	m.mu.Unlock()

	m.fireExecution(report)
	m.fireUpdate(updated)
}

// ReconcileWithBroker requests every open broker order and applies each
// one: known orders get their report applied through the same state
// machine as HandleExecutionReport; unknown orders (ones this process
// never submitted — e.g. after a restart or a disconnect) are synthesized
// at the next internal id with the broker-reported status, recovering
// truth per §4.9. Applying the same report set twice yields an identical
// map both times (§8 property 10): a known order whose status and filled
// quantity already match the report is left untouched, and no second
// synthesis happens once the broker id has an internal id.
func (m *Manager) ReconcileWithBroker(ctx context.Context, now clock.Timestamp) error {
	reports, err := m.adapter.GetOpenOrders(ctx)
	if err != nil {
		return regimeerr.Wrap(regimeerr.BrokerError, "reconcile: get open orders", err)
	}

	for _, r := range reports {
		m.mu.Lock()
		id, known := m.byBroker[r.BrokerOrderID]
		applied := known && m.orders[id].LiveStatus == r.Status && m.orders[id].FilledQuantity == r.FilledQty
		m.mu.Unlock()

		if applied {
			continue
		}
		if known {
			m.HandleExecutionReport(broker.ExecutionReport{
				BrokerOrderID: r.BrokerOrderID,
				Symbol:        r.Symbol,
				Status:        r.Status,
				FilledQty:     r.FilledQty,
				LastFillPrice: r.AvgFillPrice,
				Timestamp:     now,
			})
			continue
		}

		m.mu.Lock()
		id := m.nextID
		m.nextID++
		lo := &broker.Order{
			Order: orders.Order{
				ID:             id,
				Symbol:         r.Symbol,
				Side:           r.Side,
				Type:           r.Type,
				Quantity:       r.Quantity,
				LimitPrice:     r.LimitPrice,
				FilledQuantity: r.FilledQty,
				AvgFillPrice:   r.AvgFillPrice,
				CreatedAt:      now,
				UpdatedAt:      now,
			},
			BrokerOrderID: r.BrokerOrderID,
			LiveStatus:    r.Status,
			SubmittedAt:   now,
		}
		m.orders[id] = lo
		m.byBroker[r.BrokerOrderID] = id
		synthesized := *lo
		m.mu.Unlock()

		m.fireUpdate(synthesized)
	}
	return nil
}

// GetOrder returns a copy of the order with the given internal id.
func (m *Manager) GetOrder(id uint64) (broker.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, ok := m.orders[id]
	if !ok {
		return broker.Order{}, false
	}
	return *lo, true
}

// OpenOrders returns copies of every order not yet in a terminal status.
func (m *Manager) OpenOrders() []broker.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []broker.Order
	for _, lo := range m.orders {
		if !lo.LiveStatus.IsTerminal() {
			out = append(out, *lo)
		}
	}
	return out
}

func (m *Manager) fireUpdate(o broker.Order) {
	m.mu.Lock()
	cbs := make([]OrderCallback, len(m.onUpdate))
	copy(cbs, m.onUpdate)
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(o)
	}
}

func (m *Manager) fireExecution(r broker.ExecutionReport) {
	m.mu.Lock()
	cbs := make([]ExecutionCallback, len(m.onExecution))
	copy(cbs, m.onExecution)
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(r)
	}
}
