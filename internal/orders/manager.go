package orders

import (
	"sync"
	"sync/atomic"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
)

// PreSubmitFunc runs before an order is accepted. Returning an error aborts
// submission with that error and the order is never recorded.
type PreSubmitFunc func(*Order) error

// UpdateCallback is invoked after any status change, outside the manager's
// lock.
type UpdateCallback func(Order)

// FillCallback is invoked when a fill is applied, outside the manager's
// lock.
type FillCallback func(Fill)

// Manager owns the order book of an engine run: submission, cancellation,
// modification, and fill application, per the state machine in §4.5. A
// single mutex protects the orders map; every registered callback runs
// after the lock is released so a callback that itself calls back into the
// manager (e.g. to submit a new order from a fill handler) cannot deadlock.
type Manager struct {
	mu     sync.Mutex
	orders map[uint64]*Order
	nextID uint64

	preSubmit []PreSubmitFunc
	onUpdate  []UpdateCallback
	onFill    []FillCallback
}

// NewManager returns an empty Manager with order ids starting at 1.
func NewManager() *Manager {
	return &Manager{
		orders: make(map[uint64]*Order),
		nextID: 1,
	}
}

// OnPreSubmit registers a pre-submit validation/risk callback. Callbacks
// run in registration order; the first error aborts submission.
func (m *Manager) OnPreSubmit(fn PreSubmitFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preSubmit = append(m.preSubmit, fn)
}

// OnOrderUpdate registers a callback invoked after every status change.
func (m *Manager) OnOrderUpdate(fn UpdateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = append(m.onUpdate, fn)
}

// OnFill registers a callback invoked after a fill is applied.
func (m *Manager) OnFill(fn FillCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFill = append(m.onFill, fn)
}

func validate(o *Order) error {
	if o.Symbol == 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "order symbol must be set")
	}
	if o.Quantity <= 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "order quantity must be > 0")
	}
	if (o.Type == TypeLimit || o.Type == TypeStopLimit) && o.LimitPrice <= 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "limit price must be > 0 for limit orders")
	}
	if (o.Type == TypeStop || o.Type == TypeStopLimit) && o.StopPrice <= 0 {
		return regimeerr.New(regimeerr.InvalidArgument, "stop price must be > 0 for stop orders")
	}
	return nil
}

// SubmitOrder runs pre-submit callbacks, validates the order, assigns it an
// id if zero, and transitions it Created -> Pending. Order-update callbacks
// fire once for each transition, after the lock is released.
func (m *Manager) SubmitOrder(o Order, now clock.Timestamp) (uint64, error) {
	for _, fn := range snapshotPreSubmit(m) {
		if err := fn(&o); err != nil {
			return 0, err
		}
	}
	if err := validate(&o); err != nil {
		return 0, err
	}

	m.mu.Lock()
	if o.ID == 0 {
		o.ID = m.nextID
		m.nextID++
	} else if o.ID >= m.nextID {
		m.nextID = o.ID + 1
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	o.Status = StatusCreated
	created := o
	m.orders[o.ID] = &created
	m.mu.Unlock()
	m.fireUpdate(created)

	m.mu.Lock()
	stored := m.orders[o.ID]
	stored.Status = StatusPending
	stored.UpdatedAt = now
	pending := *stored
	m.mu.Unlock()
	m.fireUpdate(pending)

	return o.ID, nil
}

func snapshotPreSubmit(m *Manager) []PreSubmitFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PreSubmitFunc, len(m.preSubmit))
	copy(out, m.preSubmit)
	return out
}

// CancelOrder transitions an order to Cancelled. Returns NotFound if the
// order doesn't exist, InvalidState if it is not currently open.
func (m *Manager) CancelOrder(id uint64, now clock.Timestamp) error {
	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return regimeerr.New(regimeerr.NotFound, "order not found")
	}
	if !o.Status.IsOpen() {
		m.mu.Unlock()
		return regimeerr.New(regimeerr.InvalidState, "order is not open")
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	updated := *o
	m.mu.Unlock()
	m.fireUpdate(updated)
	return nil
}

// ModifyOrder applies mod to the order's mutable fields and re-validates.
// FilledQuantity is untouched. Only open orders may be modified.
func (m *Manager) ModifyOrder(id uint64, mod Modification, now clock.Timestamp) error {
	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return regimeerr.New(regimeerr.NotFound, "order not found")
	}
	if !o.Status.IsOpen() {
		m.mu.Unlock()
		return regimeerr.New(regimeerr.InvalidState, "order is not open")
	}
	candidate := *o
	if mod.Quantity != nil {
		candidate.Quantity = *mod.Quantity
	}
	if mod.LimitPrice != nil {
		candidate.LimitPrice = *mod.LimitPrice
	}
	if mod.StopPrice != nil {
		candidate.StopPrice = *mod.StopPrice
	}
	if mod.TIF != nil {
		candidate.TIF = *mod.TIF
	}
	if err := validate(&candidate); err != nil {
		m.mu.Unlock()
		return err
	}
	candidate.UpdatedAt = now
	*o = candidate
	updated := *o
	m.mu.Unlock()
	m.fireUpdate(updated)
	return nil
}

// ProcessFill applies a fill to its order: accumulates FilledQuantity by
// abs(fill.Quantity) (the OrderManager convention — see the §9 resolution
// in SPEC_FULL.md; Portfolio uses the signed quantity instead), updates the
// size-weighted AvgFillPrice, and transitions to Filled or PartiallyFilled
// unless the order is already terminal, in which case its status is kept.
// Fills for unknown orders are silently ignored.
func (m *Manager) ProcessFill(f Fill, now clock.Timestamp) {
	m.mu.Lock()
	o, ok := m.orders[f.OrderID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if f.ID == 0 {
		f.ID = m.nextFillID()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = now
	}

	absQty := f.Quantity
	if absQty < 0 {
		absQty = -absQty
	}
	prevFilled := o.FilledQuantity
	o.FilledQuantity += absQty
	if o.FilledQuantity > 0 {
		o.AvgFillPrice = (o.AvgFillPrice*prevFilled + f.Price*absQty) / o.FilledQuantity
	}
	if !o.Status.IsTerminal() {
		if o.FilledQuantity >= o.Quantity {
			o.Status = StatusFilled
		} else {
			o.Status = StatusPartiallyFilled
		}
	}
	o.UpdatedAt = now
	updatedOrder := *o
	m.mu.Unlock()

	m.fireFill(f)
	m.fireUpdate(updatedOrder)
}

var fillIDCounter atomic.Uint64

func (m *Manager) nextFillID() uint64 {
	return fillIDCounter.Add(1)
}

// GetOrder returns a copy of the order with the given id.
func (m *Manager) GetOrder(id uint64) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OpenOrders returns copies of every order currently in an open status.
func (m *Manager) OpenOrders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.Status.IsOpen() {
			out = append(out, *o)
		}
	}
	return out
}

func (m *Manager) fireUpdate(o Order) {
	m.mu.Lock()
	cbs := make([]UpdateCallback, len(m.onUpdate))
	copy(cbs, m.onUpdate)
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(o)
	}
}

func (m *Manager) fireFill(f Fill) {
	m.mu.Lock()
	cbs := make([]FillCallback, len(m.onFill))
	copy(cbs, m.onFill)
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(f)
	}
}
