// Package dispatcher routes popped events to one of four per-Type handler
// slots, set once at construction, per §4.4.
package dispatcher

import "github.com/regimeflow/regimeflow/internal/events"

// Handler processes one event. Returning an error does not stop the loop;
// the loop logs it and continues, matching the recoverable-error class of
// the error handling design.
type Handler func(events.Event) error

// Dispatcher carries one Handler per events.Type and routes via a tagged
// switch on Event.Type.
type Dispatcher struct {
	Market Handler
	Order  Handler
	System Handler
	User   Handler
}

// New returns a Dispatcher with the four handler slots. A nil slot is a
// no-op for that Type.
func New(market, order, system, user Handler) *Dispatcher {
	return &Dispatcher{Market: market, Order: order, System: system, User: user}
}

// Dispatch routes e to its handler slot, returning nil if the slot is unset.
func (d *Dispatcher) Dispatch(e events.Event) error {
	var h Handler
	switch e.Type {
	case events.TypeMarket:
		h = d.Market
	case events.TypeOrder:
		h = d.Order
	case events.TypeSystem:
		h = d.System
	case events.TypeUser:
		h = d.User
	}
	if h == nil {
		return nil
	}
	return h(e)
}
