// Package hooks implements the priority-ordered hook manager of §4.10: a
// place for strategy/plugin code to intercept data and order-lifecycle
// events with Continue/Skip/Cancel semantics, distinct from the event
// loop's untyped pre/post observer hooks.
package hooks

import "sort"

// Kind identifies which class of event a hook fires for.
type Kind uint8

const (
	KindBacktestStart Kind = iota
	KindBacktestEnd
	KindDayStart
	KindDayEnd
	KindBar
	KindTick
	KindQuote
	KindBook
	KindTimer
	KindOrderSubmit
	KindFill
	KindRegimeChange
)

// Result is a hook callback's verdict.
type Result int

const (
	// Continue proceeds to the next hook in priority order.
	Continue Result = iota
	// Skip stops invoking further hooks for this event, but the caller
	// proceeds with its default processing.
	Skip
	// Cancel stops hooks and tells the caller to abort its handling of
	// this event entirely.
	Cancel
)

// Context carries whatever the caller considers relevant to one hook
// invocation. It is intentionally untyped (map[string]any) since different
// Kinds carry unrelated payloads (a Bar, an Order, a regime transition).
type Context map[string]any

// Func is one registered hook callback.
type Func func(Context) Result

type registration struct {
	priority int
	seq      int
	fn       Func
}

// Manager holds hook registrations per Kind, invoked in ascending priority
// order with insertion order as the stable tiebreaker.
type Manager struct {
	byKind map[Kind][]registration
	seq    int
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{byKind: make(map[Kind][]registration)}
}

// Register adds fn for kind at the given priority (lower runs first).
func (m *Manager) Register(kind Kind, priority int, fn Func) {
	m.byKind[kind] = append(m.byKind[kind], registration{priority: priority, seq: m.seq, fn: fn})
	m.seq++
	sort.SliceStable(m.byKind[kind], func(i, j int) bool {
		return m.byKind[kind][i].priority < m.byKind[kind][j].priority
	})
}

// Invoke runs every hook registered for kind, in priority order, until one
// returns Skip or Cancel. Returns Cancel if any hook returned Cancel,
// otherwise Continue (a Skip does not propagate as Cancel to the caller).
func (m *Manager) Invoke(kind Kind, ctx Context) Result {
	for _, reg := range m.byKind[kind] {
		switch reg.fn(ctx) {
		case Cancel:
			return Cancel
		case Skip:
			return Continue
		}
	}
	return Continue
}
