// Package threshold provides a default regime.Tracker implementation
// driven by a rolling-return threshold over recent bar closes. It is a
// minimal, swappable default, not the engine's authoritative regime
// detector — real regime-detection algorithms are a separate, out-of-scope
// concern (see SPEC_FULL.md's non-goals).
package threshold

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/regime"
)

// Config thresholds the rolling return (close[n] / close[0] - 1) that
// separates Bull/Neutral/Bear/Crisis.
type Config struct {
	Window       int
	BullReturn   float64 // >= this return => Bull
	BearReturn   float64 // <= this return => Bear
	CrisisReturn float64 // <= this return => Crisis (checked before Bear)
}

// DefaultConfig returns reasonable thresholds for a daily-bar rolling
// return over a 20-bar window.
func DefaultConfig() Config {
	return Config{Window: 20, BullReturn: 0.05, BearReturn: -0.05, CrisisReturn: -0.15}
}

// Tracker implements regime.Tracker over a rolling window of closes fed by
// Update.
type Tracker struct {
	mu           sync.Mutex
	cfg          Config
	closes       []float64
	state        regime.State
	onTransition []regime.TransitionCallback
}

// New returns a Tracker starting in the Neutral regime.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, state: regime.State{Regime: regime.Neutral, Label: regime.Neutral.String()}}
}

// OnTransition registers a callback fired whenever Update changes the
// current regime.
func (t *Tracker) OnTransition(fn regime.TransitionCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTransition = append(t.onTransition, fn)
}

// Update folds in the latest close price and recomputes the regime if the
// rolling window is full.
func (t *Tracker) Update(close float64, ts clock.Timestamp) {
	t.mu.Lock()
	t.closes = append(t.closes, close)
	if len(t.closes) > t.cfg.Window {
		t.closes = t.closes[len(t.closes)-t.cfg.Window:]
	}
	if len(t.closes) < t.cfg.Window {
		t.mu.Unlock()
		return
	}

	ret := t.closes[len(t.closes)-1]/t.closes[0] - 1
	next := classify(ret, t.cfg)
	prev := t.state
	changed := next != prev.Regime
	newState := regime.State{Regime: next, Label: next.String(), UpdatedAt: ts}
	t.state = newState
	cbs := append([]regime.TransitionCallback(nil), t.onTransition...)
	t.mu.Unlock()

	if changed {
		for _, cb := range cbs {
			cb(regime.Transition{From: prev, To: newState})
		}
	}
}

func classify(ret float64, cfg Config) regime.Type {
	switch {
	case ret <= cfg.CrisisReturn:
		return regime.Crisis
	case ret <= cfg.BearReturn:
		return regime.Bear
	case ret >= cfg.BullReturn:
		return regime.Bull
	default:
		return regime.Neutral
	}
}

// CurrentState implements regime.Tracker.
func (t *Tracker) CurrentState() regime.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
