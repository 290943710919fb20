// Package regime defines the discrete market-regime facade consumed by
// the strategy context and hook manager. The detection algorithm itself
// is out of scope (see threshold for the one bundled default); Tracker is
// the pluggable interface external strategies and detectors implement.
package regime

import "github.com/regimeflow/regimeflow/internal/clock"

// Type is a discrete market-state label.
type Type int

const (
	Bull Type = iota
	Neutral
	Bear
	Crisis
	Custom
)

func (t Type) String() string {
	switch t {
	case Bull:
		return "bull"
	case Neutral:
		return "neutral"
	case Bear:
		return "bear"
	case Crisis:
		return "crisis"
	default:
		return "custom"
	}
}

// State is the current regime and when it was last (re)computed.
type State struct {
	Regime    Type
	Label     string
	UpdatedAt clock.Timestamp
}

// Transition records a regime change for RegimeChange hook consumers.
type Transition struct {
	From State
	To   State
}

// Tracker is the interface the strategy context and hook manager depend
// on. A concrete detector feeds it features (bars, computed indicators)
// and it exposes the current state.
type Tracker interface {
	CurrentState() State
}

// TransitionCallback is invoked whenever a Tracker implementation detects
// a regime change.
type TransitionCallback func(Transition)
