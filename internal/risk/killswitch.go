package risk

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
)

// KillSwitch trips once realized+unrealized loss for the day reaches or
// exceeds either an absolute limit or a fraction of start-of-day equity,
// whichever is configured. Once tripped it stays tripped until StartDay.
type KillSwitch struct {
	mu sync.Mutex

	absoluteLimit float64 // 0 disables
	pctLimit      float64 // 0 disables; fraction of start-of-day equity

	startOfDayEquity float64
	tripped          bool
	tripReason       string
}

// NewKillSwitch returns a KillSwitch with the given absolute (currency)
// and fractional daily loss limits; either may be zero to disable it.
func NewKillSwitch(absoluteLimit, pctLimit float64) *KillSwitch {
	return &KillSwitch{absoluteLimit: absoluteLimit, pctLimit: pctLimit}
}

// StartDay records the equity mark used as today's baseline.
func (k *KillSwitch) StartDay(equity float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.startOfDayEquity = equity
	k.tripped = false
	k.tripReason = ""
}

// Check evaluates currentEquity against both limits and trips the switch
// on first breach. Once tripped, Check keeps returning the tripped error
// without re-evaluating until StartDay resets it.
func (k *KillSwitch) Check(currentEquity float64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.tripped {
		return regimeerr.New(regimeerr.InvalidState, k.tripReason)
	}

	loss := k.startOfDayEquity - currentEquity
	if loss <= 0 {
		return nil
	}

	if k.absoluteLimit > 0 && loss >= k.absoluteLimit {
		k.tripped = true
		k.tripReason = "daily loss limit breached"
		return regimeerr.New(regimeerr.InvalidState, k.tripReason)
	}

	if k.pctLimit > 0 && k.startOfDayEquity > 0 {
		if loss/k.startOfDayEquity >= k.pctLimit {
			k.tripped = true
			k.tripReason = "daily loss percentage limit breached"
			return regimeerr.New(regimeerr.InvalidState, k.tripReason)
		}
	}

	return nil
}

// Tripped reports whether the switch has fired today.
func (k *KillSwitch) Tripped() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tripped
}

// PreSubmit adapts Check to orders.PreSubmitFunc given a live equity
// lookup, so order submission is blocked once the switch has tripped.
func (k *KillSwitch) PreSubmit(equityFn func() float64) orders.PreSubmitFunc {
	return func(*orders.Order) error {
		return k.Check(equityFn())
	}
}
