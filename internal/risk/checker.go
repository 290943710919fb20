// Package risk implements pre-trade risk checks wired as an
// orders.PreSubmitFunc: order size, order value, price-band, position
// limit, and daily-volume checks, run in order and returning the first
// failure. Checks don't mutate order-book state so in principle they
// could run in parallel, but a single order is checked sequentially here
// since each check is cheap.
package risk

import (
	"fmt"
	"sync"

	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Config bounds one Checker's limits.
type Config struct {
	MaxOrderSize     float64
	MaxOrderValue    float64
	MaxPositionSize  float64
	MaxDailyVolume   float64
	PriceBandPercent float64 // 0.1 = 10%; 0 disables the band check
	SymbolLimits     map[symbol.ID]float64
}

// DefaultConfig returns permissive-but-finite defaults.
func DefaultConfig() Config {
	return Config{
		MaxOrderSize:     1_000_000,
		MaxOrderValue:    10_000_000,
		MaxPositionSize:  10_000_000,
		MaxDailyVolume:   100_000_000,
		PriceBandPercent: 0.10,
	}
}

// Checker tracks per-symbol position and account-wide daily volume for a
// single-account engine run, applying Config's limits before an order is
// accepted.
type Checker struct {
	mu sync.RWMutex

	cfg             Config
	positions       map[symbol.ID]float64
	dailyVolume     float64
	referencePrices map[symbol.ID]float64
}

// NewChecker returns a Checker enforcing cfg.
func NewChecker(cfg Config) *Checker {
	return &Checker{
		cfg:             cfg,
		positions:       make(map[symbol.ID]float64),
		referencePrices: make(map[symbol.ID]float64),
	}
}

// PreSubmit adapts Check to orders.PreSubmitFunc, returning the first
// failing check as a *regimeerr.Error.
func (c *Checker) PreSubmit(o *orders.Order) error {
	if reason, ok := c.Check(*o); !ok {
		return regimeerr.New(regimeerr.InvalidState, reason)
	}
	return nil
}

// Check runs every limit in turn, short-circuiting on the first failure.
func (c *Checker) Check(o orders.Order) (reason string, ok bool) {
	if o.Quantity > c.cfg.MaxOrderSize {
		return fmt.Sprintf("order size %.4f exceeds max %.4f", o.Quantity, c.cfg.MaxOrderSize), false
	}

	if o.LimitPrice > 0 {
		value := o.LimitPrice * o.Quantity
		if value > c.cfg.MaxOrderValue {
			return fmt.Sprintf("order value %.2f exceeds max %.2f", value, c.cfg.MaxOrderValue), false
		}
	}

	if o.Type == orders.TypeLimit && o.LimitPrice > 0 {
		if !c.checkPriceBand(o) {
			ref := c.ReferencePrice(o.Symbol)
			return fmt.Sprintf("price %.4f outside band (ref %.4f, band %.0f%%)", o.LimitPrice, ref, c.cfg.PriceBandPercent*100), false
		}
	}

	if !c.checkPositionLimit(o) {
		cur := c.Position(o.Symbol)
		limit := c.cfg.MaxPositionSize
		if sl, ok := c.cfg.SymbolLimits[o.Symbol]; ok {
			limit = sl
		}
		return fmt.Sprintf("would exceed position limit (current %.4f, order %.4f, max %.4f)", cur, o.Quantity, limit), false
	}

	if o.LimitPrice > 0 {
		value := o.LimitPrice * o.Quantity
		if !c.checkDailyVolume(value) {
			return fmt.Sprintf("would exceed daily volume limit (current %.2f, order %.2f, max %.2f)", c.DailyVolume(), value, c.cfg.MaxDailyVolume), false
		}
	}

	return "", true
}

func (c *Checker) checkPriceBand(o orders.Order) bool {
	if c.cfg.PriceBandPercent <= 0 {
		return true
	}
	ref := c.ReferencePrice(o.Symbol)
	if ref == 0 {
		return true
	}
	band := ref * c.cfg.PriceBandPercent
	return o.LimitPrice >= ref-band && o.LimitPrice <= ref+band
}

func (c *Checker) checkPositionLimit(o orders.Order) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur := c.positions[o.Symbol]
	projected := cur + o.Quantity*o.Side.Sign()
	if projected < 0 {
		projected = -projected
	}
	limit := c.cfg.MaxPositionSize
	if sl, ok := c.cfg.SymbolLimits[o.Symbol]; ok {
		limit = sl
	}
	return projected <= limit
}

func (c *Checker) checkDailyVolume(value float64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dailyVolume+value <= c.cfg.MaxDailyVolume
}

// UpdatePosition records a fill's effect on the tracked position, called
// from the order manager's fill callback.
func (c *Checker) UpdatePosition(sym symbol.ID, signedQty float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[sym] += signedQty
}

// UpdateDailyVolume accumulates traded dollar value for the account.
func (c *Checker) UpdateDailyVolume(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyVolume += value
}

// SetReferencePrice records the last traded/mid price for sym, used by the
// price-band check.
func (c *Checker) SetReferencePrice(sym symbol.ID, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.referencePrices[sym] = price
}

// ReferencePrice returns the last recorded reference price for sym.
func (c *Checker) ReferencePrice(sym symbol.ID) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.referencePrices[sym]
}

// Position returns the tracked signed position for sym.
func (c *Checker) Position(sym symbol.ID) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.positions[sym]
}

// DailyVolume returns the accumulated dollar volume traded today.
func (c *Checker) DailyVolume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dailyVolume
}

// ResetDailyVolume zeroes the daily volume counter. The engines do not call
// it; the counter keeps accumulating until ResetDailyVolume is called.
func (c *Checker) ResetDailyVolume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyVolume = 0
}
