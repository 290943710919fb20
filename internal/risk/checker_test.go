package risk

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/stretchr/testify/require"
)

func TestCheckRejectsOversizeOrder(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 100, MaxOrderValue: 1e9, MaxPositionSize: 1e9, MaxDailyVolume: 1e9})
	_, ok := c.Check(orders.Order{Symbol: 1, Quantity: 200})
	require.False(t, ok)
}

func TestCheckRejectsOversizeValue(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 1e9, MaxOrderValue: 1000, MaxPositionSize: 1e9, MaxDailyVolume: 1e9})
	_, ok := c.Check(orders.Order{Symbol: 1, Quantity: 100, LimitPrice: 50, Type: orders.TypeLimit})
	require.False(t, ok)
}

func TestCheckPriceBandRejectsOutOfBand(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 1e9, MaxOrderValue: 1e9, MaxPositionSize: 1e9, MaxDailyVolume: 1e9, PriceBandPercent: 0.1})
	c.SetReferencePrice(1, 100)
	_, ok := c.Check(orders.Order{Symbol: 1, Quantity: 1, LimitPrice: 150, Type: orders.TypeLimit})
	require.False(t, ok)

	_, ok = c.Check(orders.Order{Symbol: 1, Quantity: 1, LimitPrice: 105, Type: orders.TypeLimit})
	require.True(t, ok)
}

func TestCheckPositionLimitAccountsForSide(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 1e9, MaxOrderValue: 1e9, MaxPositionSize: 50, MaxDailyVolume: 1e9})
	c.UpdatePosition(1, 40)
	_, ok := c.Check(orders.Order{Symbol: 1, Side: orders.SideBuy, Quantity: 20})
	require.False(t, ok, "40 + 20 = 60 > 50")

	_, ok = c.Check(orders.Order{Symbol: 1, Side: orders.SideSell, Quantity: 20})
	require.True(t, ok, "40 - 20 = 20 <= 50")
}

func TestCheckDailyVolumeLimit(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 1e9, MaxOrderValue: 1e9, MaxPositionSize: 1e9, MaxDailyVolume: 1000})
	c.UpdateDailyVolume(900)
	_, ok := c.Check(orders.Order{Symbol: 1, Quantity: 2, LimitPrice: 100, Type: orders.TypeLimit})
	require.False(t, ok, "900 + 200 > 1000")
}

func TestPreSubmitWiresIntoOrderManagerConvention(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 10, MaxOrderValue: 1e9, MaxPositionSize: 1e9, MaxDailyVolume: 1e9})
	o := orders.Order{Symbol: 1, Quantity: 100}
	err := c.PreSubmit(&o)
	require.Error(t, err)
}

func TestResetDailyVolume(t *testing.T) {
	c := NewChecker(DefaultConfig())
	c.UpdateDailyVolume(500)
	require.Equal(t, 500.0, c.DailyVolume())
	c.ResetDailyVolume()
	require.Equal(t, 0.0, c.DailyVolume())
}
