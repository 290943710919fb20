package databuild

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/stretchr/testify/require"
)

func TestBarBuilderVolumeTriggerS2(t *testing.T) {
	// S2: ticks (price=10,qty=40) then (price=12,qty=60) with a
	// volume_threshold of 100 emit one bar: open=10, high=12, low=10,
	// close=12, volume=100, trade_count=2, vwap=(10*40+12*60)/100.
	b := NewBarBuilder(1, TriggerVolume, 100)

	bar, done := b.Add(data.Tick{Timestamp: 1, Price: 10, Quantity: 40})
	require.False(t, done)
	_ = bar

	bar, done = b.Add(data.Tick{Timestamp: 2, Price: 12, Quantity: 60})
	require.True(t, done)

	require.Equal(t, 10.0, bar.Open)
	require.Equal(t, 12.0, bar.High)
	require.Equal(t, 10.0, bar.Low)
	require.Equal(t, 12.0, bar.Close)
	require.Equal(t, uint64(100), bar.Volume)
	require.Equal(t, uint64(2), bar.TradeCount)
	require.InDelta(t, (10.0*40+12.0*60)/100.0, bar.VWAP, 1e-9)
}

func TestBarBuilderTickCountTrigger(t *testing.T) {
	b := NewBarBuilder(1, TriggerTickCount, 3)
	_, done := b.Add(data.Tick{Timestamp: 1, Price: 10, Quantity: 1})
	require.False(t, done)
	_, done = b.Add(data.Tick{Timestamp: 2, Price: 11, Quantity: 1})
	require.False(t, done)
	bar, done := b.Add(data.Tick{Timestamp: 3, Price: 9, Quantity: 1})
	require.True(t, done)
	require.Equal(t, uint64(3), bar.TradeCount)
	require.Equal(t, 9.0, bar.Low)
}

func TestBarBuilderTimeTriggerStartsNextBarWithBoundaryTick(t *testing.T) {
	b := NewBarBuilder(1, TriggerTime, 1000)
	_, done := b.Add(data.Tick{Timestamp: 0, Price: 10, Quantity: 1})
	require.False(t, done)
	bar, done := b.Add(data.Tick{Timestamp: 1000, Price: 20, Quantity: 1})
	require.True(t, done)
	require.Equal(t, uint64(1), bar.TradeCount, "the boundary-crossing tick opens the next bar")

	closed, ok := b.Flush()
	require.True(t, ok)
	require.Equal(t, 20.0, closed.Open)
}

func TestBarBuilderFlushNoTicksReturnsFalse(t *testing.T) {
	b := NewBarBuilder(1, TriggerVolume, 100)
	_, ok := b.Flush()
	require.False(t, ok)
}
