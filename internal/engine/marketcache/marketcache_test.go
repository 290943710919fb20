package marketcache

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/symbol"
	"github.com/stretchr/testify/require"
)

func TestRecentBarsEvictsPastCapacity(t *testing.T) {
	c := New(3)
	for i := 0; i < 5; i++ {
		c.OnBar(data.Bar{Symbol: 1, Close: float64(i), Open: 1, High: 1, Low: 1})
	}
	bars := c.RecentBars(1, 10)
	require.Len(t, bars, 3)
	require.Equal(t, []float64{2, 3, 4}, []float64{bars[0].Close, bars[1].Close, bars[2].Close})
}

func TestLatestBarCloseImplementsReferencePriceSource(t *testing.T) {
	c := New(10)
	c.OnBar(data.Bar{Symbol: symbol.ID(7), Close: 42})
	px, ok := c.LatestBarClose(7)
	require.True(t, ok)
	require.Equal(t, 42.0, px)

	_, ok = c.LatestBarClose(99)
	require.False(t, ok)
}

func TestLatestTickFallsBackWhenNoBar(t *testing.T) {
	c := New(10)
	c.OnTick(data.Tick{Symbol: 1, Price: 5})
	px, ok := c.LatestTickPrice(1)
	require.True(t, ok)
	require.Equal(t, 5.0, px)
}
