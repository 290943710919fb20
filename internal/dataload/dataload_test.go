package dataload

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/databuild"
	"github.com/regimeflow/regimeflow/internal/mmapfile"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

func TestLoadReadsBarsAndTicksPerSymbol(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, mmapfile.WriteBars(filepath.Join(dir, "AAPL.bars.rgf"), "AAPL", 0, 60000, []data.Bar{
		{Timestamp: clock.Timestamp(1000), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Timestamp: clock.Timestamp(2000), Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 150},
	}))
	require.NoError(t, mmapfile.WriteTicks(filepath.Join(dir, "AAPL.ticks.rgf"), "AAPL", []data.Tick{
		{Timestamp: clock.Timestamp(1500), Price: 10.75, Quantity: 5},
	}))
	require.NoError(t, mmapfile.WriteBars(filepath.Join(dir, "MSFT.bars.rgf"), "MSFT", 0, 60000, []data.Bar{
		{Timestamp: clock.Timestamp(1000), Open: 200, High: 205, Low: 199, Close: 202, Volume: 50},
	}))

	reg := symbol.New()
	set, err := Load(dir, []string{"AAPL", "MSFT"}, reg, AggregateConfig{})
	require.NoError(t, err)
	defer set.Close()

	require.NotNil(t, set.Bars)
	require.NotNil(t, set.Ticks)
	require.Nil(t, set.Books)

	var bars []data.Bar
	for {
		b, ok := set.Bars.Next()
		if !ok {
			break
		}
		bars = append(bars, b)
	}
	require.Len(t, bars, 3)

	tick, ok := set.Ticks.Next()
	require.True(t, ok)
	require.Equal(t, 10.75, tick.Price)
	_, ok = set.Ticks.Next()
	require.False(t, ok)
}

func TestLoadSkipsSymbolWithNoFiles(t *testing.T) {
	dir := t.TempDir()
	reg := symbol.New()
	set, err := Load(dir, []string{"GHOST"}, reg, AggregateConfig{})
	require.NoError(t, err)
	defer set.Close()

	require.Nil(t, set.Bars)
	require.Nil(t, set.Ticks)
	require.Nil(t, set.Books)
}

func TestLoadAggregatesBarsFromTicksWhenNoBarsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, mmapfile.WriteTicks(filepath.Join(dir, "TSLA.ticks.rgf"), "TSLA", []data.Tick{
		{Timestamp: clock.Timestamp(1), Price: 100, Quantity: 10},
		{Timestamp: clock.Timestamp(2), Price: 105, Quantity: 10},
		{Timestamp: clock.Timestamp(3), Price: 95, Quantity: 10},
	}))

	reg := symbol.New()
	set, err := Load(dir, []string{"TSLA"}, reg, AggregateConfig{Enabled: true, Trigger: databuild.TriggerTickCount, Threshold: 2})
	require.NoError(t, err)
	defer set.Close()

	require.NotNil(t, set.Bars)
	bar, ok := set.Bars.Next()
	require.True(t, ok)
	require.Equal(t, 100.0, bar.Open)
	require.Equal(t, 105.0, bar.High)
	require.Equal(t, uint64(2), bar.TradeCount)
}

func TestLoadWithoutAggregationLeavesTicksOnlySymbolBarless(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, mmapfile.WriteTicks(filepath.Join(dir, "TSLA.ticks.rgf"), "TSLA", []data.Tick{
		{Timestamp: clock.Timestamp(1), Price: 100, Quantity: 10},
	}))

	reg := symbol.New()
	set, err := Load(dir, []string{"TSLA"}, reg, AggregateConfig{})
	require.NoError(t, err)
	defer set.Close()

	require.Nil(t, set.Bars)
	require.NotNil(t, set.Ticks)
}
