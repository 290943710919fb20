package portfolio

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/symbol"
	"github.com/stretchr/testify/require"
)

func TestUpdatePositionRealizedPnLOnCross(t *testing.T) {
	// S4: start flat; fill +10 @ 100; fill -15 @ 110.
	p := New(100000, "USD")

	p.UpdatePosition(orders.Fill{Symbol: 1, Quantity: 10, Price: 100, Timestamp: 1})
	pos, ok := p.Position(1)
	require.True(t, ok)
	require.Equal(t, 10.0, pos.Quantity)
	require.Equal(t, 100.0, pos.AvgCost)

	p.UpdatePosition(orders.Fill{Symbol: 1, Quantity: -15, Price: 110, Timestamp: 2})
	pos, ok = p.Position(1)
	require.True(t, ok)
	require.Equal(t, -5.0, pos.Quantity)
	require.Equal(t, 110.0, pos.AvgCost)

	realized, _ := p.RealizedPnL().Float64()
	require.InDelta(t, 100.0, realized, 1e-9)
}

func TestUpdatePositionCashInvariant(t *testing.T) {
	p := New(10000, "USD")
	before, _ := p.Cash().Float64()

	p.UpdatePosition(orders.Fill{Symbol: 1, Quantity: 5, Price: 20, Commission: 1})
	after, _ := p.Cash().Float64()

	require.InDelta(t, before-(5*20+1), after, 1e-9)
}

func TestUpdatePositionLandingExactlyAtZeroResetsAvgCost(t *testing.T) {
	p := New(10000, "USD")
	p.UpdatePosition(orders.Fill{Symbol: 1, Quantity: 10, Price: 50})
	p.UpdatePosition(orders.Fill{Symbol: 1, Quantity: -10, Price: 55})

	pos, ok := p.Position(1)
	require.True(t, ok)
	require.Equal(t, 0.0, pos.Quantity)
	require.Equal(t, 0.0, pos.AvgCost)

	realized, _ := p.RealizedPnL().Float64()
	require.InDelta(t, 10*(55.0-50.0), realized, 1e-9)
}

func TestMarkToMarketRecomputesEquityAndLeverage(t *testing.T) {
	p := New(1000, "USD")
	p.UpdatePosition(orders.Fill{Symbol: 1, Quantity: 10, Price: 10})

	var snaps []Snapshot
	p.OnEquityUpdate(func(s Snapshot) { snaps = append(snaps, s) })
	p.MarkToMarket(1, 20, 5)

	require.Len(t, snaps, 1)
	equity, _ := snaps[0].Equity.Float64()
	// cash after buying 10@10 = 1000-100=900; position now worth 10*20=200
	require.InDelta(t, 1100.0, equity, 1e-9)
	require.Greater(t, snaps[0].Leverage, 0.0)
}

func TestReplacePositionsAtomicSwap(t *testing.T) {
	p := New(1000, "USD")
	p.UpdatePosition(orders.Fill{Symbol: 1, Quantity: 5, Price: 10})

	p.ReplacePositions(map[symbol.ID]Position{
		2: {Symbol: 2, Quantity: 3, AvgCost: 7, CurrentPrice: 7},
	}, 9)

	_, ok := p.Position(1)
	require.False(t, ok, "replace must drop positions not present in the new set")

	pos, ok := p.Position(2)
	require.True(t, ok)
	require.Equal(t, 3.0, pos.Quantity)
}
