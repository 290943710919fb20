package execution

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	barClose  map[uint32]float64
	tickPrice map[uint32]float64
	book      map[uint32]*data.OrderBook
}

func (f *fakePrices) LatestBarClose(sym uint32) (float64, bool) {
	v, ok := f.barClose[sym]
	return v, ok
}

func (f *fakePrices) LatestTickPrice(sym uint32) (float64, bool) {
	v, ok := f.tickPrice[sym]
	return v, ok
}

func (f *fakePrices) LatestBook(sym uint32) (*data.OrderBook, bool) {
	b, ok := f.book[sym]
	return b, ok
}

func TestSubmitSkipsRejectedOrCancelled(t *testing.T) {
	p := NewPipeline(&fakePrices{barClose: map[uint32]float64{1: 100}})
	o := orders.Order{ID: 1, Symbol: 1, Side: orders.SideBuy, Quantity: 10, Status: orders.StatusCancelled}
	fills, partial, err := p.Submit(o, 0)
	require.NoError(t, err)
	require.Nil(t, fills)
	require.False(t, partial)
}

func TestSubmitUsesBarCloseThenTickThenLimitPrice(t *testing.T) {
	o := orders.Order{ID: 1, Symbol: 1, Side: orders.SideBuy, Quantity: 10, LimitPrice: 50}

	p := NewPipeline(&fakePrices{barClose: map[uint32]float64{1: 100}})
	fills, _, err := p.Submit(o, 0)
	require.NoError(t, err)
	require.Equal(t, 100.0, fills[0].Price)

	p = NewPipeline(&fakePrices{tickPrice: map[uint32]float64{1: 90}})
	fills, _, err = p.Submit(o, 0)
	require.NoError(t, err)
	require.Equal(t, 90.0, fills[0].Price)

	p = NewPipeline(&fakePrices{})
	fills, _, err = p.Submit(o, 0)
	require.NoError(t, err)
	require.Equal(t, 50.0, fills[0].Price)
}

func TestSubmitAppliesImpactAndCommission(t *testing.T) {
	o := orders.Order{ID: 1, Symbol: 1, Side: orders.SideBuy, Quantity: 10}
	p := NewPipeline(&fakePrices{barClose: map[uint32]float64{1: 100}})
	p.Impact = FixedImpact{Bps: 100} // 1%
	p.Commission = PerShareCommission{PerShare: 0.5}

	fills, partial, err := p.Submit(o, 0)
	require.NoError(t, err)
	require.False(t, partial)
	require.Len(t, fills, 1)
	require.InDelta(t, 101.0, fills[0].Price, 1e-9) // buy: price moves up
	require.InDelta(t, 5.0, fills[0].Commission, 1e-9)
}

func TestSubmitSellImpactMovesPriceDown(t *testing.T) {
	o := orders.Order{ID: 1, Symbol: 1, Side: orders.SideSell, Quantity: 10}
	p := NewPipeline(&fakePrices{barClose: map[uint32]float64{1: 100}})
	p.Impact = FixedImpact{Bps: 100}

	fills, _, err := p.Submit(o, 0)
	require.NoError(t, err)
	require.InDelta(t, 99.0, fills[0].Price, 1e-9)
	require.Less(t, fills[0].Quantity, 0.0)
}

func TestSubmitOrderBookDepthWalkPartialFill(t *testing.T) {
	// S3: buy 100 shares against a two-level ask book with 40 and 30 depth.
	book := &data.OrderBook{
		Asks: [10]data.BookLevel{
			{Price: 101, Quantity: 40},
			{Price: 102, Quantity: 30},
		},
	}
	o := orders.Order{ID: 1, Symbol: 1, Side: orders.SideBuy, Quantity: 100}
	p := NewPipeline(&fakePrices{
		barClose: map[uint32]float64{1: 100},
		book:     map[uint32]*data.OrderBook{1: book},
	})

	fills, partial, err := p.Submit(o, 0)
	require.NoError(t, err)
	require.True(t, partial, "70 filled against a 100-share order must be partial")
	require.Len(t, fills, 2)
	require.InDelta(t, 40.0, fills[0].Quantity, 1e-9)
	require.InDelta(t, 101.0, fills[0].Price, 1e-9)
	require.InDelta(t, 30.0, fills[1].Quantity, 1e-9)
	require.InDelta(t, 102.0, fills[1].Price, 1e-9)

	var totalAbs float64
	for _, f := range fills {
		totalAbs += f.Quantity
	}
	require.InDelta(t, 70.0, totalAbs, 1e-9, "book walk conserves quantity across levels")
}

func TestSubmitOrderBookDepthWalkSellUsesBids(t *testing.T) {
	book := &data.OrderBook{
		Bids: [10]data.BookLevel{
			{Price: 99, Quantity: 50},
		},
	}
	o := orders.Order{ID: 1, Symbol: 1, Side: orders.SideSell, Quantity: 20}
	p := NewPipeline(&fakePrices{
		barClose: map[uint32]float64{1: 100},
		book:     map[uint32]*data.OrderBook{1: book},
	})

	fills, partial, err := p.Submit(o, 0)
	require.NoError(t, err)
	require.False(t, partial)
	require.Len(t, fills, 1)
	require.InDelta(t, -20.0, fills[0].Quantity, 1e-9)
	require.InDelta(t, 99.0, fills[0].Price, 1e-9)
}

func TestOrderBookImpactClampsToOppositeDepth(t *testing.T) {
	m := OrderBookImpact{MaxBps: 50}
	book := &data.OrderBook{Asks: [10]data.BookLevel{{Price: 100, Quantity: 10}}}
	o := orders.Order{Side: orders.SideBuy, Quantity: 10}
	require.InDelta(t, 50.0, m.ImpactBps(o, book), 1e-9)

	o2 := orders.Order{Side: orders.SideBuy, Quantity: 5}
	require.InDelta(t, 25.0, m.ImpactBps(o2, book), 1e-9)

	require.InDelta(t, 50.0, m.ImpactBps(o, nil), 1e-9, "no book at all returns max_bps")
}
