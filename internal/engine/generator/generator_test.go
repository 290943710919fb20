package generator

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/events"
	"github.com/regimeflow/regimeflow/internal/symbol"
	"github.com/stretchr/testify/require"
)

type sliceBars struct {
	items []data.Bar
	i     int
}

func (s *sliceBars) Next() (data.Bar, bool) {
	if s.i >= len(s.items) {
		return data.Bar{}, false
	}
	b := s.items[s.i]
	s.i++
	return b, true
}

type sliceTicks struct {
	items []data.Tick
	i     int
}

func (s *sliceTicks) Next() (data.Tick, bool) {
	if s.i >= len(s.items) {
		return data.Tick{}, false
	}
	tk := s.items[s.i]
	s.i++
	return tk, true
}

func TestEnqueueAllOrdersDeterministicallyAcrossStreams(t *testing.T) {
	bars := &sliceBars{items: []data.Bar{
		{Timestamp: 1000, Symbol: symbol.ID(1), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: 3000, Symbol: symbol.ID(1), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}}
	ticks := &sliceTicks{items: []data.Tick{
		{Timestamp: 2000, Symbol: symbol.ID(1), Price: 1, Quantity: 1},
	}}

	g := New(bars, ticks, nil, Config{})
	q := events.NewQueue()
	require.NoError(t, g.EnqueueAll(q))

	var got []clock.Timestamp
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, e.Timestamp)
	}
	require.Equal(t, []clock.Timestamp{1000, 2000, 3000}, got)
}

func TestEnqueueAllSynthesizesDayBoundaries(t *testing.T) {
	day1 := clock.Timestamp(0)
	day2 := day1.Add(25 * clock.Hour)
	bars := &sliceBars{items: []data.Bar{
		{Timestamp: day1, Symbol: 1, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: day2, Symbol: 1, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}}

	g := New(bars, nil, nil, Config{EmitStartOfDay: true, EmitEndOfDay: true})
	q := events.NewQueue()
	require.NoError(t, g.EnqueueAll(q))

	var subKinds []events.MarketSubKind
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		subKinds = append(subKinds, e.Market.SubKind)
	}
	require.Equal(t, []events.MarketSubKind{
		events.MarketDayStart, events.MarketBar, events.MarketDayEnd,
		events.MarketDayStart, events.MarketBar, events.MarketDayEnd,
	}, subKinds)
}

func TestEnqueueAllSynthesizesRegimeCheckTimers(t *testing.T) {
	bars := &sliceBars{items: []data.Bar{
		{Timestamp: 0, Symbol: 1, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: 3000, Symbol: 1, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
	}}

	g := New(bars, nil, nil, Config{EmitRegimeCheck: true, RegimeCheckInterval: 1000})
	q := events.NewQueue()
	require.NoError(t, g.EnqueueAll(q))

	var timers int
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		if e.Market.SubKind == events.MarketTimer {
			timers++
		}
	}
	require.Equal(t, 4, timers) // ts = 0, 1000, 2000, 3000
}
