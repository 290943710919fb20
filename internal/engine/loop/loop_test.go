package loop

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/regimeflow/regimeflow/internal/engine/dispatcher"
	"github.com/regimeflow/regimeflow/internal/events"
	"github.com/stretchr/testify/require"
)

func TestRunProcessesUntilEmpty(t *testing.T) {
	q := events.NewQueue()
	q.Push(events.NewSystemEvent(1, events.SystemBacktestStart))
	q.Push(events.NewMarketEvent(2, 1, events.MarketBar))

	var dispatched []uint64
	d := dispatcher.New(
		func(e events.Event) error { dispatched = append(dispatched, uint64(e.Timestamp)); return nil },
		nil,
		func(e events.Event) error { dispatched = append(dispatched, uint64(e.Timestamp)); return nil },
		nil,
	)
	l := New(q, d, zerolog.Nop())
	l.Run()

	require.Equal(t, []uint64{1, 2}, dispatched)
	require.Equal(t, uint64(2), l.Processed())
}

func TestStopHaltsBeforeNextIteration(t *testing.T) {
	q := events.NewQueue()
	q.Push(events.NewMarketEvent(1, 1, events.MarketBar))
	q.Push(events.NewMarketEvent(2, 1, events.MarketBar))
	q.Push(events.NewMarketEvent(3, 1, events.MarketBar))

	var l *Loop
	d := dispatcher.New(
		func(e events.Event) error {
			if e.Timestamp == 2 {
				l.Stop()
			}
			return nil
		},
		nil, nil, nil,
	)
	l = New(q, d, zerolog.Nop())
	l.Run()

	require.Equal(t, uint64(2), l.Processed())
}

func TestRunUntilStopsAtTimestampBoundary(t *testing.T) {
	q := events.NewQueue()
	q.Push(events.NewMarketEvent(1, 1, events.MarketBar))
	q.Push(events.NewMarketEvent(5, 1, events.MarketBar))
	q.Push(events.NewMarketEvent(10, 1, events.MarketBar))

	d := dispatcher.New(func(events.Event) error { return nil }, nil, nil, nil)
	l := New(q, d, zerolog.Nop())
	l.RunUntil(5)

	require.Equal(t, uint64(2), l.Processed())
	require.Equal(t, 1, q.Size())
}

func TestStepReturnsFalseWhenEmpty(t *testing.T) {
	q := events.NewQueue()
	d := dispatcher.New(nil, nil, nil, nil)
	l := New(q, d, zerolog.Nop())
	require.False(t, l.Step())
}

func TestPrePostHooksRunAroundDispatch(t *testing.T) {
	q := events.NewQueue()
	q.Push(events.NewMarketEvent(1, 1, events.MarketBar))

	var order []string
	d := dispatcher.New(func(events.Event) error { order = append(order, "dispatch"); return nil }, nil, nil, nil)
	l := New(q, d, zerolog.Nop())
	l.OnPreHook(func(events.Event) { order = append(order, "pre") })
	l.OnPostHook(func(events.Event) { order = append(order, "post") })
	l.Run()

	require.Equal(t, []string{"pre", "dispatch", "post"}, order)
}
