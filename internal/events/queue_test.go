package events

import (
	"sync"
	"testing"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdersByTimestampPriorityThenSequence(t *testing.T) {
	q := NewQueue()

	// S1: three events at the same timestamp, default priorities per type.
	q.Push(NewOrderEvent(1000, OrderSubmitted, 1))
	q.Push(NewMarketEvent(1000, 7, MarketBar))
	q.Push(NewSystemEvent(1000, SystemBacktestStart))

	first, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, TypeSystem, first.Type)

	second, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, TypeMarket, second.Type)

	third, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, TypeOrder, third.Type)

	require.True(t, q.Empty())
}

func TestQueueSequenceMonotonicAcrossConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(NewMarketEvent(0, 1, MarketTick))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, producers*perProducer, q.Size())

	seen := make(map[uint64]bool)
	var lastSeq uint64
	first := true
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		require.False(t, seen[e.Sequence], "duplicate sequence %d", e.Sequence)
		seen[e.Sequence] = true
		if !first {
			require.Greater(t, e.Sequence, lastSeq, "equal (ts,priority) events must pop in sequence order")
		}
		first = false
		lastSeq = e.Sequence
	}
	require.Len(t, seen, producers*perProducer)
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	q := NewQueue()
	q.Push(NewMarketEvent(5, 2, MarketBar))

	peeked, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, clock.Timestamp(5), peeked.Timestamp)
	require.Equal(t, 1, q.Size())

	popped, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, peeked.Sequence, popped.Sequence)
	require.True(t, q.Empty())
}
