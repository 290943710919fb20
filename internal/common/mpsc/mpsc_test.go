package mpsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFOSingleProducer(t *testing.T) {
	q := New[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	for i := 0; i < 10; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestQueueConcurrentProducersNoLoss(t *testing.T) {
	q := New[int]()
	const producers = 16
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		require.False(t, seen[v])
		seen[v] = true
	}
	require.Len(t, seen, producers*perProducer)
}
