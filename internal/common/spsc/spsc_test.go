package spsc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingFIFOAndCapacity(t *testing.T) {
	r := NewRing[int](4)
	require.Equal(t, 4, r.Cap())
	require.True(t, r.Empty())

	require.True(t, r.Push(1))
	require.True(t, r.Push(2))
	require.True(t, r.Push(3))
	require.True(t, r.Push(4))
	require.True(t, r.Full())
	require.False(t, r.Push(5), "push must fail when full")

	v, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.True(t, r.Push(5), "push succeeds once a slot frees up")

	for _, want := range []int{2, 3, 4, 5} {
		got, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok = r.Pop()
	require.False(t, ok, "pop must fail when empty")
}

func TestRingKeepsExactCapacity(t *testing.T) {
	r := NewRing[int](5)
	require.Equal(t, 5, r.Cap())
}
