package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct {
	N int
}

func TestPoolGetPutReusesSlots(t *testing.T) {
	p := New[widget]()
	w := p.Get()
	w.N = 42
	p.Put(w)

	w2 := p.Get()
	require.Equal(t, 0, w2.N, "recycled slot must come back zeroed")
}

func TestPoolGrowsGeometrically(t *testing.T) {
	p := New[widget]()
	require.Equal(t, InitialChunkSize, p.chunkSize)

	for i := 0; i < InitialChunkSize; i++ {
		p.Get()
	}
	// the first chunk is now fully handed out, and its grow() already
	// doubled chunkSize for the next refill.
	require.Empty(t, p.free)
	require.Equal(t, InitialChunkSize*2, p.chunkSize)

	p.Get()
	require.Equal(t, InitialChunkSize*4, p.chunkSize)
}
