package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaAllocateWithinBlock(t *testing.T) {
	a := NewSize(256)
	b1 := a.Allocate(64, 8)
	b2 := a.Allocate(64, 8)
	require.Equal(t, 1, a.NumBlocks())
	require.Len(t, b1, 64)
	require.Len(t, b2, 64)
}

func TestArenaGrowsNewBlockWhenExhausted(t *testing.T) {
	a := NewSize(128)
	a.Allocate(100, 1)
	require.Equal(t, 1, a.NumBlocks())
	a.Allocate(64, 1) // doesn't fit in remaining 28 bytes
	require.Equal(t, 2, a.NumBlocks())
}

func TestArenaResetKeepsFirstBlock(t *testing.T) {
	a := NewSize(64)
	a.Allocate(32, 1)
	a.Allocate(64, 1) // forces a second block
	require.Equal(t, 2, a.NumBlocks())

	a.Reset()
	require.Equal(t, 1, a.NumBlocks())
	b := a.Allocate(32, 1)
	require.Len(t, b, 32)
}

func TestArenaAlignment(t *testing.T) {
	a := NewSize(256)
	a.Allocate(1, 1)
	b := a.Allocate(16, 16)
	// After a 1-byte allocation, a 16-byte-aligned request pads the block
	// offset up to 16 and still returns exactly the requested length.
	require.Len(t, b, 16)
}
