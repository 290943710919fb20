package bookcache

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/stretchr/testify/require"
)

func TestOnBookThenLatest(t *testing.T) {
	c := New()
	_, ok := c.Latest(1)
	require.False(t, ok)

	c.OnBook(data.OrderBook{Symbol: 1, Bids: [10]data.BookLevel{{Price: 99, Quantity: 5}}})
	b, ok := c.Latest(1)
	require.True(t, ok)
	require.Equal(t, 99.0, b.Bids[0].Price)
}

func TestLatestBookReturnsNilForUnknownSymbol(t *testing.T) {
	c := New()
	book, ok := c.LatestBook(5)
	require.False(t, ok)
	require.Nil(t, book)
}
