package dispatcher

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/events"
	"github.com/stretchr/testify/require"
)

func TestDispatchRoutesByType(t *testing.T) {
	var got []string
	d := New(
		func(events.Event) error { got = append(got, "market"); return nil },
		func(events.Event) error { got = append(got, "order"); return nil },
		func(events.Event) error { got = append(got, "system"); return nil },
		func(events.Event) error { got = append(got, "user"); return nil },
	)

	require.NoError(t, d.Dispatch(events.Event{Type: events.TypeMarket}))
	require.NoError(t, d.Dispatch(events.Event{Type: events.TypeOrder}))
	require.NoError(t, d.Dispatch(events.Event{Type: events.TypeSystem}))
	require.NoError(t, d.Dispatch(events.Event{Type: events.TypeUser}))

	require.Equal(t, []string{"market", "order", "system", "user"}, got)
}

func TestDispatchNilSlotIsNoOp(t *testing.T) {
	d := New(nil, nil, nil, nil)
	require.NoError(t, d.Dispatch(events.Event{Type: events.TypeMarket}))
}
