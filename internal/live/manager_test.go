package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
)

func TestSubmitOrderRecordsPendingNew(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter)

	var updates []broker.Status
	m.OnOrderUpdate(func(o broker.Order) { updates = append(updates, o.LiveStatus) })

	id, err := m.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Side: orders.SideBuy, Quantity: 10}, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.Equal(t, []broker.Status{broker.StatusPendingNew}, updates)

	o, ok := m.GetOrder(id)
	require.True(t, ok)
	require.Equal(t, "BRK-1", o.BrokerOrderID)
}

func TestSubmitOrderValidation(t *testing.T) {
	m := NewManager(newFakeAdapter())
	_, err := m.SubmitOrder(context.Background(), orders.Order{Symbol: 0, Quantity: 10}, 0)
	require.Error(t, err)

	_, err = m.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Quantity: 0}, 0)
	require.Error(t, err)
}

func TestSubmitOrderPropagatesBrokerError(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.submitErr = regimeerr.New(regimeerr.BrokerError, "broker unreachable")
	m := NewManager(adapter)

	_, err := m.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Quantity: 10}, 0)
	require.Error(t, err)
}

func TestHandleExecutionReportAppliesFillsAndAveragesPrice(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter)

	id, err := m.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Side: orders.SideBuy, Quantity: 10}, 0)
	require.NoError(t, err)
	o, _ := m.GetOrder(id)

	var execs []broker.ExecutionReport
	m.OnExecution(func(r broker.ExecutionReport) { execs = append(execs, r) })

	adapter.execCB(broker.ExecutionReport{
		BrokerOrderID: o.BrokerOrderID,
		Status:        broker.StatusNew,
		Timestamp:     1,
	})
	adapter.execCB(broker.ExecutionReport{
		BrokerOrderID: o.BrokerOrderID,
		Status:        broker.StatusPartiallyFilled,
		FilledQty:     4,
		LastFillQty:   4,
		LastFillPrice: 100,
		Timestamp:     2,
	})
	adapter.execCB(broker.ExecutionReport{
		BrokerOrderID: o.BrokerOrderID,
		Status:        broker.StatusFilled,
		FilledQty:     10,
		LastFillQty:   6,
		LastFillPrice: 102,
		Timestamp:     3,
	})

	require.Len(t, execs, 3)

	final, ok := m.GetOrder(id)
	require.True(t, ok)
	require.Equal(t, broker.StatusFilled, final.LiveStatus)
	require.Equal(t, 10.0, final.FilledQuantity)
	require.InDelta(t, (100*4+102*6)/10.0, final.AvgFillPrice, 1e-9)
	require.Equal(t, clock.Timestamp(3), final.FilledAt)
}

func TestHandleExecutionReportInvalidTransitionSetsError(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter)

	id, err := m.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Quantity: 10}, 0)
	require.NoError(t, err)
	o, _ := m.GetOrder(id)

	// Filled is reachable directly from PendingNew, but New is not reachable
	// from Filled, so driving Filled then New should error.
	adapter.execCB(broker.ExecutionReport{BrokerOrderID: o.BrokerOrderID, Status: broker.StatusFilled, Timestamp: 1})
	adapter.execCB(broker.ExecutionReport{BrokerOrderID: o.BrokerOrderID, Status: broker.StatusNew, Timestamp: 2})

	final, ok := m.GetOrder(id)
	require.True(t, ok)
	require.Equal(t, broker.StatusError, final.LiveStatus)
	require.Equal(t, "Invalid transition from Filled to New", final.ErrorMessage)
}

func TestReconcileWithBrokerSynthesizesUnknownOrders(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter)

	adapter.openOrders = []broker.OpenOrderReport{
		{BrokerOrderID: "BRK-EXT-1", Symbol: 2, Side: orders.SideBuy, Quantity: 5, Status: broker.StatusNew},
	}
	require.NoError(t, m.ReconcileWithBroker(context.Background(), 10))

	open := m.OpenOrders()
	require.Len(t, open, 1)
	require.Equal(t, "BRK-EXT-1", open[0].BrokerOrderID)
}

func TestReconcileWithBrokerIsIdempotent(t *testing.T) {
	adapter := newFakeAdapter()
	m := NewManager(adapter)
	adapter.openOrders = []broker.OpenOrderReport{
		{BrokerOrderID: "BRK-EXT-1", Symbol: 2, Side: orders.SideBuy, Quantity: 5, Status: broker.StatusNew},
	}
	require.NoError(t, m.ReconcileWithBroker(context.Background(), 10))
	first := m.OpenOrders()

	require.NoError(t, m.ReconcileWithBroker(context.Background(), 11))
	second := m.OpenOrders()

	require.Equal(t, len(first), len(second))
	require.Equal(t, first[0].BrokerOrderID, second[0].BrokerOrderID)
}

func TestCancelOrderNotFound(t *testing.T) {
	m := NewManager(newFakeAdapter())
	require.Error(t, m.CancelOrder(context.Background(), 999))
}
