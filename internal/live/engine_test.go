package live

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/config"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/portfolio"
)

func newTestEngine(cfg config.LiveConfig) (*Engine, *fakeAdapter) {
	adapter := newFakeAdapter()
	pf := portfolio.New(100_000, "USD")
	e := New(cfg, adapter, pf, zerolog.Nop())
	return e, adapter
}

func TestEngineSubmitOrderHappyPath(t *testing.T) {
	e, adapter := newTestEngine(config.LiveConfig{})
	id, err := e.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Side: orders.SideBuy, Quantity: 10})
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Len(t, adapter.submitted, 1)
}

func TestEngineSubmitOrderRejectsOverMaxOrderValue(t *testing.T) {
	e, _ := newTestEngine(config.LiveConfig{MaxOrderValue: 100})
	_, err := e.SubmitOrder(context.Background(), orders.Order{
		Symbol: 1, Side: orders.SideBuy, Type: orders.TypeLimit, Quantity: 10, LimitPrice: 50,
	})
	require.Error(t, err)
}

func TestEngineSubmitOrderRespectsRateLimit(t *testing.T) {
	e, _ := newTestEngine(config.LiveConfig{MaxOrdersPerSecond: 1})
	_, err := e.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Side: orders.SideBuy, Quantity: 1})
	require.NoError(t, err)

	_, err = e.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Side: orders.SideBuy, Quantity: 1})
	require.Error(t, err)
}

func TestEngineSubmitOrderBlockedByKillSwitch(t *testing.T) {
	e, _ := newTestEngine(config.LiveConfig{DailyLossLimit: 10})
	e.kill.StartDay(1000)
	e.mu.Lock()
	e.equity = 900 // a 100 loss against a 10 limit trips it
	e.mu.Unlock()
	require.Error(t, e.kill.Check(e.currentEquity()))

	_, err := e.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Side: orders.SideBuy, Quantity: 1})
	require.Error(t, err)
}

func TestEngineFillUpdatesPortfolioWithSignedQuantity(t *testing.T) {
	e, adapter := newTestEngine(config.LiveConfig{})
	id, err := e.SubmitOrder(context.Background(), orders.Order{Symbol: 1, Side: orders.SideSell, Quantity: 10})
	require.NoError(t, err)
	o, ok := e.manager.GetOrder(id)
	require.True(t, ok)

	adapter.execCB(broker.ExecutionReport{
		BrokerOrderID: o.BrokerOrderID,
		Status:        broker.StatusFilled,
		FilledQty:     10,
		LastFillQty:   10,
		LastFillPrice: 50,
		Timestamp:     1,
	})

	pos, ok := e.portfolio.Position(1)
	require.True(t, ok)
	require.Equal(t, -10.0, pos.Quantity)
}

func TestEngineDrainMarketUpdatesCachesAndMarksPortfolio(t *testing.T) {
	e, adapter := newTestEngine(config.LiveConfig{})
	adapter.marketCB(data.Tick{Symbol: 1, Price: 25, Timestamp: 1})
	e.drainMarket()

	tick, ok := e.market.LatestTick(1)
	require.True(t, ok)
	require.Equal(t, 25.0, tick.Price)
}

func TestEngineMarketQueueOverflowEmitsAlert(t *testing.T) {
	e, adapter := newTestEngine(config.LiveConfig{})
	for i := 0; i < marketQueueCapacity+1; i++ {
		adapter.marketCB(data.Tick{Symbol: 1, Price: float64(i), Timestamp: clock.Timestamp(i)})
	}

	alerts := e.alerts.Recent()
	require.NotEmpty(t, alerts)
	require.Equal(t, AlertMarketQueueOverflow, alerts[len(alerts)-1].Kind)
}

func TestEngineStartConnectsAndStopShutsDownCleanly(t *testing.T) {
	e, adapter := newTestEngine(config.LiveConfig{})
	require.NoError(t, e.Start(context.Background()))
	require.True(t, adapter.IsConnected())

	require.NoError(t, e.Stop())
	require.False(t, adapter.IsConnected())
}

func TestEngineDashboardSnapshotReflectsState(t *testing.T) {
	e, _ := newTestEngine(config.LiveConfig{})
	snap := e.GetDashboardSnapshot()
	require.True(t, snap.TradingEnabled)
	require.Equal(t, 0, snap.OpenOrders)
}
