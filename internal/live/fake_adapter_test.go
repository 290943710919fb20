package live

import (
	"context"
	"fmt"

	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// fakeAdapter is a minimal broker.Adapter double for manager/engine tests:
// it assigns sequential broker order ids and lets the test drive execution
// reports directly through execCB.
type fakeAdapter struct {
	connected  bool
	nextBroker int
	submitted  []orders.Order
	cancelled  []string
	openOrders []broker.OpenOrderReport

	execCB     broker.ExecutionCallback
	marketCB   broker.MarketDataCallback
	positionCB broker.PositionCallback

	submitErr error
	cancelErr error
}

func newFakeAdapter() *fakeAdapter { return &fakeAdapter{} }

func (f *fakeAdapter) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeAdapter) Disconnect() error                 { f.connected = false; return nil }
func (f *fakeAdapter) IsConnected() bool                 { return f.connected }

func (f *fakeAdapter) SubscribeMarketData(symbols []symbol.ID) error   { return nil }
func (f *fakeAdapter) UnsubscribeMarketData(symbols []symbol.ID) error { return nil }

func (f *fakeAdapter) SubmitOrder(ctx context.Context, o orders.Order) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextBroker++
	f.submitted = append(f.submitted, o)
	return brokerID(f.nextBroker), nil
}

func (f *fakeAdapter) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, brokerOrderID)
	return nil
}

func (f *fakeAdapter) ModifyOrder(ctx context.Context, brokerOrderID string, mod orders.Modification) error {
	return nil
}

func (f *fakeAdapter) GetAccountInfo(ctx context.Context) (broker.AccountInfo, error) {
	return broker.AccountInfo{}, nil
}

func (f *fakeAdapter) GetPositions(ctx context.Context) ([]broker.PositionInfo, error) {
	return nil, nil
}

func (f *fakeAdapter) GetOpenOrders(ctx context.Context) ([]broker.OpenOrderReport, error) {
	return f.openOrders, nil
}

func (f *fakeAdapter) OnMarketData(cb broker.MarketDataCallback)     { f.marketCB = cb }
func (f *fakeAdapter) OnExecutionReport(cb broker.ExecutionCallback) { f.execCB = cb }
func (f *fakeAdapter) OnPositionUpdate(cb broker.PositionCallback)   { f.positionCB = cb }

func (f *fakeAdapter) RateLimitHints() broker.RateLimitHints { return broker.RateLimitHints{} }

func (f *fakeAdapter) Poll(ctx context.Context) error { return nil }

func brokerID(n int) string {
	return fmt.Sprintf("BRK-%d", n)
}
