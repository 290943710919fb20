// Package paperbroker implements broker.Adapter entirely in-process: orders
// fill immediately against the last market-data price this process has
// seen, with no network call and no real capital at risk. It is the
// adapter live.Engine talks to whenever config.Live.Paper is set, grounded
// on the same "no external dependency at test time" role
// rishavpaul-system-design's order-matching-engine plays for internal/orders.
package paperbroker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// nowFunc lets tests substitute a deterministic clock; production callers
// leave it at its default (wall-clock milliseconds).
type nowFunc func() int64

type openOrder struct {
	brokerID string
	order    orders.Order
}

// Broker is an in-memory paper-trading adapter: SubmitOrder fills a market
// order at the last known price immediately (commissionRate applied flat),
// and records a limit order as open until FeedPrice crosses its limit.
type Broker struct {
	mu sync.Mutex

	connected      bool
	commissionRate float64
	now            nowFunc

	lastPrice map[symbol.ID]float64
	open      map[string]*openOrder
	nextID    int

	execCB     broker.ExecutionCallback
	marketCB   broker.MarketDataCallback
	positionCB broker.PositionCallback

	cash      float64
	positions map[symbol.ID]float64
}

// New returns a Broker seeded with startingCash and a flat commissionRate
// applied per fill (e.g. 0.001 = 10bps).
func New(startingCash, commissionRate float64) *Broker {
	return &Broker{
		commissionRate: commissionRate,
		now:            defaultNow,
		lastPrice:      make(map[symbol.ID]float64),
		open:           make(map[string]*openOrder),
		cash:           startingCash,
		positions:      make(map[symbol.ID]float64),
	}
}

func defaultNow() int64 { return time.Now().UnixMilli() }

func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *Broker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Broker) SubscribeMarketData(symbols []symbol.ID) error   { return nil }
func (b *Broker) UnsubscribeMarketData(symbols []symbol.ID) error { return nil }

// FeedPrice updates the broker's notion of the last traded price for sym
// and attempts to fill any resting limit orders it now crosses. It is the
// broker's only source of prices: a market order for a symbol with no
// FeedPrice call yet is rejected by SubmitOrder.
func (b *Broker) FeedPrice(sym symbol.ID, price float64) {
	b.mu.Lock()
	b.lastPrice[sym] = price
	var toFill []*openOrder
	for _, o := range b.open {
		if o.order.Symbol != sym {
			continue
		}
		if o.order.Type == orders.TypeMarket {
			continue // market orders are never stored as open; SubmitOrder fills them
		}
		crossed := (o.order.Side == orders.SideBuy && price <= o.order.LimitPrice) ||
			(o.order.Side == orders.SideSell && price >= o.order.LimitPrice)
		if crossed {
			toFill = append(toFill, o)
		}
	}
	for _, o := range toFill {
		delete(b.open, o.brokerID)
	}
	b.mu.Unlock()

	for _, o := range toFill {
		b.fill(o.brokerID, o.order, price)
	}
}

func (b *Broker) SubmitOrder(ctx context.Context, o orders.Order) (string, error) {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return "", regimeerr.New(regimeerr.BrokerError, "paperbroker: not connected")
	}
	b.nextID++
	brokerID := fmt.Sprintf("PAPER-%d", b.nextID)
	price, haveMark := b.lastPrice[o.Symbol]
	b.mu.Unlock()

	if o.Type == orders.TypeMarket {
		if !haveMark {
			return "", regimeerr.New(regimeerr.BrokerError, "paperbroker: no price to fill market order against")
		}
		go b.fill(brokerID, o, price)
		return brokerID, nil
	}

	b.mu.Lock()
	b.open[brokerID] = &openOrder{brokerID: brokerID, order: o}
	b.mu.Unlock()
	if b.execCB != nil {
		go b.execCB(broker.ExecutionReport{
			BrokerOrderID: brokerID,
			Symbol:        o.Symbol,
			Status:        broker.StatusNew,
			Timestamp:     0,
		})
	}
	return brokerID, nil
}

func (b *Broker) fill(brokerID string, o orders.Order, price float64) {
	commission := price * o.Quantity * b.commissionRate

	b.mu.Lock()
	signed := o.Quantity * o.Side.Sign()
	b.positions[o.Symbol] += signed
	b.cash -= signed*price + commission
	b.mu.Unlock()

	if b.execCB == nil {
		return
	}
	b.execCB(broker.ExecutionReport{
		BrokerOrderID: brokerID,
		BrokerExecID:  fmt.Sprintf("%s-X1", brokerID),
		Symbol:        o.Symbol,
		Status:        broker.StatusFilled,
		FilledQty:     o.Quantity,
		LastFillQty:   o.Quantity,
		LastFillPrice: price,
		Commission:    commission,
		Timestamp:     0,
	})
}

func (b *Broker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	b.mu.Lock()
	o, ok := b.open[brokerOrderID]
	if ok {
		delete(b.open, brokerOrderID)
	}
	b.mu.Unlock()

	if !ok {
		return regimeerr.New(regimeerr.NotFound, "paperbroker: order not open")
	}
	if b.execCB != nil {
		b.execCB(broker.ExecutionReport{
			BrokerOrderID: brokerOrderID,
			Symbol:        o.order.Symbol,
			Status:        broker.StatusCancelled,
			Timestamp:     0,
		})
	}
	return nil
}

func (b *Broker) ModifyOrder(ctx context.Context, brokerOrderID string, mod orders.Modification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.open[brokerOrderID]
	if !ok {
		return regimeerr.New(regimeerr.NotFound, "paperbroker: order not open")
	}
	if mod.Quantity != nil {
		o.order.Quantity = *mod.Quantity
	}
	if mod.LimitPrice != nil {
		o.order.LimitPrice = *mod.LimitPrice
	}
	if mod.StopPrice != nil {
		o.order.StopPrice = *mod.StopPrice
	}
	return nil
}

func (b *Broker) GetAccountInfo(ctx context.Context) (broker.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	equity := b.cash
	for sym, qty := range b.positions {
		equity += qty * b.lastPrice[sym]
	}
	return broker.AccountInfo{Cash: b.cash, BuyingPower: b.cash, Equity: equity, Currency: "USD"}, nil
}

func (b *Broker) GetPositions(ctx context.Context) ([]broker.PositionInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.PositionInfo, 0, len(b.positions))
	for sym, qty := range b.positions {
		if qty == 0 {
			continue
		}
		out = append(out, broker.PositionInfo{Symbol: sym, Quantity: qty, CurrentPrice: b.lastPrice[sym]})
	}
	return out, nil
}

func (b *Broker) GetOpenOrders(ctx context.Context) ([]broker.OpenOrderReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.OpenOrderReport, 0, len(b.open))
	for _, o := range b.open {
		out = append(out, broker.OpenOrderReport{
			BrokerOrderID: o.brokerID,
			Symbol:        o.order.Symbol,
			Side:          o.order.Side,
			Type:          o.order.Type,
			Quantity:      o.order.Quantity,
			LimitPrice:    o.order.LimitPrice,
			Status:        broker.StatusNew,
		})
	}
	return out, nil
}

func (b *Broker) OnMarketData(cb broker.MarketDataCallback)     { b.marketCB = cb }
func (b *Broker) OnExecutionReport(cb broker.ExecutionCallback) { b.execCB = cb }
func (b *Broker) OnPositionUpdate(cb broker.PositionCallback)   { b.positionCB = cb }

func (b *Broker) RateLimitHints() broker.RateLimitHints {
	return broker.RateLimitHints{MaxOrdersPerSecond: 0, MaxMessagesPerSecond: 0}
}

// Poll is a no-op: SubmitOrder, CancelOrder and FeedPrice fire the paper
// broker's callbacks themselves.
func (b *Broker) Poll(ctx context.Context) error { return nil }
