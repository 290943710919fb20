// Package mqbroker decorates a broker.Adapter so market data arrives over
// a durable internal/live/mq.Adapter (e.g. redismq's Redis Streams
// consumer group) instead of the underlying adapter's own feed, per §6's
// message-queue bridge: a restarted consumer resumes from its last acked
// stream entry rather than missing ticks published while it was down.
// Order entry, account/position queries, and execution reports still go
// straight through the underlying adapter — only market data is bridged.
package mqbroker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/live/codec"
	"github.com/regimeflow/regimeflow/internal/live/mq"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Broker wraps underlying, replacing its market-data path with queue.
type Broker struct {
	underlying broker.Adapter
	queue      mq.Adapter
	reg        *symbol.Registry
	log        zerolog.Logger

	marketCB broker.MarketDataCallback
}

// New returns a Broker bridging underlying's order entry/account surface
// to market data delivered through queue, decoded with codec and
// interned through reg.
func New(underlying broker.Adapter, queue mq.Adapter, reg *symbol.Registry, log zerolog.Logger) *Broker {
	return &Broker{
		underlying: underlying,
		queue:      queue,
		reg:        reg,
		log:        log.With().Str("component", "mqbroker").Logger(),
	}
}

// Connect connects the underlying adapter first (order entry must work
// even if the queue is briefly unavailable is out of scope for this
// minimal bridge), then the message queue, then subscribes dispatch to it.
func (b *Broker) Connect(ctx context.Context) error {
	if err := b.underlying.Connect(ctx); err != nil {
		return err
	}
	if err := b.queue.Connect(ctx); err != nil {
		return err
	}
	return b.queue.Subscribe(ctx, b.dispatch)
}

func (b *Broker) Disconnect() error {
	_ = b.queue.Close()
	return b.underlying.Disconnect()
}

func (b *Broker) IsConnected() bool { return b.underlying.IsConnected() }

// SubscribeMarketData is a no-op: the queue already delivers every
// published update to every subscriber in its consumer group, so there is
// no per-symbol subscription to request. Symbol-level filtering, if
// needed, belongs upstream of the queue (at the publisher).
func (b *Broker) SubscribeMarketData(symbols []symbol.ID) error   { return nil }
func (b *Broker) UnsubscribeMarketData(symbols []symbol.ID) error { return nil }

func (b *Broker) SubmitOrder(ctx context.Context, o orders.Order) (string, error) {
	return b.underlying.SubmitOrder(ctx, o)
}

func (b *Broker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return b.underlying.CancelOrder(ctx, brokerOrderID)
}

func (b *Broker) ModifyOrder(ctx context.Context, brokerOrderID string, mod orders.Modification) error {
	return b.underlying.ModifyOrder(ctx, brokerOrderID, mod)
}

func (b *Broker) GetAccountInfo(ctx context.Context) (broker.AccountInfo, error) {
	return b.underlying.GetAccountInfo(ctx)
}

func (b *Broker) GetPositions(ctx context.Context) ([]broker.PositionInfo, error) {
	return b.underlying.GetPositions(ctx)
}

func (b *Broker) GetOpenOrders(ctx context.Context) ([]broker.OpenOrderReport, error) {
	return b.underlying.GetOpenOrders(ctx)
}

// OnMarketData registers the callback dispatch feeds from queue lines,
// instead of forwarding to the underlying adapter's own market-data path.
func (b *Broker) OnMarketData(cb broker.MarketDataCallback) { b.marketCB = cb }

func (b *Broker) OnExecutionReport(cb broker.ExecutionCallback) { b.underlying.OnExecutionReport(cb) }
func (b *Broker) OnPositionUpdate(cb broker.PositionCallback)   { b.underlying.OnPositionUpdate(cb) }

func (b *Broker) RateLimitHints() broker.RateLimitHints { return b.underlying.RateLimitHints() }

func (b *Broker) Poll(ctx context.Context) error { return b.underlying.Poll(ctx) }

// dispatch decodes one queue line and, if it's a market-data line, hands
// the decoded tick to marketCB.
func (b *Broker) dispatch(line string) {
	m, err := codec.Decode(line)
	if err != nil {
		b.log.Warn().Err(err).Str("line", line).Msg("mqbroker: undecodable line")
		return
	}
	if m.Topic != codec.TopicMD {
		b.log.Debug().Str("topic", string(m.Topic)).Msg("mqbroker: unexpected non-market topic")
		return
	}
	wireTick, err := codec.DecodeTick(m)
	if err != nil {
		b.log.Warn().Err(err).Msg("mqbroker: bad MD line")
		return
	}
	if b.marketCB != nil {
		b.marketCB(data.Tick{
			Timestamp: clock.Timestamp(wireTick.Timestamp),
			Symbol:    b.reg.Intern(wireTick.Symbol),
			Price:     wireTick.Price,
			Quantity:  wireTick.Quantity,
		})
	}
}
