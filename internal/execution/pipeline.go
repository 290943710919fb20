package execution

import (
	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/orders"
)

// ReferencePriceSource supplies the latest known price for a symbol,
// checked in order: bar close, then tick price. A Pipeline without a
// registered source falls back to the order's own limit price.
type ReferencePriceSource interface {
	LatestBarClose(sym uint32) (float64, bool)
	LatestTickPrice(sym uint32) (float64, bool)
	LatestBook(sym uint32) (*data.OrderBook, bool)
}

// Pipeline composes the execution, commission, cost, impact, and latency
// models into the §4.6 on_order_submitted algorithm. Zero-value fields
// default to the Zero* models so a Pipeline{} is usable out of the box.
type Pipeline struct {
	Prices     ReferencePriceSource
	Exec       Model
	Commission CommissionModel
	Cost       TransactionCostModel
	Impact     ImpactModel
	Latency    LatencyModel
}

// NewPipeline returns a Pipeline wired to every default zero-effect model.
func NewPipeline(prices ReferencePriceSource) *Pipeline {
	return &Pipeline{
		Prices:     prices,
		Exec:       ZeroModel{},
		Commission: ZeroCommission{},
		Cost:       ZeroCost{},
		Impact:     ZeroImpact{},
		Latency:    ZeroLatency{},
	}
}

func (p *Pipeline) models() (Model, CommissionModel, TransactionCostModel, ImpactModel, LatencyModel) {
	exec, commission, cost, impact, latency := p.Exec, p.Commission, p.Cost, p.Impact, p.Latency
	if exec == nil {
		exec = ZeroModel{}
	}
	if commission == nil {
		commission = ZeroCommission{}
	}
	if cost == nil {
		cost = ZeroCost{}
	}
	if impact == nil {
		impact = ZeroImpact{}
	}
	if latency == nil {
		latency = ZeroLatency{}
	}
	return exec, commission, cost, impact, latency
}

// referencePrice computes ref_price per step 2: latest bar close, else
// latest tick price, else the order's limit price.
func (p *Pipeline) referencePrice(o orders.Order) (float64, bool) {
	if p.Prices != nil {
		if px, ok := p.Prices.LatestBarClose(uint32(o.Symbol)); ok {
			return px, true
		}
		if px, ok := p.Prices.LatestTickPrice(uint32(o.Symbol)); ok {
			return px, true
		}
	}
	if o.LimitPrice > 0 {
		return o.LimitPrice, true
	}
	return 0, false
}

func (p *Pipeline) book(o orders.Order) *data.OrderBook {
	if p.Prices == nil {
		return nil
	}
	book, ok := p.Prices.LatestBook(uint32(o.Symbol))
	if !ok {
		return nil
	}
	return book
}

// Submit runs the on_order_submitted algorithm and returns the produced
// fills plus whether the order was only partially filled (step 6).
func (p *Pipeline) Submit(o orders.Order, now clock.Timestamp) ([]orders.Fill, bool, error) {
	if o.Status == orders.StatusRejected || o.Status == orders.StatusCancelled {
		return nil, false, nil
	}

	refPrice, ok := p.referencePrice(o)
	if !ok {
		return nil, false, nil
	}

	exec, commission, cost, impact, latency := p.models()

	execTS := o.CreatedAt
	if execTS.IsZero() {
		execTS = now
	}
	execTS = execTS.Add(latency.Latency())

	book := p.book(o)

	// Impact is applied only on the reference-price path: a book-present
	// depth walk already consumes real resting prices, which IS the
	// impact, so impact_bps is not layered on top (§9 open question,
	// resolved in favor of not double-counting impact).
	var fills []orders.Fill
	var impactBps float64
	if book != nil {
		fills = walkBook(o, book, refPrice, execTS)
	} else {
		fills = exec.Execute(o, refPrice, execTS)
		impactBps = impact.ImpactBps(o, book)
	}

	var totalAbsQty float64
	for i := range fills {
		f := &fills[i]
		sideSign := o.Side.Sign()
		f.Price = f.Price * (1 + sideSign*impactBps/10000)
		f.Commission = commission.Commission(o, *f) + cost.Cost(o, *f)
		qty := f.Quantity
		if qty < 0 {
			qty = -qty
		}
		totalAbsQty += qty
	}

	partial := totalAbsQty < o.Quantity
	return fills, partial, nil
}

// walkBook implements the order-book depth walk: Buy consumes ask levels
// ascending in price, Sell consumes bid levels, each taking
// min(remaining, level.qty) at level.price (or refPrice if the level
// carries no price), one fill per level until depth or order is exhausted.
func walkBook(o orders.Order, book *data.OrderBook, refPrice float64, ts clock.Timestamp) []orders.Fill {
	var levels []data.BookLevel
	if o.Side == orders.SideBuy {
		levels = book.Asks[:]
	} else {
		levels = book.Bids[:]
	}

	remaining := o.RemainingQuantity()
	sideSign := o.Side.Sign()
	var fills []orders.Fill
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		if lvl.Quantity <= 0 {
			continue
		}
		take := remaining
		if lvl.Quantity < take {
			take = lvl.Quantity
		}
		price := lvl.Price
		if price <= 0 {
			price = refPrice
		}
		fills = append(fills, orders.Fill{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Quantity:  take * sideSign,
			Price:     price,
			Timestamp: ts,
		})
		remaining -= take
	}
	return fills
}
