package live

import (
	"github.com/rs/zerolog"

	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
)

// AuditLogger is the narrow interface the live engine calls into for every
// order/fill/alert/reconnect event. §1 places "audit-log file formatting"
// out of scope as an external collaborator; this interface is the seam a
// caller plugs a real audit sink into. zerologAuditLogger is the one
// concrete adapter this module ships, writing structured lines through the
// ambient zerolog logger rather than any bespoke file format.
type AuditLogger interface {
	LogOrder(o broker.Order)
	LogFill(f orders.Fill)
	LogAlert(a Alert)
	LogReconnect(n ReconnectNotification)
}

// zerologAuditLogger adapts AuditLogger onto a zerolog.Logger.
type zerologAuditLogger struct {
	log zerolog.Logger
}

// NewZerologAuditLogger returns an AuditLogger backed by log.
func NewZerologAuditLogger(log zerolog.Logger) AuditLogger {
	return &zerologAuditLogger{log: log}
}

func (a *zerologAuditLogger) LogOrder(o broker.Order) {
	a.log.Info().
		Uint64("order_id", o.ID).
		Str("broker_order_id", o.BrokerOrderID).
		Str("status", o.LiveStatus.String()).
		Float64("filled_qty", o.FilledQuantity).
		Msg("audit: order")
}

func (a *zerologAuditLogger) LogFill(f orders.Fill) {
	a.log.Info().
		Uint64("order_id", f.OrderID).
		Float64("quantity", f.Quantity).
		Float64("price", f.Price).
		Float64("commission", f.Commission).
		Msg("audit: fill")
}

func (a *zerologAuditLogger) LogAlert(al Alert) {
	a.log.Warn().
		Str("kind", al.Kind.String()).
		Str("message", al.Message).
		Msg("audit: alert")
}

func (a *zerologAuditLogger) LogReconnect(n ReconnectNotification) {
	a.log.Info().
		Int("attempt", n.Attempt).
		Int64("backoff_ms", n.BackoffMs).
		Bool("connected", n.Connected).
		Msg("audit: reconnect")
}
