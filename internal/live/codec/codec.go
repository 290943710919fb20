// Package codec implements the live message wire format of §6: a
// pipe-delimited text line, topic marker {MD,EXEC,POS,ACCT,SYS} followed
// by fields, e.g. "MD|TICK|AAPL|1700000|101.5|2" or
// "EXEC|BRK-1|EXEC-1|AAPL|BUY|10|100.0|0.0|FILLED|ok|1700001".
package codec

import (
	"strconv"
	"strings"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/live/broker"
	"github.com/regimeflow/regimeflow/internal/orders"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
	"github.com/regimeflow/regimeflow/internal/symbol"
)

// Topic is the leading field of a wire line.
type Topic string

const (
	TopicMD   Topic = "MD"
	TopicEXEC Topic = "EXEC"
	TopicPOS  Topic = "POS"
	TopicACCT Topic = "ACCT"
	TopicSYS  Topic = "SYS"
)

// Message is a decoded wire line: the topic marker plus every remaining
// pipe-delimited field, before any topic-specific typed decoding. Market
// data lines carry a kind discriminator as their first field (Fields[0],
// e.g. "TICK"); EXEC/POS/ACCT/SYS lines go straight into their own fixed
// layout (the §6 EXEC example has no separate kind segment).
type Message struct {
	Topic  Topic
	Fields []string
}

// encodeLine joins topic and fields with "|".
func encodeLine(topic Topic, fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, string(topic))
	parts = append(parts, fields...)
	return strings.Join(parts, "|")
}

// Decode splits a wire line into its topic and remaining fields.
func Decode(line string) (Message, error) {
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return Message{}, regimeerr.New(regimeerr.ParseError, "live message missing topic: "+line)
	}
	return Message{Topic: Topic(parts[0]), Fields: parts[1:]}, nil
}

// Tick is the decoded form of an "MD|TICK|symbol|ts|price|qty" line.
type Tick struct {
	Symbol    string
	Timestamp int64
	Price     float64
	Quantity  float64
}

// EncodeTick renders a Tick as "MD|TICK|symbol|ts|price|qty".
func EncodeTick(t Tick) string {
	return encodeLine(TopicMD, "TICK",
		t.Symbol,
		strconv.FormatInt(t.Timestamp, 10),
		strconv.FormatFloat(t.Price, 'f', -1, 64),
		strconv.FormatFloat(t.Quantity, 'f', -1, 64),
	)
}

// DecodeTick parses a Message whose Fields[0] is "TICK" into a Tick.
// Fields layout after the kind discriminator: symbol, ts, price, qty.
func DecodeTick(m Message) (Tick, error) {
	if len(m.Fields) != 5 || m.Fields[0] != "TICK" {
		return Tick{}, regimeerr.New(regimeerr.ParseError, "expected MD|TICK|symbol|ts|price|qty")
	}
	ts, err := strconv.ParseInt(m.Fields[2], 10, 64)
	if err != nil {
		return Tick{}, regimeerr.Wrap(regimeerr.ParseError, "TICK timestamp", err)
	}
	price, err := strconv.ParseFloat(m.Fields[3], 64)
	if err != nil {
		return Tick{}, regimeerr.Wrap(regimeerr.ParseError, "TICK price", err)
	}
	qty, err := strconv.ParseFloat(m.Fields[4], 64)
	if err != nil {
		return Tick{}, regimeerr.Wrap(regimeerr.ParseError, "TICK quantity", err)
	}
	return Tick{Symbol: m.Fields[1], Timestamp: ts, Price: price, Quantity: qty}, nil
}

// statusNames maps broker.Status to/from its wire string (the exact casing
// used in the §6 example: "FILLED").
var statusNames = map[broker.Status]string{
	broker.StatusPendingNew:      "PENDING_NEW",
	broker.StatusNew:             "NEW",
	broker.StatusPartiallyFilled: "PARTIALLY_FILLED",
	broker.StatusFilled:          "FILLED",
	broker.StatusPendingCancel:   "PENDING_CANCEL",
	broker.StatusCancelled:       "CANCELLED",
	broker.StatusRejected:        "REJECTED",
	broker.StatusExpired:         "EXPIRED",
	broker.StatusError:           "ERROR",
}

var namesToStatus = func() map[string]broker.Status {
	out := make(map[string]broker.Status, len(statusNames))
	for k, v := range statusNames {
		out[v] = k
	}
	return out
}()

// EncodeExecutionReport renders
// "EXEC|broker_order_id|broker_exec_id|symbol|side|qty|price|commission|status|message|ts",
// the field layout of the §6 example. Numbers are written in their shortest
// form, so a price of 100 is encoded as "100", not "100.0". reg resolves
// r.Symbol to its wire name.
func EncodeExecutionReport(reg *symbol.Registry, r broker.ExecutionReport, side orders.Side) string {
	return encodeLine(TopicEXEC,
		r.BrokerOrderID,
		r.BrokerExecID,
		reg.Lookup(r.Symbol),
		side.String(),
		strconv.FormatFloat(r.LastFillQty, 'f', -1, 64),
		strconv.FormatFloat(r.LastFillPrice, 'f', -1, 64),
		strconv.FormatFloat(r.Commission, 'f', -1, 64),
		statusNames[r.Status],
		r.Message,
		strconv.FormatInt(int64(r.Timestamp), 10),
	)
}

// DecodeExecutionReport parses an already-split EXEC message's Fields (10
// elements: broker_order_id, broker_exec_id, symbol, side, qty, price,
// commission, status, message, ts) into an ExecutionReport, interning the
// wire symbol name through reg, plus the side (which ExecutionReport has
// no field for).
func DecodeExecutionReport(reg *symbol.Registry, m Message) (broker.ExecutionReport, orders.Side, error) {
	f := m.Fields
	if len(f) != 10 {
		return broker.ExecutionReport{}, 0, regimeerr.New(regimeerr.ParseError, "EXEC requires 10 fields")
	}
	side := orders.SideBuy
	if f[3] == "SELL" {
		side = orders.SideSell
	}
	qty, err := strconv.ParseFloat(f[4], 64)
	if err != nil {
		return broker.ExecutionReport{}, 0, regimeerr.Wrap(regimeerr.ParseError, "EXEC fill qty", err)
	}
	price, err := strconv.ParseFloat(f[5], 64)
	if err != nil {
		return broker.ExecutionReport{}, 0, regimeerr.Wrap(regimeerr.ParseError, "EXEC fill price", err)
	}
	commission, err := strconv.ParseFloat(f[6], 64)
	if err != nil {
		return broker.ExecutionReport{}, 0, regimeerr.Wrap(regimeerr.ParseError, "EXEC commission", err)
	}
	status, ok := namesToStatus[f[7]]
	if !ok {
		return broker.ExecutionReport{}, 0, regimeerr.New(regimeerr.ParseError, "EXEC unknown status: "+f[7])
	}
	ts, err := strconv.ParseInt(f[9], 10, 64)
	if err != nil {
		return broker.ExecutionReport{}, 0, regimeerr.Wrap(regimeerr.ParseError, "EXEC timestamp", err)
	}
	return broker.ExecutionReport{
		BrokerOrderID: f[0],
		BrokerExecID:  f[1],
		Symbol:        reg.Intern(f[2]),
		Status:        status,
		FilledQty:     qty,
		LastFillQty:   qty,
		LastFillPrice: price,
		Commission:    commission,
		Message:       f[8],
		Timestamp:     clock.Timestamp(ts),
	}, side, nil
}

// DecodeExecutionReportLine decodes a full "EXEC|..." wire line.
func DecodeExecutionReportLine(reg *symbol.Registry, line string) (broker.ExecutionReport, orders.Side, error) {
	m, err := Decode(line)
	if err != nil {
		return broker.ExecutionReport{}, 0, err
	}
	if m.Topic != TopicEXEC {
		return broker.ExecutionReport{}, 0, regimeerr.New(regimeerr.ParseError, "not an EXEC line: "+line)
	}
	return DecodeExecutionReport(reg, m)
}
