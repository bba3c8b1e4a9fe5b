package router

import (
	"fmt"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"go.uber.org/zap"

	"fixbench/pkg/exchange/latency"
	"fixbench/pkg/exchange/tracker"
	"fixbench/pkg/exchange/venue"
	"fixbench/pkg/fix"
	"fixbench/pkg/storage"
)

// Sink receives a copy of every handled order-flow event, for streaming
// to observers. Implementations must not block.
type Sink interface {
	Publish(v any)
}

// ExecReportHandler consumes ExecutionReport (35=8) messages on the
// order-sending side: it measures round-trip latency for ack statuses
// and keeps the active-order set in step with the venue.
type ExecReportHandler struct {
	Recorder *latency.Recorder
	Orders   *tracker.Tracker
	Journal  *storage.Journal
	Sink     Sink
	Log      *zap.SugaredLogger
}

func (h *ExecReportHandler) Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID, err := msg.Body.GetString(tag.ClOrdID)
	if err != nil {
		return fmt.Errorf("execution report missing ClOrdID: %w", err)
	}
	execTypeStr, err := msg.Body.GetString(tag.ExecType)
	if err != nil {
		return fmt.Errorf("execution report missing ExecType: %w", err)
	}
	ordStatusStr, err := msg.Body.GetString(tag.OrdStatus)
	if err != nil {
		return fmt.Errorf("execution report missing OrdStatus: %w", err)
	}
	execType := enum.ExecType(execTypeStr)
	ordStatus := enum.OrdStatus(ordStatusStr)
	symbol := fix.StringOrNA(msg, tag.Symbol)

	// Round trip completes on the first terminal/ack response.
	rtt := latency.Untracked
	if execType == enum.ExecType_NEW || execType == enum.ExecType_CANCELED || execType == enum.ExecType_REPLACED {
		rtt = h.Recorder.RecordReceive(clOrdID)
	}

	if execType == enum.ExecType_CANCELED || execType == enum.ExecType_FILL {
		h.Orders.Remove(clOrdID)
	}

	if execType == enum.ExecType_REPLACED {
		origClOrdID := fix.StringOrNA(msg, tag.OrigClOrdID)
		h.Orders.ConfirmReplace(origClOrdID, clOrdID,
			fix.DecimalOrZero(msg, tag.OrderQty),
			fix.DecimalOrZero(msg, tag.Price))
	}

	fields := []any{
		"cl_ord_id", clOrdID,
		"order_id", fix.StringOrNA(msg, tag.OrderID),
		"exec_id", fix.StringOrNA(msg, tag.ExecID),
		"exec_type", fix.DescribeExecType(execType),
		"ord_status", fix.DescribeOrdStatus(ordStatus),
		"symbol", symbol,
		"cum_qty", fix.StringOrNA(msg, tag.CumQty),
		"leaves_qty", fix.StringOrNA(msg, tag.LeavesQty),
		"avg_px", fix.StringOrNA(msg, tag.AvgPx),
	}
	if rtt >= 0 {
		fields = append(fields, "rtt", rtt.String())
	}
	h.Log.Infow("exec_report", fields...)

	publishEvent(h.Journal, h.Sink, h.Log, storage.Event{
		Time:        time.Now(),
		Session:     sessionID.String(),
		MsgType:     "8",
		ClOrdID:     clOrdID,
		OrigClOrdID: orEmpty(msg, tag.OrigClOrdID),
		ExecType:    fix.DescribeExecType(execType),
		OrdStatus:   fix.DescribeOrdStatus(ordStatus),
		Symbol:      symbol,
		RTTMillis:   rttMillis(rtt),
	})
	return nil
}

// CancelRejectHandler logs OrderCancelReject (35=9) messages, decoding
// the reject reason and what the reject responds to.
type CancelRejectHandler struct {
	Recorder *latency.Recorder
	Journal  *storage.Journal
	Sink     Sink
	Log      *zap.SugaredLogger
}

func (h *CancelRejectHandler) Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID, err := msg.Body.GetString(tag.ClOrdID)
	if err != nil {
		return fmt.Errorf("cancel reject missing ClOrdID: %w", err)
	}
	ordStatus := enum.OrdStatus(fix.StringOrNA(msg, tag.OrdStatus))

	// The rejected request will never get an execution report; retire
	// its pending entry so it does not linger forever.
	h.Recorder.RecordReceive(clOrdID)

	h.Log.Infow("cancel_reject",
		"cl_ord_id", clOrdID,
		"orig_cl_ord_id", fix.StringOrNA(msg, tag.OrigClOrdID),
		"order_id", fix.StringOrNA(msg, tag.OrderID),
		"ord_status", fix.DescribeOrdStatus(ordStatus),
		"reason", fix.DescribeCxlRejReason(fix.StringOrNA(msg, tag.CxlRejReason)),
		"response_to", fix.DescribeCxlRejResponseTo(fix.StringOrNA(msg, tag.CxlRejResponseTo)),
		"text", fix.Text(msg))

	publishEvent(h.Journal, h.Sink, h.Log, storage.Event{
		Time:        time.Now(),
		Session:     sessionID.String(),
		MsgType:     "9",
		ClOrdID:     clOrdID,
		OrigClOrdID: orEmpty(msg, tag.OrigClOrdID),
		OrdStatus:   fix.DescribeOrdStatus(ordStatus),
	})
	return nil
}

// NewOrderHandler logs inbound NewOrderSingle (35=D) requests on the
// venue side and delegates response generation to the simulator.
type NewOrderHandler struct {
	Venue   *venue.Simulator
	Journal *storage.Journal
	Sink    Sink
	Log     *zap.SugaredLogger
}

func (h *NewOrderHandler) Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID := fix.StringOrNA(msg, tag.ClOrdID)
	symbol := fix.StringOrNA(msg, tag.Symbol)
	h.Log.Infow("new_order_in",
		"cl_ord_id", clOrdID,
		"symbol", symbol,
		"side", fix.DescribeSide(enum.Side(fix.StringOrNA(msg, tag.Side))),
		"qty", fix.StringOrNA(msg, tag.OrderQty),
		"ord_type", fix.DescribeOrdType(enum.OrdType(fix.StringOrNA(msg, tag.OrdType))),
		"price", fix.StringOrNA(msg, tag.Price))

	publishEvent(h.Journal, h.Sink, h.Log, storage.Event{
		Time:    time.Now(),
		Session: sessionID.String(),
		MsgType: "D",
		ClOrdID: clOrdID,
		Symbol:  symbol,
	})
	return h.Venue.OnNewOrder(msg, sessionID)
}

// CancelRequestHandler logs inbound OrderCancelRequest (35=F) requests
// and delegates to the simulator.
type CancelRequestHandler struct {
	Venue   *venue.Simulator
	Journal *storage.Journal
	Sink    Sink
	Log     *zap.SugaredLogger
}

func (h *CancelRequestHandler) Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID := fix.StringOrNA(msg, tag.ClOrdID)
	origClOrdID := fix.StringOrNA(msg, tag.OrigClOrdID)
	h.Log.Infow("cancel_request_in", "cl_ord_id", clOrdID, "orig_cl_ord_id", origClOrdID)

	publishEvent(h.Journal, h.Sink, h.Log, storage.Event{
		Time:        time.Now(),
		Session:     sessionID.String(),
		MsgType:     "F",
		ClOrdID:     clOrdID,
		OrigClOrdID: origClOrdID,
	})
	return h.Venue.OnCancelRequest(msg, sessionID)
}

// ReplaceRequestHandler logs inbound OrderCancelReplaceRequest (35=G)
// requests and delegates to the simulator.
type ReplaceRequestHandler struct {
	Venue   *venue.Simulator
	Journal *storage.Journal
	Sink    Sink
	Log     *zap.SugaredLogger
}

func (h *ReplaceRequestHandler) Handle(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID := fix.StringOrNA(msg, tag.ClOrdID)
	origClOrdID := fix.StringOrNA(msg, tag.OrigClOrdID)
	h.Log.Infow("replace_request_in",
		"cl_ord_id", clOrdID,
		"orig_cl_ord_id", origClOrdID,
		"new_qty", fix.StringOrNA(msg, tag.OrderQty),
		"new_price", fix.StringOrNA(msg, tag.Price))

	publishEvent(h.Journal, h.Sink, h.Log, storage.Event{
		Time:        time.Now(),
		Session:     sessionID.String(),
		MsgType:     "G",
		ClOrdID:     clOrdID,
		OrigClOrdID: origClOrdID,
	})
	return h.Venue.OnReplaceRequest(msg, sessionID)
}

func publishEvent(j *storage.Journal, sink Sink, log *zap.SugaredLogger, ev storage.Event) {
	if j != nil {
		if err := j.Append(ev); err != nil {
			log.Errorw("journal_append_failed", "error", err)
		}
	}
	if sink != nil {
		sink.Publish(ev)
	}
}

func orEmpty(msg *quickfix.Message, t quickfix.Tag) string {
	v, err := msg.Body.GetString(t)
	if err != nil {
		return ""
	}
	return v
}

func rttMillis(rtt time.Duration) float64 {
	if rtt < 0 {
		return 0
	}
	return float64(rtt) / float64(time.Millisecond)
}
