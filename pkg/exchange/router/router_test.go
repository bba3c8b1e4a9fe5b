package router

import (
	"testing"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"fixbench/pkg/exchange/latency"
	"fixbench/pkg/exchange/tracker"
	"fixbench/pkg/util"
)

func msgOfType(msgType string) *quickfix.Message {
	msg := quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, msgType)
	return msg
}

func testSessionID() quickfix.SessionID {
	return quickfix.SessionID{BeginString: "FIX.4.4", SenderCompID: "CLIENT", TargetCompID: "VENUE"}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msgType string
		want    Kind
	}{
		{"D", KindNewOrderSingle},
		{"F", KindOrderCancelRequest},
		{"G", KindOrderCancelReplaceRequest},
		{"8", KindExecutionReport},
		{"9", KindOrderCancelReject},
		{"0", KindUnknown},
		{"A", KindUnknown},
		{"", KindUnknown},
	}
	for _, c := range cases {
		if got := Classify(msgOfType(c.msgType)); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.msgType, got, c.want)
		}
	}
}

func TestRouteToRegisteredHandler(t *testing.T) {
	r := New(zaptest.NewLogger(t).Sugar())

	var handledType string
	r.Register(KindExecutionReport, HandlerFunc(func(msg *quickfix.Message, sessionID quickfix.SessionID) error {
		handledType, _ = msg.Header.GetString(tag.MsgType)
		return nil
	}))

	if err := r.Route(msgOfType("8"), testSessionID()); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if handledType != "8" {
		t.Errorf("handled type = %q, want 8", handledType)
	}
}

func TestRouteUnregisteredFallsThrough(t *testing.T) {
	r := New(zaptest.NewLogger(t).Sugar())

	// Known kind with no handler, and an unknown type: neither errors.
	if err := r.Route(msgOfType("D"), testSessionID()); err != nil {
		t.Errorf("Route(D) = %v, want nil", err)
	}
	if err := r.Route(msgOfType("j"), testSessionID()); err != nil {
		t.Errorf("Route(j) = %v, want nil", err)
	}
}

type nullSender struct{}

func (nullSender) Send(m quickfix.Messagable, sessionID quickfix.SessionID) error { return nil }
func (nullSender) IsConnected(quickfix.SessionID) bool                            { return true }

func execReport(clOrdID string, execType enum.ExecType, ordStatus enum.OrdStatus) *quickfix.Message {
	msg := msgOfType("8")
	msg.Body.SetString(tag.ClOrdID, clOrdID)
	msg.Body.SetString(tag.ExecType, string(execType))
	msg.Body.SetString(tag.OrdStatus, string(ordStatus))
	msg.Body.SetString(tag.Symbol, "AAPL")
	return msg
}

func newExecHandler(t *testing.T) (*ExecReportHandler, *tracker.Tracker, *latency.Recorder) {
	log := zaptest.NewLogger(t).Sugar()
	recorder := latency.NewRecorder(util.RealClock{})
	orders := tracker.New(nullSender{}, recorder, util.RealClock{}, log)
	h := &ExecReportHandler{Recorder: recorder, Orders: orders, Log: log}
	return h, orders, recorder
}

func TestExecReportNewRecordsLatency(t *testing.T) {
	h, orders, recorder := newExecHandler(t)
	sid := testSessionID()

	clOrdID, err := orders.SubmitLimit(sid, "AAPL", enum.Side_BUY, decimal.NewFromInt(100), decimal.RequireFromString("150.00"))
	if err != nil {
		t.Fatalf("SubmitLimit: %v", err)
	}

	if err := h.Handle(execReport(clOrdID, enum.ExecType_NEW, enum.OrdStatus_NEW), sid); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := recorder.SampleCount(); got != 1 {
		t.Errorf("samples = %d, want 1", got)
	}
	if got := recorder.PendingCount(); got != 0 {
		t.Errorf("pending = %d, want 0", got)
	}
	// Acknowledged orders stay in the active set.
	if _, ok := orders.Get(clOrdID); !ok {
		t.Error("order missing from active set after NEW")
	}
}

func TestExecReportCanceledRemovesOrder(t *testing.T) {
	h, orders, _ := newExecHandler(t)
	sid := testSessionID()

	clOrdID, err := orders.SubmitLimit(sid, "AAPL", enum.Side_BUY, decimal.NewFromInt(100), decimal.RequireFromString("150.00"))
	if err != nil {
		t.Fatalf("SubmitLimit: %v", err)
	}

	if err := h.Handle(execReport(clOrdID, enum.ExecType_CANCELED, enum.OrdStatus_CANCELED), sid); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, ok := orders.Get(clOrdID); ok {
		t.Error("order still active after CANCELED")
	}
}

func TestExecReportReplacedRekeys(t *testing.T) {
	h, orders, _ := newExecHandler(t)
	sid := testSessionID()

	orig, err := orders.SubmitLimit(sid, "AAPL", enum.Side_BUY, decimal.NewFromInt(100), decimal.RequireFromString("150.00"))
	if err != nil {
		t.Fatalf("SubmitLimit: %v", err)
	}

	msg := execReport("ORD-00099", enum.ExecType_REPLACED, enum.OrdStatus_REPLACED)
	msg.Body.SetString(tag.OrigClOrdID, orig)
	msg.Body.SetString(tag.OrderQty, "50")
	if err := h.Handle(msg, sid); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if _, ok := orders.Get(orig); ok {
		t.Error("original entry survives replace confirmation")
	}
	replaced, ok := orders.Get("ORD-00099")
	if !ok {
		t.Fatal("replacement entry missing")
	}
	if !replaced.Quantity.Equal(decimal.NewFromInt(50)) {
		t.Errorf("quantity = %s, want 50", replaced.Quantity)
	}
	// Price absent from the report keeps the original.
	if !replaced.Price.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("price = %s, want 150.00", replaced.Price)
	}
}

func TestExecReportMissingClOrdID(t *testing.T) {
	h, _, _ := newExecHandler(t)

	msg := msgOfType("8")
	msg.Body.SetString(tag.ExecType, string(enum.ExecType_NEW))
	msg.Body.SetString(tag.OrdStatus, string(enum.OrdStatus_NEW))
	if err := h.Handle(msg, testSessionID()); err == nil {
		t.Error("Handle accepted a report without ClOrdID")
	}
}

func TestCancelRejectRetiresPendingEntry(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	recorder := latency.NewRecorder(util.RealClock{})
	h := &CancelRejectHandler{Recorder: recorder, Log: log}

	recorder.RecordSend("ORD-00002")
	time.Sleep(time.Millisecond)

	msg := msgOfType("9")
	msg.Body.SetString(tag.ClOrdID, "ORD-00002")
	msg.Body.SetString(tag.OrigClOrdID, "ORD-00001")
	msg.Body.SetString(tag.OrdStatus, string(enum.OrdStatus_NEW))
	msg.Body.SetString(tag.CxlRejReason, "1")
	msg.Body.SetString(tag.CxlRejResponseTo, "1")
	if err := h.Handle(msg, testSessionID()); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := recorder.PendingCount(); got != 0 {
		t.Errorf("pending = %d, want 0", got)
	}
}
