package venue

import (
	"errors"
	"testing"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	nos "github.com/quickfixgo/fix44/newordersingle"
	ocr "github.com/quickfixgo/fix44/ordercancelrequest"
	ocrr "github.com/quickfixgo/fix44/ordercancelreplacerequest"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"fixbench/pkg/util"
)

type captureSender struct {
	ch   chan *quickfix.Message
	fail bool
}

func newCaptureSender() *captureSender {
	return &captureSender{ch: make(chan *quickfix.Message, 16)}
}

func (c *captureSender) Send(m quickfix.Messagable, sessionID quickfix.SessionID) error {
	if c.fail {
		return errors.New("transport down")
	}
	c.ch <- m.ToMessage()
	return nil
}

func (c *captureSender) IsConnected(quickfix.SessionID) bool { return true }

func (c *captureSender) waitReport(t *testing.T) *quickfix.Message {
	t.Helper()
	select {
	case msg := <-c.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no report delivered")
		return nil
	}
}

func newSimulator(t *testing.T, sender *captureSender) *Simulator {
	return New(sender, util.RealClock{}, UniformDelay(0, 0), time.Second, zaptest.NewLogger(t).Sugar())
}

func testSessionID() quickfix.SessionID {
	return quickfix.SessionID{BeginString: "FIX.4.4", SenderCompID: "VENUE", TargetCompID: "CLIENT"}
}

func newOrderMsg(clOrdID, symbol string) *quickfix.Message {
	m := nos.New(
		field.NewClOrdID(clOrdID),
		field.NewSide(enum.Side_BUY),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT),
	)
	m.Set(field.NewSymbol(symbol))
	m.Set(field.NewOrderQty(decimal.NewFromInt(100), 0))
	m.Set(field.NewPrice(decimal.RequireFromString("150.00"), 2))
	return m.ToMessage()
}

func cancelMsg(clOrdID, origClOrdID string) *quickfix.Message {
	m := ocr.New(
		field.NewOrigClOrdID(origClOrdID),
		field.NewClOrdID(clOrdID),
		field.NewSide(enum.Side_BUY),
		field.NewTransactTime(time.Now()),
	)
	return m.ToMessage()
}

func replaceMsg(clOrdID, origClOrdID, symbol string, qty int64) *quickfix.Message {
	m := ocrr.New(
		field.NewOrigClOrdID(origClOrdID),
		field.NewClOrdID(clOrdID),
		field.NewSide(enum.Side_BUY),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT),
	)
	m.Set(field.NewSymbol(symbol))
	m.Set(field.NewOrderQty(decimal.NewFromInt(qty), 0))
	m.Set(field.NewPrice(decimal.RequireFromString("151.00"), 2))
	return m.ToMessage()
}

func bodyField(t *testing.T, msg *quickfix.Message, tg quickfix.Tag) string {
	t.Helper()
	v, err := msg.Body.GetString(tg)
	if err != nil {
		t.Fatalf("field %d missing: %v", tg, err)
	}
	return v
}

func TestNewOrderAcknowledged(t *testing.T) {
	sender := newCaptureSender()
	s := newSimulator(t, sender)

	if err := s.OnNewOrder(newOrderMsg("ORD-00001", "AAPL"), testSessionID()); err != nil {
		t.Fatalf("OnNewOrder: %v", err)
	}

	report := sender.waitReport(t)
	if got := bodyField(t, report, tag.ExecType); got != string(enum.ExecType_NEW) {
		t.Errorf("ExecType = %q, want NEW", got)
	}
	if got := bodyField(t, report, tag.ClOrdID); got != "ORD-00001" {
		t.Errorf("ClOrdID = %q, want ORD-00001", got)
	}
	if got := bodyField(t, report, tag.OrderID); got != "SIM-00001" {
		t.Errorf("OrderID = %q, want SIM-00001", got)
	}
	if got := bodyField(t, report, tag.Symbol); got != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", got)
	}
	if got := s.AcceptedCount(); got != 1 {
		t.Errorf("accepted = %d, want 1", got)
	}
}

func TestCancelKnownOrder(t *testing.T) {
	sender := newCaptureSender()
	s := newSimulator(t, sender)
	sid := testSessionID()

	if err := s.OnNewOrder(newOrderMsg("ORD-00001", "MSFT"), sid); err != nil {
		t.Fatalf("OnNewOrder: %v", err)
	}
	sender.waitReport(t)

	if err := s.OnCancelRequest(cancelMsg("ORD-00002", "ORD-00001"), sid); err != nil {
		t.Fatalf("OnCancelRequest: %v", err)
	}

	report := sender.waitReport(t)
	if got := bodyField(t, report, tag.ExecType); got != string(enum.ExecType_CANCELED) {
		t.Errorf("ExecType = %q, want CANCELED", got)
	}
	if got := bodyField(t, report, tag.Symbol); got != "MSFT" {
		t.Errorf("Symbol = %q, want MSFT", got)
	}
	if got := bodyField(t, report, tag.OrigClOrdID); got != "ORD-00001" {
		t.Errorf("OrigClOrdID = %q, want ORD-00001", got)
	}
	if got := s.AcceptedCount(); got != 0 {
		t.Errorf("accepted = %d, want 0", got)
	}
}

func TestCancelUnknownOrderSynthesized(t *testing.T) {
	sender := newCaptureSender()
	s := newSimulator(t, sender)

	if err := s.OnCancelRequest(cancelMsg("ORD-00002", "ORD-00001"), testSessionID()); err != nil {
		t.Fatalf("OnCancelRequest: %v", err)
	}

	report := sender.waitReport(t)
	if got := bodyField(t, report, tag.ExecType); got != string(enum.ExecType_CANCELED) {
		t.Errorf("ExecType = %q, want CANCELED", got)
	}
	if got := bodyField(t, report, tag.Symbol); got != "N/A" {
		t.Errorf("Symbol = %q, want N/A", got)
	}
	if got := bodyField(t, report, tag.OrderQty); got != "0" {
		t.Errorf("OrderQty = %q, want 0", got)
	}
}

func TestReplaceRekeysOrder(t *testing.T) {
	sender := newCaptureSender()
	s := newSimulator(t, sender)
	sid := testSessionID()

	if err := s.OnNewOrder(newOrderMsg("ORD-00001", "AAPL"), sid); err != nil {
		t.Fatalf("OnNewOrder: %v", err)
	}
	sender.waitReport(t)

	if err := s.OnReplaceRequest(replaceMsg("ORD-00002", "ORD-00001", "AAPL", 50), sid); err != nil {
		t.Fatalf("OnReplaceRequest: %v", err)
	}

	report := sender.waitReport(t)
	if got := bodyField(t, report, tag.ExecType); got != string(enum.ExecType_REPLACED) {
		t.Errorf("ExecType = %q, want REPLACED", got)
	}

	if _, ok := s.Accepted("ORD-00001"); ok {
		t.Error("original ClOrdID still accepted after replace")
	}
	replaced, ok := s.Accepted("ORD-00002")
	if !ok {
		t.Fatal("replacement ClOrdID not accepted")
	}
	if !replaced.Quantity.Equal(decimal.NewFromInt(50)) {
		t.Errorf("quantity = %s, want 50", replaced.Quantity)
	}
	// The venue-assigned OrderID survives the replace.
	if replaced.OrderID != "SIM-00001" {
		t.Errorf("OrderID = %q, want SIM-00001", replaced.OrderID)
	}
}

func TestNewOrderMissingClOrdID(t *testing.T) {
	sender := newCaptureSender()
	s := newSimulator(t, sender)

	if err := s.OnNewOrder(quickfix.NewMessage(), testSessionID()); err == nil {
		t.Error("OnNewOrder accepted a message without ClOrdID")
	}
	if got := s.AcceptedCount(); got != 0 {
		t.Errorf("accepted = %d, want 0", got)
	}
}

func TestStopRefusesNewWork(t *testing.T) {
	sender := newCaptureSender()
	s := newSimulator(t, sender)
	s.Stop()

	if err := s.OnNewOrder(newOrderMsg("ORD-00001", "AAPL"), testSessionID()); err != nil {
		t.Fatalf("OnNewOrder: %v", err)
	}
	select {
	case <-sender.ch:
		t.Error("report delivered after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendFailureDropsReport(t *testing.T) {
	sender := newCaptureSender()
	sender.fail = true
	s := newSimulator(t, sender)

	if err := s.OnNewOrder(newOrderMsg("ORD-00001", "AAPL"), testSessionID()); err != nil {
		t.Fatalf("OnNewOrder: %v", err)
	}
	s.Stop()
}
