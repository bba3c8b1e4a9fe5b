// Package tracker owns the initiator-side view of in-flight orders:
// it assigns ClOrdIDs, builds and sends new/cancel/replace requests,
// and maintains the set of orders that can still be canceled or replaced.
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	nos "github.com/quickfixgo/fix44/newordersingle"
	ocr "github.com/quickfixgo/fix44/ordercancelrequest"
	ocrr "github.com/quickfixgo/fix44/ordercancelreplacerequest"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fixbench/pkg/exchange/latency"
	"fixbench/pkg/fix"
	"fixbench/pkg/util"
)

// ErrOrderNotFound is returned when a cancel or replace references an
// identifier that is not in the active set. No transport call is made.
var ErrOrderNotFound = errors.New("original order not found")

// Order holds the fields needed to build cancel and replace requests
// against a previously sent order.
type Order struct {
	ClOrdID  string
	Symbol   string
	Side     enum.Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
	OrdType  enum.OrdType
}

type Tracker struct {
	transport fix.SessionSender
	recorder  *latency.Recorder
	clock     util.Clock
	log       *zap.SugaredLogger

	seq    atomic.Uint64
	mu     sync.Mutex
	active map[string]Order
}

func New(transport fix.SessionSender, recorder *latency.Recorder, clock util.Clock, log *zap.SugaredLogger) *Tracker {
	return &Tracker{
		transport: transport,
		recorder:  recorder,
		clock:     clock,
		log:       log,
		active:    make(map[string]Order),
	}
}

// SubmitLimit sends a NewOrderSingle (35=D) with OrdType=LIMIT and
// returns the assigned ClOrdID.
func (t *Tracker) SubmitLimit(sessionID quickfix.SessionID, symbol string, side enum.Side, quantity, price decimal.Decimal) (string, error) {
	return t.submit(sessionID, symbol, side, quantity, enum.OrdType_LIMIT, price)
}

// SubmitMarket sends a NewOrderSingle (35=D) with OrdType=MARKET.
func (t *Tracker) SubmitMarket(sessionID quickfix.SessionID, symbol string, side enum.Side, quantity decimal.Decimal) (string, error) {
	return t.submit(sessionID, symbol, side, quantity, enum.OrdType_MARKET, decimal.Zero)
}

func (t *Tracker) submit(sessionID quickfix.SessionID, symbol string, side enum.Side, quantity decimal.Decimal, ordType enum.OrdType, price decimal.Decimal) (string, error) {
	clOrdID := t.nextClOrdID()

	msg := nos.New(
		field.NewClOrdID(clOrdID),
		field.NewSide(side),
		field.NewTransactTime(t.clock.Now()),
		field.NewOrdType(ordType),
	)
	msg.Set(field.NewHandlInst(enum.HandlInst_AUTOMATED_EXECUTION_ORDER_PRIVATE_NO_BROKER_INTERVENTION))
	msg.Set(field.NewSymbol(symbol))
	msg.Set(field.NewOrderQty(quantity, 0))
	if ordType == enum.OrdType_LIMIT {
		msg.Set(field.NewPrice(price, 2))
	}

	// Send time is recorded before the transport call so the measured
	// round trip includes engine-side queuing.
	t.recorder.RecordSend(clOrdID)
	t.insert(Order{
		ClOrdID:  clOrdID,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
		OrdType:  ordType,
	})

	if err := t.transport.Send(msg, sessionID); err != nil {
		t.recorder.RecordReceive(clOrdID)
		t.Remove(clOrdID)
		t.log.Errorw("order_send_failed", "cl_ord_id", clOrdID, "session", sessionID.String(), "error", err)
		return "", fmt.Errorf("send order %s: %w", clOrdID, err)
	}

	t.log.Infow("order_sent",
		"cl_ord_id", clOrdID,
		"symbol", symbol,
		"side", fix.DescribeSide(side),
		"qty", quantity.String(),
		"ord_type", fix.DescribeOrdType(ordType),
		"price", price.String())
	return clOrdID, nil
}

// SubmitCancel sends an OrderCancelRequest (35=F) for a tracked order.
// The request carries the original order's side, symbol, and quantity
// and is assigned its own ClOrdID, which is returned.
func (t *Tracker) SubmitCancel(sessionID quickfix.SessionID, origClOrdID string) (string, error) {
	orig, ok := t.Get(origClOrdID)
	if !ok {
		t.log.Warnw("cancel_rejected_locally", "orig_cl_ord_id", origClOrdID)
		return "", ErrOrderNotFound
	}

	clOrdID := t.nextClOrdID()
	msg := ocr.New(
		field.NewOrigClOrdID(origClOrdID),
		field.NewClOrdID(clOrdID),
		field.NewSide(orig.Side),
		field.NewTransactTime(t.clock.Now()),
	)
	msg.Set(field.NewSymbol(orig.Symbol))
	msg.Set(field.NewOrderQty(orig.Quantity, 0))

	t.recorder.RecordSend(clOrdID)

	if err := t.transport.Send(msg, sessionID); err != nil {
		t.recorder.RecordReceive(clOrdID)
		t.log.Errorw("cancel_send_failed", "cl_ord_id", clOrdID, "orig_cl_ord_id", origClOrdID, "error", err)
		return "", fmt.Errorf("send cancel %s: %w", clOrdID, err)
	}

	t.log.Infow("cancel_sent",
		"cl_ord_id", clOrdID,
		"orig_cl_ord_id", origClOrdID,
		"symbol", orig.Symbol,
		"side", fix.DescribeSide(orig.Side))
	return clOrdID, nil
}

// SubmitReplace sends an OrderCancelReplaceRequest (35=G). A positive
// newQuantity or newPrice overrides the original value; zero keeps it.
func (t *Tracker) SubmitReplace(sessionID quickfix.SessionID, origClOrdID string, newQuantity, newPrice decimal.Decimal) (string, error) {
	orig, ok := t.Get(origClOrdID)
	if !ok {
		t.log.Warnw("replace_rejected_locally", "orig_cl_ord_id", origClOrdID)
		return "", ErrOrderNotFound
	}

	clOrdID := t.nextClOrdID()
	qty := resolve(newQuantity, orig.Quantity)
	price := resolve(newPrice, orig.Price)

	msg := ocrr.New(
		field.NewOrigClOrdID(origClOrdID),
		field.NewClOrdID(clOrdID),
		field.NewSide(orig.Side),
		field.NewTransactTime(t.clock.Now()),
		field.NewOrdType(orig.OrdType),
	)
	msg.Set(field.NewHandlInst(enum.HandlInst_AUTOMATED_EXECUTION_ORDER_PRIVATE_NO_BROKER_INTERVENTION))
	msg.Set(field.NewSymbol(orig.Symbol))
	msg.Set(field.NewOrderQty(qty, 0))
	if orig.OrdType == enum.OrdType_LIMIT {
		msg.Set(field.NewPrice(price, 2))
	}

	t.recorder.RecordSend(clOrdID)

	if err := t.transport.Send(msg, sessionID); err != nil {
		t.recorder.RecordReceive(clOrdID)
		t.log.Errorw("replace_send_failed", "cl_ord_id", clOrdID, "orig_cl_ord_id", origClOrdID, "error", err)
		return "", fmt.Errorf("send replace %s: %w", clOrdID, err)
	}

	t.log.Infow("replace_sent",
		"cl_ord_id", clOrdID,
		"orig_cl_ord_id", origClOrdID,
		"symbol", orig.Symbol,
		"qty", qty.String(),
		"price", price.String())
	return clOrdID, nil
}

// ConfirmReplace is called when a replace confirmation arrives: the old
// active entry is removed and the new one inserted with the resolved
// quantity and price. No-op when the original entry is gone already.
func (t *Tracker) ConfirmReplace(origClOrdID, newClOrdID string, quantity, price decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.active[origClOrdID]
	if !ok {
		return
	}
	delete(t.active, origClOrdID)
	t.active[newClOrdID] = Order{
		ClOrdID:  newClOrdID,
		Symbol:   old.Symbol,
		Side:     old.Side,
		Quantity: resolve(quantity, old.Quantity),
		Price:    resolve(price, old.Price),
		OrdType:  old.OrdType,
	}
}

// Remove drops an order from the active set; called when a cancel
// confirmation or full fill arrives.
func (t *Tracker) Remove(clOrdID string) {
	t.mu.Lock()
	delete(t.active, clOrdID)
	t.mu.Unlock()
}

func (t *Tracker) Get(clOrdID string) (Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.active[clOrdID]
	return o, ok
}

// Active returns a snapshot of the active set ordered by ClOrdID.
func (t *Tracker) Active() []Order {
	t.mu.Lock()
	out := make([]Order, 0, len(t.active))
	for _, o := range t.active {
		out = append(out, o)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClOrdID < out[j].ClOrdID })
	return out
}

func (t *Tracker) insert(o Order) {
	t.mu.Lock()
	t.active[o.ClOrdID] = o
	t.mu.Unlock()
}

func (t *Tracker) nextClOrdID() string {
	return fmt.Sprintf("ORD-%05d", t.seq.Add(1))
}

// resolve implements the "positive overrides, zero keeps original"
// convention used by replace requests.
func resolve(v, orig decimal.Decimal) decimal.Decimal {
	if v.Sign() > 0 {
		return v
	}
	return orig
}
