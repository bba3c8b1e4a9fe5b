// Package venue simulates the accepting side of the order flow. It is a
// stochastic stub, not a matching engine: every well-formed request is
// answered with a plausible execution report after a randomized delay.
package venue

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	er "github.com/quickfixgo/fix44/executionreport"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fixbench/pkg/fix"
	"fixbench/pkg/util"
)

// AcceptedOrder mirrors the counterparty's order on the responding side.
type AcceptedOrder struct {
	OrderID  string // venue-assigned
	ClOrdID  string
	Symbol   string
	Side     enum.Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
	OrdType  enum.OrdType
}

// DelayFunc draws one simulated processing delay per scheduled response.
type DelayFunc func() time.Duration

// UniformDelay draws uniformly from [min, max].
func UniformDelay(min, max time.Duration) DelayFunc {
	return func() time.Duration {
		if max <= min {
			return min
		}
		return min + time.Duration(rand.Int63n(int64(max-min)+1))
	}
}

type Simulator struct {
	transport fix.SessionSender
	clock     util.Clock
	delay     DelayFunc
	grace     time.Duration
	log       *zap.SugaredLogger

	execSeq  atomic.Uint64
	orderSeq atomic.Uint64

	mu       sync.Mutex
	accepted map[string]AcceptedOrder

	stopped atomic.Bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func New(transport fix.SessionSender, clock util.Clock, delay DelayFunc, grace time.Duration, log *zap.SugaredLogger) *Simulator {
	return &Simulator{
		transport: transport,
		clock:     clock,
		delay:     delay,
		grace:     grace,
		log:       log,
		accepted:  make(map[string]AcceptedOrder),
		quit:      make(chan struct{}),
	}
}

// OnNewOrder processes a NewOrderSingle (35=D): the order is stored
// under the client's ClOrdID and an ExecType=NEW acknowledgement is
// scheduled for delayed delivery.
func (s *Simulator) OnNewOrder(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID, err := msg.Body.GetString(tag.ClOrdID)
	if err != nil {
		return fmt.Errorf("new order missing ClOrdID: %w", err)
	}
	sideStr, err := msg.Body.GetString(tag.Side)
	if err != nil {
		return fmt.Errorf("new order missing Side: %w", err)
	}
	ordTypeStr, err := msg.Body.GetString(tag.OrdType)
	if err != nil {
		return fmt.Errorf("new order missing OrdType: %w", err)
	}
	side := enum.Side(sideStr)
	ordType := enum.OrdType(ordTypeStr)
	symbol := fix.StringOrNA(msg, tag.Symbol)
	quantity := fix.DecimalOrZero(msg, tag.OrderQty)
	price := decimal.Zero
	if ordType == enum.OrdType_LIMIT {
		price = fix.DecimalOrZero(msg, tag.Price)
	}

	orderID := s.nextOrderID()
	s.mu.Lock()
	s.accepted[clOrdID] = AcceptedOrder{
		OrderID:  orderID,
		ClOrdID:  clOrdID,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
		OrdType:  ordType,
	}
	s.mu.Unlock()

	report := er.New(
		field.NewOrderID(orderID),
		field.NewExecID(s.nextExecID()),
		field.NewExecType(enum.ExecType_NEW),
		field.NewOrdStatus(enum.OrdStatus_NEW),
		field.NewSide(side),
		field.NewLeavesQty(quantity, 0),
		field.NewCumQty(decimal.Zero, 0),
		field.NewAvgPx(decimal.Zero, 2),
	)
	report.Set(field.NewClOrdID(clOrdID))
	report.Set(field.NewSymbol(symbol))
	report.Set(field.NewOrderQty(quantity, 0))
	if ordType == enum.OrdType_LIMIT {
		report.Set(field.NewPrice(price, 2))
	}

	s.schedule(report, sessionID, "NEW", clOrdID)
	return nil
}

// OnCancelRequest processes an OrderCancelRequest (35=F). Unknown
// originals are not rejected: the canceled report is synthesized with
// placeholder fields.
func (s *Simulator) OnCancelRequest(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID, err := msg.Body.GetString(tag.ClOrdID)
	if err != nil {
		return fmt.Errorf("cancel request missing ClOrdID: %w", err)
	}
	origClOrdID, err := msg.Body.GetString(tag.OrigClOrdID)
	if err != nil {
		return fmt.Errorf("cancel request missing OrigClOrdID: %w", err)
	}
	sideStr, err := msg.Body.GetString(tag.Side)
	if err != nil {
		return fmt.Errorf("cancel request missing Side: %w", err)
	}
	side := enum.Side(sideStr)

	s.mu.Lock()
	original, found := s.accepted[origClOrdID]
	delete(s.accepted, origClOrdID)
	s.mu.Unlock()

	orderID := original.OrderID
	symbol := original.Symbol
	quantity := original.Quantity
	if !found {
		orderID = s.nextOrderID()
		symbol = "N/A"
		quantity = decimal.Zero
	}

	report := er.New(
		field.NewOrderID(orderID),
		field.NewExecID(s.nextExecID()),
		field.NewExecType(enum.ExecType_CANCELED),
		field.NewOrdStatus(enum.OrdStatus_CANCELED),
		field.NewSide(side),
		field.NewLeavesQty(decimal.Zero, 0),
		field.NewCumQty(decimal.Zero, 0),
		field.NewAvgPx(decimal.Zero, 2),
	)
	report.Set(field.NewClOrdID(clOrdID))
	report.Set(field.NewOrigClOrdID(origClOrdID))
	report.Set(field.NewSymbol(symbol))
	report.Set(field.NewOrderQty(quantity, 0))

	s.schedule(report, sessionID, "CANCELED", clOrdID)
	return nil
}

// OnReplaceRequest processes an OrderCancelReplaceRequest (35=G): the
// old accepted order is removed and re-inserted under the request's
// ClOrdID with the new parameters.
func (s *Simulator) OnReplaceRequest(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	clOrdID, err := msg.Body.GetString(tag.ClOrdID)
	if err != nil {
		return fmt.Errorf("replace request missing ClOrdID: %w", err)
	}
	origClOrdID, err := msg.Body.GetString(tag.OrigClOrdID)
	if err != nil {
		return fmt.Errorf("replace request missing OrigClOrdID: %w", err)
	}
	sideStr, err := msg.Body.GetString(tag.Side)
	if err != nil {
		return fmt.Errorf("replace request missing Side: %w", err)
	}
	ordTypeStr, err := msg.Body.GetString(tag.OrdType)
	if err != nil {
		return fmt.Errorf("replace request missing OrdType: %w", err)
	}
	side := enum.Side(sideStr)
	ordType := enum.OrdType(ordTypeStr)
	symbol := fix.StringOrNA(msg, tag.Symbol)
	quantity := fix.DecimalOrZero(msg, tag.OrderQty)
	price := decimal.Zero
	if ordType == enum.OrdType_LIMIT {
		price = fix.DecimalOrZero(msg, tag.Price)
	}

	s.mu.Lock()
	original, found := s.accepted[origClOrdID]
	delete(s.accepted, origClOrdID)
	orderID := original.OrderID
	if !found {
		orderID = s.nextOrderID()
	}
	s.accepted[clOrdID] = AcceptedOrder{
		OrderID:  orderID,
		ClOrdID:  clOrdID,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
		OrdType:  ordType,
	}
	s.mu.Unlock()

	report := er.New(
		field.NewOrderID(orderID),
		field.NewExecID(s.nextExecID()),
		field.NewExecType(enum.ExecType_REPLACED),
		field.NewOrdStatus(enum.OrdStatus_REPLACED),
		field.NewSide(side),
		field.NewLeavesQty(quantity, 0),
		field.NewCumQty(decimal.Zero, 0),
		field.NewAvgPx(decimal.Zero, 2),
	)
	report.Set(field.NewClOrdID(clOrdID))
	report.Set(field.NewOrigClOrdID(origClOrdID))
	report.Set(field.NewSymbol(symbol))
	report.Set(field.NewOrderQty(quantity, 0))
	if ordType == enum.OrdType_LIMIT {
		report.Set(field.NewPrice(price, 2))
	}

	s.schedule(report, sessionID, "REPLACED", clOrdID)
	return nil
}

// AcceptedCount reports how many orders the venue currently holds.
func (s *Simulator) AcceptedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accepted)
}

// Accepted returns the accepted order stored for clOrdID, if any.
func (s *Simulator) Accepted(clOrdID string) (AcceptedOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.accepted[clOrdID]
	return o, ok
}

// Stop refuses new scheduling, waits up to the configured grace period
// for in-flight deliveries, then abandons the remainder.
func (s *Simulator) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Infow("venue_stopped")
	case <-s.clock.After(s.grace):
		close(s.quit)
		<-done
		s.log.Warnw("venue_stop_forced", "grace", s.grace.String())
	}
}

// schedule queues one delayed delivery attempt. Delivery is
// at-most-once: a failed send is logged and the report dropped.
func (s *Simulator) schedule(report er.ExecutionReport, sessionID quickfix.SessionID, execType, clOrdID string) {
	if s.stopped.Load() {
		s.log.Warnw("venue_stopping_report_dropped", "exec_type", execType, "cl_ord_id", clOrdID)
		return
	}

	delay := s.delay()
	s.log.Infow("report_scheduled", "exec_type", execType, "cl_ord_id", clOrdID, "delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.clock.After(delay):
		case <-s.quit:
			return
		}
		if err := s.transport.Send(report, sessionID); err != nil {
			s.log.Errorw("report_send_failed", "exec_type", execType, "cl_ord_id", clOrdID, "error", err)
			return
		}
		s.log.Infow("report_sent", "exec_type", execType, "cl_ord_id", clOrdID)
	}()
}

func (s *Simulator) nextExecID() string {
	return fmt.Sprintf("EXEC-%05d", s.execSeq.Add(1))
}

func (s *Simulator) nextOrderID() string {
	return fmt.Sprintf("SIM-%05d", s.orderSeq.Add(1))
}
