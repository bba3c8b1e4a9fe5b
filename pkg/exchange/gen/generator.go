// Package gen drives automated order submission at a configured rate,
// for load and latency runs: OrdersPerBatch orders every BatchInterval,
// until Duration elapses or Stop is called.
package gen

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("order generator is already running")

// Submitter is the slice of the order tracker the generator needs.
type Submitter interface {
	SubmitLimit(sessionID quickfix.SessionID, symbol string, side enum.Side, quantity, price decimal.Decimal) (string, error)
	SubmitMarket(sessionID quickfix.SessionID, symbol string, side enum.Side, quantity decimal.Decimal) (string, error)
}

type Config struct {
	OrdersPerBatch int
	BatchInterval  time.Duration
	Duration       time.Duration
	Symbol         string
	Side           enum.Side
	OrdType        enum.OrdType
	Quantity       decimal.Decimal
	Price          decimal.Decimal
}

type Status struct {
	Running bool   `json:"running"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
}

type Generator struct {
	orders Submitter
	cfg    Config
	log    *zap.SugaredLogger

	running atomic.Bool
	sent    atomic.Uint64
	failed  atomic.Uint64

	mu   sync.Mutex
	quit chan struct{}
	wg   sync.WaitGroup
}

func New(orders Submitter, cfg Config, log *zap.SugaredLogger) *Generator {
	return &Generator{orders: orders, cfg: cfg, log: log}
}

// Start begins sending batches on the given session until the
// configured duration elapses or Stop is called.
func (g *Generator) Start(sessionID quickfix.SessionID) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	g.sent.Store(0)
	g.failed.Store(0)

	g.mu.Lock()
	g.quit = make(chan struct{})
	quit := g.quit
	g.mu.Unlock()

	rate := float64(g.cfg.OrdersPerBatch) / g.cfg.BatchInterval.Seconds()
	g.log.Infow("generator_started",
		"orders_per_batch", g.cfg.OrdersPerBatch,
		"batch_interval", g.cfg.BatchInterval.String(),
		"duration", g.cfg.Duration.String(),
		"rate_per_sec", rate,
		"symbol", g.cfg.Symbol)

	g.wg.Add(1)
	go g.loop(sessionID, quit)
	return nil
}

// Stop halts generation. Safe to call multiple times and while stopped.
func (g *Generator) Stop() {
	if !g.running.CompareAndSwap(true, false) {
		return
	}
	g.mu.Lock()
	close(g.quit)
	g.mu.Unlock()
	g.wg.Wait()

	g.log.Infow("generator_stopped",
		"total_sent", g.sent.Load(),
		"total_failed", g.failed.Load())
}

func (g *Generator) Status() Status {
	return Status{
		Running: g.running.Load(),
		Sent:    g.sent.Load(),
		Failed:  g.failed.Load(),
	}
}

func (g *Generator) loop(sessionID quickfix.SessionID, quit chan struct{}) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.BatchInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(g.cfg.Duration)
	defer deadline.Stop()

	g.batch(sessionID, quit)
	for {
		select {
		case <-ticker.C:
			g.batch(sessionID, quit)
		case <-deadline.C:
			// Stop flips running; loop exit happens via quit below.
			go g.Stop()
		case <-quit:
			return
		}
	}
}

func (g *Generator) batch(sessionID quickfix.SessionID, quit chan struct{}) {
	for i := 0; i < g.cfg.OrdersPerBatch; i++ {
		select {
		case <-quit:
			return
		default:
		}

		var err error
		if g.cfg.OrdType == enum.OrdType_MARKET {
			_, err = g.orders.SubmitMarket(sessionID, g.cfg.Symbol, g.cfg.Side, g.cfg.Quantity)
		} else {
			_, err = g.orders.SubmitLimit(sessionID, g.cfg.Symbol, g.cfg.Side, g.cfg.Quantity, g.cfg.Price)
		}
		if err != nil {
			g.failed.Add(1)
			continue
		}
		g.sent.Add(1)
	}
}
