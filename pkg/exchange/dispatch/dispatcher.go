// Package dispatch moves inbound message handling off the engine's
// delivery goroutine and onto a bounded worker pool. The overload policy
// is caller-runs: when the queue is full the submitting goroutine
// executes the handler itself, so no message is ever dropped.
package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"

	"fixbench/pkg/fix"
)

type task struct {
	msg       *quickfix.Message
	sessionID quickfix.SessionID
	handle    fix.HandleFunc
}

type Dispatcher struct {
	tasks chan task
	grace time.Duration
	log   *zap.SugaredLogger

	mu      sync.RWMutex
	stopped bool

	workers sync.WaitGroup

	workerRuns atomic.Uint64
	callerRuns atomic.Uint64
}

func New(workers, queueCapacity int, grace time.Duration, log *zap.SugaredLogger) *Dispatcher {
	d := &Dispatcher{
		tasks: make(chan task, queueCapacity),
		grace: grace,
		log:   log,
	}
	for i := 0; i < workers; i++ {
		d.workers.Add(1)
		go d.run()
	}
	log.Infow("dispatcher_started", "workers", workers, "queue_capacity", queueCapacity)
	return d
}

// Submit enqueues one unit of work. If the queue is full, or the
// dispatcher has been shut down, the caller executes the handler inline.
func (d *Dispatcher) Submit(msg *quickfix.Message, sessionID quickfix.SessionID, handle fix.HandleFunc) {
	t := task{msg: msg, sessionID: sessionID, handle: handle}

	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		d.callerRuns.Add(1)
		d.execute(t)
		return
	}
	select {
	case d.tasks <- t:
		d.mu.RUnlock()
	default:
		d.mu.RUnlock()
		d.callerRuns.Add(1)
		d.execute(t)
	}
}

// WorkerRuns reports how many units were executed on pool workers.
func (d *Dispatcher) WorkerRuns() uint64 { return d.workerRuns.Load() }

// CallerRuns reports how many units were executed inline by submitters.
func (d *Dispatcher) CallerRuns() uint64 { return d.callerRuns.Load() }

// QueueDepth reports the number of queued, not yet claimed units.
func (d *Dispatcher) QueueDepth() int { return len(d.tasks) }

// Shutdown stops intake and waits up to the grace period for queued and
// in-flight work to drain before abandoning the remainder.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.tasks)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Infow("dispatcher_stopped",
			"worker_runs", d.workerRuns.Load(),
			"caller_runs", d.callerRuns.Load())
	case <-time.After(d.grace):
		d.log.Warnw("dispatcher_stop_forced",
			"grace", d.grace.String(),
			"remaining", len(d.tasks))
	}
}

func (d *Dispatcher) run() {
	defer d.workers.Done()
	for t := range d.tasks {
		d.workerRuns.Add(1)
		d.execute(t)
	}
}

// execute isolates handler faults: a panic or error affects only the
// one message and is logged with its raw content.
func (d *Dispatcher) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("handler_panic", "panic", r, "raw", fix.Raw(t.msg))
		}
	}()
	if err := t.handle(t.msg, t.sessionID); err != nil {
		d.log.Errorw("handler_error", "error", err, "raw", fix.Raw(t.msg))
	}
}
