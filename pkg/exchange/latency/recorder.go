// Package latency measures round-trip time between sending an order
// request and receiving its first matching execution report.
package latency

import (
	"math"
	"sort"
	"sync"
	"time"

	"fixbench/pkg/util"
)

// Untracked is returned by RecordReceive for identifiers with no pending
// send entry (unsolicited or already-matched responses).
const Untracked = time.Duration(-1)

// Stats summarizes the collected round-trip samples. Percentiles use the
// nearest-rank convention: the p-th percentile is the sorted value at
// index ceil(p/100*n)-1, clamped to the valid range.
type Stats struct {
	Count   int
	Pending int
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
}

// Recorder is safe for concurrent use by the submission path and the
// dispatcher workers.
type Recorder struct {
	clock util.Clock

	mu      sync.Mutex
	pending map[string]time.Time
	samples []time.Duration
}

func NewRecorder(clock util.Clock) *Recorder {
	return &Recorder{
		clock:   clock,
		pending: make(map[string]time.Time),
	}
}

// RecordSend stores the send timestamp for an order identifier.
// A repeated call for the same identifier overwrites; last write wins.
func (r *Recorder) RecordSend(clOrdID string) {
	now := r.clock.Now()
	r.mu.Lock()
	r.pending[clOrdID] = now
	r.mu.Unlock()
}

// RecordReceive consumes the pending entry for clOrdID and returns the
// elapsed round-trip time, appending it to the sample set. Returns
// Untracked when no entry exists; the sample set is left unchanged.
func (r *Recorder) RecordReceive(clOrdID string) time.Duration {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	sent, ok := r.pending[clOrdID]
	if !ok {
		return Untracked
	}
	delete(r.pending, clOrdID)

	rtt := now.Sub(sent)
	r.samples = append(r.samples, rtt)
	return rtt
}

func (r *Recorder) SampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func (r *Recorder) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Reset clears both the pending map and the sample set.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = make(map[string]time.Time)
	r.samples = nil
}

// Statistics computes aggregate stats over the current sample set.
// The second return value is false when no samples have been collected.
func (r *Recorder) Statistics() (Stats, bool) {
	r.mu.Lock()
	sorted := make([]time.Duration, len(r.samples))
	copy(sorted, r.samples)
	pending := len(r.pending)
	r.mu.Unlock()

	if len(sorted) == 0 {
		return Stats{}, false
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, s := range sorted {
		sum += s
	}

	return Stats{
		Count:   len(sorted),
		Pending: pending,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Mean:    sum / time.Duration(len(sorted)),
		P50:     percentile(sorted, 50),
		P95:     percentile(sorted, 95),
		P99:     percentile(sorted, 99),
	}, true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100.0*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
