// Package storage persists an append-only journal of order-flow events
// so a run's execution history survives process restarts.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
)

// Event is one journaled order-flow occurrence: an inbound request on
// the venue side or an inbound execution report on the client side.
type Event struct {
	Seq         uint64    `json:"seq"`
	Time        time.Time `json:"time"`
	Session     string    `json:"session"`
	MsgType     string    `json:"msgType"`
	ClOrdID     string    `json:"clOrdId"`
	OrigClOrdID string    `json:"origClOrdId,omitempty"`
	ExecType    string    `json:"execType,omitempty"`
	OrdStatus   string    `json:"ordStatus,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	RTTMillis   float64   `json:"rttMillis,omitempty"`
}

type Journal struct {
	db  *pebble.DB
	seq atomic.Uint64
}

// keys: e:<8-byte big-endian seq>
func kEvent(seq uint64) []byte {
	key := make([]byte, 2+8)
	copy(key, "e:")
	binary.BigEndian.PutUint64(key[2:], seq)
	return key
}

func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{db: db}

	// Resume the sequence from the last persisted event.
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("e:"),
		UpperBound: []byte("e;"),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal iterator: %w", err)
	}
	if iter.Last() && iter.Valid() {
		j.seq.Store(binary.BigEndian.Uint64(iter.Key()[2:]))
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, err
	}

	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Append assigns the event its sequence number and persists it.
func (j *Journal) Append(ev Event) error {
	ev.Seq = j.seq.Add(1)
	val, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := j.db.Set(kEvent(ev.Seq), val, pebble.Sync); err != nil {
		return fmt.Errorf("append event %d: %w", ev.Seq, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) ([]Event, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("e:"),
		UpperBound: []byte("e;"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Event
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		var ev Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Len reports the highest assigned sequence number.
func (j *Journal) Len() uint64 { return j.seq.Load() }
