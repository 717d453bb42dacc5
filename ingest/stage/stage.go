// Package stage implements a local, crash-recoverable write-ahead buffer
// for raw batches in flight between a provider stream and the durable raw
// store, backed by github.com/cockroachdb/pebble. It exists so a process
// crash between "provider yielded a batch" and "batch committed to the
// raw store" doesn't silently lose data — on restart, Recover replays
// anything never marked flushed.
//
// This is a supplementary durability tier, not a replacement for the
// executor's channel-based backpressure: the executor still blocks the
// provider stream when the durable store falls behind, rather than
// buffering unboundedly here.
package stage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Entry is one staged batch awaiting a durable-store commit.
type Entry struct {
	Seq       uint64
	AccountID string
	Payload   []byte // caller-defined encoding of the batch being staged
}

// Stage wraps a pebble instance scoped to one local directory. Multiple
// accounts share the same Stage; keys are namespaced by account ID.
type Stage struct {
	db  *pebble.DB
	seq uint64
}

// Open opens (or creates) a pebble database at dir.
func Open(dir string) (*Stage, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("stage: open %s: %w", dir, err)
	}
	return &Stage{db: db}, nil
}

func (s *Stage) Close() error { return s.db.Close() }

func key(accountID string, seq uint64) []byte {
	b := make([]byte, len(accountID)+1+8)
	copy(b, accountID)
	b[len(accountID)] = 0
	binary.BigEndian.PutUint64(b[len(accountID)+1:], seq)
	return b
}

// Put durably stages payload for accountID and returns the sequence
// number it was assigned, used later to mark it flushed.
func (s *Stage) Put(accountID string, payload []byte) (uint64, error) {
	s.seq++
	seq := s.seq
	if err := s.db.Set(key(accountID, seq), payload, pebble.Sync); err != nil {
		return 0, fmt.Errorf("stage: put: %w", err)
	}
	return seq, nil
}

// MarkFlushed removes a staged entry once it has been durably committed
// to the raw store.
func (s *Stage) MarkFlushed(accountID string, seq uint64) error {
	if err := s.db.Delete(key(accountID, seq), pebble.Sync); err != nil {
		return fmt.Errorf("stage: mark flushed: %w", err)
	}
	return nil
}

// Recover returns every staged entry for accountID that was never marked
// flushed, in ascending sequence order — these represent batches a prior
// process instance received from the provider but never finished
// committing to the durable raw store.
func (s *Stage) Recover(accountID string) ([]Entry, error) {
	lower := key(accountID, 0)
	upper := key(accountID, ^uint64(0))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: append(upper, 0xff)})
	if err != nil {
		return nil, fmt.Errorf("stage: recover iter: %w", err)
	}
	defer iter.Close()

	var out []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		seq := binary.BigEndian.Uint64(k[len(accountID)+1:])
		v, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		payload := append([]byte{}, v...)
		out = append(out, Entry{Seq: seq, AccountID: accountID, Payload: payload})
	}
	return out, iter.Error()
}

// EncodePayload/DecodePayload are small JSON helpers so callers can stage
// arbitrary Go structs without each reimplementing serialization.
func EncodePayload(v any) ([]byte, error) { return json.Marshal(v) }
func DecodePayload(b []byte, v any) error { return json.Unmarshal(b, v) }
