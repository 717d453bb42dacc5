// Package store defines persistence contracts and in-memory reference
// implementations for the entities introduced downstream of ingestion:
// TransactionLink (linker), AcquisitionLot/LotDisposal/LotTransfer
// (costbasis), and OverrideEvent (linker, append-only). Postgres
// implementations live in store/postgres, following rawstore's
// parameterized-query style.
package store

import (
	"context"
	"sync"

	"github.com/jbelanger/exitbook/linker"
)

// LinkStore persists TransactionLink rows.
type LinkStore interface {
	// Upsert replaces any existing link for (source, target) with the
	// given state — links are recomputed wholesale on each matcher run,
	// never appended.
	Upsert(ctx context.Context, l linker.Link) error
	ForSource(ctx context.Context, sourceTransactionID string) ([]linker.Link, error)
	ForTarget(ctx context.Context, targetTransactionID string) ([]linker.Link, error)
	Confirmed(ctx context.Context) ([]linker.Link, error)
}

// MemoryLinkStore is an in-process LinkStore for tests.
type MemoryLinkStore struct {
	mu    sync.Mutex
	byKey map[[2]string]linker.Link
}

func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{byKey: map[[2]string]linker.Link{}}
}

func (s *MemoryLinkStore) Upsert(ctx context.Context, l linker.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[[2]string{l.SourceTransactionID, l.TargetTransactionID}] = l
	return nil
}

func (s *MemoryLinkStore) ForSource(ctx context.Context, sourceTransactionID string) ([]linker.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []linker.Link
	for k, l := range s.byKey {
		if k[0] == sourceTransactionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryLinkStore) ForTarget(ctx context.Context, targetTransactionID string) ([]linker.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []linker.Link
	for k, l := range s.byKey {
		if k[1] == targetTransactionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryLinkStore) Confirmed(ctx context.Context) ([]linker.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []linker.Link
	for _, l := range s.byKey {
		if l.Status == linker.LinkStatusConfirmed {
			out = append(out, l)
		}
	}
	return out, nil
}
