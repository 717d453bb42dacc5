package account

import (
	"context"
	"sync"

	"github.com/jbelanger/exitbook/cursor"
)

// Store persists accounts and their per-stream cursors.
type Store interface {
	Get(ctx context.Context, accountID string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	UpdateCursor(ctx context.Context, accountID, streamType string, c cursor.State) error
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]*Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]*Account{}}
}

func (s *MemoryStore) Get(ctx context.Context, accountID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[accountID]
	if !ok {
		return nil, &notFoundError{accountID}
	}
	cp := *a
	cp.LastCursor = cloneCursors(a.LastCursor)
	return &cp, nil
}

func (s *MemoryStore) Create(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.LastCursor = cloneCursors(a.LastCursor)
	s.byID[a.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateCursor(ctx context.Context, accountID, streamType string, c cursor.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[accountID]
	if !ok {
		return &notFoundError{accountID}
	}
	if a.LastCursor == nil {
		a.LastCursor = map[string]cursor.State{}
	}
	a.LastCursor[streamType] = c
	return nil
}

func cloneCursors(m map[string]cursor.State) map[string]cursor.State {
	if m == nil {
		return nil
	}
	out := make(map[string]cursor.State, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type notFoundError struct{ accountID string }

func (e *notFoundError) Error() string { return "account: not found: " + e.accountID }
