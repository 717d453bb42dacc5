// Package account defines the Account entity and the per-account
// import lease that serializes raw ingestion per account.
package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbelanger/exitbook/cursor"
)

// Type is the account_type enum.
type Type string

const (
	TypeBlockchain  Type = "blockchain"
	TypeExchangeAPI Type = "exchange-api"
	TypeExchangeCSV Type = "exchange-csv"
)

// Account is the unique-identity entity keyed on (user_id, account_type,
// source_name, identifier).
type Account struct {
	ID       string
	UserID   string
	Type     Type
	Source   string // source_name
	Identifier string

	LastCursor map[string]cursor.State // keyed by stream_type
	Credentials map[string]string       // opaque; never logged

	ParentAccountID *string // set for xpub-derived addresses
	Metadata        map[string]any
}

// Key is the natural (user_id, account_type, source_name, identifier) key.
func (a Account) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", a.UserID, a.Type, a.Source, a.Identifier)
}

// IsDerived reports whether this account was derived from an xpub parent.
func (a Account) IsDerived() bool { return a.ParentAccountID != nil }

// Lease grants exclusive ownership of one account's cursor map during
// ingestion: each account owns its cursor map exclusively while ingesting,
// enforced with a per-account lease rather than a global cursor registry.
// It is a 1-buffered channel rather than a sync.Mutex so acquisition can
// be interrupted by ctx cancellation
// without leaking a goroutine that acquires the lock after its caller has
// already given up.
type Lease struct {
	slot chan struct{}
}

func newLease() *Lease {
	l := &Lease{slot: make(chan struct{}, 1)}
	l.slot <- struct{}{}
	return l
}

func (l *Lease) acquire(ctx context.Context) error {
	select {
	case <-l.slot:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lease) release() {
	l.slot <- struct{}{}
}

// Leaser hands out per-account leases from a process-wide registry keyed
// by account ID — the registry itself holds no cursor state, only leases,
// so it never becomes a second source of truth for cursor values.
type Leaser struct {
	mu     sync.Mutex
	leases map[string]*Lease
}

// NewLeaser returns an empty lease registry.
func NewLeaser() *Leaser {
	return &Leaser{leases: map[string]*Lease{}}
}

func (l *Leaser) leaseFor(accountID string) *Lease {
	l.mu.Lock()
	defer l.mu.Unlock()
	ls, ok := l.leases[accountID]
	if !ok {
		ls = newLease()
		l.leases[accountID] = ls
	}
	return ls
}

// WithLease runs fn while holding accountID's lease. If another import for
// the same account is already in flight, it blocks until that lease is
// released or ctx is done, whichever comes first. This
// is what makes resumption exclusive per account.
func (l *Leaser) WithLease(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
	ls := l.leaseFor(accountID)
	if err := ls.acquire(ctx); err != nil {
		return err
	}
	defer ls.release()
	return fn(ctx)
}
