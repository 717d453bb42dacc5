package store

import (
	"context"
	"sync"

	"github.com/jbelanger/exitbook/costbasis"
)

// LotStore persists AcquisitionLot rows and their mutation by disposals
// and transfers.
type LotStore interface {
	Insert(ctx context.Context, l costbasis.AcquisitionLot) (string, error)
	// SetRemaining updates a lot's Remaining quantity, the only field a
	// disposal or transfer ever mutates.
	SetRemaining(ctx context.Context, lotID string, remaining string) error
	OpenForAsset(ctx context.Context, accountID, assetID string) ([]*costbasis.AcquisitionLot, error)
}

// DisposalStore persists LotDisposal rows.
type DisposalStore interface {
	Insert(ctx context.Context, d costbasis.LotDisposal) error
	ForTransaction(ctx context.Context, transactionID string) ([]costbasis.LotDisposal, error)
}

// TransferStore persists LotTransfer rows.
type TransferStore interface {
	Insert(ctx context.Context, t costbasis.LotTransfer) error
	ForLink(ctx context.Context, linkID string) ([]costbasis.LotTransfer, error)
}

// MemoryLotStore is an in-process LotStore for tests.
type MemoryLotStore struct {
	mu   sync.Mutex
	next int
	byID map[string]*costbasis.AcquisitionLot
}

func NewMemoryLotStore() *MemoryLotStore {
	return &MemoryLotStore{byID: map[string]*costbasis.AcquisitionLot{}}
}

func (s *MemoryLotStore) Insert(ctx context.Context, l costbasis.AcquisitionLot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := idFor(s.next)
	l.ID = id
	s.byID[id] = &l
	return id, nil
}

func (s *MemoryLotStore) SetRemaining(ctx context.Context, lotID string, remaining string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byID[lotID]
	if !ok {
		return errLotNotFound(lotID)
	}
	r, err := parseDecimal(remaining)
	if err != nil {
		return err
	}
	l.Remaining = r
	return nil
}

func (s *MemoryLotStore) OpenForAsset(ctx context.Context, accountID, assetID string) ([]*costbasis.AcquisitionLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*costbasis.AcquisitionLot
	for _, l := range s.byID {
		if l.AssetID != assetID {
			continue
		}
		if accountID != "" && l.AccountID != accountID {
			continue
		}
		if l.Remaining.IsZero() {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

// MemoryDisposalStore is an in-process DisposalStore for tests.
type MemoryDisposalStore struct {
	mu   sync.Mutex
	next int
	rows []costbasis.LotDisposal
}

func NewMemoryDisposalStore() *MemoryDisposalStore {
	return &MemoryDisposalStore{}
}

func (s *MemoryDisposalStore) Insert(ctx context.Context, d costbasis.LotDisposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	d.ID = idFor(s.next)
	s.rows = append(s.rows, d)
	return nil
}

func (s *MemoryDisposalStore) ForTransaction(ctx context.Context, transactionID string) ([]costbasis.LotDisposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []costbasis.LotDisposal
	for _, d := range s.rows {
		if d.TransactionID == transactionID {
			out = append(out, d)
		}
	}
	return out, nil
}

// MemoryTransferStore is an in-process TransferStore for tests.
type MemoryTransferStore struct {
	mu   sync.Mutex
	next int
	rows []costbasis.LotTransfer
}

func NewMemoryTransferStore() *MemoryTransferStore {
	return &MemoryTransferStore{}
}

func (s *MemoryTransferStore) Insert(ctx context.Context, t costbasis.LotTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	t.ID = idFor(s.next)
	s.rows = append(s.rows, t)
	return nil
}

func (s *MemoryTransferStore) ForLink(ctx context.Context, linkID string) ([]costbasis.LotTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []costbasis.LotTransfer
	for _, t := range s.rows {
		if t.LinkID == linkID {
			out = append(out, t)
		}
	}
	return out, nil
}
