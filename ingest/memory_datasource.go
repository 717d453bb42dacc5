package ingest

import (
	"context"
	"sync"
)

// MemoryDataSourceStore is an in-process DataSourceStore for tests.
type MemoryDataSourceStore struct {
	mu   sync.Mutex
	byID map[string]*DataSource
}

func NewMemoryDataSourceStore() *MemoryDataSourceStore {
	return &MemoryDataSourceStore{byID: map[string]*DataSource{}}
}

func (s *MemoryDataSourceStore) FindLatestIncomplete(ctx context.Context, accountID string) (*DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *DataSource
	for _, ds := range s.byID {
		if ds.AccountID != accountID || ds.Status == SessionCompleted {
			continue
		}
		if latest == nil || ds.StartedAt.After(latest.StartedAt) {
			latest = ds
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryDataSourceStore) Create(ctx context.Context, ds *DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ds
	s.byID[ds.ID] = &cp
	return nil
}

func (s *MemoryDataSourceStore) Update(ctx context.Context, ds *DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ds
	s.byID[ds.ID] = &cp
	return nil
}
