package ingest

import (
	"context"
	"time"
)

// DataSourceStatus is the import-session lifecycle state.
type DataSourceStatus string

const (
	SessionStarted   DataSourceStatus = "started"
	SessionCompleted DataSourceStatus = "completed"
	SessionFailed    DataSourceStatus = "failed"
)

// DataSource is one row per import attempt. Completed sessions are
// immutable; the latest incomplete session for an account is resumed
// rather than duplicated.
type DataSource struct {
	ID        string
	AccountID string
	Status    DataSourceStatus

	StartedAt   time.Time
	CompletedAt *time.Time

	TotalFetched   int64
	TotalPersisted int64

	Error *string

	ImportResultMetadata map[string]any
}

// DataSourceStore persists import sessions.
type DataSourceStore interface {
	// FindLatestIncomplete returns the most recent non-completed session
	// for accountID, if any.
	FindLatestIncomplete(ctx context.Context, accountID string) (*DataSource, error)
	Create(ctx context.Context, ds *DataSource) error
	Update(ctx context.Context, ds *DataSource) error
}
