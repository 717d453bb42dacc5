// Package rawstore implements the append-only Raw Transaction Record
// store: primary key (account_id, event_id), never upserted,
// deduplicated by unique constraint.
package rawstore

import (
	"context"
	"time"
)

// ProcessingStatus is the raw record's only mutable field.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusFailed    ProcessingStatus = "failed"
)

// Record is one raw provider payload, immutable except for
// ProcessingStatus and NormalizedPayload (set once by the processor).
type Record struct {
	AccountID  string
	EventID    string
	StreamType string
	ProviderName string

	RawPayload        []byte
	NormalizedPayload  []byte // nil until a processor succeeds

	ProcessingStatus ProcessingStatus
	CreatedAt        time.Time
}

// Key returns the (account_id, event_id) primary key.
func (r Record) Key() (accountID, eventID string) { return r.AccountID, r.EventID }

// InsertOutcome reports whether an insert attempt was a new row or a
// duplicate absorbed by the unique constraint.
type InsertOutcome struct {
	Inserted int
	Duplicates int
}

// Store is the persistence contract for raw records. Implementations must
// never upsert: once written, RawPayload is immutable; only
// ProcessingStatus and NormalizedPayload may be updated afterward.
type Store interface {
	// InsertBatch appends records, silently skipping any whose
	// (account_id, event_id) already exists. It must be atomic: either
	// all new records in the batch are durable, or none are.
	InsertBatch(ctx context.Context, records []Record) (InsertOutcome, error)

	// MarkProcessed updates status and optionally the normalized payload
	// for one record, identified by its primary key.
	MarkProcessed(ctx context.Context, accountID, eventID string, normalized []byte) error

	// MarkFailed updates status to failed without touching the payload.
	MarkFailed(ctx context.Context, accountID, eventID string, reason string) error

	// ResetToPending clears processing status back to pending and wipes
	// any normalized payload, used when a transaction is re-derived on
	// reprocess.
	ResetToPending(ctx context.Context, accountID, eventID string) error

	// PendingForAccount returns records awaiting processing for one
	// account, oldest first.
	PendingForAccount(ctx context.Context, accountID string) ([]Record, error)

	// Exists reports whether (account_id, event_id) is already present,
	// letting callers short-circuit without a full insert attempt.
	Exists(ctx context.Context, accountID, eventID string) (bool, error)
}
