// Package ingest implements the Streaming Import Executor:
// drives a provider to produce raw records for an account, persists them
// atomically in batches, updates cursors, and manages the import-session
// lifecycle.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "go.uber.org/automaxprocs" // tune GOMAXPROCS for containerized import workers

	"github.com/jbelanger/exitbook/account"
	"github.com/jbelanger/exitbook/cursor"
	"github.com/jbelanger/exitbook/internal/xlog"
	"github.com/jbelanger/exitbook/providers"
	"github.com/jbelanger/exitbook/rawstore"
)

// Importer drives one account's streaming ingestion. Concrete adapters
// typically wrap a providers.Manager.ExecuteStreaming call per stream
// type; the executor itself is provider-agnostic.
type Importer interface {
	ImportStreaming(ctx context.Context, cursors map[string]cursor.State) (<-chan providers.StreamResult, error)
}

// Executor drives a single import session end to end: opens a data
// source record, streams batches from an Importer, persists each batch,
// and checkpoints cursors as it goes.
type Executor struct {
	log         *xlog.Logger
	dataSources DataSourceStore
	accounts    account.Store
	raw         rawstore.Store
	leaser      *account.Leaser
}

// NewExecutor wires the executor's dependencies.
func NewExecutor(dataSources DataSourceStore, accounts account.Store, raw rawstore.Store, leaser *account.Leaser) *Executor {
	return &Executor{
		log:         xlog.Default().With("component", "ingest.executor"),
		dataSources: dataSources,
		accounts:    accounts,
		raw:         raw,
		leaser:      leaser,
	}
}

// Run executes the full import protocol for one account, serialized via
// the account's lease.
func (e *Executor) Run(ctx context.Context, accountID string, importer Importer) error {
	return e.leaser.WithLease(ctx, accountID, func(ctx context.Context) error {
		return e.runLocked(ctx, accountID, importer)
	})
}

func (e *Executor) runLocked(ctx context.Context, accountID string, importer Importer) error {
	acct, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("ingest: load account %s: %w", accountID, err)
	}

	ds, err := e.findOrCreateSession(ctx, accountID)
	if err != nil {
		return err
	}
	log := e.log.With("account_id", accountID, "data_source_id", ds.ID)
	log.Info("import session started", "resumed", ds.TotalFetched > 0)

	cursors := acct.LastCursor
	stream, err := importer.ImportStreaming(ctx, cursors)
	if err != nil {
		return e.finalizeFailed(ctx, ds, err)
	}

	var lastGoodCursor map[string]cursor.State = map[string]cursor.State{}
	for k, v := range cursors {
		lastGoodCursor[k] = v
	}

	for result := range stream {
		select {
		case <-ctx.Done():
			return e.finalizeFailed(ctx, ds, ctx.Err())
		default:
		}

		if result.Err != nil {
			// Everything persisted so far is already durable (each batch
			// is committed before we advance), so we only need to record
			// the terminal error and the last good cursor.
			return e.finalizeFailedWithCursor(ctx, ds, result.Err, lastGoodCursor)
		}

		batch := result.Batch
		records := make([]rawstore.Record, 0, len(batch.RawTransactions))
		for _, rt := range batch.RawTransactions {
			records = append(records, rawstore.Record{
				AccountID:    accountID,
				EventID:      rt.EventID,
				StreamType:   string(batch.OperationType),
				ProviderName: rt.ProviderName,
				RawPayload:   rt.RawPayload,
			})
		}

		outcome, err := e.raw.InsertBatch(ctx, records)
		if err != nil {
			return e.finalizeFailedWithCursor(ctx, ds, err, lastGoodCursor)
		}

		if err := e.accounts.UpdateCursor(ctx, accountID, string(batch.OperationType), batch.Cursor); err != nil {
			return e.finalizeFailedWithCursor(ctx, ds, err, lastGoodCursor)
		}
		lastGoodCursor[string(batch.OperationType)] = batch.Cursor

		ds.TotalFetched += int64(len(batch.RawTransactions))
		ds.TotalPersisted += int64(outcome.Inserted)
		log.Debug("batch persisted", "stream_type", batch.OperationType, "inserted", outcome.Inserted, "duplicates", outcome.Duplicates, "is_complete", batch.IsComplete)
	}

	return e.finalizeCompleted(ctx, ds)
}

func (e *Executor) findOrCreateSession(ctx context.Context, accountID string) (*DataSource, error) {
	existing, err := e.dataSources.FindLatestIncomplete(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ingest: find incomplete session: %w", err)
	}
	if existing != nil {
		existing.Status = SessionStarted
		if err := e.dataSources.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("ingest: resume session: %w", err)
		}
		return existing, nil
	}
	ds := &DataSource{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Status:    SessionStarted,
		StartedAt: time.Now(),
	}
	if err := e.dataSources.Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("ingest: create session: %w", err)
	}
	return ds, nil
}

func (e *Executor) finalizeCompleted(ctx context.Context, ds *DataSource) error {
	now := time.Now()
	ds.Status = SessionCompleted
	ds.CompletedAt = &now
	if err := e.dataSources.Update(ctx, ds); err != nil {
		return fmt.Errorf("ingest: finalize completed: %w", err)
	}
	e.log.Info("import session completed", "account_id", ds.AccountID, "data_source_id", ds.ID, "total_fetched", ds.TotalFetched)
	return nil
}

func (e *Executor) finalizeFailed(ctx context.Context, ds *DataSource, cause error) error {
	return e.finalizeFailedWithCursor(ctx, ds, cause, nil)
}

// finalizeFailedWithCursor marks the session failed. The cursor itself
// was already durably persisted per successful batch, so there is
// nothing further to write here beyond the session's terminal status: the
// session handle is released on any exit path having already written its
// terminal status.
func (e *Executor) finalizeFailedWithCursor(ctx context.Context, ds *DataSource, cause error, _ map[string]cursor.State) error {
	now := time.Now()
	ds.Status = SessionFailed
	ds.CompletedAt = &now
	msg := cause.Error()
	ds.Error = &msg
	if err := e.dataSources.Update(ctx, ds); err != nil {
		return fmt.Errorf("ingest: finalize failed session (original cause %v): %w", cause, err)
	}
	e.log.Error("import session failed", "account_id", ds.AccountID, "data_source_id", ds.ID, "error", cause)
	return cause
}
