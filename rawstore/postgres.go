package rawstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists raw records to Postgres via pgx, following the
// parameterized-query, explicit-transaction style used in the
// community-ledger reference (insert, batch-in-one-transaction, unique
// constraint for dedup). Schema:
//
//	CREATE TABLE raw_transaction_record (
//	  account_id        text NOT NULL,
//	  event_id          text NOT NULL,
//	  stream_type       text NOT NULL,
//	  provider_name     text NOT NULL,
//	  raw_payload       bytea NOT NULL,
//	  normalized_payload bytea,
//	  processing_status text NOT NULL DEFAULT 'pending',
//	  created_at        timestamptz NOT NULL DEFAULT now(),
//	  PRIMARY KEY (account_id, event_id)
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pgx pool. Migration/schema creation
// is the caller's responsibility (out of scope: this module is
// storage-engine agnostic).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertBatch(ctx context.Context, records []Record) (InsertOutcome, error) {
	if len(records) == 0 {
		return InsertOutcome{}, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return InsertOutcome{}, fmt.Errorf("rawstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var out InsertOutcome
	const q = `
		INSERT INTO raw_transaction_record
			(account_id, event_id, stream_type, provider_name, raw_payload, processing_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (account_id, event_id) DO NOTHING
	`
	for _, r := range records {
		status := r.ProcessingStatus
		if status == "" {
			status = StatusPending
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		tag, err := tx.Exec(ctx, q, r.AccountID, r.EventID, r.StreamType, r.ProviderName, r.RawPayload, status, createdAt)
		if err != nil {
			return InsertOutcome{}, fmt.Errorf("rawstore: insert account=%s event=%s: %w", r.AccountID, r.EventID, err)
		}
		if tag.RowsAffected() == 0 {
			out.Duplicates++
		} else {
			out.Inserted++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return InsertOutcome{}, fmt.Errorf("rawstore: commit: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, accountID, eventID string, normalized []byte) error {
	const q = `UPDATE raw_transaction_record SET processing_status=$3, normalized_payload=$4 WHERE account_id=$1 AND event_id=$2`
	tag, err := s.pool.Exec(ctx, q, accountID, eventID, StatusProcessed, normalized)
	if err != nil {
		return fmt.Errorf("rawstore: mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errNotFound(accountID, eventID)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, accountID, eventID string, reason string) error {
	const q = `UPDATE raw_transaction_record SET processing_status=$3 WHERE account_id=$1 AND event_id=$2`
	tag, err := s.pool.Exec(ctx, q, accountID, eventID, StatusFailed)
	if err != nil {
		return fmt.Errorf("rawstore: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errNotFound(accountID, eventID)
	}
	return nil
}

func (s *PostgresStore) ResetToPending(ctx context.Context, accountID, eventID string) error {
	const q = `UPDATE raw_transaction_record SET processing_status=$3, normalized_payload=NULL WHERE account_id=$1 AND event_id=$2`
	tag, err := s.pool.Exec(ctx, q, accountID, eventID, StatusPending)
	if err != nil {
		return fmt.Errorf("rawstore: reset to pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errNotFound(accountID, eventID)
	}
	return nil
}

func (s *PostgresStore) PendingForAccount(ctx context.Context, accountID string) ([]Record, error) {
	const q = `
		SELECT account_id, event_id, stream_type, provider_name, raw_payload, normalized_payload, processing_status, created_at
		FROM raw_transaction_record
		WHERE account_id = $1 AND processing_status = $2
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, q, accountID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("rawstore: query pending: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.AccountID, &r.EventID, &r.StreamType, &r.ProviderName, &r.RawPayload, &r.NormalizedPayload, &r.ProcessingStatus, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("rawstore: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Exists(ctx context.Context, accountID, eventID string) (bool, error) {
	const q = `SELECT 1 FROM raw_transaction_record WHERE account_id=$1 AND event_id=$2`
	var one int
	err := s.pool.QueryRow(ctx, q, accountID, eventID).Scan(&one)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("rawstore: exists: %w", err)
	}
	return true, nil
}
