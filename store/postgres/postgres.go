// Package postgres implements store's persistence contracts against
// Postgres via pgx, following rawstore.PostgresStore's parameterized
// query and explicit-transaction style. Schema:
//
//	CREATE TABLE transaction_link (
//	  source_transaction_id text NOT NULL,
//	  target_transaction_id text NOT NULL,
//	  link_type         text NOT NULL,
//	  confidence_score  double precision NOT NULL,
//	  status            text NOT NULL,
//	  auto_confirmed    boolean NOT NULL DEFAULT false,
//	  match_criteria    jsonb NOT NULL,
//	  PRIMARY KEY (source_transaction_id, target_transaction_id)
//	);
//
//	CREATE TABLE acquisition_lot (
//	  id                  bigserial PRIMARY KEY,
//	  account_id          text NOT NULL,
//	  asset_id            text NOT NULL,
//	  transaction_id      text NOT NULL,
//	  acquired_at         timestamptz NOT NULL,
//	  quantity            numeric NOT NULL,
//	  remaining           numeric NOT NULL,
//	  cost_basis_per_unit numeric NOT NULL,
//	  cost_basis_total    numeric NOT NULL
//	);
//
//	CREATE TABLE lot_disposal (
//	  id                  bigserial PRIMARY KEY,
//	  lot_id              text NOT NULL,
//	  transaction_id      text NOT NULL,
//	  disposed_at         timestamptz NOT NULL,
//	  quantity            numeric NOT NULL,
//	  proceeds_per_unit   numeric NOT NULL,
//	  cost_basis_per_unit numeric NOT NULL,
//	  total_proceeds      numeric NOT NULL,
//	  total_cost_basis    numeric NOT NULL,
//	  gain_loss           numeric NOT NULL,
//	  taxable_gain_loss   numeric NOT NULL,
//	  holding_period      text NOT NULL DEFAULT '',
//	  disallowed          text NOT NULL DEFAULT ''
//	);
//
//	CREATE TABLE lot_transfer (
//	  id                     bigserial PRIMARY KEY,
//	  link_id                text NOT NULL,
//	  source_lot_id          text NOT NULL,
//	  source_transaction_id  text NOT NULL,
//	  target_transaction_id  text NOT NULL,
//	  quantity               numeric NOT NULL,
//	  cost_basis_per_unit    numeric NOT NULL,
//	  transferred_at         timestamptz NOT NULL,
//	  crypto_fee_usd_value   numeric
//	);
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jbelanger/exitbook/costbasis"
	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/internal/xerrors"
	"github.com/jbelanger/exitbook/linker"
)

// LinkStore persists TransactionLink rows.
type LinkStore struct {
	pool *pgxpool.Pool
}

func NewLinkStore(pool *pgxpool.Pool) *LinkStore {
	return &LinkStore{pool: pool}
}

func (s *LinkStore) Upsert(ctx context.Context, l linker.Link) error {
	criteria, err := json.Marshal(l.Criteria)
	if err != nil {
		return fmt.Errorf("store/postgres: encode match_criteria: %w", err)
	}
	const q = `
		INSERT INTO transaction_link
			(source_transaction_id, target_transaction_id, link_type, confidence_score, status, auto_confirmed, match_criteria)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (source_transaction_id, target_transaction_id) DO UPDATE SET
			link_type=$3, confidence_score=$4, status=$5, auto_confirmed=$6, match_criteria=$7
	`
	_, err = s.pool.Exec(ctx, q, l.SourceTransactionID, l.TargetTransactionID, l.LinkType, l.Confidence, l.Status, l.AutoConfirmed, criteria)
	if err != nil {
		return fmt.Errorf("store/postgres: upsert link %s->%s: %w", l.SourceTransactionID, l.TargetTransactionID, err)
	}
	return nil
}

func (s *LinkStore) ForSource(ctx context.Context, sourceTransactionID string) ([]linker.Link, error) {
	const q = `
		SELECT source_transaction_id, target_transaction_id, link_type, confidence_score, status, auto_confirmed, match_criteria
		FROM transaction_link WHERE source_transaction_id = $1
	`
	return s.queryLinks(ctx, q, sourceTransactionID)
}

func (s *LinkStore) ForTarget(ctx context.Context, targetTransactionID string) ([]linker.Link, error) {
	const q = `
		SELECT source_transaction_id, target_transaction_id, link_type, confidence_score, status, auto_confirmed, match_criteria
		FROM transaction_link WHERE target_transaction_id = $1
	`
	return s.queryLinks(ctx, q, targetTransactionID)
}

func (s *LinkStore) Confirmed(ctx context.Context) ([]linker.Link, error) {
	const q = `
		SELECT source_transaction_id, target_transaction_id, link_type, confidence_score, status, auto_confirmed, match_criteria
		FROM transaction_link WHERE status = $1
	`
	return s.queryLinks(ctx, q, linker.LinkStatusConfirmed)
}

func (s *LinkStore) queryLinks(ctx context.Context, q string, arg any) ([]linker.Link, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: query links: %w", err)
	}
	defer rows.Close()

	var out []linker.Link
	for rows.Next() {
		var l linker.Link
		var criteria []byte
		if err := rows.Scan(&l.SourceTransactionID, &l.TargetTransactionID, &l.LinkType, &l.Confidence, &l.Status, &l.AutoConfirmed, &criteria); err != nil {
			return nil, fmt.Errorf("store/postgres: scan link: %w", err)
		}
		if len(criteria) > 0 {
			if err := json.Unmarshal(criteria, &l.Criteria); err != nil {
				return nil, fmt.Errorf("store/postgres: decode match_criteria: %w", err)
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LotStore persists AcquisitionLot rows.
type LotStore struct {
	pool *pgxpool.Pool
}

func NewLotStore(pool *pgxpool.Pool) *LotStore {
	return &LotStore{pool: pool}
}

func (s *LotStore) Insert(ctx context.Context, l costbasis.AcquisitionLot) (string, error) {
	const q = `
		INSERT INTO acquisition_lot
			(account_id, asset_id, transaction_id, acquired_at, quantity, remaining, cost_basis_per_unit, cost_basis_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, q, l.AccountID, l.AssetID, l.TransactionID, l.AcquiredAt,
		l.Quantity.String(), l.Remaining.String(), l.CostBasisPerUnit.String(), l.CostBasisTotal.String()).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store/postgres: insert lot: %w", err)
	}
	return fmt.Sprintf("%d", id), nil
}

func (s *LotStore) SetRemaining(ctx context.Context, lotID string, remaining string) error {
	const q = `UPDATE acquisition_lot SET remaining=$2 WHERE id=$1`
	tag, err := s.pool.Exec(ctx, q, lotID, remaining)
	if err != nil {
		return fmt.Errorf("store/postgres: set remaining for lot %s: %w", lotID, err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.New(xerrors.KindDataIntegrity, "store/postgres.LotStore.SetRemaining", fmt.Errorf("lot not found: %s", lotID))
	}
	return nil
}

func (s *LotStore) OpenForAsset(ctx context.Context, accountID, assetID string) ([]*costbasis.AcquisitionLot, error) {
	const q = `
		SELECT id, account_id, asset_id, transaction_id, acquired_at, quantity, remaining, cost_basis_per_unit, cost_basis_total
		FROM acquisition_lot
		WHERE asset_id = $1 AND ($2 = '' OR account_id = $2) AND remaining <> 0
		ORDER BY acquired_at ASC
	`
	rows, err := s.pool.Query(ctx, q, assetID, accountID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: query open lots: %w", err)
	}
	defer rows.Close()

	var out []*costbasis.AcquisitionLot
	for rows.Next() {
		var l costbasis.AcquisitionLot
		var quantity, remaining, costPerUnit, costTotal string
		var id int64
		if err := rows.Scan(&id, &l.AccountID, &l.AssetID, &l.TransactionID, &l.AcquiredAt, &quantity, &remaining, &costPerUnit, &costTotal); err != nil {
			return nil, fmt.Errorf("store/postgres: scan lot: %w", err)
		}
		l.ID = fmt.Sprintf("%d", id)
		if l.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, err
		}
		if l.Remaining, err = decimal.NewFromString(remaining); err != nil {
			return nil, err
		}
		if l.CostBasisPerUnit, err = decimal.NewFromString(costPerUnit); err != nil {
			return nil, err
		}
		if l.CostBasisTotal, err = decimal.NewFromString(costTotal); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// DisposalStore persists LotDisposal rows.
type DisposalStore struct {
	pool *pgxpool.Pool
}

func NewDisposalStore(pool *pgxpool.Pool) *DisposalStore {
	return &DisposalStore{pool: pool}
}

func (s *DisposalStore) Insert(ctx context.Context, d costbasis.LotDisposal) error {
	const q = `
		INSERT INTO lot_disposal
			(lot_id, transaction_id, disposed_at, quantity, proceeds_per_unit, cost_basis_per_unit,
			 total_proceeds, total_cost_basis, gain_loss, taxable_gain_loss, holding_period, disallowed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`
	_, err := s.pool.Exec(ctx, q, d.LotID, d.TransactionID, d.DisposedAt, d.Quantity.String(), d.ProceedsPerUnit.String(),
		d.CostBasisPerUnit.String(), d.TotalProceeds.String(), d.TotalCostBasis.String(), d.GainLoss.String(),
		d.TaxableGainLoss.String(), string(d.HoldingPeriod), string(d.Disallowed))
	if err != nil {
		return fmt.Errorf("store/postgres: insert disposal for lot %s: %w", d.LotID, err)
	}
	return nil
}

func (s *DisposalStore) ForTransaction(ctx context.Context, transactionID string) ([]costbasis.LotDisposal, error) {
	const q = `
		SELECT lot_id, transaction_id, disposed_at, quantity, proceeds_per_unit, cost_basis_per_unit,
		       total_proceeds, total_cost_basis, gain_loss, taxable_gain_loss, holding_period, disallowed
		FROM lot_disposal WHERE transaction_id = $1
	`
	rows, err := s.pool.Query(ctx, q, transactionID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: query disposals: %w", err)
	}
	defer rows.Close()

	var out []costbasis.LotDisposal
	for rows.Next() {
		var d costbasis.LotDisposal
		var quantity, proceedsPerUnit, costPerUnit, totalProceeds, totalCostBasis, gainLoss, taxable string
		var holding, disallowed string
		if err := rows.Scan(&d.LotID, &d.TransactionID, &d.DisposedAt, &quantity, &proceedsPerUnit, &costPerUnit,
			&totalProceeds, &totalCostBasis, &gainLoss, &taxable, &holding, &disallowed); err != nil {
			return nil, fmt.Errorf("store/postgres: scan disposal: %w", err)
		}
		d.HoldingPeriod = costbasis.HoldingPeriod(holding)
		d.Disallowed = costbasis.DisallowedReason(disallowed)
		if d.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, err
		}
		if d.ProceedsPerUnit, err = decimal.NewFromString(proceedsPerUnit); err != nil {
			return nil, err
		}
		if d.CostBasisPerUnit, err = decimal.NewFromString(costPerUnit); err != nil {
			return nil, err
		}
		if d.TotalProceeds, err = decimal.NewFromString(totalProceeds); err != nil {
			return nil, err
		}
		if d.TotalCostBasis, err = decimal.NewFromString(totalCostBasis); err != nil {
			return nil, err
		}
		if d.GainLoss, err = decimal.NewFromString(gainLoss); err != nil {
			return nil, err
		}
		if d.TaxableGainLoss, err = decimal.NewFromString(taxable); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TransferStore persists LotTransfer rows.
type TransferStore struct {
	pool *pgxpool.Pool
}

func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

func (s *TransferStore) Insert(ctx context.Context, t costbasis.LotTransfer) error {
	const q = `
		INSERT INTO lot_transfer
			(link_id, source_lot_id, source_transaction_id, target_transaction_id, quantity, cost_basis_per_unit, transferred_at, crypto_fee_usd_value)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	var feeUSD any
	if t.CryptoFeeUSDValue != nil {
		feeUSD = t.CryptoFeeUSDValue.String()
	}
	_, err := s.pool.Exec(ctx, q, t.LinkID, t.SourceLotID, t.SourceTransactionID, t.TargetTransactionID,
		t.Quantity.String(), t.CostBasisPerUnit.String(), t.TransferredAt, feeUSD)
	if err != nil {
		return fmt.Errorf("store/postgres: insert transfer for link %s: %w", t.LinkID, err)
	}
	return nil
}

func (s *TransferStore) ForLink(ctx context.Context, linkID string) ([]costbasis.LotTransfer, error) {
	const q = `
		SELECT link_id, source_lot_id, source_transaction_id, target_transaction_id, quantity, cost_basis_per_unit, transferred_at, crypto_fee_usd_value
		FROM lot_transfer WHERE link_id = $1
	`
	rows, err := s.pool.Query(ctx, q, linkID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: query transfers: %w", err)
	}
	defer rows.Close()

	var out []costbasis.LotTransfer
	for rows.Next() {
		var t costbasis.LotTransfer
		var quantity, costPerUnit string
		var feeUSD *string
		if err := rows.Scan(&t.LinkID, &t.SourceLotID, &t.SourceTransactionID, &t.TargetTransactionID, &quantity, &costPerUnit, &t.TransferredAt, &feeUSD); err != nil {
			return nil, fmt.Errorf("store/postgres: scan transfer: %w", err)
		}
		if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, err
		}
		if t.CostBasisPerUnit, err = decimal.NewFromString(costPerUnit); err != nil {
			return nil, err
		}
		if feeUSD != nil {
			v, err := decimal.NewFromString(*feeUSD)
			if err != nil {
				return nil, err
			}
			t.CryptoFeeUSDValue = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
