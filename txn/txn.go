// Package txn defines the Universal Transaction model produced by
// processors and consumed by the transfer link matcher and cost-basis
// engine.
package txn

import (
	"time"

	"github.com/jbelanger/exitbook/internal/decimal"
)

// FeeScope classifies who/what a fee was paid to.
type FeeScope string

const (
	FeeScopeNetwork  FeeScope = "network"
	FeeScopePlatform FeeScope = "platform"
)

// FeeSettlement classifies how a fee was deducted.
type FeeSettlement string

const (
	SettlementBalance  FeeSettlement = "balance"
	SettlementOnChain  FeeSettlement = "on-chain"
)

// Status is the lifecycle/confirmation state of a transaction.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Category is the top-level operation classification.
type Category string

const (
	CategoryTrade      Category = "trade"
	CategoryTransfer   Category = "transfer"
	CategoryFee        Category = "fee"
	CategoryStake      Category = "stake"
	CategoryGovernance Category = "governance"
)

// OperationType is the second half of the category x type classification.
type OperationType string

const (
	OpBuy        OperationType = "buy"
	OpSell       OperationType = "sell"
	OpDeposit    OperationType = "deposit"
	OpWithdrawal OperationType = "withdrawal"
	OpTransfer   OperationType = "transfer"
	OpFee        OperationType = "fee"
	OpStakeBond  OperationType = "bond"
	OpStakeUnbond OperationType = "unbond"
	OpStakeReward OperationType = "reward"
	OpVote       OperationType = "vote"
)

// Operation is the (category, type) classification of a transaction.
type Operation struct {
	Category Category
	Type     OperationType
}

// Movement is one asset flow within a transaction: gross is the on-wire
// amount, net subtracts same-asset on-chain fees when settlement is
// on-chain.
type Movement struct {
	AssetID     string
	AssetSymbol string
	Gross       decimal.Decimal
	Net         decimal.Decimal

	// PriceUSD is the canonical USD price at tx time, required for every
	// non-fiat movement before cost-basis calculation can run. Nil until
	// a pricing collaborator fills it in.
	PriceUSD *decimal.Decimal
}

// Fee is one fee line item attached to a transaction.
type Fee struct {
	AssetID     string
	AssetSymbol string
	Amount      decimal.Decimal
	Scope       FeeScope
	Settlement  FeeSettlement
	PriceUSD    *decimal.Decimal
}

// BlockchainInfo is populated for on-chain transactions.
type BlockchainInfo struct {
	Name        string
	BlockHeight int64
	TxHash      string
	Confirmed   bool
}

// Movements groups a transaction's inflows and outflows.
type Movements struct {
	Inflows  []Movement
	Outflows []Movement
}

// Transaction is the Universal Transaction.
type Transaction struct {
	ID         string
	ExternalID string
	AccountID  string
	Source     string // source_name, e.g. "kraken", "ethereum"
	SourceType string // account_type, e.g. "exchange-api", "blockchain"

	Timestamp time.Time
	Datetime  string // RFC3339 rendering, kept alongside Timestamp for audit display

	Status Status

	From *string
	To   *string

	Movements Movements
	Fees      []Fee

	Operation Operation

	Blockchain *BlockchainInfo
	Notes      *string
}

// PrimaryInflow returns the inflow movement with the largest Net amount,
// compared as raw quantities without prices; the first wins a tie.
func (t *Transaction) PrimaryInflow() (Movement, bool) {
	return primaryOf(t.Movements.Inflows)
}

// PrimaryOutflow returns the outflow movement with the largest Net amount,
// compared the same way as PrimaryInflow.
func (t *Transaction) PrimaryOutflow() (Movement, bool) {
	return primaryOf(t.Movements.Outflows)
}

func primaryOf(ms []Movement) (Movement, bool) {
	if len(ms) == 0 {
		return Movement{}, false
	}
	best := ms[0]
	for _, m := range ms[1:] {
		if m.Net.GreaterThan(best.Net) {
			best = m
		}
	}
	return best, true
}

// HasMovements reports whether the transaction moved any asset at all —
// the matcher skips transactions with none.
func (t *Transaction) HasMovements() bool {
	return len(t.Movements.Inflows) > 0 || len(t.Movements.Outflows) > 0
}
