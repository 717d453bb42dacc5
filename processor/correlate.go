package processor

import (
	"sort"

	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/internal/xlog"
)

// TransactionEvent is the top-level event for a NEAR/Substrate-style
// multi-event chain: one parent transaction hash can fan out into several
// receipts, each of which can carry several balance changes.
type TransactionEvent struct {
	TransactionHash string `json:"transaction_hash"`
	Timestamp       int64  `json:"timestamp"`
}

// ReceiptEvent is a second-hop event belonging to a parent transaction.
type ReceiptEvent struct {
	ReceiptID       string `json:"receipt_id"`
	TransactionHash string `json:"transaction_hash"`
}

// BalanceChangeEvent is a third-hop event belonging to a receipt. Either
// Delta is populated directly by the source API, or only AbsoluteBalance
// is known and Delta must be derived from the previous absolute reading
// for the same (AssetID, Address) pair.
type BalanceChangeEvent struct {
	ReceiptID       string           `json:"receipt_id"`
	AssetID         string           `json:"asset_id"`
	AssetSymbol     string           `json:"asset_symbol"`
	Address         string           `json:"address"`
	FromAddress     string           `json:"from_address"`
	ToAddress       string           `json:"to_address"`
	Delta           *decimal.Decimal `json:"delta,omitempty"`
	AbsoluteBalance *decimal.Decimal `json:"absolute_balance,omitempty"`
	SeqInReceipt    int              `json:"seq_in_receipt"`
}

// CorrelatedGroup is one parent transaction's fully assembled raw
// movements, ready for fund-flow classification.
type CorrelatedGroup struct {
	TransactionHash string
	Timestamp       int64
	Movements       []RawMovement
	Warnings        []string
}

// Correlate groups receipts under their parent transaction and balance
// changes under their receipt's parent transaction (the "two-hop"
// receipts→transactions, balance-changes→receipts join), deriving any
// missing deltas from consecutive absolute balances. Same-asset movements
// within a group are not merged here; NEARProcessor does that with
// ConsolidateByAsset after BuildMovements.
func Correlate(txns []TransactionEvent, receipts []ReceiptEvent, changes []BalanceChangeEvent) []CorrelatedGroup {
	log := xlog.Default().With("component", "processor.correlate")

	receiptToTxHash := make(map[string]string, len(receipts))
	for _, r := range receipts {
		receiptToTxHash[r.ReceiptID] = r.TransactionHash
	}

	type groupAccum struct {
		ts        int64
		changes   []BalanceChangeEvent
		warnings  []string
	}
	groups := make(map[string]*groupAccum)
	order := make([]string, 0, len(txns))
	for _, t := range txns {
		groups[t.TransactionHash] = &groupAccum{ts: t.Timestamp}
		order = append(order, t.TransactionHash)
	}

	for _, c := range changes {
		hash, ok := receiptToTxHash[c.ReceiptID]
		if !ok {
			log.Warn("balance change references unknown receipt, dropping", "receipt_id", c.ReceiptID)
			continue
		}
		g, ok := groups[hash]
		if !ok {
			log.Warn("receipt references unknown parent transaction, dropping", "transaction_hash", hash)
			continue
		}
		g.changes = append(g.changes, c)
	}

	out := make([]CorrelatedGroup, 0, len(order))
	for _, hash := range order {
		g := groups[hash]
		raws, warnings := deriveMovements(g.changes)
		out = append(out, CorrelatedGroup{
			TransactionHash: hash,
			Timestamp:       g.ts,
			Movements:       raws,
			Warnings:        append(g.warnings, warnings...),
		})
	}
	return out
}

// deriveMovements converts balance-change events into raw movements,
// deriving any missing Delta from consecutive AbsoluteBalance readings
// for the same (address, asset) pair, ordered by SeqInReceipt. A reading
// with neither Delta nor a predecessor to diff against is skipped with a
// warning rather than guessed.
func deriveMovements(changes []BalanceChangeEvent) ([]RawMovement, []string) {
	var warnings []string

	byKey := make(map[string][]BalanceChangeEvent)
	var keyOrder []string
	for _, c := range changes {
		key := c.Address + "|" + c.AssetID
		if _, ok := byKey[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		byKey[key] = append(byKey[key], c)
	}

	var out []RawMovement
	for _, key := range keyOrder {
		series := byKey[key]
		sort.SliceStable(series, func(i, j int) bool { return series[i].SeqInReceipt < series[j].SeqInReceipt })

		var prevAbs *decimal.Decimal
		for _, c := range series {
			delta := c.Delta
			if delta == nil && c.AbsoluteBalance != nil {
				if prevAbs != nil {
					d := c.AbsoluteBalance.Sub(*prevAbs)
					delta = &d
				} else {
					warnings = append(warnings, "no prior absolute balance to derive delta for "+key+"; skipping first reading")
				}
			}
			if c.AbsoluteBalance != nil {
				prevAbs = c.AbsoluteBalance
			}
			if delta == nil {
				// A first absolute reading was already warned about above.
				if c.AbsoluteBalance == nil {
					warnings = append(warnings, "balance change for "+key+" has neither delta nor derivable absolute; dropped")
				}
				continue
			}
			out = append(out, RawMovement{
				AssetID:     c.AssetID,
				AssetSymbol: c.AssetSymbol,
				Amount:      *delta,
				FromAddress: c.FromAddress,
				ToAddress:   c.ToAddress,
			})
		}
	}
	return out, warnings
}
