package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/jbelanger/exitbook/txn"
)

// nearActivityBody is the kind-specific schema for KindNearActivity
// envelopes: one raw record carries the full set of transaction/receipt/
// balance-change events for a single account-indexer page, since NEAR's
// multi-shard receipt model means one logical transfer often spans
// several rows.
type nearActivityBody struct {
	Transactions   []TransactionEvent   `json:"transactions"`
	Receipts       []ReceiptEvent       `json:"receipts"`
	BalanceChanges []BalanceChangeEvent `json:"balance_changes"`
}

// NEARProcessor implements Processor for NEAR-style multi-event chains,
// exercising the correlation pipeline in correlate.go.
type NEARProcessor struct {
	UserAddresses AddressSet
}

func (p *NEARProcessor) Kind() PayloadKind { return KindNearActivity }

func (p *NEARProcessor) Process(_ context.Context, rec RawRecord) ([]txn.Transaction, error) {
	env, err := ParseEnvelope(rec.RawPayload)
	if err != nil {
		return nil, err
	}
	var body nearActivityBody
	if err := DecodeBody(env, &body); err != nil {
		return nil, err
	}
	if len(body.Transactions) == 0 {
		return nil, fmt.Errorf("near processor: no transactions in activity payload")
	}

	groups := Correlate(body.Transactions, body.Receipts, body.BalanceChanges)

	out := make([]txn.Transaction, 0, len(groups))
	for _, g := range groups {
		movements := BuildMovements(p.UserAddresses, g.Movements, nil)
		movements.Inflows = ConsolidateByAsset(movements.Inflows)
		movements.Outflows = ConsolidateByAsset(movements.Outflows)

		var notes *string
		if len(g.Warnings) > 0 {
			msg := fmt.Sprintf("%d correlation warning(s) during ingestion", len(g.Warnings))
			notes = &msg
		}

		out = append(out, txn.Transaction{
			ExternalID: g.TransactionHash,
			Source:     "near",
			SourceType: "blockchain",
			Timestamp:  time.Unix(g.Timestamp, 0).UTC(),
			Status:     txn.StatusConfirmed,
			Movements:  movements,
			Operation:  Classify(ClassifyInput{Movements: movements}),
			Blockchain: &txn.BlockchainInfo{Name: "near", TxHash: g.TransactionHash, Confirmed: true},
			Notes:      notes,
		})
	}
	return out, nil
}
