package processor

import "github.com/jbelanger/exitbook/txn"

// FeeInput describes one raw fee line plus who paid it, prior to the
// payer-only attribution rule being applied.
type FeeInput struct {
	Fee       txn.Fee
	PayerIsUser bool // true when the user signed/broadcast the transaction
}

// AttributeFees keeps only fees the user actually paid: fees are
// recorded only if the user was the payer (signer or broadcaster). For
// incoming transactions, fees belong to the sender. A transaction where
// the user is purely the receiving counterparty
// therefore ends up with an empty fee list even if the raw payload
// reports a network fee paid by the sender.
func AttributeFees(inputs []FeeInput) []txn.Fee {
	var out []txn.Fee
	for _, in := range inputs {
		if in.PayerIsUser {
			out = append(out, in.Fee)
		}
	}
	return out
}
