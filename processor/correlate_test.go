package processor

import (
	"testing"
)

func TestCorrelateTwoHopJoin(t *testing.T) {
	txns := []TransactionEvent{{TransactionHash: "tx1", Timestamp: 1000}}
	receipts := []ReceiptEvent{
		{ReceiptID: "r1", TransactionHash: "tx1"},
		{ReceiptID: "r2", TransactionHash: "tx1"},
	}
	d1 := dec("5")
	d2 := dec("-5")
	changes := []BalanceChangeEvent{
		{ReceiptID: "r1", AssetID: "near", Address: "alice", FromAddress: "bob", ToAddress: "alice", Delta: &d1},
		{ReceiptID: "r2", AssetID: "near", Address: "bob", FromAddress: "bob", ToAddress: "alice", Delta: &d2},
	}

	groups := Correlate(txns, receipts, changes)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.TransactionHash != "tx1" || len(g.Movements) != 2 {
		t.Fatalf("unexpected group: %+v", g)
	}
	if len(g.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", g.Warnings)
	}
}

func TestCorrelateDerivesDeltaFromAbsoluteBalances(t *testing.T) {
	txns := []TransactionEvent{{TransactionHash: "tx1", Timestamp: 1000}}
	receipts := []ReceiptEvent{{ReceiptID: "r1", TransactionHash: "tx1"}}

	abs1 := dec("100")
	abs2 := dec("150")
	changes := []BalanceChangeEvent{
		{ReceiptID: "r1", AssetID: "near", Address: "alice", SeqInReceipt: 0, AbsoluteBalance: &abs1},
		{ReceiptID: "r1", AssetID: "near", Address: "alice", SeqInReceipt: 1, AbsoluteBalance: &abs2, ToAddress: "alice"},
	}

	groups := Correlate(txns, receipts, changes)
	g := groups[0]
	if len(g.Movements) != 1 {
		t.Fatalf("expected exactly one derived movement (first reading has no predecessor), got %d: %+v", len(g.Movements), g.Movements)
	}
	if !g.Movements[0].Amount.Equal(dec("50")) {
		t.Fatalf("expected derived delta of 50, got %s", g.Movements[0].Amount.String())
	}
	if len(g.Warnings) != 1 {
		t.Fatalf("expected one warning for the undeliverable first reading, got %v", g.Warnings)
	}
}

func TestCorrelateDropsOrphanReceiptsAndBalanceChanges(t *testing.T) {
	txns := []TransactionEvent{{TransactionHash: "tx1", Timestamp: 1000}}
	receipts := []ReceiptEvent{{ReceiptID: "r1", TransactionHash: "tx1"}}
	d := dec("1")
	changes := []BalanceChangeEvent{
		{ReceiptID: "orphan", AssetID: "near", Address: "alice", Delta: &d},
	}
	groups := Correlate(txns, receipts, changes)
	if len(groups) != 1 || len(groups[0].Movements) != 0 {
		t.Fatalf("expected orphan balance change dropped, got %+v", groups)
	}
}
