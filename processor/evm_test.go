package processor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jbelanger/exitbook/txn"
)

func mustEnvelope(t *testing.T, kind PayloadKind, body any) []byte {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	env := Envelope{Kind: kind, Body: b}
	out, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestEVMProcessorNativeOutflowWithFee(t *testing.T) {
	p := &EVMProcessor{UserAddresses: NewAddressSet("0xuser")}
	body := evmTransactionBody{
		Chain: "ethereum", TxHash: "0xhash1", BlockNumber: 10, TimestampUnix: 1700000000,
		FromAddress: "0xuser", ToAddress: "0xother",
		ValueWei: "1000000000000000000", GasUsed: "21000", GasPriceWei: "1000000000",
		Confirmed: true,
	}
	rec := RawRecord{EventID: "ev1", RawPayload: mustEnvelope(t, KindEVMTransaction, body)}

	txns, err := p.Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	out := txns[0]
	if len(out.Movements.Outflows) != 1 {
		t.Fatalf("expected one outflow, got %+v", out.Movements)
	}
	if len(out.Fees) != 1 {
		t.Fatalf("expected sender to be charged the gas fee, got %+v", out.Fees)
	}
	if out.Operation.Category != txn.CategoryTransfer || out.Operation.Type != txn.OpWithdrawal {
		t.Fatalf("unexpected operation: %+v", out.Operation)
	}
}

func TestEVMProcessorIncomingHasNoFee(t *testing.T) {
	p := &EVMProcessor{UserAddresses: NewAddressSet("0xuser")}
	body := evmTransactionBody{
		Chain: "ethereum", TxHash: "0xhash2", TimestampUnix: 1700000000,
		FromAddress: "0xsender", ToAddress: "0xuser",
		ValueWei: "500000000000000000", GasUsed: "21000", GasPriceWei: "1000000000",
		Confirmed: true,
	}
	rec := RawRecord{EventID: "ev2", RawPayload: mustEnvelope(t, KindEVMTransaction, body)}

	txns, err := p.Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out := txns[0]
	if len(out.Fees) != 0 {
		t.Fatalf("receiver should not be charged sender's gas fee, got %+v", out.Fees)
	}
	if out.Operation.Type != txn.OpDeposit {
		t.Fatalf("expected deposit, got %+v", out.Operation)
	}
}

func TestEVMProcessorRejectsScamToken(t *testing.T) {
	contract := "0xbadtoken"
	p := &EVMProcessor{
		UserAddresses: NewAddressSet("0xuser"),
		ScamChecker: stubScamChecker{flagged: map[string]bool{contract: true}},
	}
	body := evmTransactionBody{
		Chain: "ethereum", TxHash: "0xhash3", TimestampUnix: 1700000000,
		FromAddress: "0xsender", ToAddress: "0xuser",
		ValueWei: "1", GasUsed: "0", GasPriceWei: "0",
		ContractAddress: &contract,
		Confirmed:       true,
	}
	rec := RawRecord{EventID: "ev3", RawPayload: mustEnvelope(t, KindEVMTransaction, body)}

	_, err := p.Process(context.Background(), rec)
	if err == nil {
		t.Fatal("expected scam token to be rejected")
	}
}

type stubScamChecker struct {
	flagged map[string]bool
}

func (s stubScamChecker) CheckBatch(_ context.Context, movements []TokenMovement) (map[string]bool, error) {
	out := make(map[string]bool, len(movements))
	for _, m := range movements {
		out[m.ContractAddress] = s.flagged[m.ContractAddress]
	}
	return out, nil
}
