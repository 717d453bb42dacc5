package processor

import (
	"testing"

	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/txn"
)

func dec(s string) decimal.Decimal { return decimal.MustFromString(s) }

func TestAddressSetClassify(t *testing.T) {
	addrs := NewAddressSet("0xABC")

	cases := []struct {
		name string
		m    RawMovement
		want Direction
	}{
		{"outflow", RawMovement{FromAddress: "0xabc", ToAddress: "0xdef"}, DirectionOutflow},
		{"inflow", RawMovement{FromAddress: "0xdef", ToAddress: "0xABC"}, DirectionInflow},
		{"self-transfer treated as inflow", RawMovement{FromAddress: "0xabc", ToAddress: "0xABC"}, DirectionInflow},
		{"irrelevant", RawMovement{FromAddress: "0x111", ToAddress: "0x222"}, DirectionIrrelevant},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := addrs.Classify(c.m); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestNetOfSubtractsOnChainNetworkFeeOnly(t *testing.T) {
	gross := dec("1.0")
	fees := []txn.Fee{
		{AssetID: "eth", Amount: dec("0.01"), Scope: txn.FeeScopeNetwork, Settlement: txn.SettlementOnChain},
		{AssetID: "eth", Amount: dec("0.02"), Scope: txn.FeeScopePlatform, Settlement: txn.SettlementBalance},
		{AssetID: "usdc", Amount: dec("5"), Scope: txn.FeeScopeNetwork, Settlement: txn.SettlementOnChain},
	}
	net := NetOf(gross, "eth", fees)
	if !net.Equal(dec("0.99")) {
		t.Fatalf("expected 0.99, got %s", net.String())
	}
}

func TestBuildMovementsSkipsIrrelevant(t *testing.T) {
	addrs := NewAddressSet("user1")
	raws := []RawMovement{
		{AssetID: "btc", Amount: dec("1"), FromAddress: "user1", ToAddress: "other"},
		{AssetID: "btc", Amount: dec("2"), FromAddress: "other2", ToAddress: "other3"},
	}
	m := BuildMovements(addrs, raws, nil)
	if len(m.Outflows) != 1 || len(m.Inflows) != 0 {
		t.Fatalf("expected one outflow, zero inflows, got %+v", m)
	}
}

func TestConsolidateByAssetMergesAndPreservesOrder(t *testing.T) {
	ms := []txn.Movement{
		{AssetID: "btc", Gross: dec("1"), Net: dec("1")},
		{AssetID: "eth", Gross: dec("2"), Net: dec("2")},
		{AssetID: "btc", Gross: dec("3"), Net: dec("3")},
	}
	out := ConsolidateByAsset(ms)
	if len(out) != 2 {
		t.Fatalf("expected 2 consolidated entries, got %d", len(out))
	}
	if out[0].AssetID != "btc" || !out[0].Gross.Equal(dec("4")) {
		t.Fatalf("expected btc consolidated to 4, got %+v", out[0])
	}
	if out[1].AssetID != "eth" {
		t.Fatalf("expected eth to remain second (first-seen order), got %+v", out[1])
	}
}
