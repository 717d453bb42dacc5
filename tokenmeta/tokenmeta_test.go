package tokenmeta

import (
	"context"
	"testing"

	"github.com/jbelanger/exitbook/processor"
)

type fakeLookup struct {
	calls int
	data  map[Key]Metadata
}

func (f *fakeLookup) LookupBatch(_ context.Context, keys []Key) (map[Key]Metadata, error) {
	f.calls++
	out := make(map[Key]Metadata, len(keys))
	for _, k := range keys {
		if md, ok := f.data[k]; ok {
			out[k] = md
		}
	}
	return out, nil
}

func TestServiceFlagsZeroLiquidityWithHolders(t *testing.T) {
	key := Key{Chain: "ethereum", ContractAddress: "0xbad"}
	lookup := &fakeLookup{data: map[Key]Metadata{key: {Symbol: "SCAM", LiquidityUSD: 0, HolderCount: 500}}}
	svc := New(lookup, 16)

	result, err := svc.CheckBatch(context.Background(), []processor.TokenMovement{{Chain: "ethereum", ContractAddress: "0xbad"}})
	if err != nil {
		t.Fatal(err)
	}
	if !result["0xbad"] {
		t.Fatal("expected zero-liquidity contract with holders to be flagged")
	}
}

func TestServiceAllowsLegitimateToken(t *testing.T) {
	key := Key{Chain: "ethereum", ContractAddress: "0xgood"}
	lookup := &fakeLookup{data: map[Key]Metadata{key: {Symbol: "USDC", LiquidityUSD: 1000000, HolderCount: 500000}}}
	svc := New(lookup, 16)

	result, err := svc.CheckBatch(context.Background(), []processor.TokenMovement{{Chain: "ethereum", ContractAddress: "0xgood"}})
	if err != nil {
		t.Fatal(err)
	}
	if result["0xgood"] {
		t.Fatal("expected legitimate token not flagged")
	}
}

func TestServiceCachesAcrossCalls(t *testing.T) {
	key := Key{Chain: "ethereum", ContractAddress: "0xgood"}
	lookup := &fakeLookup{data: map[Key]Metadata{key: {Symbol: "USDC", LiquidityUSD: 1, HolderCount: 1}}}
	svc := New(lookup, 16)

	movements := []processor.TokenMovement{{Chain: "ethereum", ContractAddress: "0xgood"}}
	if _, err := svc.CheckBatch(context.Background(), movements); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CheckBatch(context.Background(), movements); err != nil {
		t.Fatal(err)
	}
	if lookup.calls != 1 {
		t.Fatalf("expected cache to absorb the second call, lookup invoked %d times", lookup.calls)
	}
}

func TestServiceFlagsDenylistedSymbolRegardlessOfLiquidity(t *testing.T) {
	key := Key{Chain: "ethereum", ContractAddress: "0xspam"}
	lookup := &fakeLookup{data: map[Key]Metadata{key: {Symbol: "$airdrop", LiquidityUSD: 5000000, HolderCount: 10}}}
	svc := New(lookup, 16)

	result, err := svc.CheckBatch(context.Background(), []processor.TokenMovement{{Chain: "ethereum", ContractAddress: "0xspam"}})
	if err != nil {
		t.Fatal(err)
	}
	if !result["0xspam"] {
		t.Fatal("expected denylisted symbol to be flagged regardless of liquidity")
	}
}
