// Package tokenmeta implements the deferred batch contract-address lookup
// and scam heuristic that feeds the processor's scam-detection hook.
// Lookups are batched per processing pass and cached so a popular
// token's metadata is fetched once, not once per movement.
package tokenmeta

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jbelanger/exitbook/internal/xlog"
	"github.com/jbelanger/exitbook/processor"
)

// Metadata is what a contract-address lookup returns.
type Metadata struct {
	Chain           string
	ContractAddress string
	Symbol          string
	Name            string
	LiquidityUSD    float64
	HolderCount     int64
}

// Lookup fetches metadata for one (chain, contract) pair. A concrete
// implementation wraps a block explorer or token-list API; it lives
// outside this package the same way provider adapters do.
type Lookup interface {
	LookupBatch(ctx context.Context, keys []Key) (map[Key]Metadata, error)
}

// Key identifies one contract lookup.
type Key struct {
	Chain           string
	ContractAddress string
}

func (k Key) normalized() Key {
	return Key{Chain: strings.ToLower(k.Chain), ContractAddress: strings.ToLower(k.ContractAddress)}
}

// knownScamSymbols is a small denylist of symbols commonly used by
// honeypot/airdrop-spam tokens impersonating legitimate assets.
var knownScamSymbols = mapset.NewSet[string]("$CLAIM", "$AIRDROP", "$VISIT", "FREE", "REWARD")

// Service implements processor.ScamChecker with an LRU-cached metadata
// lookup plus a zero-liquidity / denylisted-symbol heuristic.
type Service struct {
	log    *xlog.Logger
	lookup Lookup
	cache  *lru.Cache[Key, Metadata]
}

// New builds a Service backed by lookup, caching up to cacheSize
// (chain, contract) pairs.
func New(lookup Lookup, cacheSize int) *Service {
	cache, err := lru.New[Key, Metadata](cacheSize)
	if err != nil {
		cache, _ = lru.New[Key, Metadata](256)
	}
	return &Service{
		log:    xlog.Default().With("component", "tokenmeta"),
		lookup: lookup,
		cache:  cache,
	}
}

var _ processor.ScamChecker = (*Service)(nil)

// CheckBatch implements processor.ScamChecker: it resolves every distinct
// contract address in movements (cache first, then one batched lookup for
// the remainder) and flags each as scam or not via IsScam.
func (s *Service) CheckBatch(ctx context.Context, movements []processor.TokenMovement) (map[string]bool, error) {
	keys := mapset.NewSet[Key]()
	for _, m := range movements {
		keys.Add(Key{Chain: m.Chain, ContractAddress: m.ContractAddress}.normalized())
	}

	resolved := make(map[Key]Metadata, keys.Cardinality())
	var missing []Key
	for k := range keys.Iter() {
		if v, ok := s.cache.Get(k); ok {
			resolved[k] = v
			continue
		}
		missing = append(missing, k)
	}

	if len(missing) > 0 {
		fetched, err := s.lookup.LookupBatch(ctx, missing)
		if err != nil {
			s.log.Warn("token metadata lookup failed, treating unresolved contracts as non-scam", "count", len(missing), "error", err)
		}
		for _, k := range missing {
			md, ok := fetched[k]
			if !ok {
				continue
			}
			s.cache.Add(k, md)
			resolved[k] = md
		}
	}

	out := make(map[string]bool, len(movements))
	for _, m := range movements {
		k := Key{Chain: m.Chain, ContractAddress: m.ContractAddress}.normalized()
		md, ok := resolved[k]
		out[m.ContractAddress] = ok && IsScam(md)
	}
	return out, nil
}

// IsScam applies the scam heuristic: zero liquidity with any holders at
// all (distinguishing "brand new, not yet listed" from "designed to never
// have real liquidity"), or a denylisted symbol.
func IsScam(md Metadata) bool {
	if knownScamSymbols.Contains(strings.ToUpper(md.Symbol)) {
		return true
	}
	return md.LiquidityUSD <= 0 && md.HolderCount > 0
}
