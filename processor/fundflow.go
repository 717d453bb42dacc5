package processor

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/txn"
)

// Direction classifies one raw asset movement relative to the user.
type Direction int

const (
	DirectionOutflow Direction = iota
	DirectionInflow
	DirectionIrrelevant // neither counterparty is the user (shouldn't normally occur)
)

// RawMovement is the pre-classification shape a source-specific decoder
// produces before fund-flow analysis assigns direction and computes net
// amounts.
type RawMovement struct {
	AssetID     string
	AssetSymbol string
	Amount      decimal.Decimal
	FromAddress string
	ToAddress   string
}

// AddressSet holds the user's primary address plus any xpub-derived
// addresses, used to classify movements as inflow/outflow. Backed by
// golang-set so membership checks and set construction from provider
// address lists read naturally.
type AddressSet struct {
	set mapset.Set[string]
}

// NewAddressSet builds a set from a primary address plus any derived
// addresses (xpub derivation). Addresses are lowercased on insert and on
// lookup, so membership is case-insensitive for every address family.
func NewAddressSet(addresses ...string) AddressSet {
	s := mapset.NewSet[string]()
	for _, a := range addresses {
		s.Add(strings.ToLower(a))
	}
	return AddressSet{set: s}
}

func (a AddressSet) Contains(address string) bool {
	return a.set.Contains(strings.ToLower(address))
}

// Classify assigns inflow/outflow/irrelevant to a raw movement based on
// which side the user's address set matches.
func (a AddressSet) Classify(m RawMovement) Direction {
	isFrom := m.FromAddress != "" && a.Contains(m.FromAddress)
	isTo := m.ToAddress != "" && a.Contains(m.ToAddress)
	switch {
	case isFrom && !isTo:
		return DirectionOutflow
	case isTo && !isFrom:
		return DirectionInflow
	case isFrom && isTo:
		// Self-to-self movement on the same account (e.g. change output);
		// treat as inflow since net effect on holdings is a wash and the
		// matcher/cost-basis engine only care about net position.
		return DirectionInflow
	default:
		return DirectionIrrelevant
	}
}

// NetOf subtracts same-asset on-chain network fees from gross to produce
// net, step 2 ("compute net amounts by subtracting fees
// when settlement = on-chain"). Only fees matching assetID and scoped
// network+on-chain participate.
func NetOf(gross decimal.Decimal, assetID string, fees []txn.Fee) decimal.Decimal {
	net := gross
	for _, f := range fees {
		if f.AssetID == assetID && f.Scope == txn.FeeScopeNetwork && f.Settlement == txn.SettlementOnChain {
			net = net.Sub(f.Amount)
		}
	}
	return net
}

// BuildMovements classifies a slice of raw movements into inflows and
// outflows, computing net amounts.
func BuildMovements(addresses AddressSet, raws []RawMovement, fees []txn.Fee) txn.Movements {
	var out txn.Movements
	for _, r := range raws {
		dir := addresses.Classify(r)
		if dir == DirectionIrrelevant {
			continue
		}
		m := txn.Movement{
			AssetID:     r.AssetID,
			AssetSymbol: r.AssetSymbol,
			Gross:       r.Amount,
			Net:         NetOf(r.Amount, r.AssetID, fees),
		}
		switch dir {
		case DirectionInflow:
			out.Inflows = append(out.Inflows, m)
		case DirectionOutflow:
			out.Outflows = append(out.Outflows, m)
		}
	}
	return out
}

// ConsolidateByAsset merges multiple movements of the same asset into one
//,
// used by multi-stream correlation when several events of a parent
// transaction touch the same asset.
func ConsolidateByAsset(ms []txn.Movement) []txn.Movement {
	order := make([]string, 0, len(ms))
	byAsset := map[string]txn.Movement{}
	for _, m := range ms {
		existing, ok := byAsset[m.AssetID]
		if !ok {
			byAsset[m.AssetID] = m
			order = append(order, m.AssetID)
			continue
		}
		existing.Gross = existing.Gross.Add(m.Gross)
		existing.Net = existing.Net.Add(m.Net)
		byAsset[m.AssetID] = existing
	}
	out := make([]txn.Movement, 0, len(order))
	for _, id := range order {
		out = append(out, byAsset[id])
	}
	return out
}
