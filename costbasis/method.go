package costbasis

import (
	"fmt"
	"sort"

	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/internal/xerrors"
)

func errUnknownMethod(m Method) error {
	return xerrors.New(xerrors.KindConfiguration, "costbasis.SelectLots", fmt.Errorf("unrecognized method %q", m))
}

func errInsufficientLots(requested, short decimal.Decimal) error {
	return xerrors.New(xerrors.KindDataIntegrity, "costbasis.SelectLots",
		fmt.Errorf("requested %s but %s remained unfilled across open lots", requested.String(), short.String()))
}

func errNoTransfersForLink(targetTxID string) error {
	return xerrors.New(xerrors.KindDataIntegrity, "costbasis.TargetAcquisitionFromTransfer",
		fmt.Errorf("no LotTransfer rows found for target transaction %s", targetTxID))
}

// Method selects which open lots a disposal (or transfer) draws from.
type Method string

const (
	MethodFIFO       Method = "fifo"
	MethodLIFO       Method = "lifo"
	MethodHIFO       Method = "hifo"
	MethodACB        Method = "acb" // Canada average cost basis
	MethodSpecificID Method = "specific_id"
)

// LotSelection is one (lot, quantity-drawn) pair produced by a selection
// strategy; a disposal or transfer may span several lots.
type LotSelection struct {
	Lot      *AcquisitionLot
	Quantity decimal.Decimal
}

// SelectLots draws up to quantity from openLots per method, mutating each
// selected lot's Remaining in place. specificIDs is consulted only for
// MethodSpecificID (ordered list of lot IDs the caller chose explicitly).
func SelectLots(method Method, openLots []*AcquisitionLot, quantity decimal.Decimal, specificIDs []string) ([]LotSelection, error) {
	if method == MethodACB {
		return selectACB(openLots, quantity)
	}

	ordered := make([]*AcquisitionLot, len(openLots))
	copy(ordered, openLots)

	switch method {
	case MethodFIFO:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AcquiredAt.Before(ordered[j].AcquiredAt) })
	case MethodLIFO:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AcquiredAt.After(ordered[j].AcquiredAt) })
	case MethodHIFO:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CostBasisPerUnit.GreaterThan(ordered[j].CostBasisPerUnit) })
	case MethodSpecificID:
		ordered = orderBySpecificIDs(ordered, specificIDs)
	default:
		return nil, errUnknownMethod(method)
	}

	return drawFrom(ordered, quantity)
}

func drawFrom(ordered []*AcquisitionLot, quantity decimal.Decimal) ([]LotSelection, error) {
	remaining := quantity
	var out []LotSelection
	for _, lot := range ordered {
		if remaining.IsZero() {
			break
		}
		if lot.Remaining.IsZero() {
			continue
		}
		take := decimal.Min(lot.Remaining, remaining)
		lot.Remaining = lot.Remaining.Sub(take)
		remaining = remaining.Sub(take)
		out = append(out, LotSelection{Lot: lot, Quantity: take})
	}
	if !remaining.IsZero() {
		return out, errInsufficientLots(quantity, remaining)
	}
	return out, nil
}

func orderBySpecificIDs(lots []*AcquisitionLot, ids []string) []*AcquisitionLot {
	byID := make(map[string]*AcquisitionLot, len(lots))
	for _, l := range lots {
		byID[l.ID] = l
	}
	out := make([]*AcquisitionLot, 0, len(lots))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
			seen[id] = true
		}
	}
	for _, l := range lots {
		if !seen[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

// selectACB treats every open lot of the asset as a single pooled
// average-cost lot (Canada's "adjusted cost base"): draw proportionally
// isn't needed since cost_basis_per_unit is identical across all lots in
// a correctly-maintained ACB pool, so ordinary FIFO draw order produces
// the same total cost basis any other order would.
func selectACB(openLots []*AcquisitionLot, quantity decimal.Decimal) ([]LotSelection, error) {
	ordered := make([]*AcquisitionLot, len(openLots))
	copy(ordered, openLots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AcquiredAt.Before(ordered[j].AcquiredAt) })
	return drawFrom(ordered, quantity)
}

// PooledACBCostPerUnit recomputes the asset-wide average cost basis per
// unit after a new acquisition, per Canada's ACB method: the new average
// is the pool's total cost basis (existing remaining value + the new
// lot's cost) divided by the pool's total remaining quantity (existing
// remaining + the new lot's quantity).
func PooledACBCostPerUnit(existingLots []*AcquisitionLot, newQuantity, newCostBasisTotal decimal.Decimal) decimal.Decimal {
	totalQty := newQuantity
	totalCost := newCostBasisTotal
	for _, l := range existingLots {
		totalQty = totalQty.Add(l.Remaining)
		totalCost = totalCost.Add(l.Remaining.Mul(l.CostBasisPerUnit))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalCost.Div(totalQty)
}
