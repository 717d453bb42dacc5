package costbasis

import (
	"time"

	"github.com/jbelanger/exitbook/internal/decimal"
)

// HoldingPeriod classifies a disposal's term under US-style short/long
// splits. Jurisdictions without the split (Canada) ignore this field.
type HoldingPeriod string

const (
	HoldingShortTerm HoldingPeriod = "short_term"
	HoldingLongTerm  HoldingPeriod = "long_term"
)

// DisallowedReason tags why a loss was disallowed by a jurisdiction rule.
type DisallowedReason string

const (
	DisallowedNone         DisallowedReason = ""
	DisallowedWashSale     DisallowedReason = "disallowed_wash"
	DisallowedSuperficial  DisallowedReason = "superficial"
)

// LotDisposal is the reduction of one lot's remaining quantity in
// exchange for proceeds — a tax event unless linked.
type LotDisposal struct {
	ID                string
	LotID             string
	TransactionID     string
	DisposedAt        time.Time
	Quantity          decimal.Decimal
	ProceedsPerUnit   decimal.Decimal
	CostBasisPerUnit  decimal.Decimal
	TotalProceeds     decimal.Decimal
	TotalCostBasis    decimal.Decimal
	GainLoss          decimal.Decimal
	TaxableGainLoss   decimal.Decimal
	HoldingPeriod     HoldingPeriod
	Disallowed        DisallowedReason
}

const daySeconds = 86400

// holdingPeriodDays computes days = floor((disposal_date -
// acquisition_date) / 86_400_000), the millisecond-resolution holding
// period expressed in whole days; time.Duration gives us
// seconds-resolution directly, so we divide by day length in seconds.
func holdingPeriodDays(acquiredAt, disposedAt time.Time) int64 {
	return int64(disposedAt.Sub(acquiredAt).Seconds()) / daySeconds
}

func classifyHoldingPeriod(acquiredAt, disposedAt time.Time, jurisdiction Jurisdiction) HoldingPeriod {
	if !jurisdiction.HasShortLongSplit {
		return ""
	}
	if holdingPeriodDays(acquiredAt, disposedAt) < 365 {
		return HoldingShortTerm
	}
	return HoldingLongTerm
}

// computeDisposal fills in the arithmetic for one lot consumption:
// proceeds_per_unit = price - allocated_fee_per_unit;
// gain_loss = proceeds - cost_basis.
func computeDisposal(lot AcquisitionLot, txnID string, disposedAt time.Time, quantity, pricePerUnit, allocatedFeePerUnit decimal.Decimal, jurisdiction Jurisdiction) LotDisposal {
	proceedsPerUnit := pricePerUnit.Sub(allocatedFeePerUnit)
	totalProceeds := proceedsPerUnit.Mul(quantity)
	totalCostBasis := lot.CostBasisPerUnit.Mul(quantity)
	gainLoss := totalProceeds.Sub(totalCostBasis)

	return LotDisposal{
		LotID:            lot.ID,
		TransactionID:    txnID,
		DisposedAt:       disposedAt,
		Quantity:         quantity,
		ProceedsPerUnit:  proceedsPerUnit,
		CostBasisPerUnit: lot.CostBasisPerUnit,
		TotalProceeds:    totalProceeds,
		TotalCostBasis:   totalCostBasis,
		GainLoss:         gainLoss,
		TaxableGainLoss:  gainLoss, // jurisdiction rules (wash/superficial/inclusion) applied afterward
		HoldingPeriod:    classifyHoldingPeriod(lot.AcquiredAt, disposedAt, jurisdiction),
	}
}
