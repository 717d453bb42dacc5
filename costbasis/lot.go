// Package costbasis implements the Cost-Basis Engine:
// materializes AcquisitionLot, LotDisposal, and LotTransfer records from
// an ordered transaction stream under a jurisdiction + method policy.
package costbasis

import (
	"time"

	"github.com/jbelanger/exitbook/internal/decimal"
)

// LotStatus derives from a lot's remaining quantity.
type LotStatus string

const (
	LotStatusOpen              LotStatus = "open"
	LotStatusPartiallyDisposed LotStatus = "partially_disposed"
	LotStatusFullyDisposed     LotStatus = "fully_disposed"
)

// AcquisitionLot is a dated, priced acquisition of an asset quantity
// eligible for disposal under a cost-basis method.
type AcquisitionLot struct {
	ID                string
	AccountID         string
	AssetID           string
	TransactionID     string
	AcquiredAt        time.Time
	Quantity          decimal.Decimal
	Remaining         decimal.Decimal
	CostBasisPerUnit  decimal.Decimal
	CostBasisTotal    decimal.Decimal
}

// Status derives from remaining quantity: status = f(remaining).
func (l AcquisitionLot) Status() LotStatus {
	if l.Remaining.IsZero() {
		return LotStatusFullyDisposed
	}
	if l.Remaining.Equal(l.Quantity) {
		return LotStatusOpen
	}
	return LotStatusPartiallyDisposed
}

// Disposed returns the cumulative quantity already consumed by disposals
// and transfers, derived rather than stored, so it can never drift from
// Quantity - Remaining.
func (l AcquisitionLot) Disposed() decimal.Decimal {
	return l.Quantity.Sub(l.Remaining)
}
