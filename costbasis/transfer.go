package costbasis

import (
	"time"

	"github.com/jbelanger/exitbook/internal/decimal"
)

// LotTransfer moves basis between linked transactions without realizing
// gain or loss. Metadata carries policy-specific extras
// such as the Canadian add-to-basis fee value.
type LotTransfer struct {
	ID                   string
	LinkID               string
	SourceLotID          string
	SourceTransactionID  string
	TargetTransactionID  string
	Quantity             decimal.Decimal
	CostBasisPerUnit     decimal.Decimal
	TransferredAt        time.Time
	CryptoFeeUSDValue    *decimal.Decimal // set only under FeePolicyAddToBasis
}

// BuildTransfers implements the "Transfer path": for an outflow
// covered by a confirmed link, mark the matched quantity non-disposal,
// draw source lots per method, and apply the jurisdiction's same-asset
// transfer fee policy.
//
// sameAssetFeeQuantity is the portion of the fee denominated in the same
// asset as the transfer; it is zero when the fee is paid in a different
// asset or there is no fee.
func BuildTransfers(
	method Method,
	openLots []*AcquisitionLot,
	linkID, sourceTxID, targetTxID string,
	transferredAt time.Time,
	grossQuantity, sameAssetFeeQuantity, feeUSDValue decimal.Decimal,
	jurisdiction Jurisdiction,
	specificIDs []string,
) ([]LotTransfer, []LotDisposal, error) {
	netQuantity := grossQuantity
	var feeDisposals []LotDisposal

	if jurisdiction.SameAssetTransferFeePolicy == FeePolicyDisposal && !sameAssetFeeQuantity.IsZero() {
		netQuantity = grossQuantity.Sub(sameAssetFeeQuantity)
		feeSelections, err := SelectLots(method, openLots, sameAssetFeeQuantity, specificIDs)
		if err != nil {
			return nil, nil, err
		}
		for _, sel := range feeSelections {
			pricePerUnit := decimal.Zero
			if !sameAssetFeeQuantity.IsZero() {
				pricePerUnit = feeUSDValue.Div(sameAssetFeeQuantity)
			}
			d := computeDisposal(*sel.Lot, sourceTxID, transferredAt, sel.Quantity, pricePerUnit, decimal.Zero, jurisdiction)
			d = ApplyInclusion(d, jurisdiction)
			feeDisposals = append(feeDisposals, d)
		}
	}

	selections, err := SelectLots(method, openLots, netQuantity, specificIDs)
	if err != nil {
		return nil, feeDisposals, err
	}

	transfers := make([]LotTransfer, 0, len(selections))
	for _, sel := range selections {
		lt := LotTransfer{
			LinkID:              linkID,
			SourceLotID:         sel.Lot.ID,
			SourceTransactionID: sourceTxID,
			TargetTransactionID: targetTxID,
			Quantity:            sel.Quantity,
			CostBasisPerUnit:    sel.Lot.CostBasisPerUnit,
			TransferredAt:       transferredAt,
		}
		if jurisdiction.SameAssetTransferFeePolicy == FeePolicyAddToBasis && !feeUSDValue.IsZero() {
			v := feeUSDValue
			lt.CryptoFeeUSDValue = &v
		}
		transfers = append(transfers, lt)
	}

	return transfers, feeDisposals, nil
}

// TargetAcquisitionFromTransfer implements the "Target
// acquisition from transfer": sum all LotTransfer rows for a link, add
// priced fiat fees from source and target, and create the target's
// inherited lot. No transfers (or a zero total quantity) is returned as a
// data-integrity error.
func TargetAcquisitionFromTransfer(
	targetTxID, assetID string,
	acquiredAt time.Time,
	transfers []LotTransfer,
	additionalFiatFeesUSD decimal.Decimal,
) (AcquisitionLot, error) {
	if len(transfers) == 0 {
		return AcquisitionLot{}, errNoTransfersForLink(targetTxID)
	}

	totalQty := decimal.Zero
	totalBasis := additionalFiatFeesUSD
	// BuildTransfers stores the whole fee value on every row of the link,
	// so it is added once, not once per row.
	var cryptoFeeUSD *decimal.Decimal
	for _, t := range transfers {
		totalQty = totalQty.Add(t.Quantity)
		totalBasis = totalBasis.Add(t.Quantity.Mul(t.CostBasisPerUnit))
		if t.CryptoFeeUSDValue != nil {
			cryptoFeeUSD = t.CryptoFeeUSDValue
		}
	}
	if cryptoFeeUSD != nil {
		totalBasis = totalBasis.Add(*cryptoFeeUSD)
	}
	if totalQty.IsZero() {
		return AcquisitionLot{}, errNoTransfersForLink(targetTxID)
	}

	perUnit := totalBasis.Div(totalQty)
	return AcquisitionLot{
		AssetID:          assetID,
		TransactionID:    targetTxID,
		AcquiredAt:       acquiredAt,
		Quantity:         totalQty,
		Remaining:        totalQty,
		CostBasisPerUnit: perUnit,
		CostBasisTotal:   totalBasis,
	}, nil
}
