package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jbelanger/exitbook/assetid"
	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/txn"
)

// exchangeLedgerBody is the kind-specific schema for KindExchangeLedger
// envelopes: one ledger row from an exchange's trade/deposit/withdrawal
// history API. Exchange accounts have no on-chain fund-flow analysis —
// direction and asset come straight from the ledger row.
type exchangeLedgerBody struct {
	RefID         string  `json:"ref_id"`
	LedgerType    string  `json:"ledger_type"` // "trade", "deposit", "withdrawal", "fee"
	BaseAsset     string  `json:"base_asset"`
	QuoteAsset    *string `json:"quote_asset"` // set for trades only
	Amount        string  `json:"amount"`
	QuoteAmount   *string `json:"quote_amount"`
	FeeAsset      *string `json:"fee_asset"`
	FeeAmount     *string `json:"fee_amount"`
	TimestampUnix int64   `json:"timestamp_unix"`
	Side          string  `json:"side"` // "buy"/"sell" for trades, "" otherwise
}

// ExchangeProcessor implements Processor for centralized-exchange ledger
// rows: no address-based fund-flow classification applies since custody
// accounting already tells us direction (the "per-source
// processor", specialized for account_type = exchange-api).
type ExchangeProcessor struct{}

func (p *ExchangeProcessor) Kind() PayloadKind { return KindExchangeLedger }

func (p *ExchangeProcessor) Process(_ context.Context, rec RawRecord) ([]txn.Transaction, error) {
	env, err := ParseEnvelope(rec.RawPayload)
	if err != nil {
		return nil, err
	}
	var body exchangeLedgerBody
	if err := DecodeBody(env, &body); err != nil {
		return nil, err
	}
	if body.RefID == "" {
		return nil, fmt.Errorf("exchange processor: missing ref_id")
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return nil, fmt.Errorf("exchange processor: parse amount: %w", err)
	}
	baseAssetID := exchangeAssetID(body.BaseAsset)

	var movements txn.Movements
	var op txn.Operation

	switch body.LedgerType {
	case "deposit":
		movements.Inflows = []txn.Movement{{AssetID: baseAssetID, AssetSymbol: body.BaseAsset, Gross: amount, Net: amount}}
		op = txn.Operation{Category: txn.CategoryTransfer, Type: txn.OpDeposit}
	case "withdrawal":
		movements.Outflows = []txn.Movement{{AssetID: baseAssetID, AssetSymbol: body.BaseAsset, Gross: amount, Net: amount}}
		op = txn.Operation{Category: txn.CategoryTransfer, Type: txn.OpWithdrawal}
	case "trade":
		if body.QuoteAsset == nil || body.QuoteAmount == nil {
			return nil, fmt.Errorf("exchange processor: trade row missing quote_asset/quote_amount")
		}
		quoteAmount, err := decimal.NewFromString(*body.QuoteAmount)
		if err != nil {
			return nil, fmt.Errorf("exchange processor: parse quote_amount: %w", err)
		}
		quoteAssetID := exchangeAssetID(*body.QuoteAsset)
		switch body.Side {
		case "buy":
			movements.Inflows = []txn.Movement{{AssetID: baseAssetID, AssetSymbol: body.BaseAsset, Gross: amount, Net: amount}}
			movements.Outflows = []txn.Movement{{AssetID: quoteAssetID, AssetSymbol: *body.QuoteAsset, Gross: quoteAmount, Net: quoteAmount}}
			op = txn.Operation{Category: txn.CategoryTrade, Type: txn.OpBuy}
		case "sell":
			movements.Outflows = []txn.Movement{{AssetID: baseAssetID, AssetSymbol: body.BaseAsset, Gross: amount, Net: amount}}
			movements.Inflows = []txn.Movement{{AssetID: quoteAssetID, AssetSymbol: *body.QuoteAsset, Gross: quoteAmount, Net: quoteAmount}}
			op = txn.Operation{Category: txn.CategoryTrade, Type: txn.OpSell}
		default:
			return nil, fmt.Errorf("exchange processor: trade row missing side")
		}
	case "fee":
		op = txn.Operation{Category: txn.CategoryFee, Type: txn.OpFee}
	default:
		return nil, fmt.Errorf("exchange processor: unrecognized ledger_type %q", body.LedgerType)
	}

	var fees []txn.Fee
	if body.FeeAsset != nil && body.FeeAmount != nil {
		feeAmount, err := decimal.NewFromString(*body.FeeAmount)
		if err != nil {
			return nil, fmt.Errorf("exchange processor: parse fee_amount: %w", err)
		}
		// Exchange ledger fees are always user-paid: the exchange debits
		// the user's own balance, so the payer-only attribution rule is
		// trivially satisfied on a custodial account.
		fees = append(fees, txn.Fee{
			AssetID:    exchangeAssetID(*body.FeeAsset),
			AssetSymbol: *body.FeeAsset,
			Amount:     feeAmount,
			Scope:      txn.FeeScopePlatform,
			Settlement: txn.SettlementBalance,
		})
	}

	return []txn.Transaction{{
		ExternalID: body.RefID,
		SourceType: "exchange-api",
		Timestamp:  time.Unix(body.TimestampUnix, 0).UTC(),
		Status:     txn.StatusConfirmed,
		Movements:  movements,
		Fees:       fees,
		Operation:  op,
	}}, nil
}

// knownFiatCodes disambiguates fiat ledger entries from crypto ones since
// exchange ledgers report both through the same symbol field.
var knownFiatCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "CAD": true, "JPY": true, "CHF": true, "AUD": true,
}

// exchangeAssetID maps an exchange ledger symbol to a canonical asset
// identity: known fiat codes become fiat:<ISO>, everything else
// is assumed to be that asset's own chain's native unit, which holds for
// the major single-chain assets a centralized exchange lists (btc, eth,
// sol, ...). A source needing finer-grained token identity overrides this
// via its own adapter rather than going through the generic mapping.
func exchangeAssetID(symbol string) string {
	if knownFiatCodes[strings.ToUpper(symbol)] {
		return assetid.Fiat(symbol)
	}
	return assetid.Native(symbol)
}
