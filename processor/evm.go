package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/jbelanger/exitbook/assetid"
	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/txn"
)

// evmTransactionBody is the kind-specific schema for KindEVMTransaction
// envelopes, one entry per confirmed transaction as an EVM node/indexer
// would report it.
type evmTransactionBody struct {
	Chain           string  `json:"chain"`
	TxHash          string  `json:"tx_hash"`
	BlockNumber     int64   `json:"block_number"`
	TimestampUnix   int64   `json:"timestamp_unix"`
	FromAddress     string  `json:"from_address"`
	ToAddress       string  `json:"to_address"`
	ValueWei        string  `json:"value_wei"`
	GasUsed         string  `json:"gas_used"`
	GasPriceWei     string  `json:"gas_price_wei"`
	ContractAddress *string `json:"contract_address"` // set for ERC-20 transfers, nil for native value transfers
	Confirmed       bool    `json:"confirmed"`
}

// EVMProcessor implements Processor for EVM-compatible chains: native
// value transfers and single-token ERC-20 transfers. Fee is always the
// network gas fee, charged only when the user's address is the sender
//.
type EVMProcessor struct {
	UserAddresses AddressSet
	ScamChecker   ScamChecker
}

func (p *EVMProcessor) Kind() PayloadKind { return KindEVMTransaction }

func (p *EVMProcessor) Process(ctx context.Context, rec RawRecord) ([]txn.Transaction, error) {
	env, err := ParseEnvelope(rec.RawPayload)
	if err != nil {
		return nil, err
	}
	var body evmTransactionBody
	if err := DecodeBody(env, &body); err != nil {
		return nil, err
	}
	if body.TxHash == "" || body.Chain == "" {
		return nil, fmt.Errorf("evm processor: missing tx_hash or chain")
	}

	value, err := decimal.NewFromString(body.ValueWei)
	if err != nil {
		return nil, fmt.Errorf("evm processor: parse value_wei: %w", err)
	}
	gasUsed, err := decimal.NewFromString(body.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("evm processor: parse gas_used: %w", err)
	}
	gasPrice, err := decimal.NewFromString(body.GasPriceWei)
	if err != nil {
		return nil, fmt.Errorf("evm processor: parse gas_price_wei: %w", err)
	}
	gasFee := gasUsed.Mul(gasPrice)

	var assetID string
	if body.ContractAddress != nil {
		if ok, err := p.rejectIfScam(ctx, body.Chain, *body.ContractAddress); err != nil {
			return nil, err
		} else if ok {
			return nil, fmt.Errorf("evm processor: contract %s flagged as scam token", *body.ContractAddress)
		}
		assetID = assetid.Token(body.Chain, *body.ContractAddress, assetid.FamilyEVM)
	} else {
		assetID = assetid.Native(body.Chain)
	}

	nativeAssetID := assetid.Native(body.Chain)
	isSender := p.UserAddresses.Contains(body.FromAddress)

	var fees []txn.Fee
	if isSender {
		fees = []txn.Fee{{
			AssetID:    nativeAssetID,
			Scope:      txn.FeeScopeNetwork,
			Settlement: txn.SettlementOnChain,
			Amount:     weiToEther(gasFee),
		}}
	}

	raw := RawMovement{
		AssetID:     assetID,
		Amount:      weiToEther(value),
		FromAddress: body.FromAddress,
		ToAddress:   body.ToAddress,
	}
	movements := BuildMovements(p.UserAddresses, []RawMovement{raw}, fees)

	op := Classify(ClassifyInput{Movements: movements})

	status := txn.StatusPending
	if body.Confirmed {
		status = txn.StatusConfirmed
	}

	t := txn.Transaction{
		ExternalID: body.TxHash,
		Source:     body.Chain,
		SourceType: "blockchain",
		Timestamp:  time.Unix(body.TimestampUnix, 0).UTC(),
		Status:     status,
		From:       &body.FromAddress,
		To:         &body.ToAddress,
		Movements:  movements,
		Fees:       fees,
		Operation:  op,
		Blockchain: &txn.BlockchainInfo{
			Name:        body.Chain,
			BlockHeight: body.BlockNumber,
			TxHash:      body.TxHash,
			Confirmed:   body.Confirmed,
		},
	}
	return []txn.Transaction{t}, nil
}

func (p *EVMProcessor) rejectIfScam(ctx context.Context, chain, contract string) (bool, error) {
	checker := p.ScamChecker
	if checker == nil {
		checker = NoopScamChecker{}
	}
	result, err := checker.CheckBatch(ctx, []TokenMovement{{Chain: chain, ContractAddress: contract}})
	if err != nil {
		return false, fmt.Errorf("evm processor: scam check: %w", err)
	}
	return result[contract], nil
}

var weiScale = decimal.MustFromString("1000000000000000000")

func weiToEther(wei decimal.Decimal) decimal.Decimal {
	return wei.Div(weiScale)
}
