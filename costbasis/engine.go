package costbasis

import (
	"fmt"
	"sort"
	"time"

	"github.com/jbelanger/exitbook/assetid"
	"github.com/jbelanger/exitbook/internal/decimal"
	"github.com/jbelanger/exitbook/internal/xerrors"
	"github.com/jbelanger/exitbook/internal/xlog"
)

// Config is the engine's run configuration.
type Config struct {
	Method       Method
	Jurisdiction Jurisdiction
	TaxYear      int
	Currency     string // must be "USD"; anything else is rejected in CheckPreconditions
	Start, End   *time.Time
}

// PricedMovement is a movement already annotated with its USD price, the
// shape the engine's preconditions require.
type PricedMovement struct {
	TransactionID string
	AssetID       string
	Quantity      decimal.Decimal
	PriceUSD      *decimal.Decimal
	IsFee         bool
	FeeScope      string // mirrors txn.FeeScope for same-asset-fee detection; empty for non-fee movements
}

// CalculationStatus is the terminal state of one engine run.
type CalculationStatus string

const (
	StatusCompleted CalculationStatus = "completed"
	StatusFailed    CalculationStatus = "failed"
)

// CalculationSummary is the engine's output.
type CalculationSummary struct {
	LotsCreated           int
	DisposalsProcessed    int
	AssetsProcessed       []string
	TotalCapitalGainLoss  decimal.Decimal
	TotalTaxableGainLoss  decimal.Decimal
	Status                CalculationStatus
}

// VarianceThreshold pairs a warn/error percentage for one source.
type VarianceThreshold struct {
	WarnPct  float64
	ErrorPct float64
}

// varianceThresholds are the documented per-source defaults.
var varianceThresholds = map[string]VarianceThreshold{
	"kraken":   {WarnPct: 0.5, ErrorPct: 2.0},
	"coinbase": {WarnPct: 1.0, ErrorPct: 3.0},
	"binance":  {WarnPct: 1.5, ErrorPct: 5.0},
	"kucoin":   {WarnPct: 1.5, ErrorPct: 5.0},
}

var defaultVarianceThreshold = VarianceThreshold{WarnPct: 1.0, ErrorPct: 3.0}

// VarianceThresholdFor returns the configured threshold for a source
// name, falling back to the documented default for unrecognized sources.
func VarianceThresholdFor(source string) VarianceThreshold {
	if t, ok := varianceThresholds[source]; ok {
		return t
	}
	return defaultVarianceThreshold
}

// CheckVariance implements the "On outflow processing, verify
// outflow.net ≈ gross − Σ(same-asset on-chain fees)", returning a
// non-nil warning or a fatal error depending on which threshold the
// observed variance crosses.
func CheckVariance(source string, gross, net, sameAssetOnChainFees decimal.Decimal) (warning string, err error) {
	expectedNet := gross.Sub(sameAssetOnChainFees)
	if gross.IsZero() {
		return "", nil
	}
	variancePct := net.Sub(expectedNet).Abs().Div(gross).Float64() * 100
	threshold := VarianceThresholdFor(source)
	switch {
	case variancePct > threshold.ErrorPct:
		return "", xerrors.New(xerrors.KindDataIntegrity, "costbasis.CheckVariance",
			fmt.Errorf("net/gross variance %.3f%% exceeds error threshold %.3f%% for source %q", variancePct, threshold.ErrorPct, source))
	case variancePct > threshold.WarnPct:
		return fmt.Sprintf("net/gross variance %.3f%% exceeds warn threshold %.3f%% for source %q", variancePct, threshold.WarnPct, source), nil
	default:
		return "", nil
	}
}

// CheckPreconditions implements the "Preconditions": every
// non-fiat movement (and participating fee) must carry a USD price, and
// missing prices fail with up to 5 example transaction IDs; non-USD
// currency configuration fails immediately.
func CheckPreconditions(cfg Config, movements []PricedMovement) error {
	if cfg.Currency != "USD" {
		return xerrors.New(xerrors.KindConfiguration, "costbasis.CheckPreconditions",
			fmt.Errorf("non-USD pricing currency %q is rejected; auto-conversion via an FX oracle is out of scope", cfg.Currency))
	}

	var missing []string
	for _, m := range movements {
		if assetid.IsFiat(m.AssetID) {
			continue
		}
		if m.PriceUSD == nil {
			missing = append(missing, m.TransactionID)
			if len(missing) >= 5 {
				break
			}
		}
	}
	if len(missing) > 0 {
		return xerrors.New(xerrors.KindValidation, "costbasis.CheckPreconditions",
			fmt.Errorf("missing price_at_tx_time for non-fiat movements")).WithExamples(missing)
	}
	return nil
}

// Engine runs the cost-basis calculation protocol. It holds no cross-run
// state: callers construct one per calculation run,
// matching the "globally serialized single writer per calculation run"
// concurrency model.
type Engine struct {
	log *xlog.Logger
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{log: xlog.Default().With("component", "costbasis.engine"), cfg: cfg}
}

// AssetBook tracks one asset's open lots across the run.
type AssetBook struct {
	AssetID string
	Lots    []*AcquisitionLot
}

// openRemaining returns only lots with Remaining > 0, the view every
// selection strategy operates on.
func (b *AssetBook) openRemaining() []*AcquisitionLot {
	out := make([]*AcquisitionLot, 0, len(b.Lots))
	for _, l := range b.Lots {
		if !l.Remaining.IsZero() {
			out = append(out, l)
		}
	}
	return out
}

// RunResult aggregates every lot/disposal/transfer the run produced,
// ready for the caller to persist in one transaction, written atomically
// and marked completed or failed as a unit.
type RunResult struct {
	Lots      []*AcquisitionLot
	Disposals []LotDisposal
	Transfers []LotTransfer
	Summary   CalculationSummary
	Warnings  []string
}

func failedResult() RunResult {
	return RunResult{Summary: CalculationSummary{Status: StatusFailed}}
}

// AcquisitionInput is one inflow not covered by an inbound confirmed link.
type AcquisitionInput struct {
	AssetID         string
	AcquiredAt      time.Time
	Quantity        decimal.Decimal
	PriceUSD        decimal.Decimal
	AllocatedFeeUSD decimal.Decimal
}

// DisposalInput is one outflow not covered by an outbound confirmed link.
type DisposalInput struct {
	AssetID                 string
	Source                  string // provider name; drives CheckVariance's threshold lookup, empty skips the check
	DisposedAt              time.Time
	Quantity                decimal.Decimal
	GrossProceedsUSD        decimal.Decimal
	NetProceedsUSD          decimal.Decimal
	PricePerUnit            decimal.Decimal
	AllocatedFeePerUnit     decimal.Decimal
	SameAssetOnChainFeesUSD decimal.Decimal
	ReacquisitionDates      []time.Time
	StillHeldAtWindowEnd    bool
	SpecificLotIDs          []string
}

// TransferInput is a confirmed link's source-side outflow: a non-taxable
// movement of basis from one of the user's own accounts to another.
// Keyed by SourceTransactionID in CalculateInput.Transfers; the target
// side needs no separate entry since AssetID/AdditionalFiatFeesUSD here
// carry everything TargetAcquisitionFromTransfer needs once the link's
// target transaction is reached.
type TransferInput struct {
	LinkID                string
	AssetID               string
	TransferredAt         time.Time
	GrossQuantity         decimal.Decimal
	SameAssetFeeQuantity  decimal.Decimal
	FeeUSDValue           decimal.Decimal
	AdditionalFiatFeesUSD decimal.Decimal
	SpecificLotIDs        []string
}

// CalculateInput is one full run's input set, keyed by transaction ID so
// Calculate can dispatch each ordered transaction to the right path.
type CalculateInput struct {
	Transactions []OrderableTransaction
	Links        []ConfirmedLink
	Acquisitions map[string]AcquisitionInput
	Disposals    map[string]DisposalInput
	Transfers    map[string]TransferInput // keyed by SourceTransactionID
}

// Calculate implements the engine's orchestration entry point: order the
// transaction stream (confirmed links take precedence over raw
// timestamps), dispatch each transaction to its transfer, acquisition, or
// disposal path, check outflow variance, and fold the result into a
// RunResult ready for the caller to persist atomically. A fatal error from
// any step aborts the run and returns a RunResult with Status ==
// StatusFailed, matching the "marked completed or failed as a unit"
// contract.
func (e *Engine) Calculate(in CalculateInput) (RunResult, error) {
	ordered := Order(in.Transactions, in.Links)

	linkByTarget := make(map[string]ConfirmedLink, len(in.Links))
	for _, l := range in.Links {
		linkByTarget[l.TargetTransactionID] = l
	}

	books := make(map[string]*AssetBook)
	bookFor := func(assetID string) *AssetBook {
		b, ok := books[assetID]
		if !ok {
			b = &AssetBook{AssetID: assetID}
			books[assetID] = b
		}
		return b
	}

	var result RunResult
	transfersBySource := make(map[string][]LotTransfer)
	assetsSeen := make(map[string]bool)
	lotsCreated := 0

	for _, txn := range ordered {
		if xfer, ok := in.Transfers[txn.ID]; ok {
			assetsSeen[xfer.AssetID] = true
			book := bookFor(xfer.AssetID)
			transfers, feeDisposals, err := BuildTransfers(
				e.cfg.Method, book.openRemaining(), xfer.LinkID, txn.ID, linkTargetFor(in.Links, txn.ID),
				xfer.TransferredAt, xfer.GrossQuantity, xfer.SameAssetFeeQuantity, xfer.FeeUSDValue,
				e.cfg.Jurisdiction, xfer.SpecificLotIDs,
			)
			if err != nil {
				return failedResult(), err
			}
			result.Transfers = append(result.Transfers, transfers...)
			result.Disposals = append(result.Disposals, feeDisposals...)
			transfersBySource[txn.ID] = transfers
			continue
		}

		if link, ok := linkByTarget[txn.ID]; ok {
			xfer := in.Transfers[link.SourceTransactionID]
			assetsSeen[xfer.AssetID] = true
			lot, err := TargetAcquisitionFromTransfer(txn.ID, xfer.AssetID, txn.Timestamp, transfersBySource[link.SourceTransactionID], xfer.AdditionalFiatFeesUSD)
			if err != nil {
				return failedResult(), err
			}
			book := bookFor(xfer.AssetID)
			book.Lots = append(book.Lots, &lot)
			result.Lots = append(result.Lots, &lot)
			lotsCreated++
			continue
		}

		if acq, ok := in.Acquisitions[txn.ID]; ok {
			assetsSeen[acq.AssetID] = true
			book := bookFor(acq.AssetID)
			lot := e.Acquire(book, txn.ID, acq.AcquiredAt, acq.Quantity, acq.PriceUSD, acq.AllocatedFeeUSD)
			result.Lots = append(result.Lots, lot)
			lotsCreated++
			continue
		}

		if dis, ok := in.Disposals[txn.ID]; ok {
			assetsSeen[dis.AssetID] = true
			book := bookFor(dis.AssetID)
			disposals, err := e.Dispose(book, txn.ID, dis.DisposedAt, dis.Quantity, dis.PricePerUnit, dis.AllocatedFeePerUnit, dis.ReacquisitionDates, dis.StillHeldAtWindowEnd, dis.SpecificLotIDs)
			if err != nil {
				return failedResult(), err
			}
			result.Disposals = append(result.Disposals, disposals...)

			if dis.Source != "" {
				warning, err := CheckVariance(dis.Source, dis.GrossProceedsUSD, dis.NetProceedsUSD, dis.SameAssetOnChainFeesUSD)
				if err != nil {
					return failedResult(), err
				}
				if warning != "" {
					result.Warnings = append(result.Warnings, warning)
				}
			}
		}
	}

	assets := make([]string, 0, len(assetsSeen))
	for a := range assetsSeen {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	result.Summary = Summarize(lotsCreated, result.Disposals, assets)
	return result, nil
}

func linkTargetFor(links []ConfirmedLink, sourceTxID string) string {
	for _, l := range links {
		if l.SourceTransactionID == sourceTxID {
			return l.TargetTransactionID
		}
	}
	return ""
}

// Acquire creates a new lot for an inflow not covered by an inbound
// LotTransfer: total cost = price*quantity + allocated_fee_usd, so unit
// cost = price + allocated_fee_usd/quantity. Under
// MethodACB, every lot in the pool (including this new one) is then
// repriced to the pool's recomputed average cost per unit, so the pool
// always prices out as a single blended lot regardless of how many
// acquisitions fed it.
func (e *Engine) Acquire(book *AssetBook, txnID string, acquiredAt time.Time, quantity, priceUSD, allocatedFeeUSD decimal.Decimal) *AcquisitionLot {
	unitCost := priceUSD.Add(allocatedFeeUSD.Div(quantity))
	lot := &AcquisitionLot{
		AssetID:          book.AssetID,
		TransactionID:    txnID,
		AcquiredAt:       acquiredAt,
		Quantity:         quantity,
		Remaining:        quantity,
		CostBasisPerUnit: unitCost,
		CostBasisTotal:   unitCost.Mul(quantity),
	}
	book.Lots = append(book.Lots, lot)

	if e.cfg.Method == MethodACB {
		e.repoolACB(book, lot)
	}
	return lot
}

// repoolACB recomputes the asset-wide average cost per unit over every
// remaining-quantity lot in book (lot included, since it was already
// appended) and reprices every open lot to that average, keeping the
// pool's per-lot cost basis identical the way a real ACB pool requires.
func (e *Engine) repoolACB(book *AssetBook, justAdded *AcquisitionLot) {
	open := book.openRemaining()
	others := make([]*AcquisitionLot, 0, len(open))
	for _, l := range open {
		if l != justAdded {
			others = append(others, l)
		}
	}
	avg := PooledACBCostPerUnit(others, justAdded.Remaining, justAdded.Remaining.Mul(justAdded.CostBasisPerUnit))
	for _, l := range open {
		l.CostBasisPerUnit = avg
		l.CostBasisTotal = l.Remaining.Mul(avg)
	}
}

// AllocateFeeProportionally implements the "platform fees are
// allocated proportionally across multi-asset inflows (by USD value)".
func AllocateFeeProportionally(totalFeeUSD decimal.Decimal, inflowUSDValues []decimal.Decimal) []decimal.Decimal {
	total := decimal.Zero
	for _, v := range inflowUSDValues {
		total = total.Add(v)
	}
	out := make([]decimal.Decimal, len(inflowUSDValues))
	if total.IsZero() {
		return out
	}
	for i, v := range inflowUSDValues {
		out[i] = totalFeeUSD.Mul(v).Div(total)
	}
	return out
}

// Dispose implements the "Disposal path" for one outflow: select
// lots per method, compute per-disposal proceeds/gain-loss, classify
// holding period, and apply jurisdiction wash/superficial/inclusion rules.
// reacquisitionDates/stillHeldAtWindowEnd are supplied by the caller,
// which has visibility across the whole ordered transaction stream that a
// single disposal call does not.
func (e *Engine) Dispose(
	book *AssetBook,
	txnID string,
	disposedAt time.Time,
	quantity, pricePerUnit, allocatedFeePerUnit decimal.Decimal,
	reacquisitionDates []time.Time,
	stillHeldAtWindowEnd bool,
	specificIDs []string,
) ([]LotDisposal, error) {
	selections, err := SelectLots(e.cfg.Method, book.openRemaining(), quantity, specificIDs)
	if err != nil {
		return nil, err
	}

	disposals := make([]LotDisposal, 0, len(selections))
	for _, sel := range selections {
		d := computeDisposal(*sel.Lot, txnID, disposedAt, sel.Quantity, pricePerUnit, allocatedFeePerUnit, e.cfg.Jurisdiction)
		d = ApplyWashSale(d, disposedAt, reacquisitionDates, e.cfg.Jurisdiction)
		d = ApplySuperficialLoss(d, disposedAt, reacquisitionDates, stillHeldAtWindowEnd, e.cfg.Jurisdiction)
		d = ApplyInclusion(d, e.cfg.Jurisdiction)
		disposals = append(disposals, d)
	}
	return disposals, nil
}

// Summarize folds a run's disposals into a CalculationSummary, enforcing
// the invariant Σ proceeds − Σ cost_basis = Σ gain_loss by computing
// the total directly from the per-disposal figures rather than trusting
// an independently maintained running sum.
func Summarize(lotsCreated int, disposals []LotDisposal, assetsProcessed []string) CalculationSummary {
	totalGain := decimal.Zero
	totalTaxable := decimal.Zero
	for _, d := range disposals {
		totalGain = totalGain.Add(d.GainLoss)
		totalTaxable = totalTaxable.Add(d.TaxableGainLoss)
	}
	return CalculationSummary{
		LotsCreated:          lotsCreated,
		DisposalsProcessed:   len(disposals),
		AssetsProcessed:      assetsProcessed,
		TotalCapitalGainLoss: totalGain,
		TotalTaxableGainLoss: totalTaxable,
		Status:               StatusCompleted,
	}
}
