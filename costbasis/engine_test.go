package costbasis

import (
	"testing"
	"time"

	"github.com/jbelanger/exitbook/internal/decimal"
)

func dec(s string) decimal.Decimal { return decimal.MustFromString(s) }

func mustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// Scenario: FIFO with gain.
func TestFIFOWithGain(t *testing.T) {
	eng := NewEngine(Config{Method: MethodFIFO, Jurisdiction: US(), Currency: "USD"})
	book := &AssetBook{AssetID: "blockchain:bitcoin:native"}

	eng.Acquire(book, "buy1", mustParseDate(t, "2023-01-01"), dec("1"), dec("30000"), decimal.Zero)

	disposals, err := eng.Dispose(book, "sell1", mustParseDate(t, "2023-06-01"), dec("0.5"), dec("40000"), decimal.Zero, nil, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(disposals) != 1 {
		t.Fatalf("expected 1 disposal, got %d", len(disposals))
	}
	d := disposals[0]
	if !d.GainLoss.Equal(dec("5000")) {
		t.Fatalf("expected gain_loss 5000, got %s", d.GainLoss.String())
	}
	if !d.TaxableGainLoss.Equal(dec("5000")) {
		t.Fatalf("expected taxable 5000, got %s", d.TaxableGainLoss.String())
	}
	if d.HoldingPeriod != HoldingShortTerm {
		t.Fatalf("expected short_term, got %s", d.HoldingPeriod)
	}

	summary := Summarize(1, disposals, []string{book.AssetID})
	if !summary.TotalCapitalGainLoss.Equal(dec("5000")) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

// Scenario: Canada 50% inclusion.
func TestCanadaInclusion(t *testing.T) {
	eng := NewEngine(Config{Method: MethodACB, Jurisdiction: CA(), Currency: "USD"})
	book := &AssetBook{AssetID: "blockchain:ethereum:native"}

	eng.Acquire(book, "buy1", mustParseDate(t, "2023-01-01"), dec("10"), dec("2000"), decimal.Zero)

	disposals, err := eng.Dispose(book, "sell1", mustParseDate(t, "2023-02-01"), dec("10"), dec("2500"), decimal.Zero, nil, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := disposals[0]
	if !d.GainLoss.Equal(dec("5000")) {
		t.Fatalf("expected capital gain 5000, got %s", d.GainLoss.String())
	}
	if !d.TaxableGainLoss.Equal(dec("2500")) {
		t.Fatalf("expected 50%% inclusion taxable 2500, got %s", d.TaxableGainLoss.String())
	}
}

// Scenario: wash sale.
func TestWashSaleDisallowsLoss(t *testing.T) {
	eng := NewEngine(Config{Method: MethodFIFO, Jurisdiction: US(), Currency: "USD"})
	book := &AssetBook{AssetID: "blockchain:bitcoin:native"}

	eng.Acquire(book, "buy1", mustParseDate(t, "2023-01-01"), dec("1"), dec("50000"), decimal.Zero)

	disposeDate := mustParseDate(t, "2023-02-01")
	rebuyDate := mustParseDate(t, "2023-02-15")
	feePerUnit := dec("100") // 100 USD fee on a 1 BTC disposal

	disposals, err := eng.Dispose(book, "sell1", disposeDate, dec("1"), dec("30000"), feePerUnit, []time.Time{rebuyDate}, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := disposals[0]
	if !d.TotalProceeds.Equal(dec("29900")) {
		t.Fatalf("expected proceeds 29900, got %s", d.TotalProceeds.String())
	}
	if !d.TotalCostBasis.Equal(dec("50000")) {
		t.Fatalf("expected cost basis 50000, got %s", d.TotalCostBasis.String())
	}
	if !d.GainLoss.Equal(dec("-20100")) {
		t.Fatalf("expected gain_loss -20100, got %s", d.GainLoss.String())
	}
	if d.Disallowed != DisallowedWashSale {
		t.Fatalf("expected disallowed_wash, got %q", d.Disallowed)
	}
	if !d.TaxableGainLoss.IsZero() {
		t.Fatalf("expected taxable_gain_loss 0, got %s", d.TaxableGainLoss.String())
	}
}

func TestCheckPreconditionsRejectsNonUSD(t *testing.T) {
	err := CheckPreconditions(Config{Currency: "EUR"}, nil)
	if err == nil {
		t.Fatal("expected non-USD currency to be rejected")
	}
}

func TestCheckPreconditionsRequiresPriceOnNonFiat(t *testing.T) {
	movements := []PricedMovement{
		{TransactionID: "tx1", AssetID: "blockchain:bitcoin:native", PriceUSD: nil},
	}
	err := CheckPreconditions(Config{Currency: "USD"}, movements)
	if err == nil {
		t.Fatal("expected missing price on non-fiat movement to fail")
	}
}

func TestCheckPreconditionsAllowsMissingPriceOnFiat(t *testing.T) {
	movements := []PricedMovement{
		{TransactionID: "tx1", AssetID: "fiat:USD", PriceUSD: nil},
	}
	if err := CheckPreconditions(Config{Currency: "USD"}, movements); err != nil {
		t.Fatalf("fiat movements should tolerate a missing price: %v", err)
	}
}

// Scenario: confirmed link transfer with no disposal; target inherits basis.
func TestCalculateTransferNoDisposal(t *testing.T) {
	eng := NewEngine(Config{Method: MethodFIFO, Jurisdiction: US(), Currency: "USD"})
	asset := "blockchain:bitcoin:native"

	buyAt := mustParseDate(t, "2023-01-01")
	transferAt := mustParseDate(t, "2023-03-01")

	in := CalculateInput{
		Transactions: []OrderableTransaction{
			{ID: "buy1", ExternalID: "buy1", Timestamp: buyAt},
			{ID: "xfer_out", ExternalID: "xfer_out", Timestamp: transferAt},
			{ID: "xfer_in", ExternalID: "xfer_in", Timestamp: transferAt},
		},
		Links: []ConfirmedLink{
			{SourceTransactionID: "xfer_out", TargetTransactionID: "xfer_in"},
		},
		Acquisitions: map[string]AcquisitionInput{
			"buy1": {AssetID: asset, AcquiredAt: buyAt, Quantity: dec("1"), PriceUSD: dec("30000")},
		},
		Transfers: map[string]TransferInput{
			"xfer_out": {
				LinkID:               "link1",
				AssetID:              asset,
				TransferredAt:        transferAt,
				GrossQuantity:        dec("1"),
				SameAssetFeeQuantity: decimal.Zero,
				FeeUSDValue:          decimal.Zero,
			},
		},
	}

	result, err := eng.Calculate(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Disposals) != 0 {
		t.Fatalf("expected no disposals, got %d", len(result.Disposals))
	}
	if len(result.Transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(result.Transfers))
	}
	if len(result.Lots) != 2 {
		t.Fatalf("expected 2 lots (source acquisition + inherited target), got %d", len(result.Lots))
	}
	inherited := result.Lots[1]
	if !inherited.CostBasisPerUnit.Equal(dec("30000")) {
		t.Fatalf("expected inherited cost basis per unit 30000, got %s", inherited.CostBasisPerUnit.String())
	}
	if inherited.Status() != LotStatusOpen {
		t.Fatalf("expected inherited lot to be open, got %s", inherited.Status())
	}
	if result.Summary.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", result.Summary.Status)
	}
	if result.Summary.LotsCreated != 2 {
		t.Fatalf("expected 2 lots created, got %d", result.Summary.LotsCreated)
	}
}

// Scenario: ACB pooling re-prices every open lot after a second acquisition.
func TestAcquireACBPoolsAverageCost(t *testing.T) {
	eng := NewEngine(Config{Method: MethodACB, Jurisdiction: CA(), Currency: "USD"})
	book := &AssetBook{AssetID: "blockchain:ethereum:native"}

	eng.Acquire(book, "buy1", mustParseDate(t, "2023-01-01"), dec("10"), dec("2000"), decimal.Zero)
	eng.Acquire(book, "buy2", mustParseDate(t, "2023-04-01"), dec("10"), dec("3000"), decimal.Zero)

	// pool: (10*2000 + 10*3000) / 20 = 2500 per unit across both lots
	for _, l := range book.Lots {
		if !l.CostBasisPerUnit.Equal(dec("2500")) {
			t.Fatalf("expected pooled cost basis 2500 for lot %s, got %s", l.TransactionID, l.CostBasisPerUnit.String())
		}
	}

	disposals, err := eng.Dispose(book, "sell1", mustParseDate(t, "2023-05-01"), dec("5"), dec("4000"), decimal.Zero, nil, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !disposals[0].CostBasisPerUnit.Equal(dec("2500")) {
		t.Fatalf("expected disposal cost basis per unit 2500, got %s", disposals[0].CostBasisPerUnit.String())
	}
}

func TestCheckVarianceWarnsAndErrors(t *testing.T) {
	// kraken: warn 0.5%, error 2.0%
	gross := dec("100")
	netWithinWarn := dec("99.7") // 0.3% variance from expected net (100 - fee 0) -> under warn
	if w, err := CheckVariance("kraken", gross, netWithinWarn, decimal.Zero); err != nil || w != "" {
		t.Fatalf("expected no warning/error for 0.3%% variance, got warning=%q err=%v", w, err)
	}

	netWarn := dec("99") // 1% variance: above warn(0.5), below error(2.0)
	if w, err := CheckVariance("kraken", gross, netWarn, decimal.Zero); err != nil || w == "" {
		t.Fatalf("expected a warning for 1%% variance, got warning=%q err=%v", w, err)
	}

	netError := dec("90") // 10% variance: above error(2.0)
	if _, err := CheckVariance("kraken", gross, netError, decimal.Zero); err == nil {
		t.Fatal("expected an error for 10% variance")
	}
}
