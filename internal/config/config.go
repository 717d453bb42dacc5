// Package config defines the configuration surface for the matcher,
// cost-basis engine, and provider manager. Parsing configuration files
// is out of scope; this package only defines the structs and their
// documented defaults. Callers (CLI flags, env vars, a TOML file)
// populate these however they like.
package config

import "time"

// MatchingConfig tunes the transfer link matcher.
type MatchingConfig struct {
	MaxTimingWindowHours float64
	MinAmountSimilarity  float64
	MinConfidenceScore   float64
	AutoConfirmThreshold float64
}

// DefaultMatchingConfig returns the matcher's documented defaults.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		MaxTimingWindowHours: 48,
		MinAmountSimilarity:  0.95,
		MinConfidenceScore:   0.70,
		AutoConfirmThreshold: 0.95,
	}
}

// Method selects the lot-selection strategy for the cost-basis engine.
type Method string

const (
	MethodFIFO       Method = "fifo"
	MethodLIFO       Method = "lifo"
	MethodHIFO       Method = "hifo"
	MethodACB        Method = "acb"
	MethodSpecificID Method = "specific_id"
)

// Jurisdiction selects the tax regime applied by the cost-basis engine.
type Jurisdiction string

const (
	JurisdictionUS Jurisdiction = "US"
	JurisdictionCA Jurisdiction = "CA"
	JurisdictionUK Jurisdiction = "UK"
	JurisdictionEU Jurisdiction = "EU"
)

// CostBasisConfig is the input configuration for one calculation run.
type CostBasisConfig struct {
	Method      Method
	Jurisdiction Jurisdiction
	TaxYear     int
	Currency    string // default "USD"
	Start       *time.Time
	End         *time.Time
}

// SameAssetTransferFeePolicy selects how a same-asset network fee on a
// linked transfer is treated.
type SameAssetTransferFeePolicy string

const (
	FeePolicyDisposal    SameAssetTransferFeePolicy = "disposal"
	FeePolicyAddToBasis  SameAssetTransferFeePolicy = "add-to-basis"
)

// JurisdictionRules parameterizes holding-period, wash/superficial-loss,
// and transfer-fee handling per jurisdiction.
type JurisdictionRules struct {
	Jurisdiction               Jurisdiction
	SameAssetTransferFeePolicy SameAssetTransferFeePolicy
	InclusionRate              float64 // 1.0 US, 0.5 Canada
	ShortTermThresholdDays     int     // 365 US; 0 means "no split" (Canada)
	HasShortLongSplit          bool
	WashSaleWindowDays         int
	SuperficialLossWindowDays  int
}

// KnownJurisdictionRules returns the built-in per-jurisdiction rule sets.
func KnownJurisdictionRules() map[Jurisdiction]JurisdictionRules {
	return map[Jurisdiction]JurisdictionRules{
		JurisdictionUS: {
			Jurisdiction:               JurisdictionUS,
			SameAssetTransferFeePolicy: FeePolicyDisposal,
			InclusionRate:              1.0,
			ShortTermThresholdDays:     365,
			HasShortLongSplit:          true,
			WashSaleWindowDays:         30,
		},
		JurisdictionCA: {
			Jurisdiction:               JurisdictionCA,
			SameAssetTransferFeePolicy: FeePolicyAddToBasis,
			InclusionRate:              0.5,
			HasShortLongSplit:          false,
			SuperficialLossWindowDays:  30,
		},
		JurisdictionUK: {
			Jurisdiction:               JurisdictionUK,
			SameAssetTransferFeePolicy: FeePolicyDisposal,
			InclusionRate:              1.0,
			HasShortLongSplit:          false,
		},
		JurisdictionEU: {
			Jurisdiction:               JurisdictionEU,
			SameAssetTransferFeePolicy: FeePolicyDisposal,
			InclusionRate:              1.0,
			HasShortLongSplit:          false,
		},
	}
}

// CircuitConfig tunes the provider manager's circuit breaker.
type CircuitConfig struct {
	MaxFailures       int
	RecoveryTimeout   time.Duration
}

// DefaultCircuitConfig returns the circuit breaker's documented defaults.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{MaxFailures: 3, RecoveryTimeout: 60 * time.Second}
}

// VarianceThresholds are the per-source-name warn/error percentages used
// by the cost-basis engine's outflow variance check.
type VarianceThresholds struct {
	WarnPercent  float64
	ErrorPercent float64
}

// DefaultVarianceThresholds returns the per-source-name warn/error table.
func DefaultVarianceThresholds() map[string]VarianceThresholds {
	return map[string]VarianceThresholds{
		"kraken":   {WarnPercent: 0.5, ErrorPercent: 2.0},
		"coinbase": {WarnPercent: 1.0, ErrorPercent: 3.0},
		"binance":  {WarnPercent: 1.5, ErrorPercent: 5.0},
		"kucoin":   {WarnPercent: 1.5, ErrorPercent: 5.0},
		"default":  {WarnPercent: 1.0, ErrorPercent: 3.0},
	}
}

// VarianceFor looks up the thresholds for a source name, falling back to
// "default" when the source has no bespoke entry.
func VarianceFor(thresholds map[string]VarianceThresholds, sourceName string) VarianceThresholds {
	if v, ok := thresholds[sourceName]; ok {
		return v
	}
	return thresholds["default"]
}

// DefaultCallTimeout is the per-call provider timeout default.
const DefaultCallTimeout = 30 * time.Second
