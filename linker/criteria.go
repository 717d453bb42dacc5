// Package linker implements the Transfer Link Matcher: detects
// non-taxable self-transfers between the user's own accounts by pairing
// one outflow with one inflow.
package linker

import (
	"math"
	"strings"
	"time"

	"github.com/jbelanger/exitbook/internal/decimal"
)

// Config holds the matcher's tunable thresholds.
type Config struct {
	MaxTimingWindowHours int
	MinAmountSimilarity  float64
	MinConfidenceScore   float64
	AutoConfirmThreshold float64
}

// DefaultConfig returns the matcher's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxTimingWindowHours: 48,
		MinAmountSimilarity:  0.95,
		MinConfidenceScore:   0.70,
		AutoConfirmThreshold: 0.95,
	}
}

// Candidate is one side of a prospective link: an outflow (source) or
// inflow (target) transaction, reduced to the fields matching needs.
type Candidate struct {
	TransactionID string
	AccountID     string
	SourceType    string // account_type, e.g. "exchange-api", "blockchain"
	AssetSymbol   string
	Amount        decimal.Decimal
	Timestamp     time.Time
	Address       string // to_address for an outflow candidate, from_address for an inflow candidate
	TxHash        string // normalized on-chain transaction hash, empty if not on-chain
}

// MatchCriteria is the per-pair evaluation computed before scoring.
type MatchCriteria struct {
	AmountSimilarity float64
	TimingHours      float64
	TimingValid      bool
	AddressMatch     *bool // nil means "undefined" (one or both addresses absent)
	AssetMatch       bool
}

// Evaluate computes s → t's MatchCriteria. Returns ok=false if a hard
// filter rejects the pair outright (different asset, t before s, or
// amount similarity below cfg.MinAmountSimilarity).
func Evaluate(s, t Candidate, cfg Config) (MatchCriteria, bool) {
	if !strings.EqualFold(s.AssetSymbol, t.AssetSymbol) {
		return MatchCriteria{}, false
	}
	if t.Timestamp.Before(s.Timestamp) {
		return MatchCriteria{}, false
	}

	mc := MatchCriteria{AssetMatch: true}
	mc.AmountSimilarity = amountSimilarity(s.Amount, t.Amount)
	if mc.AmountSimilarity < cfg.MinAmountSimilarity {
		return MatchCriteria{}, false
	}

	hours := t.Timestamp.Sub(s.Timestamp).Hours()
	mc.TimingHours = hours
	mc.TimingValid = hours >= 0 && hours <= float64(cfg.MaxTimingWindowHours)

	if s.Address != "" && t.Address != "" {
		match := strings.EqualFold(s.Address, t.Address)
		mc.AddressMatch = &match
	}

	return mc, true
}

// amountSimilarity computes t/s if t <= s, else 0 unless within 0.1%
// (rounding) in which case it snaps to 0.99 rather than
// exceeding 1.0 for a target that's fractionally larger than its source
// (e.g. a same-block rounding artifact on the receiving side).
func amountSimilarity(sAmount, tAmount decimal.Decimal) float64 {
	if sAmount.IsZero() {
		return 0
	}
	if tAmount.LessOrEqual(sAmount) {
		ratio := tAmount.Div(sAmount).Float64()
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		return ratio
	}
	excess := tAmount.Sub(sAmount).Div(sAmount).Float64()
	if excess <= 0.001 {
		return 0.99
	}
	return 0
}

// Score computes the deterministic confidence weighting. A false
// asset_match or a definite (non-nil) false address_match zeroes
// the score outright regardless of the other terms.
func Score(mc MatchCriteria) float64 {
	if !mc.AssetMatch {
		return 0
	}
	if mc.AddressMatch != nil && !*mc.AddressMatch {
		return 0
	}

	score := 0.30
	score += 0.40 * mc.AmountSimilarity
	if mc.TimingValid {
		score += 0.20
		if mc.TimingHours <= 1 {
			score += 0.05
		}
	}
	if mc.AddressMatch != nil && *mc.AddressMatch {
		score += 0.10
	}
	// Round off binary float noise in the weighted sum (0.30+0.40+0.20
	// would otherwise come out as 0.8999999999999999).
	score = math.Round(score*1e6) / 1e6

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// LinkTypeFor derives the link_type label from the source/target account
// types, e.g. "blockchain-to-exchange".
func LinkTypeFor(sourceType, targetType string) string {
	return sourceType + "-to-" + targetType
}
