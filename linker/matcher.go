package linker

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/jbelanger/exitbook/internal/xlog"
)

// LinkStatus is a proposed or confirmed link's lifecycle state.
type LinkStatus string

const (
	LinkStatusSuggested LinkStatus = "suggested"
	LinkStatusConfirmed LinkStatus = "confirmed"
	LinkStatusRejected  LinkStatus = "rejected"
)

// Link is one candidate or confirmed transfer pairing.
type Link struct {
	SourceTransactionID string
	TargetTransactionID string
	LinkType            string
	Confidence          float64
	Criteria            MatchCriteria
	Status              LinkStatus
	AutoConfirmed       bool
}

// Matcher pairs outflow candidates with inflow candidates.
type Matcher struct {
	log      *xlog.Logger
	cfg      Config
	overrides *OverrideStore
}

func NewMatcher(cfg Config, overrides *OverrideStore) *Matcher {
	return &Matcher{
		log:       xlog.Default().With("component", "linker.matcher"),
		cfg:       cfg,
		overrides: overrides,
	}
}

// logIndexSuffix strips a trailing ":<n>" or "-<n>" log-index suffix from
// an on-chain transaction hash before comparing hashes across accounts
//.
var logIndexSuffix = regexp.MustCompile(`[:\-]\d+$`)

func NormalizeTxHash(hash string) string {
	return strings.ToLower(logIndexSuffix.ReplaceAllString(strings.TrimSpace(hash), ""))
}

// Match runs outflow/inflow pairing across two candidate sets from
// different accounts, applying the internal-blockchain fast path first and
// falling back to scored matching for everything it doesn't resolve.
func (m *Matcher) Match(ctx context.Context, outflows, inflows []Candidate) ([]Link, error) {
	var links []Link

	fastPathed := make(map[string]bool)
	byHash := make(map[string][]Candidate)
	for _, in := range inflows {
		if in.TxHash == "" {
			continue
		}
		h := NormalizeTxHash(in.TxHash)
		byHash[h] = append(byHash[h], in)
	}
	for _, s := range outflows {
		if s.TxHash == "" {
			continue
		}
		h := NormalizeTxHash(s.TxHash)
		for _, t := range byHash[h] {
			if t.AccountID == s.AccountID {
				continue // same account, not a cross-account transfer
			}
			links = append(links, Link{
				SourceTransactionID: s.TransactionID,
				TargetTransactionID: t.TransactionID,
				LinkType:            LinkTypeFor(s.SourceType, t.SourceType),
				Confidence:          1.0,
				Status:              LinkStatusConfirmed,
				AutoConfirmed:       true,
			})
			fastPathed[s.TransactionID] = true
			fastPathed[t.TransactionID] = true
		}
	}

	for _, s := range outflows {
		if fastPathed[s.TransactionID] {
			continue
		}
		var best *Link
		for _, t := range inflows {
			if t.AccountID == s.AccountID || fastPathed[t.TransactionID] {
				continue
			}
			mc, ok := Evaluate(s, t, m.cfg)
			if !ok {
				continue
			}
			score := Score(mc)
			if score < m.cfg.MinConfidenceScore {
				continue
			}
			candidate := Link{
				SourceTransactionID: s.TransactionID,
				TargetTransactionID: t.TransactionID,
				LinkType:            LinkTypeFor(s.SourceType, t.SourceType),
				Confidence:          score,
				Criteria:            mc,
				Status:              LinkStatusSuggested,
			}
			if isAutoConfirmable(s, t, score, m.cfg) {
				candidate.Status = LinkStatusConfirmed
				candidate.AutoConfirmed = true
			}
			if best == nil || candidate.Confidence > best.Confidence {
				c := candidate
				best = &c
			}
		}
		if best != nil {
			links = append(links, *best)
		}
	}

	sort.SliceStable(links, func(i, j int) bool { return links[i].Confidence > links[j].Confidence })

	if m.overrides != nil {
		links = m.overrides.Apply(links)
	}

	return links, nil
}

// isAutoConfirmable implements the auto-confirm rule: confidence
// above threshold AND target_amount <= source_amount with variance <= 10%.
func isAutoConfirmable(s, t Candidate, score float64, cfg Config) bool {
	if score < cfg.AutoConfirmThreshold {
		return false
	}
	if t.Amount.GreaterThan(s.Amount) {
		return false
	}
	if s.Amount.IsZero() {
		return false
	}
	variance := s.Amount.Sub(t.Amount).Div(s.Amount).Float64()
	return variance <= 0.10
}
