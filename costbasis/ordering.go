package costbasis

import (
	"sort"
	"time"
)

// OrderableTransaction is the subset of txn.Transaction the ordering pass
// needs, reduced to avoid an import cycle between costbasis and txn (the
// engine projects these from txn.Transaction before calling Order).
type OrderableTransaction struct {
	ID         string
	ExternalID string
	Timestamp  time.Time
}

// ConfirmedLink is a (source, target) precedence constraint: source must
// be processed before target regardless of what raw timestamp ordering
// says, since clock skew across providers/accounts can't be trusted.
type ConfirmedLink struct {
	SourceTransactionID string
	TargetTransactionID string
}

// Order sorts transactions by (timestamp, external_id) and then applies a
// topological correction pass so every confirmed link's source precedes
// its target, even when the link's source has a later raw timestamp than
// its target due to clock skew.
func Order(txns []OrderableTransaction, links []ConfirmedLink) []OrderableTransaction {
	ordered := make([]OrderableTransaction, len(txns))
	copy(ordered, txns)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].ExternalID < ordered[j].ExternalID
	})

	mustPrecede := make(map[string][]string, len(links)) // target -> sources that must come first
	for _, l := range links {
		mustPrecede[l.TargetTransactionID] = append(mustPrecede[l.TargetTransactionID], l.SourceTransactionID)
	}
	if len(mustPrecede) == 0 {
		return ordered
	}

	index := make(map[string]int, len(ordered))
	for i, t := range ordered {
		index[t.ID] = i
	}

	// Stable bubble-up pass: repeatedly move any target that precedes a
	// required source to just after that source, until no violation
	// remains. Bounded by len(ordered) passes since each pass fixes at
	// least one violation or terminates; link chains in realistic data
	// are shallow so this is not the asymptotic sort itself, just a
	// correction on top of it.
	for pass := 0; pass < len(ordered); pass++ {
		violated := false
		for target, sources := range mustPrecede {
			ti, ok := index[target]
			if !ok {
				continue
			}
			for _, source := range sources {
				si, ok := index[source]
				if !ok || si < ti {
					continue
				}
				ordered = moveAfter(ordered, ti, si)
				rebuildIndex(ordered, index)
				violated = true
			}
		}
		if !violated {
			break
		}
	}

	return ordered
}

// moveAfter removes the element at index from and reinserts it
// immediately after index to (positions refer to the slice before
// removal).
func moveAfter(ordered []OrderableTransaction, from, to int) []OrderableTransaction {
	item := ordered[from]
	out := make([]OrderableTransaction, 0, len(ordered))
	for i, t := range ordered {
		if i == from {
			continue
		}
		out = append(out, t)
		if i == to {
			out = append(out, item)
		}
	}
	return out
}

func rebuildIndex(ordered []OrderableTransaction, index map[string]int) {
	for i, t := range ordered {
		index[t.ID] = i
	}
}
