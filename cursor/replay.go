package cursor

import "strconv"

// DefaultReplayDelta is the default backward adjustment applied when
// resuming a stream under a different provider than the one that produced
// the persisted cursor.
const DefaultReplayDelta = 10

// ApplyReplayWindow moves a numeric cursor (block number, timestamp,
// offset) backward by delta to cover reorg/eventual-consistency gaps when
// switching providers mid-stream. Signature cursors are opaque and cannot
// be moved backward in any meaningful sense; duplicates they might
// reintroduce are absorbed by the raw store's (account_id, event_id)
// uniqueness guarantee instead.
func ApplyReplayWindow(s State, delta int64) State {
	if s.IsZero() {
		return s
	}
	switch s.Primary.Type {
	case PrimaryBlockNumber, PrimaryTimestamp, PrimaryOffset:
		n, err := strconv.ParseInt(s.Primary.Value, 10, 64)
		if err != nil {
			return s
		}
		n -= delta
		if n < 0 {
			n = 0
		}
		out := s
		out.Primary.Value = strconv.FormatInt(n, 10)
		return out
	default:
		return s
	}
}

// NeedsReplay reports whether resuming under newProvider differs from the
// provider that produced the cursor, which is when the replay window must
// be applied.
func NeedsReplay(s State, newProvider string) bool {
	return !s.IsZero() && s.ProviderName != "" && s.ProviderName != newProvider
}
