package providers

import "time"

// scoreInputs bundles everything the scoring algorithm needs for one
// provider at one instant.
type scoreInputs struct {
	circuit      CircuitState
	health       Snapshot
	priorityBonus float64

	// granularity inputs; granularitySupport is GranularityNone for
	// non-price operations, in which case no bonus/penalty applies.
	isPriceOp          bool
	granularitySupport GranularitySupport
	opTimestamp        *time.Time
}

const (
	baseScore = 100.0

	circuitOpenPenalty     = -100.0
	circuitHalfOpenPenalty = -25.0
	unhealthyPenalty       = -50.0

	fastResponseBonus = 20.0
	fastResponseUnder = 1000 * time.Millisecond
	slowResponsePenalty = -30.0
	slowResponseOver    = 5000 * time.Millisecond

	errorRateWeight            = 50.0
	consecutiveFailureWeight   = 10.0

	granularityMinuteBonus = 30.0
	granularityHourlyBonus = 20.0
	granularityDailyPenalty = -10.0
)

// score computes a provider's ranking score. Higher is
// better; ties are broken by registration order elsewhere (the Manager
// keeps providers in a stable slice and uses a stable sort).
func score(in scoreInputs) float64 {
	s := baseScore

	switch in.circuit {
	case CircuitOpen:
		s += circuitOpenPenalty
	case CircuitHalfOpen:
		s += circuitHalfOpenPenalty
	}

	if !in.health.Healthy {
		s += unhealthyPenalty
	}

	if in.health.AvgResponseTime > 0 {
		if in.health.AvgResponseTime < fastResponseUnder {
			s += fastResponseBonus
		} else if in.health.AvgResponseTime > slowResponseOver {
			s += slowResponsePenalty
		}
	}

	s -= in.health.ErrorRate * errorRateWeight

	// consecutive-failure count is never negative, so this term never
	// pushes the score up.
	s -= float64(in.health.ConsecutiveFailures) * consecutiveFailureWeight

	s += in.priorityBonus

	if in.isPriceOp {
		s += granularityBonus(in.granularitySupport, in.opTimestamp)
	}

	return s
}

// granularityBonus implements the "Granularity bonus for price
// providers on intraday timestamps". Midnight-UTC timestamps (exactly
// 00:00:00.000) skip the bonus entirely, since a daily-only provider is
// just as good as a minute-resolution one at midnight.
func granularityBonus(support GranularitySupport, ts *time.Time) float64 {
	if ts == nil {
		return 0
	}
	u := ts.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return 0
	}
	switch support {
	case GranularityMinute:
		return granularityMinuteBonus
	case GranularityHourly:
		return granularityHourlyBonus
	case GranularityDaily:
		return granularityDailyPenalty
	default:
		return 0
	}
}
