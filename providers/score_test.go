package providers

import (
	"testing"
	"time"
)

func TestScoreBaseAndPenalties(t *testing.T) {
	base := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true}})
	if base != 100 {
		t.Fatalf("base score = %v, want 100", base)
	}

	open := score(scoreInputs{circuit: CircuitOpen, health: Snapshot{Healthy: true}})
	if open != 0 {
		t.Fatalf("circuit-open score = %v, want 0", open)
	}

	halfOpen := score(scoreInputs{circuit: CircuitHalfOpen, health: Snapshot{Healthy: true}})
	if halfOpen != 75 {
		t.Fatalf("half-open score = %v, want 75", halfOpen)
	}

	unhealthy := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: false}})
	if unhealthy != 50 {
		t.Fatalf("unhealthy score = %v, want 50", unhealthy)
	}
}

func TestScoreResponseTimeBuckets(t *testing.T) {
	fast := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true, AvgResponseTime: 500 * time.Millisecond}})
	if fast != 120 {
		t.Fatalf("fast response score = %v, want 120", fast)
	}
	slow := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true, AvgResponseTime: 6 * time.Second}})
	if slow != 70 {
		t.Fatalf("slow response score = %v, want 70", slow)
	}
	mid := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true, AvgResponseTime: 2 * time.Second}})
	if mid != 100 {
		t.Fatalf("mid response score = %v, want 100 (no bonus/penalty)", mid)
	}
}

func TestScoreErrorRateAndConsecutiveFailures(t *testing.T) {
	s := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true, ErrorRate: 0.2, ConsecutiveFailures: 3}})
	// 100 - 0.2*50 - 3*10 = 100 - 10 - 30 = 60
	if s != 60 {
		t.Fatalf("score = %v, want 60", s)
	}
}

func TestScorePriorityBonus(t *testing.T) {
	s := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true}, priorityBonus: 15})
	if s != 115 {
		t.Fatalf("score = %v, want 115", s)
	}
}

func TestGranularityBonus(t *testing.T) {
	intraday := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	midnight := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	minute := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true}, isPriceOp: true, granularitySupport: GranularityMinute, opTimestamp: &intraday})
	if minute != 130 {
		t.Fatalf("minute granularity score = %v, want 130", minute)
	}
	hourly := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true}, isPriceOp: true, granularitySupport: GranularityHourly, opTimestamp: &intraday})
	if hourly != 120 {
		t.Fatalf("hourly granularity score = %v, want 120", hourly)
	}
	daily := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true}, isPriceOp: true, granularitySupport: GranularityDaily, opTimestamp: &intraday})
	if daily != 90 {
		t.Fatalf("daily granularity score = %v, want 90", daily)
	}
	midnightMinute := score(scoreInputs{circuit: CircuitClosed, health: Snapshot{Healthy: true}, isPriceOp: true, granularitySupport: GranularityMinute, opTimestamp: &midnight})
	if midnightMinute != 100 {
		t.Fatalf("midnight timestamp should skip bonus, got %v", midnightMinute)
	}
}
