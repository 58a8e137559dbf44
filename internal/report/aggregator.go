// Package report turns shard outcomes into the run report and its JUnit rendering.
package report

import (
	"sort"
	"time"

	"flank/internal/domain"
)

// Aggregate builds the RunReport once every shard is terminal. Every case
// instance of every shard is counted, so always-run cases count once per shard.
func Aggregate(runID string, outcomes []domain.ShardOutcome, duration time.Duration, complete bool) domain.RunReport {
	shards := append([]domain.ShardOutcome(nil), outcomes...)
	sort.SliceStable(shards, func(i, j int) bool { return shards[i].Index < shards[j].Index })

	report := domain.RunReport{
		RunID:     runID,
		Duration:  duration,
		Complete:  complete,
		Shards:    shards,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	for _, shard := range shards {
		for _, c := range shard.Cases {
			report.Total++
			switch c.Status {
			case domain.CasePassed:
				report.Passed++
			case domain.CaseFlaky:
				report.Flaky++
			case domain.CaseTimedOut:
				report.TimedOut++
			default:
				report.Failed++
			}
		}
	}
	return report
}
