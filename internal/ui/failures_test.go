package ui

import (
	"strings"
	"testing"
	"time"

	"flank/internal/domain"
)

func TestFilterFailures(t *testing.T) {
	all := []domain.ShardCase{
		{Shard: 0, Result: domain.CaseResult{ID: "A/broken", Status: domain.CaseTerminal}},
		{Shard: 0, Result: domain.CaseResult{ID: "A/retry", Status: domain.CaseFlaky}},
		{Shard: 1, Result: domain.CaseResult{ID: "B/slow", Status: domain.CaseTimedOut}},
	}

	if got := filterFailures(all, false); len(got) != 3 {
		t.Errorf("filterFailures(show flaky) = %d cases, want 3", len(got))
	}
	got := filterFailures(all, true)
	if len(got) != 2 || got[0].Result.ID != "A/broken" || got[1].Result.ID != "B/slow" {
		t.Errorf("filterFailures(hide flaky) = %+v", got)
	}
}

func TestFormatFailureDetails(t *testing.T) {
	details := formatFailureDetails(domain.ShardCase{
		Shard: 2,
		Result: domain.CaseResult{
			ID:       "LoginTests/testBroken",
			Status:   domain.CaseTerminal,
			Attempts: 3,
			Message:  "XCTAssertEqual failed [expected]",
			Duration: 2 * time.Second,
		},
	})

	for _, s := range []string{"✗ Test: LoginTests/testBroken", "Shard:", "2", "Attempts:", "3", "Duration:", "2s", "XCTAssertEqual failed"} {
		if !strings.Contains(details, s) {
			t.Errorf("details missing %q:\n%s", s, details)
		}
	}
}

func TestFormatFailureStats(t *testing.T) {
	stats := formatFailureStats(domain.ShardCase{Shard: 1, Result: domain.CaseResult{ID: "standalone"}})
	if !strings.Contains(stats, "[yellow]-[white]::[yellow]standalone") {
		t.Errorf("unexpected stats: %s", stats)
	}
}
