package report

import (
	"testing"
	"time"

	"flank/internal/domain"
)

func outcome(index int, statuses ...domain.CaseStatus) domain.ShardOutcome {
	o := domain.ShardOutcome{Index: index, State: domain.ShardPassed}
	for i, s := range statuses {
		o.Cases = append(o.Cases, domain.CaseResult{ID: string(rune('a'+i)) + "/test", Status: s})
	}
	return o
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		outcomes   []domain.ShardOutcome
		complete   bool
		percentage string
		success    bool
		exitCode   int
	}{
		{
			name:       "single passing case",
			outcomes:   []domain.ShardOutcome{outcome(0, domain.CasePassed)},
			complete:   true,
			percentage: "1 / 1 (100.00%)",
			success:    true,
			exitCode:   domain.ExitSuccess,
		},
		{
			name:       "no cases is a no-op success",
			complete:   true,
			percentage: "0 / 0 (0.00%)",
			success:    true,
			exitCode:   domain.ExitSuccess,
		},
		{
			name: "flaky counts as passed",
			outcomes: []domain.ShardOutcome{
				outcome(0, domain.CasePassed, domain.CaseFlaky),
				outcome(1, domain.CasePassed),
			},
			complete:   true,
			percentage: "3 / 3 (100.00%)",
			success:    true,
			exitCode:   domain.ExitSuccess,
		},
		{
			name: "terminal failure",
			outcomes: []domain.ShardOutcome{
				outcome(0, domain.CasePassed, domain.CaseTerminal),
				outcome(1, domain.CasePassed),
			},
			complete:   true,
			percentage: "2 / 3 (66.67%)",
			success:    false,
			exitCode:   domain.ExitTestFailure,
		},
		{
			name: "timed out shard with passing sibling",
			outcomes: []domain.ShardOutcome{
				outcome(1, domain.CasePassed),
				outcome(0, domain.CaseTimedOut, domain.CaseTimedOut),
			},
			complete:   false,
			percentage: "1 / 1 (100.00%)",
			success:    false,
			exitCode:   domain.ExitIncomplete,
		},
		{
			name: "timed out cases leave the pass computation",
			outcomes: []domain.ShardOutcome{
				outcome(0, domain.CasePassed, domain.CaseTerminal),
				outcome(1, domain.CaseTimedOut),
			},
			complete:   false,
			percentage: "1 / 2 (50.00%)",
			success:    false,
			exitCode:   domain.ExitIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Aggregate("run-1", tt.outcomes, time.Minute, tt.complete)

			if got := report.PassPercentage(); got != tt.percentage {
				t.Errorf("PassPercentage() = %q, want %q", got, tt.percentage)
			}
			if got := report.Success(); got != tt.success {
				t.Errorf("Success() = %v, want %v", got, tt.success)
			}
			if got := report.ExitCode(); got != tt.exitCode {
				t.Errorf("ExitCode() = %d, want %d", got, tt.exitCode)
			}
			if len(report.Shards) != len(tt.outcomes) {
				t.Errorf("Shards = %d, want %d", len(report.Shards), len(tt.outcomes))
			}
		})
	}
}

func TestAggregate_CountsAndOrder(t *testing.T) {
	report := Aggregate("run-1", []domain.ShardOutcome{
		outcome(2, domain.CaseTimedOut),
		outcome(0, domain.CasePassed, domain.CaseFlaky, domain.CaseTerminal),
		outcome(1, domain.CasePassed),
	}, 90*time.Second, false)

	if report.Total != 5 || report.Passed != 2 || report.Flaky != 1 || report.Failed != 1 || report.TimedOut != 1 {
		t.Errorf("unexpected counts: %+v", report)
	}
	for i, s := range report.Shards {
		if s.Index != i {
			t.Errorf("Shards[%d].Index = %d, want %d", i, s.Index, i)
		}
	}
	if report.RunID != "run-1" || report.Duration != 90*time.Second {
		t.Errorf("unexpected metadata: %s %s", report.RunID, report.Duration)
	}
}

func TestAggregate_AlwaysRunCountedPerShard(t *testing.T) {
	always := domain.CaseResult{ID: "Setup/testAlways", Status: domain.CasePassed}
	report := Aggregate("run-1", []domain.ShardOutcome{
		{Index: 0, Cases: []domain.CaseResult{{ID: "A/one", Status: domain.CasePassed}, always}},
		{Index: 1, Cases: []domain.CaseResult{{ID: "A/two", Status: domain.CasePassed}, always}},
	}, time.Second, true)

	if report.Total != 4 {
		t.Errorf("Total = %d, want 4", report.Total)
	}
	if got := report.PassPercentage(); got != "4 / 4 (100.00%)" {
		t.Errorf("PassPercentage() = %q", got)
	}
}
