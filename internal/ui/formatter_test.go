package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"flank/internal/domain"
	"flank/internal/sharding"
)

func init() {
	color.NoColor = true
}

func TestFormatter_PrintReport(t *testing.T) {
	tests := []struct {
		name     string
		report   domain.RunReport
		contains []string
		absent   []string
	}{
		{
			name: "all passed",
			report: domain.RunReport{
				RunID: "run-1", Total: 1, Passed: 1, Complete: true,
				Shards: []domain.ShardOutcome{{Index: 0, Cases: []domain.CaseResult{{ID: "A/ok", Status: domain.CasePassed}}}},
			},
			contains: []string{"✓ 1 / 1 (100.00%)", "Test Cases"},
			absent:   []string{"shard 000"},
		},
		{
			name:     "empty run",
			report:   domain.RunReport{RunID: "run-2", Complete: true},
			contains: []string{"✓ 0 / 0 (0.00%)"},
		},
		{
			name: "failures are listed per shard and class",
			report: domain.RunReport{
				RunID: "run-3", Total: 3, Passed: 1, Flaky: 1, Failed: 1, Complete: true,
				Shards: []domain.ShardOutcome{{Index: 1, Cases: []domain.CaseResult{
					{ID: "LoginTests/testOk", Status: domain.CasePassed},
					{ID: "LoginTests/testRetry", Status: domain.CaseFlaky},
					{ID: "LoginTests/testBroken", Status: domain.CaseTerminal},
				}}},
			},
			contains: []string{"✗ 2 / 3 (66.67%)", "shard 001", "LoginTests", "testRetry [flaky]", "testBroken [terminally_failed]"},
			absent:   []string{"testOk"},
		},
		{
			name: "incomplete run",
			report: domain.RunReport{
				RunID: "run-4", Total: 1, TimedOut: 1, Complete: false,
				Shards: []domain.ShardOutcome{{Index: 0, Cases: []domain.CaseResult{{ID: "slow", Status: domain.CaseTimedOut}}}},
			},
			contains: []string{"run timed out", "(no class)", "slow [timed_out]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewFormatterTo(&buf).PrintReport(&tt.report)
			out := buf.String()
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("output unexpectedly contains %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestFormatter_PrintPlan(t *testing.T) {
	shards := []domain.Shard{
		{Index: 0, Cases: []domain.TestCase{{ID: "A/one"}, {ID: "Setup/always", AlwaysRun: true}}, Estimate: 3 * time.Second},
		{Index: 1, Cases: []domain.TestCase{{ID: "A/two"}}, Estimate: 5 * time.Second},
	}

	var buf bytes.Buffer
	NewFormatterTo(&buf).PrintPlan(shards, sharding.StrategyRoundRobin, true)
	out := buf.String()

	for _, s := range []string{
		"Planned 2 shard(s) with 3 test case(s) using round-robin",
		"shard 1 (1 case(s), estimate 5s)",
		"Setup/always [always]",
		"Makespan estimate: 5s, total 8s",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}

func TestFormatter_PrintAcknowledgements(t *testing.T) {
	var buf bytes.Buffer
	NewFormatterTo(&buf).PrintAcknowledgements("run-1", []domain.Acknowledgement{
		{ShardIndex: 0, JobID: "job-a"},
		{ShardIndex: 1, Err: errors.New("quota exceeded")},
	})
	out := buf.String()
	if !strings.Contains(out, "shard 0: job-a") || !strings.Contains(out, "shard 1: quota exceeded") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFormatCaseList(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	if got := FormatCaseList(ids, 0); got != "a, b, c, d" {
		t.Errorf("FormatCaseList(no limit) = %q", got)
	}
	if got := FormatCaseList(ids, 2); got != "a, b and 2 more" {
		t.Errorf("FormatCaseList(2) = %q", got)
	}
}
