package domain

import (
	"fmt"
	"time"
)

// RunReport is the final aggregate of a run
type RunReport struct {
	RunID     string         `json:"run_id"`
	Total     int            `json:"total"`
	Passed    int            `json:"passed"`
	Flaky     int            `json:"flaky"`
	Failed    int            `json:"failed"`
	TimedOut  int            `json:"timed_out"`
	Duration  time.Duration  `json:"duration"`
	Complete  bool           `json:"complete"` // False when the overall timeout elapsed
	Shards    []ShardOutcome `json:"shards,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// PassPercentage renders "<passed> / <executed> (<pct>%)" with flaky cases counted
// as passed. Timed-out cases never finished and are left out.
func (r RunReport) PassPercentage() string {
	passed := r.Passed + r.Flaky
	executed := r.Total - r.TimedOut
	pct := 0.0
	if executed > 0 {
		pct = float64(passed) * 100 / float64(executed)
	}
	return fmt.Sprintf("%d / %d (%.2f%%)", passed, executed, pct)
}

// Success is false when any case failed terminally or the run did not complete
func (r RunReport) Success() bool {
	return r.Failed == 0 && r.TimedOut == 0 && r.Complete
}

// Process exit codes
const (
	ExitSuccess     = 0
	ExitTestFailure = 10
	ExitIncomplete  = 15
)

// ExitCode returns the process exit code for the run
func (r RunReport) ExitCode() int {
	switch {
	case !r.Complete || r.TimedOut > 0:
		return ExitIncomplete
	case r.Failed > 0:
		return ExitTestFailure
	}
	return ExitSuccess
}

// Failures returns every non-passing case result with its shard index
func (r RunReport) Failures() []ShardCase {
	var out []ShardCase
	for _, s := range r.Shards {
		for _, c := range s.Cases {
			if c.Status == CaseTerminal || c.Status == CaseTimedOut || c.Status == CaseFlaky {
				out = append(out, ShardCase{Shard: s.Index, Result: c})
			}
		}
	}
	return out
}

// ShardCase is a case result tagged with the shard it ran in
type ShardCase struct {
	Shard  int
	Result CaseResult
}
