package domain

import "time"

// ShardState is the lifecycle state of one shard in synchronous mode
type ShardState string

const (
	ShardSubmitted ShardState = "SUBMITTED"
	ShardRunning   ShardState = "RUNNING"
	ShardPassed    ShardState = "PASSED"
	ShardFailed    ShardState = "FAILED"
	ShardTimedOut  ShardState = "TIMED_OUT"
)

// Terminal reports whether no further transitions can happen
func (s ShardState) Terminal() bool {
	return s == ShardPassed || s == ShardFailed || s == ShardTimedOut
}

// ExecutionRequest is one shard attempt handed to the remote execution service
type ExecutionRequest struct {
	RunID       string
	Shard       Shard
	Attempt     int // 1 for the first submission, incremented for each retry
	Timeout     time.Duration
	Async       bool
	Devices     []Device
	Environment map[string]string // Opaque run parameters, passed through untouched
}

// CaseStatus is the result of a single test case execution
type CaseStatus string

const (
	CasePassed   CaseStatus = "passed"
	CaseFailed   CaseStatus = "failed"
	CaseFlaky    CaseStatus = "flaky"
	CaseTerminal CaseStatus = "terminally_failed"
	CaseTimedOut CaseStatus = "timed_out"
)

// CaseResult is the outcome of one test case, either raw from the remote or final after retries
type CaseResult struct {
	ID       string        `json:"id"`
	Status   CaseStatus    `json:"status"`
	Attempts int           `json:"attempts,omitempty"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ShardOutcome is the terminal outcome of a shard, with final per-case results
type ShardOutcome struct {
	Index    int           `json:"index"`
	JobIDs   []string      `json:"job_ids"`
	State    ShardState    `json:"state"`
	Cases    []CaseResult  `json:"cases"`
	Duration time.Duration `json:"duration"`
}

// Acknowledgement is returned per shard when submitting asynchronously
type Acknowledgement struct {
	ShardIndex int
	JobID      string
	Err        error
}
