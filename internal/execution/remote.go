package execution

import (
	"context"
	"time"

	"flank/internal/domain"
)

// RemoteState is the state of a job as reported by the remote execution service
type RemoteState string

const (
	RemotePending  RemoteState = "PENDING"
	RemoteRunning  RemoteState = "RUNNING"
	RemoteFinished RemoteState = "FINISHED"
	RemoteTimedOut RemoteState = "TIMED_OUT"
	RemoteError    RemoteState = "ERROR"
)

// Terminal reports whether the job will not report further progress
func (s RemoteState) Terminal() bool {
	return s == RemoteFinished || s == RemoteTimedOut || s == RemoteError
}

// RemoteStatus is one poll response for a job
type RemoteStatus struct {
	State    RemoteState
	Results  []domain.CaseResult // Raw passed/failed results of the cases that finished
	Duration time.Duration
	Message  string
}

// Remote is the remote execution service shards are submitted to
type Remote interface {
	// Submit starts a shard attempt and returns its job id
	Submit(ctx context.Context, req domain.ExecutionRequest) (string, error)
	// Status returns the current state of a job
	Status(ctx context.Context, jobID string) (RemoteStatus, error)
	// Cancel asks the service to stop a job. Best effort.
	Cancel(ctx context.Context, jobID string) error
}
