package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	log "github.com/sirupsen/logrus"

	"flank/internal/domain"
	"flank/internal/parser"
)

// ErrUnknownJob is returned for job ids the remote never issued
var ErrUnknownJob = errors.New("unknown job")

const waitDelay = 2 * time.Second

// Environment variables handed to every shard command
const (
	EnvRunID       = "FLANK_RUN_ID"
	EnvShardIndex  = "FLANK_SHARD_INDEX"
	EnvAttempt     = "FLANK_ATTEMPT"
	EnvTestTargets = "FLANK_TEST_TARGETS"
	EnvDevices     = "FLANK_DEVICES"
	EnvJUnitPath   = "FLANK_JUNIT_PATH"
)

// CommandRemote runs every shard attempt as a local shell command
type CommandRemote struct {
	args       []string
	workDir    string
	resultsDir string
	parser     parser.Parser

	mu   sync.Mutex
	jobs map[string]*commandJob
}

type commandJob struct {
	req       domain.ExecutionRequest
	cmd       *exec.Cmd
	junitPath string
	output    bytes.Buffer
	start     time.Time
	done      chan struct{}

	// Set before done is closed
	err      error
	duration time.Duration
	timedOut bool
	canceled bool
}

// NewCommandRemote creates a new CommandRemote running command from workDir.
// Shard reports are written below resultsDir.
func NewCommandRemote(command, workDir, resultsDir string, p parser.Parser) (*CommandRemote, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse shard command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty shard command", ErrInvalidOptions)
	}
	if p == nil {
		p = parser.NewJUnitParser()
	}
	return &CommandRemote{
		args:       args,
		workDir:    workDir,
		resultsDir: resultsDir,
		parser:     p,
		jobs:       make(map[string]*commandJob),
	}, nil
}

// Submit implements Remote
func (r *CommandRemote) Submit(ctx context.Context, req domain.ExecutionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	dir := filepath.Join(r.resultsDir, fmt.Sprintf("shard_%d", req.Shard.Index), fmt.Sprintf("attempt_%d", req.Attempt))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create shard results directory: %w", err)
	}

	job := &commandJob{
		req:       req,
		junitPath: filepath.Join(dir, "JUnitReport.xml"),
		done:      make(chan struct{}),
	}

	cmd := exec.Command(r.args[0], r.args[1:]...)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(), r.environment(req, job.junitPath)...)
	cmd.Stdout = &job.output
	cmd.Stderr = &job.output
	// Output pipes held open by escaped descendants are closed after waitDelay
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	job.cmd = cmd

	job.start = time.Now()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start shard command: %w", err)
	}

	r.mu.Lock()
	r.jobs[jobID] = job
	r.mu.Unlock()

	go r.wait(jobID, job)
	return jobID, nil
}

func (r *CommandRemote) wait(jobID string, job *commandJob) {
	var killer *time.Timer
	if job.req.Timeout > 0 {
		killer = time.AfterFunc(job.req.Timeout, func() {
			r.mu.Lock()
			job.timedOut = true
			r.mu.Unlock()
			_ = killProcessGroup(job.cmd)
		})
	}

	err := job.cmd.Wait()
	if killer != nil {
		killer.Stop()
	}

	r.mu.Lock()
	job.err = err
	job.duration = time.Since(job.start)
	r.mu.Unlock()
	close(job.done)

	if err != nil {
		log.WithFields(log.Fields{"job": jobID, "shard": job.req.Shard.Index}).WithError(err).Debug("Shard command exited with error")
	}
}

// Status implements Remote
func (r *CommandRemote) Status(ctx context.Context, jobID string) (RemoteStatus, error) {
	if err := ctx.Err(); err != nil {
		return RemoteStatus{}, err
	}
	job, err := r.job(jobID)
	if err != nil {
		return RemoteStatus{}, err
	}

	select {
	case <-job.done:
	default:
		return RemoteStatus{State: RemoteRunning}, nil
	}

	r.mu.Lock()
	exitErr, duration, timedOut, canceled := job.err, job.duration, job.timedOut, job.canceled
	r.mu.Unlock()

	parsed, err := r.parser.ParseResults(job.junitPath)
	if err != nil {
		return RemoteStatus{State: RemoteError, Duration: duration, Message: err.Error()}, nil
	}

	status := RemoteStatus{State: RemoteFinished, Duration: duration}
	switch {
	case timedOut:
		status.State = RemoteTimedOut
	case canceled:
		status.State = RemoteError
		status.Message = "shard command canceled"
	case exitErr != nil:
		status.Message = commandFailure(exitErr, job.output.String())
	}

	for _, tc := range job.req.Shard.Cases {
		if res, ok := parsed[tc.ID]; ok {
			status.Results = append(status.Results, res)
			continue
		}
		if status.State != RemoteFinished {
			continue
		}
		res := domain.CaseResult{ID: tc.ID, Status: domain.CasePassed}
		if exitErr != nil {
			res.Status = domain.CaseFailed
			res.Message = status.Message
		}
		status.Results = append(status.Results, res)
	}
	return status, nil
}

// Cancel implements Remote
func (r *CommandRemote) Cancel(ctx context.Context, jobID string) error {
	job, err := r.job(jobID)
	if err != nil {
		return err
	}
	select {
	case <-job.done:
		return nil
	default:
	}

	r.mu.Lock()
	job.canceled = true
	r.mu.Unlock()
	if err := killProcessGroup(job.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill shard command: %w", err)
	}
	return nil
}

// Wait blocks until every started command has exited
func (r *CommandRemote) Wait(ctx context.Context) error {
	r.mu.Lock()
	jobs := make([]*commandJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	for _, job := range jobs {
		select {
		case <-job.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *CommandRemote) job(jobID string) (*commandJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	return job, nil
}

func (r *CommandRemote) environment(req domain.ExecutionRequest, junitPath string) []string {
	env := []string{
		EnvRunID + "=" + req.RunID,
		EnvShardIndex + "=" + strconv.Itoa(req.Shard.Index),
		EnvAttempt + "=" + strconv.Itoa(req.Attempt),
		EnvTestTargets + "=" + strings.Join(req.Shard.IDs(), ","),
		EnvDevices + "=" + formatDevices(req.Devices),
		EnvJUnitPath + "=" + junitPath,
	}
	for key, value := range req.Environment {
		env = append(env, envName(key)+"="+value)
	}
	return env
}

// envName turns a pass-through parameter like results-bucket into FLANK_RESULTS_BUCKET
func envName(key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if strings.HasPrefix(name, "FLANK_") {
		return name
	}
	return "FLANK_" + name
}

// formatDevices renders devices the way they are given on the command line, separated by ';'
func formatDevices(devices []domain.Device) string {
	parts := make([]string, 0, len(devices))
	for _, d := range devices {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ";")
}

func commandFailure(err error, output string) string {
	output = strings.TrimSpace(output)
	if i := strings.LastIndexByte(output, '\n'); i >= 0 {
		output = output[i+1:]
	}
	if output == "" {
		return fmt.Sprintf("shard command failed: %v", err)
	}
	return fmt.Sprintf("shard command failed: %v: %s", err, output)
}
