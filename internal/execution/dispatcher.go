package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"flank/internal/domain"
	"flank/internal/metrics"
	flaky "flank/internal/retry"
)

// ErrInvalidOptions is returned when the dispatcher cannot run with the given options
var ErrInvalidOptions = errors.New("invalid dispatch options")

const cancelTimeout = 30 * time.Second

// Options configures a Dispatcher
type Options struct {
	RunID                string
	Timeout              time.Duration
	Async                bool
	PollInterval         time.Duration
	TimeoutConsumesRetry bool
	RemoteRetryAttempts  uint
	RemoteRetryDelay     time.Duration
	Devices              []domain.Device
	Environment          map[string]string
}

// Observer is notified about shard progress. Calls may come from several goroutines.
type Observer interface {
	ShardSubmitted(shard domain.Shard, attempt int, jobID string)
	ShardFinished(outcome domain.ShardOutcome)
}

// Result is what a dispatch produced: outcomes in sync mode, acknowledgements in async mode
type Result struct {
	Outcomes []domain.ShardOutcome
	Acks     []domain.Acknowledgement
	Duration time.Duration
	TimedOut bool // Some cases were still outstanding when the run deadline passed
}

// Complete reports whether every shard reached a terminal state in time
func (r *Result) Complete() bool {
	return !r.TimedOut
}

// Dispatcher submits shards to a Remote and supervises them until they finish
type Dispatcher struct {
	opts        Options
	remote      Remote
	coordinator *flaky.Coordinator
	clock       clock.Clock
	observer    Observer
	metrics     *metrics.Metrics
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(opts Options, remote Remote, coordinator *flaky.Coordinator) *Dispatcher {
	if coordinator == nil {
		coordinator = flaky.NewCoordinator(0)
	}
	return &Dispatcher{
		opts:        opts,
		remote:      remote,
		coordinator: coordinator,
		clock:       clock.RealClock{},
	}
}

// SetClock sets the clock used for deadlines, polling and remote retry delays
func (d *Dispatcher) SetClock(c clock.Clock) {
	d.clock = c
}

// SetObserver sets the observer notified about shard progress
func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// SetMetrics sets the metrics recorder
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Dispatch runs the shards. In async mode it only submits them.
func (d *Dispatcher) Dispatch(ctx context.Context, shards []domain.Shard) (*Result, error) {
	if d.remote == nil {
		return nil, fmt.Errorf("%w: no remote configured", ErrInvalidOptions)
	}
	if len(shards) == 0 {
		return &Result{}, nil
	}
	if d.opts.Async {
		return d.submitAll(ctx, shards), nil
	}
	if d.opts.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidOptions)
	}
	if d.opts.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", ErrInvalidOptions)
	}
	return d.runAll(ctx, shards), nil
}

// submitAll submits every shard once and acknowledges each submission
func (d *Dispatcher) submitAll(ctx context.Context, shards []domain.Shard) *Result {
	start := d.clock.Now()
	acks := make([]domain.Acknowledgement, len(shards))

	var g errgroup.Group
	for i, shard := range shards {
		g.Go(func() error {
			req := d.request(shard, 1)
			jobID, err := d.submit(ctx, req)
			acks[i] = domain.Acknowledgement{ShardIndex: shard.Index, JobID: jobID, Err: err}

			logger := log.WithFields(log.Fields{"run": d.opts.RunID, "shard": shard.Index})
			if err != nil {
				logger.WithError(err).Error("Async shard submission failed")
				return nil
			}
			logger.WithField("job", jobID).Info("Shard submitted")
			d.metrics.ShardSubmitted("async", shard.Estimate.Seconds())
			if d.observer != nil {
				d.observer.ShardSubmitted(shard, 1, jobID)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(acks, func(i, j int) bool { return acks[i].ShardIndex < acks[j].ShardIndex })
	return &Result{Acks: acks, Duration: d.clock.Since(start)}
}

// runAll supervises one task per shard until all are terminal or the run deadline passes
func (d *Dispatcher) runAll(ctx context.Context, shards []domain.Shard) *Result {
	start := d.clock.Now()
	runCtx, cancel := context.WithCancel(ctx)

	timer := d.clock.NewTimer(d.opts.Timeout)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-timer.C():
			log.WithField("timeout", d.opts.Timeout).Warn("Run timeout elapsed, abandoning outstanding shards")
			cancel()
		case <-runCtx.Done():
		}
	}()
	defer func() {
		cancel()
		timer.Stop()
		<-watchDone
	}()

	outcomes := make([]domain.ShardOutcome, len(shards))
	abandoned := make([]bool, len(shards))

	var g errgroup.Group
	for i, shard := range shards {
		g.Go(func() error {
			outcomes[i], abandoned[i] = d.runShard(runCtx, shard)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Duration: d.clock.Since(start)}
	for i := range outcomes {
		result.TimedOut = result.TimedOut || abandoned[i]
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })
	result.Outcomes = outcomes
	return result
}

// runShard drives one shard through its attempts. It reports whether cases were
// left outstanding because the run context ended.
func (d *Dispatcher) runShard(ctx context.Context, shard domain.Shard) (domain.ShardOutcome, bool) {
	start := d.clock.Now()
	logger := log.WithFields(log.Fields{"run": d.opts.RunID, "shard": shard.Index})

	outcome := domain.ShardOutcome{Index: shard.Index, State: domain.ShardSubmitted}
	final := make(map[string]domain.CaseResult, len(shard.Cases))
	tries := make(map[string]int, len(shard.Cases))

	pending := shard
	for attempt := 1; len(pending.Cases) > 0 && ctx.Err() == nil; attempt++ {
		req := d.request(pending, attempt)
		jobID, err := d.submit(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.WithError(err).WithField("attempt", attempt).Error("Shard submission failed")
			for _, tc := range pending.Cases {
				final[tc.ID] = domain.CaseResult{
					ID:       tc.ID,
					Status:   domain.CaseTerminal,
					Attempts: tries[tc.ID],
					Message:  fmt.Sprintf("submit shard: %v", err),
				}
			}
			break
		}

		outcome.JobIDs = append(outcome.JobIDs, jobID)
		logger.WithFields(log.Fields{"attempt": attempt, "job": jobID, "cases": len(pending.Cases)}).Info("Shard submitted")
		d.metrics.ShardSubmitted("sync", pending.Estimate.Seconds())
		if d.observer != nil {
			d.observer.ShardSubmitted(pending, attempt, jobID)
		}

		status, err := d.await(ctx, jobID, &outcome, logger)
		if err != nil {
			if ctx.Err() != nil {
				d.cancel(ctx, jobID, logger)
				break
			}
			logger.WithError(err).WithField("job", jobID).Error("Shard status unavailable")
			// Stop the job before its cases are resubmitted
			d.cancel(ctx, jobID, logger)
			status = RemoteStatus{State: RemoteError, Message: err.Error()}
		}
		pending = d.settle(pending, status, final, tries)
	}

	timedOut := false
	outcome.Cases = make([]domain.CaseResult, 0, len(shard.Cases))
	for _, tc := range shard.Cases {
		r, ok := final[tc.ID]
		if !ok {
			r = domain.CaseResult{
				ID:       tc.ID,
				Status:   domain.CaseTimedOut,
				Attempts: tries[tc.ID],
				Message:  "run timeout elapsed before the case finished",
			}
			timedOut = true
		}
		outcome.Cases = append(outcome.Cases, r)
		d.metrics.CaseResult(string(r.Status))
	}
	outcome.State = shardState(outcome.Cases)
	outcome.Duration = d.clock.Since(start)

	logger.WithFields(log.Fields{"state": outcome.State, "duration": outcome.Duration}).Info("Shard finished")
	d.metrics.ShardTerminal(string(outcome.State), outcome.Duration.Seconds())
	if d.observer != nil {
		d.observer.ShardFinished(outcome)
	}
	return outcome, timedOut
}

// await polls a job immediately and then every poll interval until it is terminal
func (d *Dispatcher) await(ctx context.Context, jobID string, outcome *domain.ShardOutcome, logger *log.Entry) (RemoteStatus, error) {
	for {
		status, err := d.status(ctx, jobID)
		if ctx.Err() != nil {
			// Anything that arrived after the deadline is discarded
			return RemoteStatus{}, ctx.Err()
		}
		if err != nil {
			return RemoteStatus{}, err
		}
		if status.State.Terminal() {
			return status, nil
		}
		if status.State == RemoteRunning && outcome.State != domain.ShardRunning {
			outcome.State = domain.ShardRunning
			logger.WithField("job", jobID).Debug("Shard running")
		}

		select {
		case <-ctx.Done():
			return RemoteStatus{}, ctx.Err()
		case <-d.clock.After(d.opts.PollInterval):
		}
	}
}

// settle records the results of one attempt and returns the cases to retry
func (d *Dispatcher) settle(attempted domain.Shard, status RemoteStatus, final map[string]domain.CaseResult, tries map[string]int) domain.Shard {
	reported := make(map[string]domain.CaseResult, len(status.Results))
	for _, r := range status.Results {
		reported[r.ID] = r
	}

	next := domain.Shard{Index: attempted.Index}
	for _, tc := range attempted.Cases {
		tries[tc.ID]++
		r, ok := reported[tc.ID]

		if ok && r.Status == domain.CasePassed {
			r.Attempts = tries[tc.ID]
			if r.Attempts > 1 {
				r.Status = domain.CaseFlaky
			}
			final[tc.ID] = r
			continue
		}
		if !ok && status.State == RemoteTimedOut && !d.opts.TimeoutConsumesRetry {
			final[tc.ID] = domain.CaseResult{
				ID:       tc.ID,
				Status:   domain.CaseTimedOut,
				Attempts: tries[tc.ID],
				Message:  "shard execution timed out",
			}
			continue
		}

		message := r.Message
		if !ok {
			message = missingResultMessage(status)
		}
		decision := d.coordinator.OnFailure(tc.ID, attempted.Index)
		if decision.Retry {
			d.metrics.Retry()
			log.WithFields(log.Fields{"case": tc.ID, "shard": decision.ShardHint, "remaining": decision.Remaining}).Info("Retrying failed case")
			next.Index = decision.ShardHint
			next.Cases = append(next.Cases, tc)
			next.Estimate += tc.Duration
			continue
		}
		final[tc.ID] = domain.CaseResult{
			ID:       tc.ID,
			Status:   domain.CaseTerminal,
			Attempts: tries[tc.ID],
			Message:  message,
			Duration: r.Duration,
		}
	}
	return next
}

func (d *Dispatcher) request(shard domain.Shard, attempt int) domain.ExecutionRequest {
	return domain.ExecutionRequest{
		RunID:       d.opts.RunID,
		Shard:       shard,
		Attempt:     attempt,
		Timeout:     d.opts.Timeout,
		Async:       d.opts.Async,
		Devices:     d.opts.Devices,
		Environment: d.opts.Environment,
	}
}

func (d *Dispatcher) submit(ctx context.Context, req domain.ExecutionRequest) (string, error) {
	var jobID string
	err := d.withRetry(ctx, func() error {
		id, err := d.remote.Submit(ctx, req)
		if err != nil {
			d.metrics.RemoteError("submit")
			return err
		}
		jobID = id
		return nil
	})
	return jobID, err
}

func (d *Dispatcher) status(ctx context.Context, jobID string) (RemoteStatus, error) {
	var status RemoteStatus
	err := d.withRetry(ctx, func() error {
		s, err := d.remote.Status(ctx, jobID)
		if err != nil {
			d.metrics.RemoteError("status")
			return err
		}
		status = s
		return nil
	})
	return status, err
}

// withRetry runs op up to RemoteRetryAttempts times. The delay between tries
// is waited on the dispatcher clock.
func (d *Dispatcher) withRetry(ctx context.Context, op func() error) error {
	tried := false
	return retry.Do(func() error {
		if tried && d.opts.RemoteRetryDelay > 0 {
			select {
			case <-ctx.Done():
				return retry.Unrecoverable(ctx.Err())
			case <-d.clock.After(d.opts.RemoteRetryDelay):
			}
		}
		tried = true
		return op()
	}, d.retryOptions(ctx)...)
}

// cancel asks the remote to stop a job that the run no longer waits for
func (d *Dispatcher) cancel(ctx context.Context, jobID string, logger *log.Entry) {
	cancelCtx, done := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer done()
	if err := d.remote.Cancel(cancelCtx, jobID); err != nil {
		d.metrics.RemoteError("cancel")
		logger.WithError(err).WithField("job", jobID).Warn("Failed to cancel remote job")
	}
}

func (d *Dispatcher) retryOptions(ctx context.Context) []retry.Option {
	attempts := d.opts.RemoteRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	}
}

func missingResultMessage(status RemoteStatus) string {
	switch {
	case status.Message != "":
		return status.Message
	case status.State == RemoteTimedOut:
		return "shard execution timed out"
	default:
		return "no result reported for case"
	}
}

func shardState(cases []domain.CaseResult) domain.ShardState {
	state := domain.ShardPassed
	for _, c := range cases {
		switch c.Status {
		case domain.CaseTimedOut:
			return domain.ShardTimedOut
		case domain.CaseTerminal:
			state = domain.ShardFailed
		}
	}
	return state
}
