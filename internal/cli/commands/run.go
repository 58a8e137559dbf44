package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"flank/internal/config"
	"flank/internal/discovery"
	"flank/internal/domain"
	"flank/internal/execution"
	"flank/internal/metrics"
	"flank/internal/parser"
	"flank/internal/report"
	"flank/internal/retry"
	"flank/internal/storage"
	"flank/internal/timing"
	"flank/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	scanner   *discovery.Scanner
	parser    parser.Parser
	storage   storage.Storage
	formatter *ui.Formatter
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	parser parser.Parser,
	st storage.Storage,
	formatter *ui.Formatter,
) *RunCommand {
	return &RunCommand{
		config:    cfg,
		scanner:   scanner,
		parser:    parser,
		storage:   st,
		formatter: formatter,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID := uuid.NewString()
	logger := log.WithField("run", runID)

	cases, err := loadCases(rc.config, rc.scanner)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		color.Yellow("No tests to execute")
	}

	src, err := timingSource(rc.config)
	if err != nil {
		return err
	}
	backend, store := openTimings(ctx, src)
	defer closeBackend(backend)

	shards, strategy, err := newPlanner(rc.config, store).PlanWithStrategy(cases)
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"cases":    len(cases),
		"shards":   len(shards),
		"strategy": strategy,
	}).Info("Planned run")
	if always := rc.config.TestTargetsAlwaysRun; len(always) > 0 {
		logger.WithField("always_run", ui.FormatCaseList(always, 5)).Info("Replicating always-run cases into every shard")
	}

	m := metrics.New()
	result, err := rc.dispatch(ctx, runID, shards, m)
	if err != nil {
		return err
	}
	rc.writeMetrics(m)

	if rc.config.Async {
		return rc.acknowledge(runID, result.Acks)
	}

	runReport := report.Aggregate(runID, result.Outcomes, result.Duration, result.Complete())
	if err := rc.storage.Save(runReport); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	rc.persistJUnit(ctx, runReport, backend)

	rc.formatter.PrintReport(&runReport)
	if code := runReport.ExitCode(); code != domain.ExitSuccess {
		return &ExitError{Code: code}
	}
	return nil
}

func (rc *RunCommand) dispatch(ctx context.Context, runID string, shards []domain.Shard, m *metrics.Metrics) (*execution.Result, error) {
	if len(shards) == 0 {
		return &execution.Result{}, nil
	}
	if rc.config.ShardCommand == "" {
		return nil, fmt.Errorf("%w: shard-command is required to run shards", config.ErrInvalidConfig)
	}

	remote, err := execution.NewCommandRemote(rc.config.ShardCommand, rc.config.ProjectPath, rc.config.GetResultsDir(runID), rc.parser)
	if err != nil {
		return nil, err
	}

	dispatcher := execution.NewDispatcher(execution.Options{
		RunID:                runID,
		Timeout:              rc.config.Timeout,
		Async:                rc.config.Async,
		PollInterval:         rc.config.PollInterval,
		TimeoutConsumesRetry: rc.config.TimeoutConsumesRetry,
		RemoteRetryAttempts:  rc.config.RemoteRetryAttempts,
		RemoteRetryDelay:     rc.config.RemoteRetryDelay,
		Devices:              rc.config.DevicesOrDefault(),
		Environment:          rc.config.RequestEnvironment(),
	}, remote, retry.NewCoordinator(rc.config.FlakyTestAttempts))
	dispatcher.SetMetrics(m)

	var progress *ui.ProgressBar
	if !rc.config.Async {
		progress = ui.NewProgressBar(len(shards))
		dispatcher.SetObserver(progress)
	}

	result, err := dispatcher.Dispatch(ctx, shards)
	if progress != nil {
		progress.Finish()
	}
	return result, err
}

// acknowledge prints async submissions. A failed submission fails the command.
func (rc *RunCommand) acknowledge(runID string, acks []domain.Acknowledgement) error {
	rc.formatter.PrintAcknowledgements(runID, acks)
	failed := 0
	for _, ack := range acks {
		if ack.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d shard submission(s) failed", failed, len(acks))
	}
	return nil
}

// persistJUnit writes the run's JUnit report locally and uploads it as timing data
func (rc *RunCommand) persistJUnit(ctx context.Context, runReport domain.RunReport, backend timing.Backend) {
	suites := report.ToJUnit(runReport)
	path := filepath.Join(rc.config.GetResultsDir(runReport.RunID), config.DefaultTimingFile)
	if err := timing.NewFileBackend(path).Upload(ctx, suites); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to write JUnit report")
	}

	if backend == nil || rc.config.SmartFlankDisableUpload {
		return
	}
	if err := backend.Upload(ctx, suites); err != nil {
		log.WithError(err).Warn("Failed to upload timing data")
		return
	}
	log.WithField("cases", runReport.Total).Info("Uploaded timing data")
}

func (rc *RunCommand) writeMetrics(m *metrics.Metrics) {
	if rc.config.MetricsFile == "" {
		return
	}
	path := rc.config.ResolvePath(rc.config.MetricsFile)
	if err := m.WriteTextfile(path); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to write metrics")
	}
}
