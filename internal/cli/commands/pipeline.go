package commands

import (
	"context"

	log "github.com/sirupsen/logrus"

	"flank/internal/config"
	"flank/internal/discovery"
	"flank/internal/domain"
	"flank/internal/sharding"
	"flank/internal/timing"
)

// loadCases builds the run's test cases from the test list and targets
func loadCases(cfg *config.Config, scanner *discovery.Scanner) ([]domain.TestCase, error) {
	return scanner.Cases(cfg.ResolvePath(cfg.TestListFile), cfg.TestTargets, cfg.TestTargetsAlwaysRun)
}

// timingSource parses the configured timing source, resolving local paths against the project
func timingSource(cfg *config.Config) (timing.Source, error) {
	src, err := timing.ParseSource(cfg.TimingSource)
	if err != nil {
		return timing.Source{}, err
	}
	switch {
	case src.Kind == timing.SourceFile:
		src.Path = cfg.ResolvePath(src.Path)
	case src.Kind == timing.SourceSQL && src.Driver == timing.DriverSQLite:
		src.DSN = cfg.ResolvePath(src.DSN)
	}
	return src, nil
}

// openTimings connects to the timing source and loads its data. Unreachable
// sources degrade to planning without timing data.
func openTimings(ctx context.Context, src timing.Source) (timing.Backend, timing.Store) {
	logger := log.WithField("source", src.String())
	backend, err := timing.Open(ctx, src)
	if err != nil {
		logger.WithError(err).Warn("Timing source unavailable, planning without timing data")
		return nil, timing.Empty
	}
	if backend == nil {
		return nil, timing.Empty
	}

	store, err := backend.Load(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to load timing data, planning without timing data")
		return backend, timing.Empty
	}
	logger.WithField("timings", store.Len()).Info("Loaded timing data")
	return backend, store
}

func newPlanner(cfg *config.Config, store timing.Store) *sharding.Planner {
	return sharding.NewPlanner(sharding.Options{
		MaxShards:       cfg.MaxTestShards,
		TargetDuration:  cfg.ShardTime,
		DisableSharding: cfg.DisableSharding,
		SmartFlank:      cfg.SmartFlank,
		DefaultTestTime: cfg.DefaultTestTime,
	}, store)
}

func closeBackend(backend timing.Backend) {
	if backend == nil {
		return
	}
	if err := backend.Close(); err != nil {
		log.WithError(err).Warn("Failed to close timing source")
	}
}
