// Package sharding partitions test cases into shards for parallel remote execution.
package sharding

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"flank/internal/domain"
	"flank/internal/timing"
)

var (
	// ErrInvalidShardCount is returned when sharding is enabled with fewer than one shard
	ErrInvalidShardCount = errors.New("shard count must be at least 1")
	// ErrInvalidShardTime is returned for a negative target shard duration
	ErrInvalidShardTime = errors.New("target shard duration must not be negative")
)

// Options controls how a Planner partitions test cases
type Options struct {
	MaxShards       int
	TargetDuration  time.Duration // Zero selects fixed-count splitting
	DisableSharding bool
	SmartFlank      bool
	DefaultTestTime time.Duration // Weight of cases with no known duration
}

// Strategy names the partitioning used for a plan
type Strategy string

const (
	StrategySingle        Strategy = "single"
	StrategyRoundRobin    Strategy = "round-robin"
	StrategyShardTime     Strategy = "shard-time"
	StrategySmartFlank    Strategy = "smart-flank"
	StrategyAlwaysRunOnly Strategy = "always-run-only"
)

// Planner produces shard assignments. Planning is deterministic for a fixed input.
type Planner struct {
	opts     Options
	timings  timing.Store
	balancer *Balancer
}

// NewPlanner creates a Planner. timings may be nil when no historical data exists.
func NewPlanner(opts Options, timings timing.Store) *Planner {
	if timings == nil {
		timings = timing.Empty
	}
	return &Planner{
		opts:     opts,
		timings:  timings,
		balancer: NewBalancer(),
	}
}

// Plan partitions cases into shards
func (p *Planner) Plan(cases []domain.TestCase) ([]domain.Shard, error) {
	shards, _, err := p.PlanWithStrategy(cases)
	return shards, err
}

// PlanWithStrategy partitions cases and reports which strategy produced the shards
func (p *Planner) PlanWithStrategy(cases []domain.TestCase) ([]domain.Shard, Strategy, error) {
	if !p.opts.DisableSharding && p.opts.MaxShards < 1 {
		return nil, "", fmt.Errorf("%w, got %d", ErrInvalidShardCount, p.opts.MaxShards)
	}
	if p.opts.TargetDuration < 0 {
		return nil, "", ErrInvalidShardTime
	}
	if len(cases) == 0 {
		return nil, StrategySingle, nil
	}

	cases = timing.Apply(p.timings, cases)
	regular, always := splitAlwaysRun(cases)
	weight := p.weight

	if p.opts.DisableSharding {
		all := append(append([]domain.TestCase{}, regular...), always...)
		return assemble([][]domain.TestCase{all}, nil, weight), StrategySingle, nil
	}
	if len(regular) == 0 {
		return assemble([][]domain.TestCase{nil}, always, weight), StrategyAlwaysRunOnly, nil
	}

	if p.opts.SmartFlank && p.opts.TargetDuration == 0 {
		if shards, ok := p.balancer.Rebalance(p.timings, cases, p.opts.MaxShards); ok {
			return shards, StrategySmartFlank, nil
		}
	}
	if p.opts.TargetDuration > 0 {
		groups := firstFitDecreasing(regular, p.opts.TargetDuration, p.opts.MaxShards, weight)
		return assemble(groups, always, weight), StrategyShardTime, nil
	}
	return assemble(roundRobin(regular, p.opts.MaxShards), always, weight), StrategyRoundRobin, nil
}

func (p *Planner) weight(tc domain.TestCase) time.Duration {
	if tc.HasDuration() {
		return tc.Duration
	}
	return p.opts.DefaultTestTime
}

func splitAlwaysRun(cases []domain.TestCase) (regular, always []domain.TestCase) {
	for _, tc := range cases {
		if tc.AlwaysRun {
			always = append(always, tc)
		} else {
			regular = append(regular, tc)
		}
	}
	return regular, always
}

// roundRobin splits cases in discovery order over at most maxShards groups
func roundRobin(cases []domain.TestCase, maxShards int) [][]domain.TestCase {
	n := maxShards
	if len(cases) < n {
		n = len(cases)
	}
	groups := make([][]domain.TestCase, n)
	for i, tc := range cases {
		groups[i%n] = append(groups[i%n], tc)
	}
	return groups
}

// firstFitDecreasing packs cases by decreasing weight into the first shard with
// room under target, opening shards up to maxShards. Once capped, cases that fit
// nowhere are dealt round-robin over the existing shards.
func firstFitDecreasing(cases []domain.TestCase, target time.Duration, maxShards int, weight func(domain.TestCase) time.Duration) [][]domain.TestCase {
	sorted := append([]domain.TestCase{}, cases...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return weight(sorted[i]) > weight(sorted[j])
	})

	var groups [][]domain.TestCase
	var loads []time.Duration
	next := 0
	for _, tc := range sorted {
		w := weight(tc)
		placed := false
		for i := range groups {
			if loads[i]+w <= target {
				groups[i] = append(groups[i], tc)
				loads[i] += w
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		if len(groups) < maxShards {
			groups = append(groups, []domain.TestCase{tc})
			loads = append(loads, w)
			continue
		}
		i := next % len(groups)
		next++
		groups[i] = append(groups[i], tc)
		loads[i] += w
	}
	return groups
}

// assemble appends always-run cases to every group and computes shard
// estimates. Groups left empty with nothing to append are dropped.
func assemble(groups [][]domain.TestCase, always []domain.TestCase, weight func(domain.TestCase) time.Duration) []domain.Shard {
	shards := make([]domain.Shard, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 && len(always) == 0 {
			continue
		}
		cases := make([]domain.TestCase, 0, len(group)+len(always))
		cases = append(cases, group...)
		cases = append(cases, always...)

		var estimate time.Duration
		for _, tc := range cases {
			estimate += weight(tc)
		}
		shards = append(shards, domain.Shard{
			Index:    len(shards),
			Cases:    cases,
			Estimate: estimate,
		})
	}
	return shards
}
