package sharding

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flank/internal/domain"
	"flank/internal/timing"
)

func cases(ids ...string) []domain.TestCase {
	out := make([]domain.TestCase, len(ids))
	for i, id := range ids {
		out[i] = domain.TestCase{ID: id}
	}
	return out
}

func shardIDs(shards []domain.Shard) [][]string {
	out := make([][]string, len(shards))
	for i, s := range shards {
		out[i] = s.IDs()
	}
	return out
}

func defaultOptions(maxShards int) Options {
	return Options{MaxShards: maxShards, DefaultTestTime: 120 * time.Second}
}

func TestPlanner_RoundRobin(t *testing.T) {
	planner := NewPlanner(defaultOptions(2), nil)

	shards, strategy, err := planner.PlanWithStrategy(cases("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, StrategyRoundRobin, strategy)
	assert.Equal(t, [][]string{{"a", "c"}, {"b"}}, shardIDs(shards))
	assert.Equal(t, 240*time.Second, shards[0].Estimate)
	assert.Equal(t, 0, shards[0].Index)
	assert.Equal(t, 1, shards[1].Index)
}

func TestPlanner_PartitionProperty(t *testing.T) {
	for total := 1; total <= 12; total++ {
		for n := 1; n <= total; n++ {
			t.Run(fmt.Sprintf("%d cases %d shards", total, n), func(t *testing.T) {
				ids := make([]string, total)
				for i := range ids {
					ids[i] = fmt.Sprintf("case%d", i)
				}
				input := append(cases(ids...), domain.TestCase{ID: "smoke", AlwaysRun: true})

				shards, err := NewPlanner(defaultOptions(n), nil).Plan(input)
				require.NoError(t, err)
				require.Len(t, shards, n)

				seen := map[string]int{}
				for _, s := range shards {
					require.NotEmpty(t, s.Cases)
					assert.Equal(t, "smoke", s.Cases[len(s.Cases)-1].ID, "always-run case is appended last")
					for _, tc := range s.Cases {
						seen[tc.ID]++
					}
				}
				for _, id := range ids {
					assert.Equal(t, 1, seen[id], "case %s must appear exactly once", id)
				}
				assert.Equal(t, n, seen["smoke"], "always-run case must appear in every shard")
			})
		}
	}
}

func TestPlanner_FewerCasesThanShards(t *testing.T) {
	shards, err := NewPlanner(defaultOptions(5), nil).Plan(cases("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, shardIDs(shards))
}

func TestPlanner_DisableSharding(t *testing.T) {
	opts := defaultOptions(0)
	opts.DisableSharding = true
	input := append(cases("a", "b", "c"), domain.TestCase{ID: "smoke", AlwaysRun: true})

	shards, strategy, err := NewPlanner(opts, nil).PlanWithStrategy(input)
	require.NoError(t, err)
	assert.Equal(t, StrategySingle, strategy)
	assert.Equal(t, [][]string{{"a", "b", "c", "smoke"}}, shardIDs(shards))
}

func TestPlanner_Empty(t *testing.T) {
	shards, err := NewPlanner(defaultOptions(3), nil).Plan(nil)
	require.NoError(t, err)
	assert.Empty(t, shards)
}

func TestPlanner_OnlyAlwaysRun(t *testing.T) {
	input := []domain.TestCase{{ID: "x", AlwaysRun: true}, {ID: "y", AlwaysRun: true}}
	shards, strategy, err := NewPlanner(defaultOptions(3), nil).PlanWithStrategy(input)
	require.NoError(t, err)
	assert.Equal(t, StrategyAlwaysRunOnly, strategy)
	assert.Equal(t, [][]string{{"x", "y"}}, shardIDs(shards))
}

func TestPlanner_InvalidOptions(t *testing.T) {
	_, err := NewPlanner(defaultOptions(0), nil).Plan(cases("a"))
	assert.ErrorIs(t, err, ErrInvalidShardCount)

	opts := defaultOptions(1)
	opts.TargetDuration = -time.Second
	_, err = NewPlanner(opts, nil).Plan(cases("a"))
	assert.ErrorIs(t, err, ErrInvalidShardTime)
}

func TestPlanner_ShardTime(t *testing.T) {
	store := timing.MapStore{
		"a": 60 * time.Second,
		"b": 50 * time.Second,
		"c": 40 * time.Second,
		"d": 30 * time.Second,
		"e": 20 * time.Second,
	}
	opts := defaultOptions(10)
	opts.TargetDuration = 100 * time.Second

	shards, strategy, err := NewPlanner(opts, store).PlanWithStrategy(cases("e", "d", "c", "b", "a"))
	require.NoError(t, err)
	assert.Equal(t, StrategyShardTime, strategy)
	assert.Equal(t, [][]string{{"a", "c"}, {"b", "d", "e"}}, shardIDs(shards))
	assert.Equal(t, 100*time.Second, shards[0].Estimate)
	assert.Equal(t, 100*time.Second, shards[1].Estimate)
}

func TestPlanner_ShardTimeCapped(t *testing.T) {
	store := timing.MapStore{"a": 40 * time.Second, "b": 40 * time.Second, "c": 40 * time.Second, "d": 40 * time.Second}
	opts := defaultOptions(2)
	opts.TargetDuration = 50 * time.Second

	shards, err := NewPlanner(opts, store).Plan(cases("a", "b", "c", "d"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c"}, {"b", "d"}}, shardIDs(shards))
}

func TestPlanner_ShardTimeUnknownUsesDefault(t *testing.T) {
	opts := defaultOptions(10)
	opts.TargetDuration = 4 * time.Minute

	shards, err := NewPlanner(opts, nil).Plan(cases("a", "b", "c"))
	require.NoError(t, err)
	// 120s each, two fit under four minutes
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, shardIDs(shards))
}

func TestPlanner_AlwaysRunCountsTowardEstimate(t *testing.T) {
	store := timing.MapStore{"a": 10 * time.Second, "b": 20 * time.Second, "smoke": 5 * time.Second}
	input := append(cases("a", "b"), domain.TestCase{ID: "smoke", AlwaysRun: true})

	shards, err := NewPlanner(defaultOptions(2), store).Plan(input)
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.Equal(t, 15*time.Second, shards[0].Estimate)
	assert.Equal(t, 25*time.Second, shards[1].Estimate)
}

func TestPlanner_SmartFlank(t *testing.T) {
	store := timing.MapStore{"a": 10 * time.Second, "b": 9 * time.Second, "c": 8 * time.Second,
		"d": 7 * time.Second, "e": 6 * time.Second, "f": 5 * time.Second}
	opts := defaultOptions(2)
	opts.SmartFlank = true

	shards, strategy, err := NewPlanner(opts, store).PlanWithStrategy(cases("f", "e", "d", "c", "b", "a"))
	require.NoError(t, err)
	assert.Equal(t, StrategySmartFlank, strategy)
	assert.Equal(t, [][]string{{"a", "d", "e"}, {"b", "c", "f"}}, shardIDs(shards))
	assert.Equal(t, 23*time.Second, shards[0].Estimate)
	assert.Equal(t, 22*time.Second, shards[1].Estimate)
}

func TestPlanner_SmartFlankWithoutCoverageFallsBack(t *testing.T) {
	store := timing.MapStore{"other": time.Second}
	opts := defaultOptions(2)
	opts.SmartFlank = true

	shards, strategy, err := NewPlanner(opts, store).PlanWithStrategy(cases("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, StrategyRoundRobin, strategy)
	assert.Equal(t, [][]string{{"a", "c"}, {"b"}}, shardIDs(shards))
}

func TestPlanner_Deterministic(t *testing.T) {
	store := timing.MapStore{"a": 3 * time.Second, "b": 3 * time.Second, "c": 3 * time.Second, "d": time.Second}
	input := cases("a", "b", "c", "d", "e", "f")

	for _, opts := range []Options{
		defaultOptions(3),
		{MaxShards: 3, SmartFlank: true, DefaultTestTime: time.Second},
		{MaxShards: 3, TargetDuration: 4 * time.Second, DefaultTestTime: time.Second},
	} {
		first, err := NewPlanner(opts, store).Plan(input)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := NewPlanner(opts, store).Plan(input)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}
