package sharding

import (
	"container/heap"
	"sort"
	"time"

	"flank/internal/domain"
	"flank/internal/timing"
)

// Balancer approximates a minimum-makespan partition from historical timings
// using longest-processing-time-first assignment.
type Balancer struct{}

// NewBalancer creates a new Balancer
func NewBalancer() *Balancer {
	return &Balancer{}
}

// Rebalance assigns each case, longest first, to the shard with the smallest
// cumulative estimate. Cases without timing go last and weigh the mean of the
// known durations. ok is false when timings cover none of the cases, in which
// case the caller keeps its naive split.
func (b *Balancer) Rebalance(timings timing.Store, cases []domain.TestCase, maxShards int) (shards []domain.Shard, ok bool) {
	if maxShards < 1 || timings == nil {
		return nil, false
	}
	cases = timing.Apply(timings, cases)
	regular, always := splitAlwaysRun(cases)
	if len(regular) == 0 {
		return nil, false
	}

	var known, unknown []domain.TestCase
	var sum time.Duration
	for _, tc := range regular {
		if tc.HasDuration() {
			known = append(known, tc)
			sum += tc.Duration
		} else {
			unknown = append(unknown, tc)
		}
	}
	if len(known) == 0 {
		return nil, false
	}
	mean := sum / time.Duration(len(known))
	weight := func(tc domain.TestCase) time.Duration {
		if tc.HasDuration() {
			return tc.Duration
		}
		return mean
	}

	sort.SliceStable(known, func(i, j int) bool {
		return known[i].Duration > known[j].Duration
	})
	ordered := append(known, unknown...)

	n := maxShards
	if len(ordered) < n {
		n = len(ordered)
	}
	groups := make([][]domain.TestCase, n)
	buckets := make(bucketHeap, n)
	for i := range buckets {
		buckets[i] = &bucket{index: i}
	}
	heap.Init(&buckets)

	for _, tc := range ordered {
		shortest := buckets[0]
		groups[shortest.index] = append(groups[shortest.index], tc)
		shortest.load += weight(tc)
		heap.Fix(&buckets, 0)
	}

	return assemble(groups, always, weight), true
}

type bucket struct {
	index int
	load  time.Duration
}

// bucketHeap is a min-heap on load, ties broken by lowest shard index
type bucketHeap []*bucket

func (h bucketHeap) Len() int { return len(h) }

func (h bucketHeap) Less(i, j int) bool {
	if h[i].load != h[j].load {
		return h[i].load < h[j].load
	}
	return h[i].index < h[j].index
}

func (h bucketHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *bucketHeap) Push(x interface{}) { *h = append(*h, x.(*bucket)) }

func (h *bucketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	b := old[n-1]
	*h = old[:n-1]
	return b
}
