// Package timing provides historical per-test durations used to balance shards.
package timing

import (
	"context"
	"sort"
	"time"

	"github.com/jstemmer/go-junit-report/v2/junit"

	"flank/internal/domain"
)

// Store is a read-only lookup of historical test case durations
type Store interface {
	// Lookup returns the duration of a test case, false when it was never timed
	Lookup(id string) (time.Duration, bool)
	// Len returns the number of timed test cases
	Len() int
}

// Backend loads timing data from a source and persists new timing data to it
type Backend interface {
	Load(ctx context.Context) (MapStore, error)
	Upload(ctx context.Context, suites *junit.Testsuites) error
	Close() error
}

// MapStore is an in-memory Store
type MapStore map[string]time.Duration

// Lookup implements Store
func (m MapStore) Lookup(id string) (time.Duration, bool) {
	d, ok := m[id]
	return d, ok && d > 0
}

// Len implements Store
func (m MapStore) Len() int {
	return len(m)
}

// IDs returns the timed ids in sorted order
func (m MapStore) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty is a Store with no timing data
var Empty Store = MapStore{}

// Apply returns a copy of cases with durations filled in from the store
func Apply(store Store, cases []domain.TestCase) []domain.TestCase {
	out := make([]domain.TestCase, len(cases))
	for i, tc := range cases {
		out[i] = tc
		if store == nil {
			continue
		}
		if d, ok := store.Lookup(tc.ID); ok {
			out[i].Duration = d
		}
	}
	return out
}

// Coverage returns how many of the cases have a known duration in the store
func Coverage(store Store, cases []domain.TestCase) int {
	if store == nil {
		return 0
	}
	n := 0
	for _, tc := range cases {
		if _, ok := store.Lookup(tc.ID); ok {
			n++
		}
	}
	return n
}
