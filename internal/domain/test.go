package domain

import "time"

// TestCase represents a single discovered test case
type TestCase struct {
	ID        string        // class/method or target name
	Duration  time.Duration // Historical duration, zero when unknown
	AlwaysRun bool          // Replicated into every shard instead of being partitioned
}

// HasDuration reports whether a historical duration is known for the case
func (tc TestCase) HasDuration() bool {
	return tc.Duration > 0
}

// Shard is an ordered set of test cases executed together as one remote job
type Shard struct {
	Index    int
	Cases    []TestCase
	Estimate time.Duration // Sum of case weights, always-run cases included
}

// IDs returns the identifiers of the shard's cases in order
func (s Shard) IDs() []string {
	ids := make([]string, len(s.Cases))
	for i, tc := range s.Cases {
		ids[i] = tc.ID
	}
	return ids
}
