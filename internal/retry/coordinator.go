// Package retry tracks the per-test-case flaky retry budget of a run.
package retry

import "sync"

// Decision is the coordinator's answer to an observed failure
type Decision struct {
	Retry     bool
	ShardHint int // Shard the retry should run in
	Remaining int // Attempts left after this failure
}

// Ticket is the retry state of one test case
type Ticket struct {
	Remaining int
	Failures  int
}

// Coordinator owns the RetryTicket table. Every failure observation for an id
// is applied atomically, across all shards of the run.
type Coordinator struct {
	mu       sync.Mutex
	attempts int
	tickets  map[string]*Ticket
}

// NewCoordinator creates a Coordinator granting attempts retries per test case
func NewCoordinator(attempts int) *Coordinator {
	if attempts < 0 {
		attempts = 0
	}
	return &Coordinator{
		attempts: attempts,
		tickets:  make(map[string]*Ticket),
	}
}

// OnFailure records a failed attempt of id observed in shard
func (c *Coordinator) OnFailure(id string, shard int) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.ticket(id)
	t.Failures++
	if t.Remaining == 0 {
		return Decision{Retry: false, ShardHint: shard, Remaining: 0}
	}
	t.Remaining--
	return Decision{Retry: true, ShardHint: shard, Remaining: t.Remaining}
}

// RemainingBudget returns the attempts left for id
func (c *Coordinator) RemainingBudget(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tickets[id]; ok {
		return t.Remaining
	}
	return c.attempts
}

// Failures returns how many failures were observed for id
func (c *Coordinator) Failures(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tickets[id]; ok {
		return t.Failures
	}
	return 0
}

// Snapshot returns a copy of every ticket touched so far
func (c *Coordinator) Snapshot() map[string]Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Ticket, len(c.tickets))
	for id, t := range c.tickets {
		out[id] = *t
	}
	return out
}

func (c *Coordinator) ticket(id string) *Ticket {
	t, ok := c.tickets[id]
	if !ok {
		t = &Ticket{Remaining: c.attempts}
		c.tickets[id] = t
	}
	return t
}
