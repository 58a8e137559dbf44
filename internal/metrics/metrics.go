// Package metrics records dispatch activity as prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const prefix = "flank_"

// Metrics holds the run's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	shardsSubmitted *prometheus.CounterVec
	shardsTerminal  *prometheus.CounterVec
	caseResults     *prometheus.CounterVec
	retries         prometheus.Counter
	remoteErrors    *prometheus.CounterVec
	shardDuration   prometheus.Histogram
	shardEstimate   prometheus.Histogram
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		shardsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "shards_submitted_total",
			Help: "Number of shard attempts submitted to the remote service",
		}, []string{"mode"}),
		shardsTerminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "shards_terminal_total",
			Help: "Number of shards that reached a terminal state",
		}, []string{"state"}),
		caseResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "case_results_total",
			Help: "Final test case results",
		}, []string{"status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "flaky_retries_total",
			Help: "Number of test case retries scheduled",
		}),
		remoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "remote_errors_total",
			Help: "Remote API calls that failed after retries",
		}, []string{"operation"}),
		shardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "shard_duration_seconds",
			Help:    "Observed wall-clock duration of shards",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
		shardEstimate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "shard_estimate_seconds",
			Help:    "Planned duration estimate of shards",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
	}
	m.registry.MustRegister(m.shardsSubmitted, m.shardsTerminal, m.caseResults, m.retries,
		m.remoteErrors, m.shardDuration, m.shardEstimate)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ShardSubmitted counts a submitted shard attempt
func (m *Metrics) ShardSubmitted(mode string, estimateSeconds float64) {
	if m == nil {
		return
	}
	m.shardsSubmitted.WithLabelValues(mode).Inc()
	m.shardEstimate.Observe(estimateSeconds)
}

// ShardTerminal counts a shard reaching state
func (m *Metrics) ShardTerminal(state string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.shardsTerminal.WithLabelValues(state).Inc()
	m.shardDuration.Observe(durationSeconds)
}

// CaseResult counts a final case result
func (m *Metrics) CaseResult(status string) {
	if m == nil {
		return
	}
	m.caseResults.WithLabelValues(status).Inc()
}

// Retry counts a scheduled retry
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// RemoteError counts a failed remote operation
func (m *Metrics) RemoteError(operation string) {
	if m == nil {
		return
	}
	m.remoteErrors.WithLabelValues(operation).Inc()
}

// WriteTextfile writes the metrics in the text exposition format to path
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
