// Package observability – Prometheus collectors for the sync pipeline.
//
// The collectors instrument the sync driver with careful attention to label
// cardinality: outcomes and operation types are small fixed sets, and no
// per-entity identifier ever becomes a label. All collectors are safe for
// concurrent use.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// drainRuns counts drain passes by aggregate outcome
	// (fully_synced / syncing / sync_failed / offline).
	drainRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_drain_runs_total",
			Help: "Total number of sync queue drain passes by aggregate outcome.",
		},
		[]string{"outcome"},
	)

	// remoteAttempts counts remote execution attempts by operation type and
	// result (success / failure).
	remoteAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_remote_attempts_total",
			Help: "Total number of remote execution attempts by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// remoteLat records remote execution duration in seconds by operation.
	// Result is intentionally omitted to keep histogram cardinality lower.
	remoteLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_remote_duration_seconds",
			Help:    "Duration of remote execution calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// replayEvents counts event store replays by outcome
	// (materialized / conflict / failed).
	replayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_replay_total",
			Help: "Total number of event store replays by outcome.",
		},
		[]string{"outcome"},
	)

	// parcelConflicts counts rejected land parcel transitions.
	parcelConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "land_parcel_conflicts_total",
			Help: "Total number of rejected land parcel ownership transitions.",
		},
	)

	// queueDepth gauges pending work (queued entries) after each drain.
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_queue_depth",
			Help: "Number of queue entries still pending after the last drain.",
		},
	)
)

func init() {
	prometheus.MustRegister(drainRuns, remoteAttempts, remoteLat, replayEvents, parcelConflicts, queueDepth)
}

// ObserveDrain records one completed drain pass and the resulting pending
// queue depth.
func ObserveDrain(outcome string, pending int64) {
	drainRuns.WithLabelValues(outcome).Inc()
	queueDepth.Set(float64(pending))
}

// ObserveRemote records one remote execution attempt.
func ObserveRemote(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	remoteAttempts.WithLabelValues(operation, result).Inc()
	remoteLat.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveReplay records one replayed event by outcome.
func ObserveReplay(outcome string) {
	replayEvents.WithLabelValues(outcome).Inc()
}

// ObserveParcelConflict records one rejected ledger transition.
func ObserveParcelConflict() {
	parcelConflicts.Inc()
}
