// Package metrics defines and registers all custom Prometheus metrics for the
// delivery engine. It is the single source of truth for metric names, labels,
// and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "delivery"

// MatchesProposedTotal counts match proposals persisted by the engine.
// Label:
//   - trigger: "announcement", "route", or "direct", by which side initiated
var MatchesProposedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_proposed_total",
		Help:      "Total number of match proposals created.",
	},
	[]string{"trigger"},
)

// MatchesAcceptedTotal counts matches that were successfully accepted.
// Label:
//   - mode: "manual" or "auto"
var MatchesAcceptedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_accepted_total",
		Help:      "Total number of matches accepted.",
	},
	[]string{"mode"},
)

// TransitionsTotal counts delivery state transitions, successful or rejected.
// Labels:
//   - to: the target status (e.g. "picked_up")
//   - result: "ok", "invalid", or "conflict"
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Total number of delivery status transitions attempted.",
	},
	[]string{"to", "result"},
)

// ValidationAttemptsTotal counts proof-of-delivery validation attempts.
// Labels:
//   - method: "code" or "nfc"
//   - result: "ok" or "failed"
var ValidationAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_attempts_total",
		Help:      "Total number of delivery validation attempts.",
	},
	[]string{"method", "result"},
)

// LedgerDispatchesTotal counts ledger trigger outcomes.
// Label:
//   - result: "ok", "duplicate", or "error"
var LedgerDispatchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_dispatches_total",
		Help:      "Total number of ledger trigger dispatches, by result.",
	},
	[]string{"result"},
)

// NotifyQueueDepth tracks the number of notifications waiting in each worker
// channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", ...)
var NotifyQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notify_queue_depth",
		Help:      "Current number of notifications pending in each worker channel.",
	},
	[]string{"worker_id"},
)

// NotifyDroppedTotal counts notifications dropped because a worker channel
// was full.
var NotifyDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_dropped_total",
		Help:      "Total number of notifications dropped due to backpressure.",
	},
)

// GeoCacheHitsTotal counts distance cache lookups, labelled by result.
// Label:
//   - result: "hit" or "miss"
var GeoCacheHitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geo_cache_hits_total",
		Help:      "Total number of distance cache lookups, by result (hit/miss).",
	},
	[]string{"result"},
)
