// Package metrics defines and registers all custom Prometheus metrics for the
// pixel events API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry on package init via
// promauto; the /metrics route serves that registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pixel"

// ── Gateway metrics ───────────────────────────────────────────────────────────

// IdentifyTotal counts identify calls.
// Label:
//   - result: "issued" when a token was minted, "failed" otherwise
var IdentifyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identify_total",
		Help:      "Total number of identify calls, by token outcome.",
	},
	[]string{"result"},
)

// TrackTotal counts accepted track calls.
// Labels:
//   - kind: "pageview" or "custom"
//   - subject: "identified" or "anonymous"
var TrackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "track_total",
		Help:      "Total number of tracked events accepted by the gateway.",
	},
	[]string{"kind", "subject"},
)

// TokenRejectedTotal counts client tokens that failed verification and were
// downgraded to anonymous tracking.
var TokenRejectedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_rejected_total",
		Help:      "Total number of client tokens rejected during track calls.",
	},
)

// ── Adapter metrics ───────────────────────────────────────────────────────────

// AdapterErrorsTotal counts failed adapter writes.
// Labels:
//   - adapter: backend name (e.g. "postgres", "june")
//   - op: "save_user" or "save_event"
var AdapterErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_errors_total",
		Help:      "Total number of storage adapter writes that failed.",
	},
	[]string{"adapter", "op"},
)

// AdapterDuration measures adapter write latency.
var AdapterDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "adapter_duration_seconds",
		Help:      "Duration of storage adapter writes.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"adapter", "op"},
)

// DispatchQueueDepth tracks the number of writes waiting in each async worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var DispatchQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_queue_depth",
		Help:      "Current number of writes pending in each async dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// DispatchDroppedTotal counts writes dropped because the dispatcher was stopped.
var DispatchDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_dropped_total",
		Help:      "Total number of async writes dropped after shutdown.",
	},
)
