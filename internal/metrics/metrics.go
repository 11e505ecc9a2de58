// Package metrics exposes hoister's Prometheus counters/gauges/histograms,
// sized to the operations the agent and controller actually perform rather
// than the teacher's generic update-scan metric set.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts scheduler ticks the agent has run.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hoister_sweeps_total",
		Help: "Total number of sweep ticks performed by the agent.",
	})
	// SweepDuration times one full sweep across all managed containers.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hoister_sweep_duration_seconds",
		Help:    "Duration of one full sweep across managed containers.",
		Buckets: prometheus.DefBuckets,
	})
	// UpdatesTotal counts terminal update outcomes by status.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoister_updates_total",
		Help: "Total number of container update attempts by terminal outcome.",
	}, []string{"outcome"})
	// PullDuration times the image pull step of an update attempt.
	PullDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hoister_pull_duration_seconds",
		Help:    "Duration of image pull operations.",
		Buckets: prometheus.DefBuckets,
	})
	// SnapshotDuration times the volume-backup helper container path.
	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hoister_snapshot_duration_seconds",
		Help:    "Duration of volume snapshot/restore helper container runs.",
		Buckets: prometheus.DefBuckets,
	})
	// HTTPRequestsTotal counts controller HTTP requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoister_http_requests_total",
		Help: "Total number of controller HTTP requests by route and status.",
	}, []string{"route", "status"})
	// HTTPRequestDuration times controller HTTP handlers by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hoister_http_request_duration_seconds",
		Help:    "Duration of controller HTTP requests by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	// SSESubscribers tracks the number of agents currently connected to the
	// controller's event stream.
	SSESubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hoister_sse_subscribers",
		Help: "Number of agents currently subscribed to the controller's SSE stream.",
	})
	// DeploymentWriteDuration times the repository write behind POST
	// /deployments.
	DeploymentWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hoister_deployment_write_duration_seconds",
		Help:    "Duration of deployment record writes to the store.",
		Buckets: prometheus.DefBuckets,
	})
	// DispatchErrorsTotal counts per-transport dispatch failures.
	DispatchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoister_dispatch_errors_total",
		Help: "Total number of dispatch transport failures by transport.",
	}, []string{"transport"})
)
