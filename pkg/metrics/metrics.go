// Package metrics exposes the management service's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Topology metrics.
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mgmtd_nodes_total",
			Help: "Total number of nodes by kind and registration state",
		},
		[]string{"kind", "state"},
	)

	TargetsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mgmtd_targets_total",
			Help: "Total number of targets by kind and consistency",
		},
		[]string{"kind", "consistency"},
	)

	CapacityClassGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mgmtd_capacity_class",
			Help: "Number of entities by capacity pool classification",
		},
		[]string{"pool_id", "kind", "class"},
	)

	BuddyGroupsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mgmtd_buddy_groups_total",
			Help: "Total number of buddy groups by kind",
		},
		[]string{"kind"},
	)

	// Auth / wire metrics.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtd_auth_failures_total",
			Help: "Total number of messages dropped due to auth hash mismatch",
		},
		[]string{"protocol"},
	)

	MalformedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtd_malformed_messages_total",
			Help: "Total number of malformed BeeMsg messages rejected",
		},
		[]string{"transport"},
	)

	// BeeMsg / RPC request metrics.
	BeeMsgRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtd_beemsg_requests_total",
			Help: "Total number of BeeMsg requests handled by message type and result",
		},
		[]string{"msg_type", "result"},
	)

	BeeMsgRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mgmtd_beemsg_request_duration_seconds",
			Help:    "BeeMsg handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"msg_type"},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtd_rpc_requests_total",
			Help: "Total number of RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mgmtd_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Store metrics.
	StoreQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mgmtd_store_queue_depth",
			Help: "Current number of work items queued for the store executor",
		},
	)

	StoreTxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mgmtd_store_tx_duration_seconds",
			Help:    "Store transaction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mgmtd_store_errors_total",
			Help: "Total number of store errors by kind",
		},
		[]string{"kind"},
	)

	// Quota metrics.
	QuotaCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mgmtd_quota_cycle_duration_seconds",
			Help:    "Duration of a full quota pull/compare/push cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	QuotaExceededIDs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mgmtd_quota_exceeded_ids",
			Help: "Number of identities currently over their quota limit",
		},
		[]string{"pool_id", "id_type", "quota_type"},
	)

	QuotaUnreachableTargets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mgmtd_quota_unreachable_targets_total",
			Help: "Total number of targets skipped during quota pull because they were offline",
		},
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		TargetsTotal,
		CapacityClassGauge,
		BuddyGroupsTotal,
		AuthFailuresTotal,
		MalformedMessagesTotal,
		BeeMsgRequestsTotal,
		BeeMsgRequestDuration,
		RPCRequestsTotal,
		RPCRequestDuration,
		StoreQueueDepth,
		StoreTxDuration,
		StoreErrorsTotal,
		QuotaCycleDuration,
		QuotaExceededIDs,
		QuotaUnreachableTargets,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a vector histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
