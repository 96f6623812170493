package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CartMutationDuration observes lock-to-save latency of cart mutations.
	CartMutationDuration *prometheus.HistogramVec
	// CartPromotionTotal counts coupon and voucher application outcomes.
	CartPromotionTotal *prometheus.CounterVec
	// CartPersistFailuresTotal counts failed slot writes and archive enqueues.
	CartPersistFailuresTotal *prometheus.CounterVec
	// SnapshotArchivedTotal counts snapshots written by the worker.
	SnapshotArchivedTotal prometheus.Counter
	// BreakerState reports circuit state per dependency: 0 closed, 1 open, 2 half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitionsTotal counts circuit state changes.
	BreakerTransitionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics registers the cart collectors once per process.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"}))
		CartMutationDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_mutation_duration_seconds",
			Help:      "Cart mutation latency including lock wait and slot write.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}))
		CartPromotionTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_promotion_total",
			Help:      "Count of coupon and voucher applications by outcome.",
		}, []string{"kind", "result"}))
		CartPersistFailuresTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Count of cart persistence failures by stage.",
		}, []string{"stage"}))
		SnapshotArchivedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_snapshot_archived_total",
			Help:      "Number of cart snapshots written to the archive.",
		}))
		BreakerState = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open.",
		}, []string{"target"}))
		BreakerTransitionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions.",
		}, []string{"target", "from", "to"}))
	})
}

// RecordCartMutation counts a finished mutation and observes its latency.
func RecordCartMutation(op, result string, took time.Duration) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op, result).Inc()
	}
	if CartMutationDuration != nil {
		CartMutationDuration.WithLabelValues(op).Observe(took.Seconds())
	}
}

// RecordPromotion increments the promotion counter when metrics are registered.
func RecordPromotion(kind string, success bool) {
	if CartPromotionTotal == nil {
		return
	}
	result := "rejected"
	if success {
		result = "applied"
	}
	CartPromotionTotal.WithLabelValues(kind, result).Inc()
}

// RecordPersistFailure increments the persistence failure counter when metrics are registered.
func RecordPersistFailure(stage string) {
	if CartPersistFailuresTotal != nil {
		CartPersistFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// RecordSnapshotArchived counts a snapshot written by the worker.
func RecordSnapshotArchived() {
	if SnapshotArchivedTotal != nil {
		SnapshotArchivedTotal.Inc()
	}
}

// SetBreakerState publishes the circuit state of target.
func SetBreakerState(target string, state float64) {
	if BreakerState != nil {
		BreakerState.WithLabelValues(target).Set(state)
	}
}

// RecordBreakerTransition counts a circuit state change.
func RecordBreakerTransition(target, from, to string) {
	if BreakerTransitionsTotal != nil {
		BreakerTransitionsTotal.WithLabelValues(target, from, to).Inc()
	}
}
