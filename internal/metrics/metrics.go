// Package metrics defines the Prometheus collectors of the allocation engine.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Transitions counts committed allocation status transitions.
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_transitions_total",
			Help: "How many allocation status transitions were committed, partitioned by source and target status.",
		},
		[]string{"from", "to"},
	)

	// CapacityRejections counts confirmations rejected by the capacity check.
	CapacityRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_capacity_rejections_total",
			Help: "How many confirmations were rejected because the facility month was full, partitioned by facility.",
		},
		[]string{"facility"},
	)

	// VersionConflicts counts writes rejected by the optimistic version guard.
	VersionConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_conflicts_total",
			Help: "How many writes were rejected because of a stale version, partitioned by resource.",
		},
		[]string{"resource"},
	)

	// Reverts counts successful single-step reverts.
	Reverts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_reverts_total",
			Help: "How many allocation transitions were reverted.",
		},
	)

	// NotifierDropped counts change events dropped because a queue was full.
	NotifierDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_events_dropped_total",
			Help: "How many change events were dropped, partitioned by stage.",
		},
		[]string{"stage"},
	)

	// NotifierPublishErrors counts failed publishes per transport.
	NotifierPublishErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_publish_errors_total",
			Help: "How many change events could not be published, partitioned by transport.",
		},
		[]string{"transport"},
	)

	// SideEffectFailures counts after-commit side effects that failed.
	SideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_side_effect_failures_total",
			Help: "How many best-effort side effects failed after commit, partitioned by kind.",
		},
		[]string{"kind"},
	)
)

var collectors = []prometheus.Collector{
	Transitions,
	CapacityRejections,
	VersionConflicts,
	Reverts,
	NotifierDropped,
	NotifierPublishErrors,
	SideEffectFailures,
}

// Register registers all engine collectors with reg.
//
// Collectors that are already registered are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("could not register %s with Prometheus: %w", c, err)
		}
	}

	return nil
}

// Unregister removes all engine collectors from reg.
func Unregister(reg prometheus.Registerer) {
	for _, c := range collectors {
		reg.Unregister(c)
	}
}
