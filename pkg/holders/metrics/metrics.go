// Package metrics exposes prometheus instrumentation for the shutdown
// dispatcher, grounded on components/disk/metrics.go's
// namespace/subsystem CounterVec/GaugeVec pattern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "clearholders"
	subsystem = "dispatch"
)

var (
	// ActionsTotal counts the entries of each dispatched schedule, labeled
	// by kind and by the outcome of the whole dispatch run ("ok" or
	// "failed"). Outcomes are not tracked per action: after a failed run,
	// every entry of that schedule is counted as "failed", including entries
	// the run never reached, and recovered already-gone conditions count as
	// "ok".
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "actions_total",
		Help:      "Total number of scheduled shutdown entries, by kind and dispatch-run outcome.",
	}, []string{"kind", "outcome"})

	// ActionDurationSeconds observes, once per schedule entry, the whole
	// dispatch run's duration divided by the number of entries; individual
	// actions are not timed.
	ActionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "action_duration_seconds",
		Help:      "Average per-entry duration of a dispatch run, by kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// ScheduleLength records the number of entries in the most recent
	// teardown schedule.
	ScheduleLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "schedule_length",
		Help:      "Number of entries in the most recently computed teardown schedule.",
	})
)

// MustRegister registers every metric above against reg. Call once at
// process startup (see cmd/clearholders).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(ActionsTotal, ActionDurationSeconds, ScheduleLength)
}
