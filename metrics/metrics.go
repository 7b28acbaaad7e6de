// Package metrics exposes this service's Prometheus instrumentation,
// registered at init the way contract-data-processor's
// server/prometheus_metrics.go does — package-level promauto collectors,
// updated by the pipeline wrapper in package server rather than threaded
// as an argument through the core invocation/simulation packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EnforcingInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invocation_engine_enforcing_invocations_total",
		Help: "Total number of enforcing-mode invocations, partitioned by outcome.",
	}, []string{"outcome"})

	RecordingInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invocation_engine_recording_invocations_total",
		Help: "Total number of recording-mode (simulation) invocations, partitioned by outcome.",
	}, []string{"outcome"})

	InvocationDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invocation_engine_invocation_duration_seconds",
		Help:    "Wall-clock time spent running one invocation pipeline.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"mode"})

	BudgetExceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invocation_engine_budget_exceeded_total",
		Help: "Total number of invocations that aborted due to budget exhaustion, by the budget counter (cpu or memory) that crossed its cap.",
	}, []string{"cost_type"})

	CPUInstructionsConsumed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invocation_engine_cpu_instructions_consumed",
		Help:    "CPU instructions consumed per invocation.",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 12),
	})

	ResourceFeeNonRefundable = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invocation_engine_resource_fee_non_refundable",
		Help:    "Computed non-refundable resource fee per invocation, in stroops.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 12),
	})

	ResourceFeeRefundable = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invocation_engine_resource_fee_refundable",
		Help:    "Computed refundable resource fee per invocation, in stroops.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 12),
	})

	RentFeeTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invocation_engine_rent_fee",
		Help:    "Computed rent fee per invocation, in stroops.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 12),
	})

	RestoredEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invocation_engine_auto_restored_entries_total",
		Help: "Total number of persistent ledger entries auto-restored across all invocations.",
	})
)

// ObserveOutcome records a completed invocation's outcome on the given
// counter, "success" or "carried_error", in one place rather than leaving
// call sites to remember every label name. Aborted runs produce no result
// and are counted by their callers under the "aborted" label.
func ObserveOutcome(counter *prometheus.CounterVec, carriedError bool) {
	outcome := "success"
	if carriedError {
		outcome = "carried_error"
	}
	counter.WithLabelValues(outcome).Inc()
}
