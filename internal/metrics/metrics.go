// Package metrics provides Prometheus instrumentation for Harrier.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CyclesTotal counts monitor cycles by triggering mode.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "cycles_total",
			Help:      "Total monitor cycles by mode (manual or continuous).",
		},
		[]string{"mode"},
	)

	// CycleDuration observes full-cycle wall time.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "harrier",
			Name:      "cycle_duration_seconds",
			Help:      "Monitor cycle duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// MerchantsProcessed counts merchants run through the pipeline.
	MerchantsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "merchants_processed_total",
			Help:      "Total merchants run through the underwriting pipeline.",
		},
	)

	// DecisionsTotal counts decisions by outcome.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "decisions_total",
			Help:      "Total underwriting decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// NotificationsTotal counts dispatch outcomes by status.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "notifications_total",
			Help:      "Total notification dispatch outcomes by status.",
		},
		[]string{"status"},
	)

	// AdvisoryFallbacks counts advisory calls recovered via fallback.
	AdvisoryFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "advisory_fallbacks_total",
			Help:      "Total advisory failures recovered with the fallback rationale.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleDuration,
		MerchantsProcessed,
		DecisionsTotal,
		NotificationsTotal,
		AdvisoryFallbacks,
	)
}
