// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package metrics declares the Prometheus instrumentation for the
// Regeneration Service and Editing Operations. Grounded on the teacher's
// pkg/collector/metrics.go: package-level CounterVec/HistogramVec variables
// registered once in init(), incremented directly by the calling package
// rather than through a logging or tracing indirection layer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var RegenerationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clinsched_regenerations_total",
		Help: "Counter for Regeneration Service invocations, by mode and outcome.",
	},
	[]string{"mode", "outcome"},
)

var RegenerationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "clinsched_regeneration_duration_seconds",
		Help:    "Wall-clock duration of a Regeneration Service invocation, by mode.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"mode"},
)

var AssignmentsGeneratedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clinsched_assignments_generated_total",
		Help: "Counter for new Assignment rows produced by the Scheduling Engine, by mode.",
	},
	[]string{"mode"},
)

var UnmetRequirementsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clinsched_unmet_requirements_total",
		Help: "Counter for Requirements a Regeneration Service run could not fully satisfy, by mode and reason.",
	},
	[]string{"mode", "reason"},
)

var EditingOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clinsched_editing_operations_total",
		Help: "Counter for reassign/swap/update_assignment calls, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

func init() {
	prometheus.MustRegister(RegenerationsTotal)
	prometheus.MustRegister(RegenerationDuration)
	prometheus.MustRegister(AssignmentsGeneratedTotal)
	prometheus.MustRegister(UnmetRequirementsTotal)
	prometheus.MustRegister(EditingOperationsTotal)
}
