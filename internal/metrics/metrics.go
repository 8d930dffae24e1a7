// Package metrics defines the Prometheus metrics of the floorflow server.
//
// Metric naming follows Prometheus conventions:
//   - floorflow_ prefix for all custom metrics
//   - _total suffix for counters
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// AdvancementsTotal counts advancement attempts by outcome
	// (advanced, completed, replayed, missing_actions, not_active,
	// stage_mismatch, invalid_workflow, stage_not_found, persistence_failure,
	// conflict).
	AdvancementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floorflow_advancements_total",
			Help: "Total item advancement attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// PersistRetriesTotal counts retried advancement writes.
	PersistRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "floorflow_persist_retries_total",
			Help: "Total retries of advancement writes after transient failures.",
		},
	)

	// WorkflowsCreatedTotal counts accepted workflow definitions.
	WorkflowsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "floorflow_workflows_created_total",
			Help: "Total workflow definitions accepted.",
		},
	)

	// OverdueItems is the number of active items past their stage's
	// estimated duration, as of the last sweep.
	OverdueItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "floorflow_overdue_items",
			Help: "Active items whose time in stage exceeds the estimated duration.",
		},
		[]string{"tenant", "workflow", "stage"},
	)
)

// Registry holds the floorflow collectors plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		AdvancementsTotal,
		PersistRetriesTotal,
		WorkflowsCreatedTotal,
		OverdueItems,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
