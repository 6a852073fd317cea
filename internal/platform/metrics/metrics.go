package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry is the dedicated Prometheus registry for routeprep runs.
	Registry = prometheus.NewRegistry()

	// OrdersProcessed counts orders by phase and outcome.
	OrdersProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeprep_orders_total", Help: "Orders processed by phase and outcome."},
		[]string{"phase", "outcome"},
	)
	// RouteSolves counts per-route solves by status.
	RouteSolves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeprep_route_solves_total", Help: "Per-route solves by status."},
		[]string{"solver", "status"},
	)
	// RouteSolveDuration records per-route solve durations in seconds.
	RouteSolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "routeprep_route_solve_seconds", Help: "Per-route solve duration in seconds.", Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}},
		[]string{"solver", "status"},
	)
	// ConsolidationGroups tracks the size of the last consolidation.
	ConsolidationGroups = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "routeprep_consolidation_groups", Help: "Groups produced by the last consolidation."},
	)
)

var regOnce sync.Once

// Register adds the collectors to Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(OrdersProcessed)
		Registry.MustRegister(RouteSolves)
		Registry.MustRegister(RouteSolveDuration)
		Registry.MustRegister(ConsolidationGroups)
	})
}

// WriteTextfile dumps Registry in the node-exporter textfile format.
// An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	Register()
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	return nil
}
