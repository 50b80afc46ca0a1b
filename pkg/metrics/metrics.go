// Package metrics exposes the CE driver's own internal state over
// Prometheus exposition format: coverage density, per-status run
// counters, and depot queue depths, per SPEC_FULL.md's domain-stack
// wiring.
//
// Repurposed from jhkimqd-chaos-utils/pkg/monitoring/prometheus/client.go,
// whose original shape queries a remote Prometheus server
// (github.com/prometheus/client_golang/api + api/prometheus/v1); this
// driver runs standalone with no Prometheus server to query, so the
// same dependency is used on its other, equally idiomatic face — the
// metrics-definition/exposition side
// (github.com/prometheus/client_golang/prometheus and
// .../prometheus/promhttp) — registering gauges and counters this
// process updates itself and serves over /metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jihwankim/ce-driver/pkg/coverage"
)

// Registry owns the CE driver's exposed metric set.
type Registry struct {
	reg *prometheus.Registry

	density    prometheus.Gauge
	statusRuns *prometheus.CounterVec
	queueDepth *prometheus.GaugeVec
}

// NewRegistry constructs and registers the driver's metric set.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	density := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ce_driver",
		Name:      "coverage_density",
		Help:      "Count of distinct edges ever observed under Normal status.",
	})
	statusRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ce_driver",
		Name:      "runs_total",
		Help:      "Total executor runs, partitioned by resulting status.",
	}, []string{"status"})
	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ce_driver",
		Name:      "queue_depth",
		Help:      "Current priority queue depth, partitioned by depot.",
	}, []string{"depot"})

	reg.MustRegister(density, statusRuns, queueDepth)

	return &Registry{reg: reg, density: density, statusRuns: statusRuns, queueDepth: queueDepth}
}

// ObserveDensity sets the coverage density gauge to the global
// branches state's current value.
func (r *Registry) ObserveDensity(global *coverage.GlobalBranches) {
	r.density.Set(float64(global.Density()))
}

// CountRun increments the run counter for the given resulting status.
func (r *Registry) CountRun(status coverage.Status) {
	r.statusRuns.WithLabelValues(statusLabel(status)).Inc()
}

// SetQueueDepth records the current depth of a named depot's queue.
func (r *Registry) SetQueueDepth(depotName string, depth int64) {
	r.queueDepth.WithLabelValues(depotName).Set(float64(depth))
}

func statusLabel(status coverage.Status) string {
	switch status {
	case coverage.Normal:
		return "normal"
	case coverage.Timeout:
		return "timeout"
	case coverage.Crash:
		return "crash"
	case coverage.Skip:
		return "skip"
	case coverage.Error:
		return "error"
	default:
		return "unknown"
	}
}

// Serve starts an HTTP server exposing /metrics on addr, shutting down
// when ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
