// Package metrics exposes Prometheus collectors for convergence runs.
// Long provisioning runs can serve them over an optional /metrics
// listener for scraping mid-build.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"converge/internal/logger"
	"converge/internal/model"
)

// Metrics bundles the controller's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal   prometheus.Counter
	stepsTotal    *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lockWait      prometheus.Histogram
	rebootPending prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "converge",
			Subsystem: "controller",
			Name:      "cycles_total",
			Help:      "Total number of convergence cycles executed",
		}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converge",
			Subsystem: "controller",
			Name:      "steps_total",
			Help:      "Total number of step attempts by outcome",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "converge",
			Subsystem: "controller",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one convergence cycle in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "converge",
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for the shared resource lock",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~2.7min
		}),
		rebootPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "converge",
			Subsystem: "controller",
			Name:      "reboot_pending",
			Help:      "1 when a reboot is required before further progress",
		}),
	}

	m.registry.MustRegister(m.cyclesTotal, m.stepsTotal, m.cycleDuration, m.lockWait, m.rebootPending)
	return m
}

// ObserveCycle records a completed cycle.
func (m *Metrics) ObserveCycle(cycle model.CycleState) {
	if m == nil {
		return
	}
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(cycle.Duration.Seconds())
	m.stepsTotal.WithLabelValues(string(model.OutcomeApplied)).Add(float64(cycle.Applied))
	m.stepsTotal.WithLabelValues(string(model.OutcomeAlreadySatisfied)).Add(float64(cycle.AlreadySatisfied))
	m.stepsTotal.WithLabelValues(string(model.OutcomeSkipped)).Add(float64(cycle.Skipped))
	m.stepsTotal.WithLabelValues(string(model.OutcomeFailed)).Add(float64(cycle.Failed))
	m.SetRebootPending(cycle.RebootRequired)
}

// ObserveLockWait records time spent acquiring the shared resource.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// SetRebootPending updates the reboot-pending gauge.
func (m *Metrics) SetRebootPending(pending bool) {
	if m == nil {
		return
	}
	if pending {
		m.rebootPending.Set(1)
		return
	}
	m.rebootPending.Set(0)
}

// Gather collects the current metric families, mainly for tests.
func (m *Metrics) Gather() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			name := fam.GetName()
			for _, label := range metric.GetLabel() {
				name += "{" + label.GetName() + "=" + label.GetValue() + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				out[name] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[name] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[name] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

// Serve exposes /metrics on addr until the context is cancelled. Serving
// is best-effort: listener failures are logged, never fatal to the run.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logger.Logger) {
	if m == nil || addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Component("metrics").Error(err, "metrics listener failed")
		}
	}()
}
