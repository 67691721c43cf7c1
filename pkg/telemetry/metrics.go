package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics accumulates run counters for the node-exporter textfile
// collector. Runs are one-shot processes, so there is nothing to
// scrape; Write dumps the registry to a file the collector picks up.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	phasesTotal   *prometheus.CounterVec
	stepsTotal    *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
}

// NewMetrics creates the run metrics registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graft",
				Name:      "runs_total",
				Help:      "Runs by final status",
			},
			[]string{"status"},
		),
		phasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graft",
				Name:      "payload_phases_total",
				Help:      "Payload phases by phase and status",
			},
			[]string{"phase", "status"},
		),
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graft",
				Name:      "deployment_steps_total",
				Help:      "Deployment steps by handler and status",
			},
			[]string{"handler", "status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "graft",
				Name:      "payload_phase_duration_seconds",
				Help:      "Payload phase duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
	}
	registry.MustRegister(m.runsTotal, m.phasesTotal, m.stepsTotal, m.phaseDuration)
	return m
}

// ObserveRun counts a finished run. Safe on a nil Metrics.
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

// ObservePhase counts a finished payload phase and its duration.
func (m *Metrics) ObservePhase(phase, status string, seconds float64) {
	if m == nil {
		return
	}
	m.phasesTotal.WithLabelValues(phase, status).Inc()
	m.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

// ObserveStep counts a finished deployment step.
func (m *Metrics) ObserveStep(handler, status string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(handler, status).Inc()
}

// Write renders the registry in the Prometheus text format to path,
// atomically via a temp file rename. Safe on a nil Metrics.
func (m *Metrics) Write(path string) error {
	if m == nil || path == "" {
		return nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".graft-metrics-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish metrics: %w", err)
	}
	return nil
}
