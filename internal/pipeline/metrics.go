package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Run metrics in a dedicated registry, written for a textfile collector.
type Metrics struct {
	registry *prometheus.Registry
	steps    *prometheus.GaugeVec
	tags     *prometheus.CounterVec
	runs     *prometheus.CounterVec
	last     *prometheus.GaugeVec
}

// Creates [Metrics] with every collector registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forgepack_step_duration_seconds",
				Help: "Duration of the last run's steps.",
			},
			[]string{"target", "step", "status"},
		),
		tags: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forgepack_tag_publish_total",
				Help: "Tag push attempts by outcome.",
			},
			[]string{"target", "result"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forgepack_runs_total",
				Help: "Pipeline runs by outcome.",
			},
			[]string{"target", "result"},
		),
		last: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forgepack_last_run_success",
				Help: "Whether the last run of a target succeeded (1) or failed (0).",
			},
			[]string{"target"},
		),
	}
	m.registry.MustRegister(m.steps, m.tags, m.runs, m.last)
	return m
}

// Records the outcome of a run.
func (m *Metrics) Observe(r *Result) {
	for _, sr := range r.Steps {
		if sr.Status == StatusNotAttempted {
			continue
		}
		m.steps.WithLabelValues(r.Target, string(sr.Step), string(sr.Status)).Set(sr.Duration.Seconds())
	}

	m.tags.WithLabelValues(r.Target, "published").Add(float64(len(r.Published)))
	m.tags.WithLabelValues(r.Target, "failed").Add(float64(len(r.Failed)))

	outcome, success := "failed", 0.0
	if r.Succeeded() {
		outcome, success = "succeeded", 1.0
	}
	m.runs.WithLabelValues(r.Target, outcome).Inc()
	m.last.WithLabelValues(r.Target).Set(success)
}

// Returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Writes the metrics to path in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
