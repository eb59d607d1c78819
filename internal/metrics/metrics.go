// Package metrics exports generation counters and stage latencies to
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-docfill/pkg/docerr"
	"github.com/goliatone/go-docfill/pkg/orchestrator"
)

const namespace = "docfill"

// Collector implements orchestrator.Observer on top of a private registry.
type Collector struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	failures    *prometheus.CounterVec
}

var _ orchestrator.Observer = (*Collector)(nil)

// New registers the docfill collectors plus the Go and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generate calls by requested format and outcome.",
		}, []string{"format", "outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Failed stages by error kind.",
		}, []string{"stage", "kind"}),
	}
	c.registry.MustRegister(
		c.generations,
		c.stages,
		c.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// StageFinished records the stage latency and, on failure, its error kind.
func (c *Collector) StageFinished(stage orchestrator.Stage, elapsed time.Duration, err error) {
	c.stages.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		c.failures.WithLabelValues(string(stage), kindLabel(err)).Inc()
	}
}

// GenerationFinished counts the request. Outcome is "ok" or the failing
// stage.
func (c *Collector) GenerationFinished(outcome orchestrator.Outcome) {
	format := outcome.Format.String()
	if format == "" {
		format = "native"
	}
	result := "ok"
	if outcome.Err != nil {
		result = string(outcome.Stage)
	}
	c.generations.WithLabelValues(format, result).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func kindLabel(err error) string {
	if kind, ok := docerr.KindOf(err); ok {
		return string(kind)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	}
	return "unknown"
}
