// Package metrics provides Prometheus-compatible metrics for pipeline runs.
//
// Two registries implement Registry:
//   - ScrapeRegistry registers with a Prometheus registry served over HTTP (watch mode)
//   - PushRegistry buffers samples and sends them to a remote write endpoint on Flush (one-shot runs)
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Gauge is a metric that represents a single numerical value that can go up and down.
type Gauge interface {
	Set(float64)
}

// Counter is a metric that represents a single monotonically increasing counter.
type Counter interface {
	Inc()
	// Add adds the given value to the counter. Negative values are ignored.
	Add(float64)
}

// GaugeVec is a Gauge with labels.
type GaugeVec interface {
	With(prometheus.Labels) Gauge
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	With(prometheus.Labels) Counter
}

// Registry creates and registers metrics.
type Registry interface {
	NewGauge(opts prometheus.GaugeOpts) (Gauge, error)
	NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error)
	NewCounter(opts prometheus.CounterOpts) (Counter, error)
	NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error)
}

// Flusher is implemented by registries that hold samples until told to send
// them.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Flush sends buffered samples if registry buffers them. It is a no-op for
// registries that are scraped.
func Flush(ctx context.Context, registry Registry) error {
	if f, ok := registry.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
