package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/gotranscribe/metrics"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// runMetrics reports task and run outcomes. A nil *runMetrics records nothing.
type runMetrics struct {
	registry metrics.Registry

	tasks    metrics.CounterVec
	duration metrics.GaugeVec
	runs     metrics.CounterVec
}

func (m *runMetrics) init() error {
	var err error
	m.tasks, err = m.registry.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_tasks_total",
		Help: "Number of task executions by outcome.",
	}, []string{"task", "status"})
	if err != nil {
		return fmt.Errorf("creating task counter: %w", err)
	}

	m.duration, err = m.registry.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_task_duration_seconds",
		Help: "Duration of the most recent execution of each task.",
	}, []string{"task"})
	if err != nil {
		return fmt.Errorf("creating task duration gauge: %w", err)
	}

	m.runs, err = m.registry.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Number of pipeline runs by outcome.",
	}, []string{"status"})
	if err != nil {
		return fmt.Errorf("creating run counter: %w", err)
	}
	return nil
}

func (m *runMetrics) taskDone(task *Task, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.tasks.With(prometheus.Labels{"task": task.name, "status": status(err)}).Inc()
	m.duration.With(prometheus.Labels{"task": task.name}).Set(elapsed.Seconds())
}

func (m *runMetrics) runDone(err error) {
	if m == nil {
		return
	}
	m.runs.With(prometheus.Labels{"status": status(err)}).Inc()
}

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}
