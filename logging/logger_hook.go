package logging

import "log/slog"

// LoggerHook derives the logger handed to a single task.
type LoggerHook interface {
	// LoggerForTask wraps base for the named task.
	LoggerForTask(base *slog.Logger, task string) *slog.Logger
}

// CapturingLoggerHook stores every record a task logs in a LogCollector.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook that captures task logs into collector.
func NewCapturingLoggerHook(collector *LogCollector) LoggerHook {
	return &CapturingLoggerHook{collector: collector}
}

// LoggerForTask returns a logger that records into the collector under task
// and still writes through base's handler.
func (h *CapturingLoggerHook) LoggerForTask(base *slog.Logger, task string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), h.collector, task))
}
