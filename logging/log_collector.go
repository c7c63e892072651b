package logging

import (
	"sync"
	"time"
)

// LogEntry is a captured log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogCollector stores captured records grouped by task name. It is safe for
// concurrent use, since task bodies may log from several goroutines.
type LogCollector struct {
	mu   sync.RWMutex
	logs map[string][]LogEntry
}

// NewLogCollector creates an empty LogCollector.
func NewLogCollector() *LogCollector {
	return &LogCollector{logs: make(map[string][]LogEntry)}
}

// AddLog appends entry to task's records.
func (c *LogCollector) AddLog(task string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs[task] = append(c.logs[task], entry)
}

// GetLogs returns a copy of task's records, or nil if it logged nothing.
func (c *LogCollector) GetLogs(task string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, ok := c.logs[task]
	if !ok {
		return nil
	}
	return append([]LogEntry(nil), logs...)
}

// GetAllLogs returns a copy of every task's records.
func (c *LogCollector) GetAllLogs() map[string][]LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]LogEntry, len(c.logs))
	for task, logs := range c.logs {
		result[task] = append([]LogEntry(nil), logs...)
	}
	return result
}

// Clear removes all records.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = make(map[string][]LogEntry)
}
