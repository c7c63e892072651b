package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(buf *bytes.Buffer, level slog.Level) (*CapturingHandler, *LogCollector) {
	collector := NewLogCollector()
	underlying := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level})
	return NewCapturingHandler(underlying, collector, "split_audio"), collector
}

func TestCapturingHandler_CapturesAndPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	handler, collector := newTestHandler(&buf, slog.LevelInfo)

	slog.New(handler).Info("chunk exported", "part", 2, "path", "audio/talk_part02.flac")

	logs := collector.GetLogs("split_audio")
	require.Len(t, logs, 1)
	assert.Equal(t, "INFO", logs[0].Level)
	assert.Equal(t, "chunk exported", logs[0].Message)
	assert.Equal(t, int64(2), logs[0].Attributes["part"])
	assert.Equal(t, "audio/talk_part02.flac", logs[0].Attributes["path"])

	assert.Contains(t, buf.String(), "chunk exported")
}

func TestCapturingHandler_CapturesBelowUnderlyingLevel(t *testing.T) {
	var buf bytes.Buffer
	handler, collector := newTestHandler(&buf, slog.LevelInfo)
	logger := slog.New(handler)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	logs := collector.GetLogs("split_audio")
	require.Len(t, logs, 4)
	assert.Equal(t, "DEBUG", logs[0].Level)
	assert.Equal(t, "INFO", logs[1].Level)
	assert.Equal(t, "WARN", logs[2].Level)
	assert.Equal(t, "ERROR", logs[3].Level)

	assert.NotContains(t, buf.String(), "debug message", "underlying level still filters output")
	assert.Contains(t, buf.String(), "info message")
}

func TestCapturingHandler_WithChains(t *testing.T) {
	var buf bytes.Buffer
	handler, collector := newTestHandler(&buf, slog.LevelInfo)

	logger := slog.New(handler).
		With("component", "pipeline").
		With("run_id", "abc")
	logger.Info("chained message", "extra", "field")

	logs := collector.GetLogs("split_audio")
	require.Len(t, logs, 1)
	attrs := logs[0].Attributes
	assert.Equal(t, "pipeline", attrs["component"])
	assert.Equal(t, "abc", attrs["run_id"])
	assert.Equal(t, "field", attrs["extra"])

	withAttrs, ok := handler.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*CapturingHandler)
	require.True(t, ok, "WithAttrs should return a *CapturingHandler")
	assert.Equal(t, "split_audio", withAttrs.task)
}

func TestCapturingHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	handler, collector := newTestHandler(&buf, slog.LevelInfo)

	slog.New(handler).WithGroup("ffmpeg").Info("grouped", "key", "value")

	require.Len(t, collector.GetLogs("split_audio"), 1)
	assert.Contains(t, buf.String(), "ffmpeg")

	grouped, ok := handler.WithGroup("g").(*CapturingHandler)
	require.True(t, ok, "WithGroup should return a *CapturingHandler")
	assert.Equal(t, []string{"g"}, grouped.groups)
}

func TestCapturingHandler_StructuredAttributes(t *testing.T) {
	var buf bytes.Buffer
	handler, collector := newTestHandler(&buf, slog.LevelInfo)

	slog.New(handler).Info("structured",
		"string", "value",
		"int", 42,
		"bool", true,
		"float", 3.14,
		"duration", 90*time.Second,
		"error", fmt.Errorf("ffmpeg exited 1"),
		slog.Group("chunk", "index", 1, "uri", "gs://b/o"),
	)

	logs := collector.GetLogs("split_audio")
	require.Len(t, logs, 1)
	attrs := logs[0].Attributes
	assert.Equal(t, "value", attrs["string"])
	assert.Equal(t, int64(42), attrs["int"])
	assert.Equal(t, true, attrs["bool"])
	assert.InDelta(t, 3.14, attrs["float"], 0.01)
	assert.Equal(t, "1m30s", attrs["duration"])
	assert.Equal(t, "ffmpeg exited 1", attrs["error"])
	assert.Equal(t, map[string]any{"index": int64(1), "uri": "gs://b/o"}, attrs["chunk"])
}

func TestCapturingHandler_ConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	handler, collector := newTestHandler(&buf, slog.LevelError)
	logger := slog.New(handler)

	const goroutines = 20
	const perGoroutine = 25

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				logger.Info("concurrent", "goroutine", n, "log", j)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, collector.GetLogs("split_audio"), goroutines*perGoroutine)
}
