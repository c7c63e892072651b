package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

// DefaultTimeout bounds a single remote write request.
const DefaultTimeout = 30 * time.Second

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint, e.g. "http://localhost:8428".
	URL string `yaml:"url" env:"URL"`
	// Prefix is prepended, with an underscore, to every metric name.
	Prefix string `yaml:"prefix" env:"PREFIX"`
	// Job is the job label for all metrics.
	Job string `yaml:"job" env:"JOB"`
	// Instance is the instance label for all metrics.
	Instance string `yaml:"instance" env:"INSTANCE"`
	// Timeout is the HTTP timeout. Defaults to DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// PushRegistry implements Registry for short-lived processes. Metric updates
// are kept in memory and sent to a Prometheus remote write endpoint in a
// single request by Flush.
type PushRegistry struct {
	cfg    PushConfig
	url    string
	client *http.Client

	mu     sync.Mutex
	names  map[string]struct{}
	series map[string]*series
}

// series is the latest value of one metric and label set.
type series struct {
	name   string
	labels []prompb.Label
	value  float64
}

// NewPushRegistry creates a PushRegistry that writes to cfg.URL.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &PushRegistry{
		cfg:    cfg,
		url:    strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		client: &http.Client{Timeout: cfg.Timeout},
		names:  make(map[string]struct{}),
		series: make(map[string]*series),
	}
}

// NewGauge creates a push-based Gauge.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	name, err := r.register(opts.Name)
	if err != nil {
		return nil, err
	}
	return &pushGauge{registry: r, name: name}, nil
}

// NewGaugeVec creates a push-based GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	name, err := r.register(opts.Name)
	if err != nil {
		return nil, err
	}
	return &pushGaugeVec{registry: r, name: name}, nil
}

// NewCounter creates a push-based Counter.
func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	name, err := r.register(opts.Name)
	if err != nil {
		return nil, err
	}
	return &pushCounter{registry: r, name: name}, nil
}

// NewCounterVec creates a push-based CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	name, err := r.register(opts.Name)
	if err != nil {
		return nil, err
	}
	return &pushCounterVec{registry: r, name: name}, nil
}

func (r *PushRegistry) register(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("metric name is required")
	}
	if r.cfg.Prefix != "" {
		name = r.cfg.Prefix + "_" + name
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[name]; ok {
		return "", fmt.Errorf("metric %q already registered", name)
	}
	r.names[name] = struct{}{}
	return name, nil
}

// update applies fn to the current value of the series and stores the result.
func (r *PushRegistry) update(name string, labels prometheus.Labels, fn func(float64) float64) {
	key := seriesKey(name, labels)

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[key]
	if !ok {
		s = &series{name: name, labels: r.seriesLabels(name, labels)}
		r.series[key] = s
	}
	s.value = fn(s.value)
}

// seriesLabels returns the remote write labels sorted by name.
func (r *PushRegistry) seriesLabels(name string, labels prometheus.Labels) []prompb.Label {
	out := make([]prompb.Label, 0, len(labels)+3)
	out = append(out, prompb.Label{Name: "__name__", Value: name})
	if r.cfg.Job != "" {
		out = append(out, prompb.Label{Name: "job", Value: r.cfg.Job})
	}
	if r.cfg.Instance != "" {
		out = append(out, prompb.Label{Name: "instance", Value: r.cfg.Instance})
	}
	for k, v := range labels {
		out = append(out, prompb.Label{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Flush sends the latest value of every series in one remote write request.
// Series are kept, so counters continue from their pushed value.
func (r *PushRegistry) Flush(ctx context.Context) error {
	req := r.snapshot(time.Now().UnixMilli())
	if len(req.Timeseries) == 0 {
		return nil
	}

	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// snapshot builds a write request from the current series, ordered by key.
func (r *PushRegistry) snapshot(timestamp int64) *prompb.WriteRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	req := &prompb.WriteRequest{Timeseries: make([]prompb.TimeSeries, 0, len(keys))}
	for _, k := range keys {
		s := r.series[k]
		req.Timeseries = append(req.Timeseries, prompb.TimeSeries{
			Labels:  append([]prompb.Label(nil), s.labels...),
			Samples: []prompb.Sample{{Value: s.value, Timestamp: timestamp}},
		})
	}
	return req
}

// seriesKey identifies a series independently of map iteration order.
func seriesKey(name string, labels prometheus.Labels) string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range names {
		b.WriteString("," + k + "=" + labels[k])
	}
	return b.String()
}

type pushGauge struct {
	registry *PushRegistry
	name     string
	labels   prometheus.Labels
}

func (g *pushGauge) Set(v float64) {
	g.registry.update(g.name, g.labels, func(float64) float64 { return v })
}

type pushGaugeVec struct {
	registry *PushRegistry
	name     string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{registry: g.registry, name: g.name, labels: labels}
}

type pushCounter struct {
	registry *PushRegistry
	name     string
	labels   prometheus.Labels
}

func (c *pushCounter) Inc() {
	c.Add(1)
}

func (c *pushCounter) Add(v float64) {
	if v < 0 {
		return
	}
	c.registry.update(c.name, c.labels, func(cur float64) float64 { return cur + v })
}

type pushCounterVec struct {
	registry *PushRegistry
	name     string
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{registry: c.registry, name: c.name, labels: labels}
}
