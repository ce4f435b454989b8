// Package monitoring keeps in-process counters for the prediction service.
package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType is the kind of a metric.
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeSummary MetricType = "summary"
)

// Metric is a point-in-time view of one labelled series.
type Metric struct {
	Name   string            `json:"name"`
	Type   MetricType        `json:"type"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
	Count  int64             `json:"count,omitempty"`
	Help   string            `json:"help,omitempty"`
}

type series struct {
	name   string
	typ    MetricType
	labels map[string]string
	value  float64
	count  int64
}

// MetricsCollector holds in-process counters and summaries.
type MetricsCollector struct {
	metricsLock sync.RWMutex
	series      map[string]*series
	help        map[string]string

	startTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*series),
		help:      make(map[string]string),
		startTime: time.Now(),
	}
}

// Describe attaches help text to a metric name.
func (mc *MetricsCollector) Describe(name, help string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()
	mc.help[name] = help
}

// IncrCounter adds value to the counter identified by name and labels.
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	s := mc.lookup(name, MetricTypeCounter, labels)
	s.value += value
	s.count++
}

// Observe records one sample in a summary; the value is the running sum.
func (mc *MetricsCollector) Observe(name string, value float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	s := mc.lookup(name, MetricTypeSummary, labels)
	s.value += value
	s.count++
}

func (mc *MetricsCollector) lookup(name string, typ MetricType, labels map[string]string) *series {
	key := seriesKey(name, labels)
	s, ok := mc.series[key]
	if !ok {
		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		s = &series{name: name, typ: typ, labels: copied}
		mc.series[key] = s
	}
	return s
}

// Snapshot returns every series sorted by name then labels.
func (mc *MetricsCollector) Snapshot() []Metric {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	keys := make([]string, 0, len(mc.series))
	for key := range mc.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Metric, 0, len(keys))
	for _, key := range keys {
		s := mc.series[key]
		labels := make(map[string]string, len(s.labels))
		for k, v := range s.labels {
			labels[k] = v
		}
		m := Metric{
			Name:   s.name,
			Type:   s.typ,
			Labels: labels,
			Value:  s.value,
			Help:   mc.help[s.name],
		}
		if s.typ == MetricTypeSummary {
			m.Count = s.count
		}
		result = append(result, m)
	}
	return result
}

// Value returns the current value of one series, or 0 if it was never written.
func (mc *MetricsCollector) Value(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()
	if s, ok := mc.series[seriesKey(name, labels)]; ok {
		return s.value
	}
	return 0
}

// ExportPrometheus renders the snapshot in the Prometheus text format.
func (mc *MetricsCollector) ExportPrometheus() string {
	var b strings.Builder
	described := make(map[string]bool)
	for _, m := range mc.Snapshot() {
		if !described[m.Name] {
			described[m.Name] = true
			if m.Help != "" {
				fmt.Fprintf(&b, "# HELP %s %s\n", m.Name, m.Help)
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", m.Name, m.Type)
		}
		labels := formatLabels(m.Labels)
		if m.Type == MetricTypeSummary {
			fmt.Fprintf(&b, "%s_sum%s %g\n", m.Name, labels, m.Value)
			fmt.Fprintf(&b, "%s_count%s %d\n", m.Name, labels, m.Count)
			continue
		}
		fmt.Fprintf(&b, "%s%s %g\n", m.Name, labels, m.Value)
	}
	return b.String()
}

// GetUptime returns the time since the collector was created.
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats reports uptime plus runtime memory and goroutine stats.
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": m.HeapAlloc,
		"gc_count":   m.NumGC,
	}
}

func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s=%q`, k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
