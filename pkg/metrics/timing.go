// Package metrics keeps in-process counters for the mirror pipeline.
//
// Timings cover queue drains, subtree rebuilds, search and sort passes,
// playlist loads and UI renders. Cache metrics cover the two identity index
// slots. The robot stats command reports all of them. PLM_METRICS=0 turns
// collection off.
//
//	defer metrics.Timer(metrics.SubtreeRebuild)()
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled = os.Getenv("PLM_METRICS") != "0"

// Enabled reports whether metrics are being collected.
func Enabled() bool { return enabled }

// SetEnabled switches collection on or off. Tests use it; it is not safe to
// call while other goroutines record.
func SetEnabled(e bool) { enabled = e }

// TimingMetric accumulates the durations of one pipeline stage.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	for {
		old := m.max.Load()
		if ns <= old || m.max.CompareAndSwap(old, ns) {
			return
		}
	}
}

// Count returns the number of measurements.
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a snapshot in milliseconds.
func (m *TimingMetric) Stats() TimingStats {
	count, total := m.count.Load(), m.total.Load()
	s := TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		MaxMs:   float64(m.max.Load()) / 1e6,
	}
	if count > 0 {
		s.AvgMs = s.TotalMs / float64(count)
	}
	return s
}

// Reset drops all measurements.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.total.Store(0)
	m.max.Store(0)
}

// TimingStats is what robot stats prints for one stage.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// Timer starts timing m; call the result to record.
func Timer(m *TimingMetric) func() {
	if !enabled || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

// Pipeline stages.
var (
	QueueDrain     = newTimingMetric("queue_drain")
	SubtreeRebuild = newTimingMetric("subtree_rebuild")
	InitialBuild   = newTimingMetric("initial_build")
	SearchPass     = newTimingMetric("search_pass")
	SortPass       = newTimingMetric("sort_pass")
	PlaylistLoad   = newTimingMetric("playlist_load")
	UIRender       = newTimingMetric("ui_render")
)

func allTimings() []*TimingMetric {
	return []*TimingMetric{QueueDrain, SubtreeRebuild, InitialBuild, SearchPass, SortPass, PlaylistLoad, UIRender}
}

// AllTimingStats returns the stages that recorded anything.
func AllTimingStats() []TimingStats {
	var stats []TimingStats
	for _, m := range allTimings() {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}

// ResetAll zeroes every timing, cache metric and counter.
func ResetAll() {
	for _, m := range allTimings() {
		m.Reset()
	}
	for _, c := range AllCacheMetrics() {
		c.Reset()
	}
	for _, c := range AllCounters() {
		c.Reset()
	}
}
