package metrics

import "sync/atomic"

// CacheMetric counts hits and misses of a look-aside cache.
type CacheMetric struct {
	name   string
	hits   atomic.Int64
	misses atomic.Int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (c *CacheMetric) Hit() {
	if enabled {
		c.hits.Add(1)
	}
}

// Miss records a cache miss.
func (c *CacheMetric) Miss() {
	if enabled {
		c.misses.Add(1)
	}
}

// Name returns the metric name.
func (c *CacheMetric) Name() string { return c.name }

// Hits returns the number of recorded hits.
func (c *CacheMetric) Hits() int64 { return c.hits.Load() }

// Misses returns the number of recorded misses.
func (c *CacheMetric) Misses() int64 { return c.misses.Load() }

// HitRate returns hits/(hits+misses), or 0 with no lookups recorded.
func (c *CacheMetric) HitRate() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

// Reset clears the counters.
func (c *CacheMetric) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// CacheStats holds a snapshot of cache statistics.
type CacheStats struct {
	Name    string  `json:"name"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns a snapshot of the counters.
func (c *CacheMetric) Stats() CacheStats {
	return CacheStats{Name: c.name, Hits: c.Hits(), Misses: c.Misses(), HitRate: c.HitRate()}
}

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    atomic.Int64
}

// Inc adds one to the counter.
func (c *Counter) Inc() {
	if enabled {
		c.n.Add(1)
	}
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Reset zeroes the counter.
func (c *Counter) Reset() { c.n.Store(0) }

// Identity index slots and pipeline counters.
var (
	IndexByID    = newCacheMetric("index_by_id")
	IndexByInput = newCacheMetric("index_by_input")

	MalformedItems    = &Counter{name: "malformed_items"}
	StaleEvents       = &Counter{name: "stale_events"}
	CoalescedEvents   = &Counter{name: "coalesced_events"}
	InvariantBreaches = &Counter{name: "invariant_breaches"}
)

// AllCacheMetrics returns all registered cache metrics.
func AllCacheMetrics() []*CacheMetric {
	return []*CacheMetric{IndexByID, IndexByInput}
}

// AllCounters returns all registered counters.
func AllCounters() []*Counter {
	return []*Counter{MalformedItems, StaleEvents, CoalescedEvents, InvariantBreaches}
}
