// Package metrics keeps in-process latency and counter figures that the
// health endpoint reports.
package metrics

import (
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded window of recent samples.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	max     int
}

// NewLatencyTracker keeps the last window samples.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 1000
	}
	return &LatencyTracker{samples: make([]time.Duration, 0, window), max: window}
}

// Record adds a sample, evicting the oldest when full.
func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) >= t.max {
		drop := max(t.max/10, 1)
		t.samples = append(t.samples[:0], t.samples[drop:]...)
	}
	t.samples = append(t.samples, d)
}

// LatencyStats are percentiles over the window.
type LatencyStats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// Stats computes percentiles over the current window.
func (t *LatencyTracker) Stats() LatencyStats {
	t.mu.Lock()
	sorted := slices.Clone(t.samples)
	t.mu.Unlock()

	n := len(sorted)
	if n == 0 {
		return LatencyStats{}
	}
	slices.Sort(sorted)

	var sum time.Duration
	for _, v := range sorted {
		sum += v
	}
	at := func(p float64) time.Duration { return sorted[int(float64(n-1)*p)] }
	return LatencyStats{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / time.Duration(n),
		P50:   at(0.50),
		P95:   at(0.95),
		P99:   at(0.99),
	}
}

func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":  s.Count,
		"min_ms": ms(s.Min),
		"max_ms": ms(s.Max),
		"avg_ms": ms(s.Avg),
		"p50_ms": ms(s.P50),
		"p95_ms": ms(s.P95),
		"p99_ms": ms(s.P99),
	}
}

// Registry holds one tracker per named operation plus plain counters.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	counters map[string]int64
	window   int
}

// NewRegistry creates a new metrics registry
func NewRegistry(window int) *Registry {
	return &Registry{
		trackers: make(map[string]*LatencyTracker),
		counters: make(map[string]int64),
		window:   window,
	}
}

func (r *Registry) tracker(name string) *LatencyTracker {
	r.mu.RLock()
	t, ok := r.trackers[name]
	r.mu.RUnlock()
	if ok {
		return t
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.trackers[name]; !ok {
		t = NewLatencyTracker(r.window)
		r.trackers[name] = t
	}
	return t
}

// Observe records a latency under name.
func (r *Registry) Observe(name string, d time.Duration) {
	r.tracker(name).Record(d)
}

// Since records the time elapsed from start under name.
func (r *Registry) Since(name string, start time.Time) {
	r.Observe(name, time.Since(start))
}

// Inc increments a counter.
func (r *Registry) Inc(name string) {
	r.mu.Lock()
	r.counters[name]++
	r.mu.Unlock()
}

func (r *Registry) Counter(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Snapshot returns every latency window and counter keyed by name.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	names := make([]string, 0, len(r.trackers))
	for name := range r.trackers {
		names = append(names, name)
	}
	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	r.mu.RUnlock()

	latency := make(map[string]any, len(names))
	for _, name := range names {
		latency[name] = r.tracker(name).Stats().ToMap()
	}
	return map[string]any{"latency": latency, "counters": counters}
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process-wide registry
func Global() *Registry {
	globalOnce.Do(func() { global = NewRegistry(1000) })
	return global
}
