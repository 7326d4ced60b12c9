// Package profiler reports frame rate, memory statistics and per-pass CPU timings.
package profiler

import (
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-technique/common"
)

// Profiler tracks frame rate, memory statistics and pass timings, logging a report at a
// configurable interval. It is safe for concurrent use.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	passes map[string]*PassTimer
}

// ProfilerBuilderOption configures a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often the report is logged.
//
// Parameters:
//   - interval: the report interval, must be positive
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// NewProfiler creates a Profiler reporting every second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		lastTime:       time.Now(),
		updateInterval: time.Second,
		passes:         make(map[string]*PassTimer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Pass returns the timer of the named pass, creating it on first use.
//
// Parameters:
//   - name: the pass name
//
// Returns:
//   - *PassTimer: the pass timer
func (p *Profiler) Pass(name string) *PassTimer {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.passes[name]
	if !ok {
		t = &PassTimer{name: name}
		p.passes[name] = t
	}
	return t
}

// RecordPasses adds one sample per pass from a frame's timings.
//
// Parameters:
//   - times: the pass durations by name
func (p *Profiler) RecordPasses(times map[string]time.Duration) {
	for name, d := range times {
		p.Pass(name).Record(d)
	}
}

// Tick should be called once per frame. When the interval has elapsed it logs FPS, heap
// usage, allocation rate, GC statistics and the average of every pass timer, then resets
// the timers.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		start := p.lastGCCount
		if gcCount-start > 256 {
			start = gcCount - 256
		}
		for i := start; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	common.Logger().Info("profiler",
		"fps", fps,
		"heap_mb", allocMB,
		"alloc_rate_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
		slog.Group("passes", p.passAttrs()...),
	)

	p.frameCount = 0
	p.lastTime = now
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// passAttrs returns the pass averages sorted by name and resets every timer.
func (p *Profiler) passAttrs() []any {
	names := make([]string, 0, len(p.passes))
	for name := range p.passes {
		names = append(names, name)
	}
	slices.Sort(names)
	attrs := make([]any, 0, len(names))
	for _, name := range names {
		t := p.passes[name]
		attrs = append(attrs, slog.Duration(name, t.Average()))
		t.Reset()
	}
	return attrs
}

// PassTimer accumulates the CPU time of one pass across frames.
type PassTimer struct {
	mu      sync.Mutex
	name    string
	total   time.Duration
	samples int
	last    time.Duration
}

// Name returns the pass name.
func (t *PassTimer) Name() string {
	return t.name
}

// Start begins a measurement; call the returned function to record it.
//
// Returns:
//   - func(): stops the measurement and records the sample
func (t *PassTimer) Start() func() {
	start := time.Now()
	return func() {
		t.Record(time.Since(start))
	}
}

// Record adds one sample.
func (t *PassTimer) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += d
	t.samples++
	t.last = d
}

// Average returns the mean of the samples since the last Reset, zero without samples.
func (t *PassTimer) Average() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.samples == 0 {
		return 0
	}
	return t.total / time.Duration(t.samples)
}

// Last returns the most recent sample.
func (t *PassTimer) Last() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Samples returns the number of samples since the last Reset.
func (t *PassTimer) Samples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.samples
}

// Reset discards the accumulated samples.
func (t *PassTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = 0
	t.samples = 0
}
