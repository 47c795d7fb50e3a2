// Package profiler - Per-stage timing and runtime statistics for the detection pipeline.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pipeline stages recorded by the tracker.
const (
	StageDecode      = "decode"
	StagePreprocess  = "preprocess"
	StageExecute     = "execute"
	StagePostprocess = "postprocess"
	StageLoad        = "load"
)

// Options configures a Tracker.
type Options struct {
	// ReportInterval specifies how often to log a status report (default: 1m).
	ReportInterval time.Duration
	// MaxSamples specifies how many samples each stage and metric keeps (default: 600).
	MaxSamples int
}

// Tracker records stage durations and metric values over a rolling window.
//
// A Tracker is safe for concurrent use.
//
// @example
// tracker := profiler.NewTracker(profiler.Options{})
// done := tracker.Start(profiler.StageExecute)
// defer done()
type Tracker struct {
	reportInterval time.Duration
	maxSamples     int

	mu        sync.RWMutex
	startTime time.Time
	stages    map[string]*stageTracker
	metrics   map[string]*metricTracker
	failures  map[string]int64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// stageTracker tracks timing statistics for one stage.
type stageTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// metricTracker tracks statistics for a custom metric.
type metricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// StageStats is a snapshot of one stage.
type StageStats struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	P95   time.Duration `json:"p95_ns"`
}

// MetricStats is a snapshot of one metric.
type MetricStats struct {
	Count int64   `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Stats is a point-in-time snapshot of a Tracker.
type Stats struct {
	Uptime     time.Duration          `json:"uptime_ns"`
	Goroutines int                    `json:"goroutines"`
	HeapAlloc  uint64                 `json:"heap_alloc"`
	GCCycles   uint32                 `json:"gc_cycles"`
	Stages     map[string]StageStats  `json:"stages"`
	Metrics    map[string]MetricStats `json:"metrics"`
	Failures   map[string]int64       `json:"failures"`
}

// NewTracker creates a tracker with the specified options.
//
// Arguments:
// - opts: Configuration options for the tracker.
//
// Returns:
// - A configured Tracker instance.
func NewTracker(opts Options) *Tracker {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = time.Minute
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}

	return &Tracker{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		startTime:      time.Now(),
		stages:         make(map[string]*stageTracker),
		metrics:        make(map[string]*metricTracker),
		failures:       make(map[string]int64),
	}
}

// Start begins timing a stage.
//
// Arguments:
// - stage: The name of the stage to track.
//
// Returns:
// - A function to call when the stage completes.
func (t *Tracker) Start(stage string) func() {
	start := time.Now()
	return func() {
		t.Observe(stage, time.Since(start))
	}
}

// Observe records a completed stage duration.
func (t *Tracker) Observe(stage string, duration time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tracker, exists := t.stages[stage]
	if !exists {
		tracker = &stageTracker{minTime: duration, maxTime: duration}
		t.stages[stage] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > t.maxSamples {
		// Remove oldest sample.
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// RecordMetric records a custom metric value, such as labels per scan.
//
// Arguments:
// - name: The name of the metric.
// - value: The metric value to record.
func (t *Tracker) RecordMetric(name string, value float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tracker, exists := t.metrics[name]
	if !exists {
		tracker = &metricTracker{
			values: make([]float64, 0, t.maxSamples),
			min:    value,
			max:    value,
		}
		t.metrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	if len(tracker.values) > t.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}

	tracker.sum += value
	tracker.count++

	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// RecordFailure counts a failed run under kind.
func (t *Tracker) RecordFailure(kind string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[kind]++
}

// Snapshot returns the current statistics.
func (t *Tracker) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		Uptime:     time.Since(t.startTime),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		GCCycles:   mem.NumGC,
		Stages:     make(map[string]StageStats, len(t.stages)),
		Metrics:    make(map[string]MetricStats, len(t.metrics)),
		Failures:   make(map[string]int64, len(t.failures)),
	}

	for name, tracker := range t.stages {
		if len(tracker.durations) == 0 {
			continue
		}
		stats.Stages[name] = StageStats{
			Count: tracker.count,
			Avg:   tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:   tracker.minTime,
			Max:   tracker.maxTime,
			P95:   percentile(tracker.durations, 0.95),
		}
	}
	for name, tracker := range t.metrics {
		if len(tracker.values) == 0 {
			continue
		}
		stats.Metrics[name] = MetricStats{
			Count: tracker.count,
			Avg:   tracker.sum / float64(len(tracker.values)),
			Min:   tracker.min,
			Max:   tracker.max,
		}
	}
	for kind, n := range t.failures {
		stats.Failures[kind] = n
	}
	return stats
}

// Run logs a status report every ReportInterval until Stop is called.
//
// Calling Run on a running tracker is a no-op.
func (t *Tracker) Run(logger logrus.FieldLogger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.running = true

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Report(logger)
			}
		}
	}()
}

// Stop stops the reporting goroutine and waits for it to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()
	t.wg.Wait()
}

// Report logs one entry per stage and a summary of the runtime.
func (t *Tracker) Report(logger logrus.FieldLogger) {
	stats := t.Snapshot()

	logger.WithFields(logrus.Fields{
		"uptime":     stats.Uptime.Truncate(time.Millisecond),
		"goroutines": stats.Goroutines,
		"heap":       formatBytes(stats.HeapAlloc),
		"gc_cycles":  stats.GCCycles,
		"failures":   stats.Failures,
	}).Info("pipeline status")

	names := make([]string, 0, len(stats.Stages))
	for name := range stats.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := stats.Stages[name]
		logger.WithFields(logrus.Fields{
			"stage": name,
			"avg":   s.Avg.Truncate(time.Microsecond),
			"min":   s.Min.Truncate(time.Microsecond),
			"max":   s.Max.Truncate(time.Microsecond),
			"p95":   s.P95.Truncate(time.Microsecond),
			"count": s.Count,
		}).Info("stage timings")
	}
}

func percentile(durations []time.Duration, p float64) time.Duration {
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
