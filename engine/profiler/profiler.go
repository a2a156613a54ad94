// Package profiler collects per-frame timing samples into a rolling window and derives
// frame rate statistics from it.
package profiler

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// BaselineFrameMs is the frame time of a 60 FPS baseline.
const BaselineFrameMs = 1000.0 / 60.0

// DefaultCapacity holds roughly five seconds of samples at 60 FPS.
const DefaultCapacity = 300

// Sample is one frame timing measurement.
type Sample struct {
	TimestampMs float64
	DeltaMs     float64
}

// Stats is derived from the samples currently in the window.
type Stats struct {
	// AverageFPS is 1000 / mean frame delta, 0 with no samples.
	AverageFPS float64
	// FrameDropCount counts samples whose delta exceeded DropThresholdMs.
	FrameDropCount int
	SampleCount    int
	// TotalSamples counts every sample accepted since creation or the last Reset, including
	// those already evicted from the window.
	TotalSamples int
	// Capacity is the window size.
	Capacity       int
	AverageFrameMs float64
	WorstFrameMs   float64
	// DropThresholdMs is the active target frame time. At the 60 FPS baseline it is
	// BaselineFrameMs.
	DropThresholdMs float64
}

// Collector accumulates frame timing samples. It has no side effects on other components.
type Collector interface {
	// Sample records a frame at nowMs. The first call only establishes the baseline timestamp.
	// Timestamps not strictly greater than the previous one are discarded.
	//
	// Parameters:
	//   - nowMs: the frame timestamp in milliseconds
	Sample(nowMs float64)

	// Stats computes statistics over the current window.
	//
	// Returns:
	//   - Stats: the derived statistics
	Stats() Stats

	// SetTargetFrameTime sets the active tier's target frame time, which scales the drop threshold.
	//
	// Parameters:
	//   - ms: target frame time in milliseconds, ignored if not positive
	SetTargetFrameTime(ms float64)

	// Reset clears the window, the baseline timestamp and the discard count.
	Reset()

	// Samples returns a copy of the window, oldest first.
	//
	// Returns:
	//   - []Sample: the buffered samples
	Samples() []Sample

	// Len returns the number of buffered samples.
	Len() int

	// Capacity returns the size of the circular buffer.
	Capacity() int

	// Discarded returns how many non-monotonic timestamps were rejected since the last Reset.
	Discarded() int
}

type collectorImpl struct {
	mu     *sync.Mutex
	logger *logrus.Entry

	buf   []Sample
	head  int
	count int
	total int

	lastTimestamp float64
	hasBaseline   bool
	discarded     int

	targetFrameMs float64

	logIntervalMs  float64
	lastLogMs      float64
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

var _ Collector = &collectorImpl{}

// NewCollector creates a Collector with a 300-sample window and a 60 FPS target.
//
// Parameters:
//   - options: functional options to configure the collector
//
// Returns:
//   - Collector: the newly created collector
func NewCollector(options ...CollectorBuilderOption) Collector {
	c := &collectorImpl{
		mu:            &sync.Mutex{},
		logger:        logrus.StandardLogger().WithField("component", "profiler"),
		targetFrameMs: BaselineFrameMs,
	}
	for _, option := range options {
		option(c)
	}
	if len(c.buf) == 0 {
		c.buf = make([]Sample, DefaultCapacity)
	}
	return c
}

func (c *collectorImpl) Sample(nowMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasBaseline {
		c.lastTimestamp = nowMs
		c.lastLogMs = nowMs
		c.hasBaseline = true
		return
	}
	if nowMs <= c.lastTimestamp {
		c.discarded++
		c.logger.WithFields(logrus.Fields{
			"now_ms":  nowMs,
			"last_ms": c.lastTimestamp,
		}).Debug("discarding non-monotonic frame sample")
		return
	}

	c.push(Sample{TimestampMs: nowMs, DeltaMs: nowMs - c.lastTimestamp})
	c.lastTimestamp = nowMs

	if c.logIntervalMs > 0 && nowMs-c.lastLogMs >= c.logIntervalMs {
		c.logStats(nowMs)
	}
}

// push appends s, evicting the oldest sample when the buffer is full.
// Caller must hold the mutex.
func (c *collectorImpl) push(s Sample) {
	idx := (c.head + c.count) % len(c.buf)
	c.buf[idx] = s
	c.total++
	if c.count < len(c.buf) {
		c.count++
		return
	}
	c.head = (c.head + 1) % len(c.buf)
}

func (c *collectorImpl) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats()
}

// stats computes Stats over the window. Caller must hold the mutex.
func (c *collectorImpl) stats() Stats {
	threshold := c.targetFrameMs
	s := Stats{
		SampleCount:     c.count,
		TotalSamples:    c.total,
		Capacity:        len(c.buf),
		DropThresholdMs: threshold,
	}
	if c.count == 0 {
		return s
	}

	var total float64
	for i := range c.count {
		d := c.buf[(c.head+i)%len(c.buf)].DeltaMs
		total += d
		if d > threshold {
			s.FrameDropCount++
		}
		if d > s.WorstFrameMs {
			s.WorstFrameMs = d
		}
	}
	s.AverageFrameMs = total / float64(c.count)
	if s.AverageFrameMs > 0 {
		s.AverageFPS = 1000.0 / s.AverageFrameMs
	}
	return s
}

func (c *collectorImpl) SetTargetFrameTime(ms float64) {
	if ms <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetFrameMs = ms
}

func (c *collectorImpl) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = 0
	c.count = 0
	c.total = 0
	c.hasBaseline = false
	c.discarded = 0
}

func (c *collectorImpl) Samples() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, c.count)
	for i := range c.count {
		out[i] = c.buf[(c.head+i)%len(c.buf)]
	}
	return out
}

func (c *collectorImpl) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *collectorImpl) Capacity() int {
	return len(c.buf)
}

func (c *collectorImpl) Discarded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discarded
}

// logStats emits one summary line covering frame timing and Go heap behaviour since the last line.
// Caller must hold the mutex.
func (c *collectorImpl) logStats(nowMs float64) {
	elapsedSec := (nowMs - c.lastLogMs) / 1000.0
	s := c.stats()

	runtime.ReadMemStats(&c.memStats)
	// Alloc: live heap bytes. TotalAlloc: cumulative, tracks churn. Sys: process footprint.
	allocMB := float64(c.memStats.Alloc) / 1024 / 1024
	sysMB := float64(c.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(c.memStats.TotalAlloc-c.lastTotalAlloc) / 1024 / 1024 / elapsedSec

	gcCount := c.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = c.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := c.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := c.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"fps":           s.AverageFPS,
		"drops":         s.FrameDropCount,
		"worst_ms":      s.WorstFrameMs,
		"heap_mb":       allocMB,
		"alloc_rate_mb": allocRateMB,
		"gc":            gcCount,
		"gc_last_us":    lastPauseUs,
		"gc_max_us":     maxPauseUs,
		"sys_mb":        sysMB,
	}).Info("frame stats")

	c.lastLogMs = nowMs
	c.lastGCCount = gcCount
	c.lastTotalAlloc = c.memStats.TotalAlloc
}
