package profiler

import (
	"time"

	"github.com/sirupsen/logrus"
)

type CollectorBuilderOption func(*collectorImpl)

// WithCapacity sets the circular buffer size.
//
// Parameters:
//   - n: number of samples retained, ignored if not positive
//
// Returns:
//   - CollectorBuilderOption: a function that sets the window capacity
func WithCapacity(n int) CollectorBuilderOption {
	return func(c *collectorImpl) {
		if n > 0 {
			c.buf = make([]Sample, n)
		}
	}
}

// WithTargetFrameTime sets the initial target frame time used for the drop threshold.
//
// Parameters:
//   - ms: target frame time in milliseconds
//
// Returns:
//   - CollectorBuilderOption: a function that sets the target frame time
func WithTargetFrameTime(ms float64) CollectorBuilderOption {
	return func(c *collectorImpl) {
		if ms > 0 {
			c.targetFrameMs = ms
		}
	}
}

// LogEvery enables a periodic summary log line, measured in sample time.
//
// Parameters:
//   - interval: time between log lines, 0 disables logging
//
// Returns:
//   - CollectorBuilderOption: a function that sets the log interval
func LogEvery(interval time.Duration) CollectorBuilderOption {
	return func(c *collectorImpl) {
		c.logIntervalMs = float64(interval) / float64(time.Millisecond)
	}
}

// WithLogger sets the logger for discard notices and periodic summaries.
func WithLogger(logger *logrus.Entry) CollectorBuilderOption {
	return func(c *collectorImpl) {
		c.logger = logger
	}
}
