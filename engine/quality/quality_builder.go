package quality

import (
	"time"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/sirupsen/logrus"
)

type ControllerBuilderOption func(*controllerImpl)

// WithEvaluateInterval sets the minimum time between evaluations.
//
// Parameters:
//   - d: the throttle interval
//
// Returns:
//   - ControllerBuilderOption: a function that sets the evaluation cadence
func WithEvaluateInterval(d time.Duration) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.evaluateIntervalMs = float64(d) / float64(time.Millisecond)
	}
}

// WithMinSamples sets how many telemetry samples must be available before a transition.
//
// Parameters:
//   - n: minimum sample count
//
// Returns:
//   - ControllerBuilderOption: a function that sets the sample floor
func WithMinSamples(n int) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.minSamples = n
	}
}

// WithCooldown sets the hold time after a transition.
//
// Parameters:
//   - d: the cooldown duration
//
// Returns:
//   - ControllerBuilderOption: a function that sets the cooldown
func WithCooldown(d time.Duration) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.cooldownMs = float64(d) / float64(time.Millisecond)
	}
}

// WithTierSettings overrides one row of the settings table. The row's Tier field is forced to t.
func WithTierSettings(t common.QualityTier, s Settings) ControllerBuilderOption {
	return func(c *controllerImpl) {
		s.Tier = t
		c.table[t] = s
	}
}

// WithLogger sets the logger for tier transitions.
func WithLogger(logger *logrus.Entry) ControllerBuilderOption {
	return func(c *controllerImpl) {
		c.logger = logger
	}
}
