package culler

import (
	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/sirupsen/logrus"
)

type CullerBuilderOption func(*cullerImpl)

// WithCullDistance sets the unscaled culling distance for one priority tier.
//
// Parameters:
//   - priority: the tier to configure
//   - distance: the cutoff distance, ignored if not positive
//
// Returns:
//   - CullerBuilderOption: a function that sets the tier's distance
func WithCullDistance(priority common.PriorityTier, distance float32) CullerBuilderOption {
	return func(c *cullerImpl) {
		if priority.Valid() && distance > 0 {
			c.distances[priority] = distance
		}
	}
}

// WithDistanceScale sets the initial culling distance multiplier.
func WithDistanceScale(scale float64) CullerBuilderOption {
	return func(c *cullerImpl) {
		if scale > 0 {
			c.scale = float32(scale)
		}
	}
}

// WithLogger sets the logger for registry-ordering warnings.
func WithLogger(logger *logrus.Entry) CullerBuilderOption {
	return func(c *cullerImpl) {
		c.logger = logger
	}
}
