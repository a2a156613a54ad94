package batch

import "github.com/sirupsen/logrus"

type RendererBuilderOption func(*rendererImpl)

// WithCapacity sets the slot count of every batch without a per-key override.
//
// Parameters:
//   - n: the number of slots, ignored if not positive
//
// Returns:
//   - RendererBuilderOption: a function that sets the default capacity
func WithCapacity(n int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithKeyCapacity overrides the slot count for one resource key.
//
// Parameters:
//   - resourceKey: the resource key
//   - n: the number of slots, ignored if not positive
//
// Returns:
//   - RendererBuilderOption: a function that sets the key's capacity
func WithKeyCapacity(resourceKey string, n int) RendererBuilderOption {
	return func(r *rendererImpl) {
		if n > 0 {
			r.keyCapacity[resourceKey] = n
		}
	}
}

// WithLogger sets the logger used for overflow reports.
func WithLogger(logger *logrus.Entry) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.logger = logger
	}
}
