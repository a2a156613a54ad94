package device

import (
	"github.com/sirupsen/logrus"
)

type ProbeBuilderOption func(*probeImpl)

// WithMemorySource replaces the total-memory signal. A nil source marks memory as unavailable.
//
// Parameters:
//   - src: function reporting total memory in bytes
//
// Returns:
//   - ProbeBuilderOption: a function that sets the memory source
func WithMemorySource(src MemorySource) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.memory = src
	}
}

// WithCoreSource replaces the logical core count signal.
//
// Parameters:
//   - src: function reporting the core count
//
// Returns:
//   - ProbeBuilderOption: a function that sets the core source
func WithCoreSource(src CoreSource) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.cores = src
	}
}

// WithNetworkType fixes the reported network type.
//
// Parameters:
//   - network: the network type to report
//
// Returns:
//   - ProbeBuilderOption: a function that sets a constant network source
func WithNetworkType(network NetworkType) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.network = func() (NetworkType, bool) { return network, network != NetworkUnknown }
	}
}

// WithSurfaceSource sets the max render surface signal, typically the primary monitor size.
//
// Parameters:
//   - src: function reporting the largest surface dimension in pixels
//
// Returns:
//   - ProbeBuilderOption: a function that sets the surface source
func WithSurfaceSource(src SurfaceSource) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.surface = src
	}
}

// WithTouch sets the touch and pointer support flags.
func WithTouch(touch, pointer bool) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.touch = touch
		p.pointer = pointer
	}
}

// WithLogger sets the logger used for the detection summary.
func WithLogger(logger *logrus.Entry) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.logger = logger
	}
}
