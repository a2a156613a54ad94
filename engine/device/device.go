// Package device probes the host once for the hardware and network signals that pick the
// starting quality tier.
package device

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/sirupsen/logrus"
)

// NetworkType is the effective network class reported by the host.
type NetworkType string

const (
	NetworkSlow2G  NetworkType = "slow-2g"
	Network2G      NetworkType = "2g"
	Network3G      NetworkType = "3g"
	Network4G      NetworkType = "4g"
	NetworkUnknown NetworkType = "unknown"
)

// NetworkEnv is the environment variable read by the default network source.
const NetworkEnv = "OXY_NETWORK_TYPE"

// Fallback values used when a signal is unavailable. They classify as medium-tier hardware.
const (
	DefaultMemoryGB       = 4.0
	DefaultLogicalCores   = 4
	DefaultMaxSurfaceSize = 4096
)

// Signal names recorded in Capabilities.Defaulted.
const (
	SignalMemory  = "memory"
	SignalCores   = "cores"
	SignalNetwork = "network"
	SignalSurface = "surface"
)

// Capabilities is the result of a single device probe.
type Capabilities struct {
	MemoryGB         float64
	LogicalCores     int
	NetworkType      NetworkType
	MaxSurfaceSize   int
	TouchSupported   bool
	PointerSupported bool

	// Defaulted names every signal that was unavailable and fell back to its default.
	Defaulted []string
}

// Tier classifies the capabilities into a starting quality tier using fixed thresholds:
//   - memory < 4 GB, cores < 4, or a 2g-class network: low
//   - memory >= 8 GB, cores >= 8, surface >= 4096 and a network faster than 3g: high
//   - anything else: medium
//
// Returns:
//   - common.QualityTier: the classified tier
func (c Capabilities) Tier() common.QualityTier {
	if c.MemoryGB < 4 || c.LogicalCores < 4 || c.NetworkType == NetworkSlow2G || c.NetworkType == Network2G {
		return common.QualityLow
	}
	if c.MemoryGB >= 8 && c.LogicalCores >= 8 && c.MaxSurfaceSize >= 4096 && c.NetworkType != Network3G {
		return common.QualityHigh
	}
	return common.QualityMedium
}

// Probe detects device capabilities.
type Probe interface {
	// Detect runs the probe. The first call queries every signal source; later calls
	// return the cached result. Detect never fails: missing signals fall back to defaults.
	//
	// Returns:
	//   - Capabilities: the detected capabilities
	Detect() Capabilities
}

// MemorySource reports total system memory in bytes. ok is false when unavailable.
type MemorySource func() (bytes uint64, ok bool)

// CoreSource reports the logical core count. ok is false when unavailable.
type CoreSource func() (cores int, ok bool)

// NetworkSource reports the effective network type. ok is false when unavailable.
type NetworkSource func() (network NetworkType, ok bool)

// SurfaceSource reports the largest render surface dimension in pixels. ok is false when unavailable.
type SurfaceSource func() (size int, ok bool)

type probeImpl struct {
	once   *sync.Once
	caps   Capabilities
	logger *logrus.Entry

	memory  MemorySource
	cores   CoreSource
	network NetworkSource
	surface SurfaceSource
	touch   bool
	pointer bool
}

var _ Probe = &probeImpl{}

// NewProbe creates a Probe with the host's default signal sources.
// Memory is read from the OS, cores from the Go runtime and the network type from OXY_NETWORK_TYPE.
// No surface source is configured by default.
//
// Parameters:
//   - options: functional options replacing individual signal sources
//
// Returns:
//   - Probe: the configured probe
func NewProbe(options ...ProbeBuilderOption) Probe {
	p := &probeImpl{
		once:    &sync.Once{},
		logger:  logrus.StandardLogger().WithField("component", "device"),
		memory:  systemMemory,
		cores:   runtimeCores,
		network: envNetwork,
		pointer: true,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *probeImpl) Detect() Capabilities {
	p.once.Do(func() {
		p.caps = p.detect()
		p.logger.WithFields(logrus.Fields{
			"memory_gb": p.caps.MemoryGB,
			"cores":     p.caps.LogicalCores,
			"network":   p.caps.NetworkType,
			"surface":   p.caps.MaxSurfaceSize,
			"defaulted": p.caps.Defaulted,
			"tier":      p.caps.Tier(),
		}).Info("device capabilities detected")
	})
	caps := p.caps
	caps.Defaulted = append([]string(nil), p.caps.Defaulted...)
	return caps
}

func (p *probeImpl) detect() Capabilities {
	c := Capabilities{
		TouchSupported:   p.touch,
		PointerSupported: p.pointer,
	}

	if bytes, ok := p.readMemory(); ok && bytes > 0 {
		c.MemoryGB = float64(bytes) / (1 << 30)
	} else {
		c.MemoryGB = DefaultMemoryGB
		c.Defaulted = append(c.Defaulted, SignalMemory)
	}

	if cores, ok := p.readCores(); ok && cores > 0 {
		c.LogicalCores = cores
	} else {
		c.LogicalCores = DefaultLogicalCores
		c.Defaulted = append(c.Defaulted, SignalCores)
	}

	if network, ok := p.readNetwork(); ok && network != NetworkUnknown {
		c.NetworkType = network
	} else {
		c.NetworkType = NetworkUnknown
		c.Defaulted = append(c.Defaulted, SignalNetwork)
	}

	if size, ok := p.readSurface(); ok && size > 0 {
		c.MaxSurfaceSize = size
	} else {
		c.MaxSurfaceSize = DefaultMaxSurfaceSize
		c.Defaulted = append(c.Defaulted, SignalSurface)
	}

	return c
}

// A nil source reports the signal as unavailable.

func (p *probeImpl) readMemory() (uint64, bool) {
	if p.memory == nil {
		return 0, false
	}
	return p.memory()
}

func (p *probeImpl) readCores() (int, bool) {
	if p.cores == nil {
		return 0, false
	}
	return p.cores()
}

func (p *probeImpl) readNetwork() (NetworkType, bool) {
	if p.network == nil {
		return NetworkUnknown, false
	}
	return p.network()
}

func (p *probeImpl) readSurface() (int, bool) {
	if p.surface == nil {
		return 0, false
	}
	return p.surface()
}

func runtimeCores() (int, bool) {
	return runtime.NumCPU(), true
}

func envNetwork() (NetworkType, bool) {
	return ParseNetworkType(os.Getenv(NetworkEnv))
}

// ParseNetworkType maps a network class name to a NetworkType.
//
// Parameters:
//   - s: the class name, case-insensitive
//
// Returns:
//   - NetworkType: the parsed type, NetworkUnknown if unrecognized
//   - bool: true if s named a known network class
func ParseNetworkType(s string) (NetworkType, bool) {
	switch n := NetworkType(strings.ToLower(strings.TrimSpace(s))); n {
	case NetworkSlow2G, Network2G, Network3G, Network4G:
		return n, true
	}
	return NetworkUnknown, false
}
