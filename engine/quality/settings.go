package quality

import (
	"github.com/Carmen-Shannon/oxy-stream/common"
)

// Settings is an immutable snapshot of the rendering knobs for one quality tier.
// Snapshots are replaced wholesale on a tier transition and never mutated in place.
type Settings struct {
	Tier                  common.QualityTier
	ResolutionScale       float64
	ShadowsEnabled        bool
	AntialiasEnabled      bool
	PostProcessingEnabled bool
	ParticleBudget        int
	TargetFPS             float64
	TargetFrameTimeMs     float64

	// MaxLoaded is the streaming budget: the most descriptors that may be loaded at once.
	MaxLoaded int
	// CullDistanceScale multiplies every priority tier's culling distance.
	CullDistanceScale float64
}

// Table is the fixed per-tier settings table.
// Target frame rates are spaced so that 1.1 x target(t) >= 0.8 x target(t+1): a frame rate
// that just earns an upgrade never falls straight into the next tier's downgrade band.
var Table = map[common.QualityTier]Settings{
	common.QualityLow: {
		Tier:              common.QualityLow,
		ResolutionScale:   0.6,
		ParticleBudget:    100,
		TargetFPS:         30,
		TargetFrameTimeMs: 1000.0 / 30,
		MaxLoaded:         60,
		CullDistanceScale: 0.6,
	},
	common.QualityMedium: {
		Tier:              common.QualityMedium,
		ResolutionScale:   0.8,
		AntialiasEnabled:  true,
		ParticleBudget:    300,
		TargetFPS:         40,
		TargetFrameTimeMs: 1000.0 / 40,
		MaxLoaded:         100,
		CullDistanceScale: 0.8,
	},
	common.QualityHigh: {
		Tier:                  common.QualityHigh,
		ResolutionScale:       1.0,
		ShadowsEnabled:        true,
		AntialiasEnabled:      true,
		PostProcessingEnabled: true,
		ParticleBudget:        800,
		TargetFPS:             50,
		TargetFrameTimeMs:     1000.0 / 50,
		MaxLoaded:             150,
		CullDistanceScale:     1.0,
	},
}

// ForTier returns the table row for t, falling back to the medium row for unknown tiers.
//
// Parameters:
//   - t: the quality tier
//
// Returns:
//   - Settings: the settings row
func ForTier(t common.QualityTier) Settings {
	if s, ok := Table[t]; ok {
		return s
	}
	return Table[common.QualityMedium]
}
