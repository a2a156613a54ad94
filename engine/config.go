package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/batch"
	"github.com/Carmen-Shannon/oxy-stream/engine/culler"
	"github.com/Carmen-Shannon/oxy-stream/engine/streamer"
)

const defaultFetchQueue = 256

// Config groups the numeric knobs used to build the engine's default components.
// Components supplied through options ignore the fields that would have configured them.
type Config struct {
	// BaseLoadDistance is the streamer's base distance before priority multipliers.
	BaseLoadDistance float32
	// CullDistances is the culling distance per priority tier before the quality scale.
	CullDistances map[common.PriorityTier]float32

	// BatchCapacity is the instance capacity of every batch.
	BatchCapacity int
	// BatchCapacities overrides the capacity for individual resource keys.
	BatchCapacities map[string]int

	// EvaluateInterval is the quality controller cadence.
	EvaluateInterval time.Duration

	// FetchWorkers bounds concurrent resource fetches. 0 runs fetches inline.
	FetchWorkers int
	// FetchQueue is the number of fetches that may wait for a worker.
	FetchQueue int

	// RenderFrameLimit caps the Run loop in frames per second. 0 is uncapped.
	RenderFrameLimit float64
}

// DefaultConfig returns the configuration used when none is supplied.
//
// Returns:
//   - Config: the default configuration
func DefaultConfig() Config {
	return Config{
		BaseLoadDistance: streamer.DefaultBaseDistance,
		CullDistances: map[common.PriorityTier]float32{
			common.PriorityCritical:   culler.DefaultCriticalCullDistance,
			common.PriorityImportant:  culler.DefaultImportantCullDistance,
			common.PriorityDecorative: culler.DefaultDecorativeCullDistance,
		},
		BatchCapacity:    batch.DefaultCapacity,
		EvaluateInterval: time.Second,
		FetchWorkers:     4,
		FetchQueue:       defaultFetchQueue,
		RenderFrameLimit: 60,
	}
}
