package loader

import (
	"path"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
)

// Resolver maps a logical resource key to a physical locator. It has no failure contract:
// a bad locator only surfaces as a failed fetch.
type Resolver interface {
	Resolve(logicalKey string) string
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(logicalKey string) string

func (f ResolverFunc) Resolve(logicalKey string) string {
	return f(logicalKey)
}

// TieredResolver resolves keys into a per-quality-tier directory tree.
type TieredResolver interface {
	Resolver

	// Tier returns the tier whose directory is used for resolution.
	Tier() common.QualityTier

	// SetTier switches the directory used for later resolutions.
	//
	// Parameters:
	//   - tier: the new tier
	SetTier(tier common.QualityTier)
}

type tieredResolverImpl struct {
	mu *sync.RWMutex

	root      string
	tier      common.QualityTier
	dirs      map[common.QualityTier]string
	extension string
	manifest  map[string]string
}

var _ TieredResolver = &tieredResolverImpl{}

// NewTieredResolver creates a resolver producing <root>/<tierDir>/<key><ext>.
// Tier directories default to the tier names (low, medium, high) and the extension to ".png".
// Keys that already carry an extension are used as-is. Manifest entries take precedence
// and resolve to <root>/<entry>.
//
// Parameters:
//   - root: the asset root directory
//   - tier: the starting tier
//   - options: functional options to configure the resolver
//
// Returns:
//   - TieredResolver: the newly created resolver
func NewTieredResolver(root string, tier common.QualityTier, options ...ResolverBuilderOption) TieredResolver {
	r := &tieredResolverImpl{
		mu:        &sync.RWMutex{},
		root:      root,
		tier:      tier,
		dirs:      make(map[common.QualityTier]string),
		extension: ".png",
		manifest:  make(map[string]string),
	}
	for _, t := range common.QualityTiers {
		r.dirs[t] = t.String()
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *tieredResolverImpl) Resolve(logicalKey string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.manifest[logicalKey]; ok {
		return path.Join(r.root, entry)
	}
	name := logicalKey
	if path.Ext(name) == "" {
		name += r.extension
	}
	return path.Join(r.root, r.dirs[r.tier], name)
}

func (r *tieredResolverImpl) Tier() common.QualityTier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tier
}

func (r *tieredResolverImpl) SetTier(tier common.QualityTier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tier = tier
}
