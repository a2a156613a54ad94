// Package culler decides per tick which registered bounding volumes the camera can see.
package culler

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/camera"
	"github.com/sirupsen/logrus"
)

// Default culling distances per priority tier, before the quality scale is applied.
const (
	DefaultCriticalCullDistance   = 250.0
	DefaultImportantCullDistance  = 180.0
	DefaultDecorativeCullDistance = 120.0
)

// Result lists the ids that passed and failed the last Cull, in registration order.
type Result struct {
	Visible []string
	Culled  []string
}

// Stats summarizes the last Cull.
type Stats struct {
	TotalObjects   int
	VisibleObjects int
	CulledObjects  int
}

// Culler tests registered bounding volumes against the camera's frustum and a per-priority
// distance cutoff. Every operation is O(1) except Cull, which is O(N).
type Culler interface {
	// Add registers a bounding volume. Re-adding a known id replaces its volume and priority.
	//
	// Parameters:
	//   - id: the renderable id
	//   - bv: the bounding volume
	//   - priority: the priority tier selecting the culling distance
	Add(id string, bv common.BoundingVolume, priority common.PriorityTier)

	// Remove unregisters id. Unknown ids are logged and ignored.
	//
	// Parameters:
	//   - id: the renderable id
	Remove(id string)

	// UpdatePosition replaces the bounding volume of id. Unknown ids are logged and ignored.
	//
	// Parameters:
	//   - id: the renderable id
	//   - bv: the new bounding volume
	UpdatePosition(id string, bv common.BoundingVolume)

	// SetCamera sets the pose used by the next Cull.
	//
	// Parameters:
	//   - pose: the camera snapshot
	SetCamera(pose camera.Pose)

	// SetDistanceScale multiplies every culling distance, typically by the quality tier's scale.
	//
	// Parameters:
	//   - scale: the multiplier, ignored if not positive
	SetDistanceScale(scale float64)

	// CullDistance returns the effective culling distance for a priority tier.
	CullDistance(priority common.PriorityTier) float32

	// Cull classifies every registered object. An object beyond its culling distance is culled
	// without the plane test; otherwise it is visible iff its volume intersects the frustum.
	// Before the first SetCamera every object is visible.
	//
	// Returns:
	//   - Result: the visible and culled ids
	Cull() Result

	// IsVisible reports the classification of id in the last Cull.
	IsVisible(id string) bool

	// Stats returns counts from the last Cull.
	Stats() Stats

	// Len returns the number of registered objects.
	Len() int
}

type entry struct {
	id       string
	bv       common.BoundingVolume
	priority common.PriorityTier
	visible  bool
}

type cullerImpl struct {
	mu     *sync.Mutex
	logger *logrus.Entry

	// entries is dense; index maps id to its slot. Removal swaps the last entry into the gap.
	entries []entry
	index   map[string]int

	distances [len(common.PriorityTiers)]float32
	scale     float32

	pose      camera.Pose
	hasCamera bool

	stats Stats
}

var _ Culler = &cullerImpl{}

// NewCuller creates an empty Culler with the default per-tier culling distances and a scale of 1.
//
// Parameters:
//   - options: functional options to configure the culler
//
// Returns:
//   - Culler: the newly created culler
func NewCuller(options ...CullerBuilderOption) Culler {
	c := &cullerImpl{
		mu:     &sync.Mutex{},
		logger: logrus.StandardLogger().WithField("component", "culler"),
		index:  make(map[string]int),
		distances: [len(common.PriorityTiers)]float32{
			common.PriorityCritical:   DefaultCriticalCullDistance,
			common.PriorityImportant:  DefaultImportantCullDistance,
			common.PriorityDecorative: DefaultDecorativeCullDistance,
		},
		scale: 1,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cullerImpl) Add(id string, bv common.BoundingVolume, priority common.PriorityTier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !priority.Valid() {
		c.logger.WithFields(logrus.Fields{"id": id, "priority": int(priority)}).Warn("unknown priority, treating as decorative")
		priority = common.PriorityDecorative
	}
	if i, ok := c.index[id]; ok {
		c.entries[i].bv = bv
		c.entries[i].priority = priority
		return
	}
	c.index[id] = len(c.entries)
	// New objects are visible until the next Cull classifies them.
	c.entries = append(c.entries, entry{id: id, bv: bv, priority: priority, visible: true})
}

func (c *cullerImpl) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		c.logger.WithField("id", id).Debug("remove of unregistered object ignored")
		return
	}
	last := len(c.entries) - 1
	if i != last {
		c.entries[i] = c.entries[last]
		c.index[c.entries[i].id] = i
	}
	c.entries[last] = entry{}
	c.entries = c.entries[:last]
	delete(c.index, id)
}

func (c *cullerImpl) UpdatePosition(id string, bv common.BoundingVolume) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		c.logger.WithField("id", id).Warn("position update for unregistered object ignored")
		return
	}
	c.entries[i].bv = bv
}

func (c *cullerImpl) SetCamera(pose camera.Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pose = pose
	c.hasCamera = true
}

func (c *cullerImpl) SetDistanceScale(scale float64) {
	if scale <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scale = float32(scale)
}

func (c *cullerImpl) CullDistance(priority common.PriorityTier) float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cullDistance(priority)
}

// cullDistance returns the scaled distance for priority. Caller must hold the mutex.
func (c *cullerImpl) cullDistance(priority common.PriorityTier) float32 {
	if !priority.Valid() {
		priority = common.PriorityDecorative
	}
	return c.distances[priority] * c.scale
}

func (c *cullerImpl) Cull() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result{Visible: make([]string, 0, len(c.entries))}

	if !c.hasCamera {
		for i := range c.entries {
			c.entries[i].visible = true
			res.Visible = append(res.Visible, c.entries[i].id)
		}
		c.stats = Stats{TotalObjects: len(c.entries), VisibleObjects: len(c.entries)}
		return res
	}

	frustum := common.ExtractFrustum(c.pose.ViewProjection())
	eye := c.pose.Position

	// Compare squared distances; cull distances are per tier so square them once.
	var limits [len(common.PriorityTiers)]float32
	for _, p := range common.PriorityTiers {
		d := c.cullDistance(p)
		limits[p] = d * d
	}

	for i := range c.entries {
		e := &c.entries[i]
		closest := e.bv.ClosestPoint(eye)
		visible := closest.Sub(eye).LenSqr() <= limits[e.priority] && frustum.IntersectsAABB(e.bv)
		e.visible = visible
		if visible {
			res.Visible = append(res.Visible, e.id)
		} else {
			res.Culled = append(res.Culled, e.id)
		}
	}

	c.stats = Stats{
		TotalObjects:   len(c.entries),
		VisibleObjects: len(res.Visible),
		CulledObjects:  len(res.Culled),
	}
	return res
}

func (c *cullerImpl) IsVisible(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	return ok && c.entries[i].visible
}

func (c *cullerImpl) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *cullerImpl) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
