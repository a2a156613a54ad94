// Package batch groups visible instances by resource key so every group is drawn with one
// instanced draw call.
package batch

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the number of instance slots a batch gets unless overridden.
const DefaultCapacity = 256

var (
	// ErrBatchFull is returned by AddInstance when the key's batch has no free slot.
	ErrBatchFull = errors.New("batch is full")
	// ErrUnknownHandle is returned when a handle no longer refers to a live instance.
	ErrUnknownHandle = errors.New("unknown instance handle")
)

// Instance describes one member of a batch.
type Instance struct {
	ID          string
	Priority    common.PriorityTier
	Transform   common.Transform
	Alpha       float32
	RenderOrder int
	// Hidden keeps the slot in the batch but draws it degenerate, e.g. while its texture is
	// still being fetched.
	Hidden bool
}

// Handle addresses an instance inside its batch. Handles stay valid across swap-removes of
// other instances.
type Handle struct {
	Key string
	ID  string
}

// Slot is the computed, upload-ready state of one instance.
type Slot struct {
	ID          string
	Model       mgl32.Mat4
	Alpha       float32
	RenderOrder int
	Hidden      bool
}

// Batch is a snapshot of one non-empty batch. Each Batch is exactly one draw call.
type Batch struct {
	ResourceKey string
	// Handle is the shared geometry/material handle attached with SetHandle.
	Handle    any
	Capacity  int
	Instances []Slot
}

// RenderOrder returns the lowest render order among the batch's instances.
func (b Batch) RenderOrder() int {
	lowest := math.MaxInt
	for _, s := range b.Instances {
		lowest = min(lowest, s.RenderOrder)
	}
	return lowest
}

// Marshal serializes every slot as GPUInstanceData, in slot order.
//
// Returns:
//   - []byte: len(Instances) * GPUInstanceDataSize bytes ready for GPU upload
func (b Batch) Marshal() []byte {
	buf := make([]byte, len(b.Instances)*GPUInstanceDataSize)
	for i, s := range b.Instances {
		g := GPUInstanceData{Model: s.Model, Alpha: s.Alpha}
		if s.Hidden {
			g.Alpha = 0
		}
		g.marshalInto(buf[i*GPUInstanceDataSize : (i+1)*GPUInstanceDataSize])
	}
	return buf
}

// Stats counts what the current batches will cost to draw.
type Stats struct {
	// DrawCalls is the number of non-empty batches.
	DrawCalls int
	Instances int
	Hidden    int
	// InstanceBytes is the marshaled size of every batch.
	InstanceBytes int
}

// Renderer owns every batch. Its methods are safe for concurrent use.
type Renderer interface {
	// AddInstance places inst in the batch for resourceKey, creating the batch on first use.
	// Adding an id that is already batched returns its existing handle. A full batch evicts its
	// least important instance if inst outranks it.
	//
	// Parameters:
	//   - resourceKey: the shared resource the instance draws with
	//   - inst: the instance
	//
	// Returns:
	//   - Handle: the handle addressing the new slot
	//   - error: ErrBatchFull if the batch is full of instances at least as important
	AddInstance(resourceKey string, inst Instance) (Handle, error)

	// RemoveInstance frees h's slot by moving the last slot into it. Stale handles are ignored.
	//
	// Parameters:
	//   - h: the instance handle
	//
	// Returns:
	//   - bool: true if an instance was removed
	RemoveInstance(h Handle) bool

	// Lookup returns the handle of a batched id.
	Lookup(id string) (Handle, bool)

	// SetTransform replaces an instance's transform. The matrix is recomputed on Update.
	SetTransform(h Handle, t common.Transform) error

	// SetAlpha replaces an instance's opacity, clamped to [0,1]. Zero alpha draws the slot degenerate.
	SetAlpha(h Handle, alpha float32) error

	// SetHidden toggles whether the slot draws degenerate.
	SetHidden(h Handle, hidden bool) error

	// SetRenderOrder replaces an instance's render order.
	SetRenderOrder(h Handle, order int) error

	// SetHandle attaches the shared geometry/material handle for a resource key.
	//
	// Parameters:
	//   - resourceKey: the resource key
	//   - handle: an opaque handle owned by the render frontend
	SetHandle(resourceKey string, handle any)

	// Update recomputes the matrix of every slot changed since the last Update.
	//
	// Returns:
	//   - int: the number of slots recomputed
	Update() int

	// Batches returns the non-empty batches ordered by lowest render order, then key.
	Batches() []Batch

	// InstanceCount returns the number of instances in resourceKey's batch.
	InstanceCount(resourceKey string) int

	// Capacity returns the slot count resourceKey's batch has or will be created with.
	Capacity(resourceKey string) int

	// Len returns the number of instances across all batches.
	Len() int

	// Stats returns the draw cost of the current batches.
	Stats() Stats

	// Clear empties every batch. Shared handles and capacities are kept.
	Clear()
}

type slot struct {
	id        string
	priority  common.PriorityTier
	transform common.Transform
	alpha     float32
	order     int
	hidden    bool
	dirty     bool
	model     mgl32.Mat4
}

func (s *slot) degenerate() bool {
	return s.hidden || s.alpha <= 0
}

type batchState struct {
	key      string
	handle   any
	capacity int
	slots    []slot
	index    map[string]int
	// dirtyIndices lists slot indices changed since the last Update; slot.dirty dedups it.
	dirtyIndices []int
}

// lowestPriority returns the index of the least important slot, the last one on ties, or -1.
func (b *batchState) lowestPriority() int {
	victim := -1
	for i := range b.slots {
		if victim < 0 || b.slots[i].priority >= b.slots[victim].priority {
			victim = i
		}
	}
	return victim
}

func (b *batchState) markDirty(i int) {
	if b.slots[i].dirty {
		return
	}
	b.slots[i].dirty = true
	b.dirtyIndices = append(b.dirtyIndices, i)
}

type rendererImpl struct {
	mu     *sync.Mutex
	logger *logrus.Entry

	capacity      int
	keyCapacity   map[string]int
	batches       map[string]*batchState
	keys          []string
	ids           map[string]string
	instanceCount int
}

var _ Renderer = &rendererImpl{}

// NewRenderer creates an empty batch renderer.
//
// Parameters:
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the newly created renderer
func NewRenderer(options ...RendererBuilderOption) Renderer {
	r := &rendererImpl{
		mu:          &sync.Mutex{},
		logger:      logrus.StandardLogger().WithField("component", "batch"),
		capacity:    DefaultCapacity,
		keyCapacity: make(map[string]int),
		batches:     make(map[string]*batchState),
		ids:         make(map[string]string),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *rendererImpl) batch(key string) *batchState {
	if b, ok := r.batches[key]; ok {
		return b
	}
	capacity := r.capacity
	if c, ok := r.keyCapacity[key]; ok {
		capacity = c
	}
	b := &batchState{
		key:      key,
		capacity: capacity,
		slots:    make([]slot, 0, capacity),
		index:    make(map[string]int),
	}
	r.batches[key] = b
	r.keys = append(r.keys, key)
	return b
}

func (r *rendererImpl) AddInstance(resourceKey string, inst Instance) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.ids[inst.ID]; ok {
		return Handle{Key: key, ID: inst.ID}, nil
	}

	b := r.batch(resourceKey)
	if len(b.slots) >= b.capacity {
		victim := b.lowestPriority()
		if victim < 0 || b.slots[victim].priority <= inst.Priority {
			r.logDrop(inst.ID, inst.Priority, b, "batch full, dropping instance")
			return Handle{}, fmt.Errorf("add %q to %q: %w", inst.ID, resourceKey, ErrBatchFull)
		}
		evicted := b.slots[victim]
		r.removeAt(b, victim)
		r.logDrop(evicted.id, evicted.priority, b, "batch full, evicting lower priority instance")
	}

	b.index[inst.ID] = len(b.slots)
	b.slots = append(b.slots, slot{
		id:        inst.ID,
		priority:  inst.Priority,
		transform: inst.Transform,
		alpha:     common.Clamp(inst.Alpha, 0, 1),
		order:     inst.RenderOrder,
		hidden:    inst.Hidden,
	})
	b.markDirty(len(b.slots) - 1)
	r.ids[inst.ID] = resourceKey
	r.instanceCount++
	return Handle{Key: resourceKey, ID: inst.ID}, nil
}

func (r *rendererImpl) RemoveInstance(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, i, ok := r.locate(h)
	if !ok {
		return false
	}
	r.removeAt(b, i)
	return true
}

// removeAt swap-removes slot i. Caller must hold the mutex.
func (r *rendererImpl) removeAt(b *batchState, i int) {
	id := b.slots[i].id
	last := len(b.slots) - 1
	if i != last {
		b.slots[i] = b.slots[last]
		b.index[b.slots[i].id] = i
		// The moved slot lands at a new offset and must be re-uploaded there.
		b.slots[i].dirty = false
		b.markDirty(i)
	}
	b.slots = b.slots[:last]
	delete(b.index, id)
	delete(r.ids, id)
	r.instanceCount--
}

// logDrop reports an instance that lost its slot. Decorative drops are routine and logged at debug.
func (r *rendererImpl) logDrop(id string, priority common.PriorityTier, b *batchState, msg string) {
	entry := r.logger.WithFields(logrus.Fields{
		"id":       id,
		"key":      b.key,
		"capacity": b.capacity,
		"priority": priority.String(),
	})
	if priority == common.PriorityDecorative {
		entry.Debug(msg)
		return
	}
	entry.Warn(msg)
}

// locate resolves a handle. Caller must hold the mutex.
func (r *rendererImpl) locate(h Handle) (*batchState, int, bool) {
	b, ok := r.batches[h.Key]
	if !ok {
		return nil, 0, false
	}
	i, ok := b.index[h.ID]
	return b, i, ok
}

// mutate applies fn to h's slot and marks it dirty.
func (r *rendererImpl) mutate(h Handle, fn func(s *slot)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, i, ok := r.locate(h)
	if !ok {
		return fmt.Errorf("%s/%s: %w", h.Key, h.ID, ErrUnknownHandle)
	}
	fn(&b.slots[i])
	b.markDirty(i)
	return nil
}

func (r *rendererImpl) Lookup(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.ids[id]
	return Handle{Key: key, ID: id}, ok
}

func (r *rendererImpl) SetTransform(h Handle, t common.Transform) error {
	return r.mutate(h, func(s *slot) { s.transform = t })
}

func (r *rendererImpl) SetAlpha(h Handle, alpha float32) error {
	return r.mutate(h, func(s *slot) { s.alpha = common.Clamp(alpha, 0, 1) })
}

func (r *rendererImpl) SetHidden(h Handle, hidden bool) error {
	return r.mutate(h, func(s *slot) { s.hidden = hidden })
}

func (r *rendererImpl) SetRenderOrder(h Handle, order int) error {
	return r.mutate(h, func(s *slot) { s.order = order })
}

func (r *rendererImpl) SetHandle(resourceKey string, handle any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batch(resourceKey).handle = handle
}

func (r *rendererImpl) Update() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, key := range r.keys {
		b := r.batches[key]
		for _, i := range b.dirtyIndices {
			// Indices past the end belong to slots removed since they were marked.
			if i >= len(b.slots) {
				continue
			}
			s := &b.slots[i]
			if !s.dirty {
				continue
			}
			if s.degenerate() {
				s.model = s.transform.DegenerateMatrix()
			} else {
				s.model = s.transform.Matrix()
			}
			s.dirty = false
			updated++
		}
		b.dirtyIndices = b.dirtyIndices[:0]
	}
	return updated
}

func (r *rendererImpl) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// snapshot copies the non-empty batches in draw order. Caller must hold the mutex.
func (r *rendererImpl) snapshot() []Batch {
	out := make([]Batch, 0, len(r.keys))
	for _, key := range r.keys {
		b := r.batches[key]
		if len(b.slots) == 0 {
			continue
		}
		instances := make([]Slot, len(b.slots))
		for i, s := range b.slots {
			instances[i] = Slot{
				ID:          s.id,
				Model:       s.model,
				Alpha:       s.alpha,
				RenderOrder: s.order,
				Hidden:      s.degenerate(),
			}
		}
		out = append(out, Batch{
			ResourceKey: key,
			Handle:      b.handle,
			Capacity:    b.capacity,
			Instances:   instances,
		})
	}
	slices.SortFunc(out, func(a, b Batch) int {
		return cmp.Or(
			cmp.Compare(a.RenderOrder(), b.RenderOrder()),
			cmp.Compare(a.ResourceKey, b.ResourceKey),
		)
	})
	return out
}

func (r *rendererImpl) InstanceCount(resourceKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[resourceKey]; ok {
		return len(b.slots)
	}
	return 0
}

func (r *rendererImpl) Capacity(resourceKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[resourceKey]; ok {
		return b.capacity
	}
	if c, ok := r.keyCapacity[resourceKey]; ok {
		return c
	}
	return r.capacity
}

func (r *rendererImpl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instanceCount
}

func (r *rendererImpl) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st Stats
	for _, b := range r.batches {
		if len(b.slots) == 0 {
			continue
		}
		st.DrawCalls++
		st.Instances += len(b.slots)
		st.InstanceBytes += len(b.slots) * GPUInstanceDataSize
		for i := range b.slots {
			if b.slots[i].degenerate() {
				st.Hidden++
			}
		}
	}
	return st
}

func (r *rendererImpl) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.batches {
		b.slots = b.slots[:0]
		clear(b.index)
		b.dirtyIndices = b.dirtyIndices[:0]
	}
	clear(r.ids)
	r.instanceCount = 0
}
