// Package renderer uploads batched instance data to the GPU. It is the boundary between the
// resource manager and a draw-call frontend: each batch gets one instance buffer, rewritten
// every frame and grown only when the batch outgrows it.
package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/engine/batch"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"
)

// DefaultHeadroom is the fraction of extra space allocated whenever a buffer grows.
const DefaultHeadroom = 0.25

// UploadStats summarizes the GPU buffers an Uploader holds.
type UploadStats struct {
	// Buffers is the number of live instance buffers.
	Buffers int
	// AllocatedBytes is the total size of every live buffer.
	AllocatedBytes uint64
	// WrittenBytes is the number of bytes written by the last Upload.
	WrittenBytes uint64
	// Grown is the cumulative number of buffer (re)allocations.
	Grown int
}

// Uploader keeps one instance buffer per resource key.
type Uploader interface {
	// Upload marshals every batch and writes it to the batch's buffer, allocating or growing
	// buffers as needed. Buffers of keys absent from batches are kept for reuse.
	//
	// Parameters:
	//   - batches: the batches to upload, usually the engine's visible batches
	//
	// Returns:
	//   - UploadStats: the buffer state after the upload
	//   - error: the first allocation or write failure
	Upload(batches []batch.Batch) (UploadStats, error)

	// Buffer returns the instance buffer for a resource key, or nil.
	Buffer(resourceKey string) *wgpu.Buffer

	// Stats returns the buffer state after the last Upload.
	Stats() UploadStats

	// Release frees every buffer. The Uploader may be reused afterwards.
	Release()
}

type uploaderImpl struct {
	mu     *sync.Mutex
	logger *logrus.Entry

	device *wgpu.Device
	queue  *wgpu.Queue

	usage    wgpu.BufferUsage
	headroom float64

	buffers map[string]*wgpu.Buffer
	stats   UploadStats
}

var _ Uploader = &uploaderImpl{}

// NewUploader creates an Uploader writing through device's queue.
//
// Parameters:
//   - device: the wgpu device buffers are created on
//   - options: functional options to configure the uploader
//
// Returns:
//   - Uploader: the newly created uploader
func NewUploader(device *wgpu.Device, options ...UploaderBuilderOption) Uploader {
	u := &uploaderImpl{
		mu:       &sync.Mutex{},
		logger:   logrus.StandardLogger().WithField("component", "renderer"),
		device:   device,
		queue:    device.GetQueue(),
		usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageStorage,
		headroom: DefaultHeadroom,
		buffers:  make(map[string]*wgpu.Buffer),
	}
	for _, option := range options {
		option(u)
	}
	return u
}

func (u *uploaderImpl) Upload(batches []batch.Batch) (UploadStats, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.stats.WrittenBytes = 0
	for _, b := range batches {
		data := b.Marshal()
		if len(data) == 0 {
			continue
		}
		if err := u.ensureBuffer(b.ResourceKey, len(data)); err != nil {
			return u.snapshot(), err
		}
		if err := u.queue.WriteBuffer(u.buffers[b.ResourceKey], 0, data); err != nil {
			return u.snapshot(), fmt.Errorf("write instances for %q: %w", b.ResourceKey, err)
		}
		u.stats.WrittenBytes += uint64(len(data))
	}
	return u.snapshot(), nil
}

// ensureBuffer (re)allocates key's buffer when it cannot hold n bytes. Caller must hold the mutex.
func (u *uploaderImpl) ensureBuffer(key string, n int) error {
	current := u.buffers[key]
	var have uint64
	if current != nil {
		have = current.GetSize()
	}
	size, grow := planBuffer(have, n, u.headroom)
	if !grow {
		return nil
	}
	if current != nil {
		current.Release()
		delete(u.buffers, key)
	}

	buf, err := u.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            key + " Instance Buffer",
		Size:             size,
		Usage:            u.usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return fmt.Errorf("create instance buffer for %q (%d bytes): %w", key, size, err)
	}
	u.buffers[key] = buf
	u.stats.Grown++
	u.logger.WithFields(logrus.Fields{
		"key":  key,
		"from": have,
		"to":   size,
	}).Debug("instance buffer grown")
	return nil
}

// planBuffer decides whether a buffer of size have can take n bytes, and if not the size to
// allocate: n plus headroom, rounded up to the 4 byte multiple wgpu requires.
func planBuffer(have uint64, n int, headroom float64) (uint64, bool) {
	need := alignUp(uint64(n))
	if have >= need {
		return have, false
	}
	return alignUp(uint64(float64(n) * (1 + max(headroom, 0)))), true
}

func alignUp(n uint64) uint64 {
	if r := n % 4; r != 0 {
		n += 4 - r
	}
	return n
}

// snapshot refreshes the buffer totals. Caller must hold the mutex.
func (u *uploaderImpl) snapshot() UploadStats {
	u.stats.Buffers = len(u.buffers)
	u.stats.AllocatedBytes = 0
	for _, b := range u.buffers {
		u.stats.AllocatedBytes += b.GetSize()
	}
	return u.stats
}

func (u *uploaderImpl) Buffer(resourceKey string) *wgpu.Buffer {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.buffers[resourceKey]
}

func (u *uploaderImpl) Stats() UploadStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

func (u *uploaderImpl) Release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for key, b := range u.buffers {
		b.Release()
		delete(u.buffers, key)
	}
	u.stats = UploadStats{Grown: u.stats.Grown}
}
