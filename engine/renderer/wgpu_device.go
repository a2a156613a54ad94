package renderer

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoAdapter is returned when no GPU adapter could be acquired.
var ErrNoAdapter = errors.New("no gpu adapter available")

// Device bundles the wgpu objects an Uploader needs. It owns all of them.
type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Info     wgpu.AdapterInfo
}

// NewHeadlessDevice requests an adapter and device without a surface.
//
// Parameters:
//   - options: functional options to configure the request
//
// Returns:
//   - *Device: the acquired device
//   - error: ErrNoAdapter wrapped with the driver's message, or the device request error
func NewHeadlessDevice(options ...DeviceBuilderOption) (*Device, error) {
	cfg := deviceConfig{label: "oxy-stream device"}
	for _, option := range options {
		option(&cfg)
	}

	instance := wgpu.CreateInstance(nil)
	a, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		PowerPreference:      wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil || a == nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: cfg.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		a.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	return &Device{
		Instance: instance,
		Adapter:  a,
		Device:   d,
		Queue:    d.GetQueue(),
		Info:     a.GetInfo(),
	}, nil
}

// MaxTextureDimension reports the adapter's largest 2D texture size. It has the shape of
// device.SurfaceSource.
//
// Returns:
//   - int: the limit in pixels
//   - bool: false if the device is nil or reports no limit
func (d *Device) MaxTextureDimension() (int, bool) {
	if d == nil || d.Adapter == nil {
		return 0, false
	}
	n := d.Adapter.GetLimits().Limits.MaxTextureDimension2D
	return int(n), n > 0
}

// Release frees the queue, device, adapter and instance.
func (d *Device) Release() {
	if d == nil {
		return
	}
	if d.Queue != nil {
		d.Queue.Release()
	}
	if d.Device != nil {
		d.Device.Release()
	}
	if d.Adapter != nil {
		d.Adapter.Release()
	}
	if d.Instance != nil {
		d.Instance.Release()
	}
}
