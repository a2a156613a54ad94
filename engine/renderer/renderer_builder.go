package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"
)

// UploaderBuilderOption is a functional option applied to an uploader during construction via NewUploader.
type UploaderBuilderOption func(*uploaderImpl)

// WithHeadroom sets the fraction of extra space allocated when a buffer grows, so a slowly
// growing batch does not reallocate every frame.
//
// Parameters:
//   - fraction: extra space relative to the needed size, e.g. 0.25 for 25%
//
// Returns:
//   - UploaderBuilderOption: a function that applies the headroom option to an uploader
func WithHeadroom(fraction float64) UploaderBuilderOption {
	return func(u *uploaderImpl) {
		u.headroom = max(fraction, 0)
	}
}

// WithBufferUsage sets the usage flags of instance buffers. CopyDst is always added.
//
// Parameters:
//   - usage: the wgpu buffer usage flags
//
// Returns:
//   - UploaderBuilderOption: a function that applies the usage option to an uploader
func WithBufferUsage(usage wgpu.BufferUsage) UploaderBuilderOption {
	return func(u *uploaderImpl) {
		u.usage = usage
	}
}

// WithLogger sets the logger used for buffer growth.
func WithLogger(logger *logrus.Entry) UploaderBuilderOption {
	return func(u *uploaderImpl) {
		u.logger = logger
	}
}

type deviceConfig struct {
	label                string
	forceFallbackAdapter bool
}

// DeviceBuilderOption is a functional option applied to a headless device request.
type DeviceBuilderOption func(*deviceConfig)

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - DeviceBuilderOption: a function that applies the option to the device request
func WithForceSoftwareRenderer(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithDeviceLabel sets the debug label of the requested device.
func WithDeviceLabel(label string) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.label = label
	}
}
