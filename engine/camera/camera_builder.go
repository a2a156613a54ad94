package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// CameraBuilderOption is a functional option for configuring a Camera.
type CameraBuilderOption func(*cameraImpl)

// WithLens copies the up vector and projection settings of p. Position and target come from
// the controller and are ignored.
//
// Parameters:
//   - p: the pose to take lens settings from
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithLens(p Pose) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = p.Up
		c.fov = p.Fov
		c.aspect = p.Aspect
		c.near, c.far = p.Near, p.Far
	}
}

// WithFovDegrees sets the vertical field of view. Values outside (0, 180) are ignored.
//
// Parameters:
//   - degrees: field of view in degrees
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithFovDegrees(degrees float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if degrees > 0 && degrees < 180 {
			c.fov = mgl32.DegToRad(degrees)
		}
	}
}

// WithAspect sets the aspect ratio (width / height). Non-positive values are ignored.
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithClip sets the near and far clipping planes. The pair is ignored unless 0 < near < far.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if near > 0 && far > near {
			c.near, c.far = near, far
		}
	}
}

// WithController attaches the controller that positions the camera.
func WithController(ctrl Controller) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}
