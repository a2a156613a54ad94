package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

type OrbitControllerOption func(*orbitControllerImpl)

// WithRadius sets the initial orbit radius (distance from target).
//
// Parameters:
//   - radius: initial distance from target
//
// Returns:
//   - OrbitControllerOption: a function that sets the orbit radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal orbit angle.
//
// Parameters:
//   - azimuth: initial horizontal angle in radians
//
// Returns:
//   - OrbitControllerOption: a function that sets the azimuth
func WithAzimuth(azimuth float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical orbit angle.
//
// Parameters:
//   - elevation: initial vertical angle in radians
//
// Returns:
//   - OrbitControllerOption: a function that sets the elevation
func WithElevation(elevation float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.elevation = elevation
	}
}

// WithTarget sets the initial pivot point.
//
// Parameters:
//   - target: world-space pivot
//
// Returns:
//   - OrbitControllerOption: a function that sets the target
func WithTarget(target mgl32.Vec3) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.target = target
	}
}

// WithRadiusBounds sets the min and max zoom distances.
//
// Parameters:
//   - min: minimum orbit radius
//   - max: maximum orbit radius
//
// Returns:
//   - OrbitControllerOption: a function that sets the radius bounds
func WithRadiusBounds(min, max float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.minRadius = min
		oc.maxRadius = max
	}
}

// WithElevationBounds sets the min and max elevation angles.
//
// Parameters:
//   - min: minimum elevation in radians
//   - max: maximum elevation in radians
//
// Returns:
//   - OrbitControllerOption: a function that sets the elevation bounds
func WithElevationBounds(min, max float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.minElevation = min
		oc.maxElevation = max
	}
}

// WithOrbitSpeed sets the per-step orbit rotation in radians.
func WithOrbitSpeed(speed float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.orbitSpeed = speed
	}
}

// WithZoomSpeed sets the zoom multiplier applied to Zoom deltas.
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(oc *orbitControllerImpl) {
		oc.zoomSpeed = speed
	}
}
