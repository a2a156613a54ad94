package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BoundingVolume is an axis-aligned box used for spatial tests only.
type BoundingVolume struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewBoundingVolume builds a box of the given footprint centered on position.
// Negative footprint components are treated as their absolute value.
//
// Parameters:
//   - position: the box center
//   - footprint: the full box size along each axis
//
// Returns:
//   - BoundingVolume: the derived box
func NewBoundingVolume(position, footprint mgl32.Vec3) BoundingVolume {
	var half mgl32.Vec3
	for i := range 3 {
		h := footprint[i] * 0.5
		if h < 0 {
			h = -h
		}
		half[i] = h
	}
	return BoundingVolume{
		Min: position.Sub(half),
		Max: position.Add(half),
	}
}

// Center returns the midpoint of the box.
func (b BoundingVolume) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extents returns the half-size of the box along each axis.
func (b BoundingVolume) Extents() mgl32.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// ClosestPoint clamps p onto the box.
//
// Parameters:
//   - p: the query point
//
// Returns:
//   - mgl32.Vec3: the closest point on or inside the box
func (b BoundingVolume) ClosestPoint(p mgl32.Vec3) mgl32.Vec3 {
	var c mgl32.Vec3
	for i := range 3 {
		v := p[i]
		if v < b.Min[i] {
			v = b.Min[i]
		}
		if v > b.Max[i] {
			v = b.Max[i]
		}
		c[i] = v
	}
	return c
}

// DistanceTo returns the distance from p to the closest point of the box, 0 when p is inside.
//
// Parameters:
//   - p: the query point
//
// Returns:
//   - float32: the distance
func (b BoundingVolume) DistanceTo(p mgl32.Vec3) float32 {
	return b.ClosestPoint(p).Sub(p).Len()
}
