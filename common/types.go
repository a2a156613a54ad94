// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PriorityTier ranks renderables by how long they should be retained under memory pressure.
// Lower values are higher priority, so sorting ascending puts critical content first.
type PriorityTier int

const (
	// PriorityCritical content is loaded first and unloaded last.
	PriorityCritical PriorityTier = iota
	// PriorityImportant content sits between critical and decorative.
	PriorityImportant
	// PriorityDecorative content is the first to be dropped when a budget is exceeded.
	PriorityDecorative
)

// PriorityTiers lists every priority tier from highest to lowest priority.
var PriorityTiers = [...]PriorityTier{PriorityCritical, PriorityImportant, PriorityDecorative}

func (p PriorityTier) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityImportant:
		return "important"
	case PriorityDecorative:
		return "decorative"
	}
	return "unknown"
}

// Valid reports whether p is one of the declared priority tiers.
func (p PriorityTier) Valid() bool {
	return p >= PriorityCritical && p <= PriorityDecorative
}

// QualityTier is a named rendering quality level bundling a fixed set of rendering knobs.
type QualityTier int

const (
	QualityLow QualityTier = iota
	QualityMedium
	QualityHigh
)

// QualityTiers lists every quality tier from lowest to highest.
var QualityTiers = [...]QualityTier{QualityLow, QualityMedium, QualityHigh}

func (q QualityTier) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	}
	return "unknown"
}

// Valid reports whether q is one of the declared quality tiers.
func (q QualityTier) Valid() bool {
	return q >= QualityLow && q <= QualityHigh
}

// Up returns the next higher quality tier, saturating at QualityHigh.
func (q QualityTier) Up() QualityTier {
	if q >= QualityHigh {
		return QualityHigh
	}
	return q + 1
}

// Down returns the next lower quality tier, saturating at QualityLow.
func (q QualityTier) Down() QualityTier {
	if q <= QualityLow {
		return QualityLow
	}
	return q - 1
}

// ParseQualityTier maps a tier name ("low", "medium", "high") to its QualityTier.
//
// Parameters:
//   - s: the tier name
//
// Returns:
//   - QualityTier: the parsed tier (QualityMedium when unrecognized)
//   - bool: true if s named a known tier
func ParseQualityTier(s string) (QualityTier, bool) {
	for _, q := range QualityTiers {
		if q.String() == s {
			return q, true
		}
	}
	return QualityMedium, false
}

// Transform holds the position, Euler rotation, and scale of a renderable.
type Transform struct {
	// Position is the world-space translation.
	Position mgl32.Vec3
	// Rotation holds Euler angles in radians, applied in Y * X * Z order.
	Rotation mgl32.Vec3
	// Scale is the per-axis scale factor.
	Scale mgl32.Vec3
}

// NewTransform returns a Transform at the given position with no rotation and unit scale.
//
// Parameters:
//   - position: world-space translation
//
// Returns:
//   - Transform: the new transform
func NewTransform(position mgl32.Vec3) Transform {
	return Transform{
		Position: position,
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Matrix composes the transform into a single column-major model matrix (T * R * S).
// The rotation order is Y * X * Z (yaw-pitch-roll).
//
// Returns:
//   - mgl32.Mat4: the composed model matrix
func (t Transform) Matrix() mgl32.Mat4 {
	r := mgl32.HomogRotate3DY(t.Rotation[1]).
		Mul4(mgl32.HomogRotate3DX(t.Rotation[0])).
		Mul4(mgl32.HomogRotate3DZ(t.Rotation[2]))
	return mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(r).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// DegenerateMatrix returns a zero-scale matrix positioned at the transform's translation.
// Instances drawn with it collapse to a point and produce no fragments.
//
// Returns:
//   - mgl32.Mat4: the degenerate model matrix
func (t Transform) DegenerateMatrix() mgl32.Mat4 {
	m := mgl32.Mat4{}
	m[12], m[13], m[14], m[15] = t.Position[0], t.Position[1], t.Position[2], 1
	return m
}
