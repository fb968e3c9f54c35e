// Package geom holds the rigid-body math used to place components:
// poses, port anchors, shortest-arc rotations and the port alignment
// procedure. Vectors and quaternions come from gonum.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the tolerance used when comparing positions and directions.
const Epsilon = 1e-9

// Anchor is a positioned, directed connection point. Depending on context
// it is expressed in a component's local frame or in world space.
type Anchor struct {
	Position  r3.Vec `json:"position"`
	Direction r3.Vec `json:"direction"` // unit outward normal
}

// Pose is the world placement of a component: scale, then rotation, then
// translation.
type Pose struct {
	Position r3.Vec      `json:"position"`
	Rotation quat.Number `json:"rotation"`
	Scale    r3.Vec      `json:"scale"`
}

// Identity returns the pose at the origin with no rotation and unit scale.
func Identity() Pose {
	return Pose{
		Rotation: quat.Number{Real: 1},
		Scale:    r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// At returns an identity pose translated to p.
func At(p r3.Vec) Pose {
	pose := Identity()
	pose.Position = p
	return pose
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// Apply maps a local point into world space.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	scaled := r3.Vec{X: v.X * p.Scale.X, Y: v.Y * p.Scale.Y, Z: v.Z * p.Scale.Z}
	return r3.Add(p.Position, Rotate(p.Rotation, scaled))
}

// ApplyDir maps a local direction into world space. Only the rotation is
// applied and the result is normalized.
func (p Pose) ApplyDir(d r3.Vec) r3.Vec {
	return r3.Unit(Rotate(p.Rotation, d))
}

// ApplyAnchor maps a local anchor into world space.
func (p Pose) ApplyAnchor(a Anchor) Anchor {
	return Anchor{Position: p.Apply(a.Position), Direction: p.ApplyDir(a.Direction)}
}

// Translate returns the pose moved by d.
func (p Pose) Translate(d r3.Vec) Pose {
	p.Position = r3.Add(p.Position, d)
	return p
}

// RotateAbout returns the pose rotated by q around the world-space pivot.
// The pivot point stays fixed.
func (p Pose) RotateAbout(pivot r3.Vec, q quat.Number) Pose {
	rel := r3.Sub(p.Position, pivot)
	p.Position = r3.Add(pivot, Rotate(q, rel))
	p.Rotation = normalize(quat.Mul(q, p.Rotation))
	return p
}

// AxisAngle decomposes the rotation into a unit axis and an angle in
// radians. The identity rotation reports the Z axis and zero.
func (p Pose) AxisAngle() (r3.Vec, float64) {
	q := normalize(p.Rotation)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	s := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if s < Epsilon {
		return r3.Vec{Z: 1}, 0
	}
	angle := 2 * math.Atan2(s, q.Real)
	return r3.Vec{X: q.Imag / s, Y: q.Jmag / s, Z: q.Kmag / s}, angle
}

// IsIdentity reports whether the pose leaves points unchanged.
func (p Pose) IsIdentity() bool {
	return NearVec(p.Position, r3.Vec{}, Epsilon) &&
		NearVec(p.Scale, r3.Vec{X: 1, Y: 1, Z: 1}, Epsilon) &&
		math.Abs(math.Abs(normalize(p.Rotation).Real)-1) < Epsilon
}

// FromAxisAngle builds a unit quaternion for a rotation of angle radians
// around axis.
func FromAxisAngle(axis r3.Vec, angle float64) quat.Number {
	return quat.Number(r3.NewRotation(angle, r3.Unit(axis)))
}

// ShortestArc returns the minimal-angle rotation taking direction from onto
// direction to. When the two are anti-parallel any perpendicular axis is a
// valid answer; the choice here is deterministic and depends only on from.
func ShortestArc(from, to r3.Vec) quat.Number {
	f := r3.Unit(from)
	t := r3.Unit(to)
	r := r3.Dot(f, t) + 1
	if r < Epsilon {
		var axis r3.Vec
		if math.Abs(f.X) > math.Abs(f.Z) {
			axis = r3.Vec{X: -f.Y, Y: f.X}
		} else {
			axis = r3.Vec{Y: -f.Z, Z: f.Y}
		}
		axis = r3.Unit(axis)
		return quat.Number{Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
	}
	c := r3.Cross(f, t)
	return normalize(quat.Number{Real: r, Imag: c.X, Jmag: c.Y, Kmag: c.Z})
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// NearVec reports whether a and b are within tol of each other.
func NearVec(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}
