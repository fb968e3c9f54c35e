package geom

import "gonum.org/v1/gonum/spatial/r3"

// Align returns the pose that seats the local anchor of a moving component
// against a fixed world-space target anchor. After alignment the moving
// anchor coincides with target.Position and faces -target.Direction.
//
// The rotation pivots on the moving anchor's current world position, so a
// pure direction mismatch does not swing the component around its origin.
// A second translation step then closes whatever positional gap remains.
// Scale is left untouched.
//
// Both directions must be non-zero.
func Align(moving Pose, local Anchor, target Anchor) Pose {
	world := moving.ApplyAnchor(local)

	want := r3.Scale(-1, r3.Unit(target.Direction))
	q := ShortestArc(world.Direction, want)
	rotated := moving.RotateAbout(world.Position, q)

	seated := rotated.Apply(local.Position)
	return rotated.Translate(r3.Sub(target.Position, seated))
}

// Mated reports whether world anchors a and b touch and face each other
// within tol.
func Mated(a, b Anchor, tol float64) bool {
	if !NearVec(a.Position, b.Position, tol) {
		return false
	}
	return NearVec(r3.Unit(a.Direction), r3.Scale(-1, r3.Unit(b.Direction)), tol)
}
