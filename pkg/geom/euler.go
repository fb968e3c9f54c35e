package geom

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultOrder is the rotation order used when none is given.
const DefaultOrder = "XYZ"

// EulerToQuat converts Euler angles in degrees into a quaternion. The order
// token names the axes in the order the rotations are applied to the body,
// matching the usual intrinsic convention (XYZ: rotate about X, then the new
// Y, then the new Z). Valid tokens are the six permutations of XYZ.
func EulerToQuat(deg r3.Vec, order string) (quat.Number, error) {
	if order == "" {
		order = DefaultOrder
	}
	order = strings.ToUpper(order)
	if !validOrder(order) {
		return quat.Number{}, fmt.Errorf("invalid rotation order %q", order)
	}

	axes := map[byte]quat.Number{
		'X': FromAxisAngle(r3.Vec{X: 1}, deg.X*math.Pi/180),
		'Y': FromAxisAngle(r3.Vec{Y: 1}, deg.Y*math.Pi/180),
		'Z': FromAxisAngle(r3.Vec{Z: 1}, deg.Z*math.Pi/180),
	}

	q := quat.Number{Real: 1}
	for i := 0; i < len(order); i++ {
		q = quat.Mul(q, axes[order[i]])
	}
	return normalize(q), nil
}

func validOrder(order string) bool {
	if len(order) != 3 {
		return false
	}
	seen := map[rune]bool{}
	for _, c := range order {
		if c != 'X' && c != 'Y' && c != 'Z' {
			return false
		}
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}
