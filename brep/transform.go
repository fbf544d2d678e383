package brep

import (
	"math"

	"github.com/golang/geo/r3"
)

// Reflection is the Householder reflection about a plane given by a point
// and a unit normal: reflect(p) = p - 2n(n . (p - point)). It is an affine
// isometry whose linear part is I - 2nn^T.
type Reflection struct {
	Point  r3.Vector
	Normal r3.Vector
}

// NewReflection builds a reflection about the plane through point with the
// given normal. The normal is normalized here; a degenerate (near-zero)
// normal yields a reflection that maps every point to itself.
func NewReflection(point, normal r3.Vector) Reflection {
	if normal.Norm() < 1e-12 {
		return Reflection{Point: point}
	}
	return Reflection{Point: point, Normal: normal.Normalize()}
}

// Reflection returns the reflection transform across the plane.
func (mp MirrorPlane) Reflection() Reflection {
	return NewReflection(mp.Point, mp.Normal)
}

// Apply maps a point to its mirror image across the plane.
func (r Reflection) Apply(p r3.Vector) r3.Vector {
	d := r.Normal.Dot(p.Sub(r.Point))
	return p.Sub(r.Normal.Mul(2 * d))
}

// ApplyAll maps a slice of points, returning a new slice.
func (r Reflection) ApplyAll(points []r3.Vector) []r3.Vector {
	result := make([]r3.Vector, len(points))
	for i, p := range points {
		result[i] = r.Apply(p)
	}
	return result
}

// Linear returns the orthogonal linear part I - 2nn^T as a row-major matrix.
func (r Reflection) Linear() [3][3]float64 {
	n := r.Normal
	return [3][3]float64{
		{1 - 2*n.X*n.X, -2 * n.X * n.Y, -2 * n.X * n.Z},
		{-2 * n.Y * n.X, 1 - 2*n.Y*n.Y, -2 * n.Y * n.Z},
		{-2 * n.Z * n.X, -2 * n.Z * n.Y, 1 - 2*n.Z*n.Z},
	}
}

// MirrorHypothesis constructs the unique reflection plane that swaps two
// face centers: the plane through their midpoint, normal to the line
// between them. Returns ok=false for a degenerate pair whose centers are
// closer than tol; such pairs produce no hypothesis and are skipped.
func MirrorHypothesis(centerA, centerB r3.Vector, tol float64) (MirrorPlane, bool) {
	diff := centerB.Sub(centerA)
	dist := diff.Norm()
	if dist < tol {
		return MirrorPlane{}, false
	}
	return MirrorPlane{
		Point:  Midpoint(centerA, centerB),
		Normal: diff.Mul(1 / dist),
	}, true
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r3.Vector) r3.Vector {
	return a.Add(b).Mul(0.5)
}

// PlaneBasis returns two orthonormal vectors spanning the plane with the
// given normal. Together with the normal they form a right-handed frame.
// The choice is deterministic so plane quads render with stable corners.
func PlaneBasis(normal r3.Vector) (u, v r3.Vector) {
	n := normal.Normalize()
	if math.Abs(n.X) > 0.1 || math.Abs(n.Y) > 0.1 {
		u = r3.Vector{X: -n.Y, Y: n.X}.Normalize()
	} else {
		u = r3.Vector{Y: -n.Z, Z: n.Y}.Normalize()
	}
	v = n.Cross(u).Normalize()
	return u, v
}

// SignedPlaneDistance returns the signed distance from p to the plane,
// positive on the side the normal points toward.
func SignedPlaneDistance(p r3.Vector, plane MirrorPlane) float64 {
	return plane.Normal.Dot(p.Sub(plane.Point))
}
