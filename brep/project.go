package brep

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

const (
	// planeQuadScale sizes the rendered plane rectangle relative to the
	// solid's largest bounding-box dimension.
	planeQuadScale = 1.2

	// normalIndicatorFraction sets the normal arrow length relative to
	// the plane rectangle size.
	normalIndicatorFraction = 0.1

	// viewportPadFraction pads the viewport around the silhouette.
	viewportPadFraction = 0.05

	// outlineSimplifyFraction sets the Douglas-Peucker tolerance for
	// projected outlines, as a fraction of the viewport diagonal.
	outlineSimplifyFraction = 0.001
)

// ProjectedShape is the flat view of a solid and its mirror planes:
// face outlines, silhouette and plane footprints in view coordinates.
// It feeds the renderers and the GeoJSON export.
type ProjectedShape struct {
	Faces      []ProjectedFace
	Silhouette orb.Ring
	Planes     []ProjectedPlane
	Bound      orb.Bound // padded viewport around the silhouette
}

// ProjectedFace is one face outline in view coordinates.
type ProjectedFace struct {
	Index         int
	Outline       orb.Polygon // outer ring first, then holes
	Area          float64     // true 3D face area
	ProjectedArea float64     // signed-free area of the projected outer ring
	PlaneIndexes  []int       // planes whose pairs include this face
}

// Paired reports whether any detected plane pairs this face.
func (f ProjectedFace) Paired() bool { return len(f.PlaneIndexes) > 0 }

// ProjectedPlane is the footprint of one mirror plane in view
// coordinates: the plane rectangle, the trace line across the viewport
// and a short normal indicator.
type ProjectedPlane struct {
	Index     int
	Quad      orb.Ring
	Trace     orb.LineString // nil when the plane is face-on to the view
	Normal    orb.LineString
	Coverage  float64
	FaceCount int
}

// ProjectSolid projects the solid's face loops orthographically along
// the view direction, and lays the result's mirror planes over it.
// A nil result projects the bare shape.
func ProjectSolid(solid Solid, result *SymmetryResult, view r3.Vector) (*ProjectedShape, error) {
	if solid == nil {
		return nil, fmt.Errorf("no solid to project")
	}
	faces := solid.Faces()
	if len(faces) == 0 {
		return nil, fmt.Errorf("solid has no faces")
	}
	if view.Norm() < 1e-12 {
		view = r3.Vector{Z: 1}
	}
	view = view.Normalize()
	u, v := viewBasis(view)
	project := func(p r3.Vector) orb.Point {
		return orb.Point{p.Dot(u), p.Dot(v)}
	}

	planeIndexesByFace := make(map[int][]int)
	if result != nil {
		for pi, plane := range result.Planes {
			for _, pair := range plane.Pairs {
				planeIndexesByFace[pair.I] = append(planeIndexesByFace[pair.I], pi)
				planeIndexesByFace[pair.J] = append(planeIndexesByFace[pair.J], pi)
			}
		}
		for _, idxs := range planeIndexesByFace {
			sort.Ints(idxs)
		}
	}

	ps := &ProjectedShape{Faces: make([]ProjectedFace, 0, len(faces))}

	var allPoints []orb.Point
	for fi, face := range faces {
		outline := projectFaceOutline(face, project)
		if len(outline) == 0 {
			continue
		}
		for _, p := range outline[0] {
			allPoints = append(allPoints, p)
		}
		ps.Faces = append(ps.Faces, ProjectedFace{
			Index:         fi,
			Outline:       outline,
			Area:          face.Area(),
			ProjectedArea: math.Abs(planar.Area(outline[0])),
			PlaneIndexes:  dedupInts(planeIndexesByFace[fi]),
		})
	}
	if len(allPoints) < 3 {
		return nil, fmt.Errorf("solid projects to fewer than 3 points")
	}

	hull := convexHull2D(allPoints)
	if len(hull) > 0 {
		hull = append(hull, hull[0])
	}
	ps.Silhouette = orb.Ring(hull)
	ps.Bound = padBound(ps.Silhouette.Bound())

	// Outline simplification keeps dense tessellation imports drawable.
	tol := boundDiagonal(ps.Bound) * outlineSimplifyFraction
	for i := range ps.Faces {
		ps.Faces[i].Outline = simplifyPolygon(ps.Faces[i].Outline, tol)
	}

	if result != nil {
		bbMin, bbMax := solid.BoundingBox()
		center := Midpoint(bbMin, bbMax)
		size := maxDimension(bbMin, bbMax) * planeQuadScale
		for pi, rec := range result.Planes {
			ps.Planes = append(ps.Planes, projectPlane(pi, rec, view, center, size, u, v, ps.Bound))
		}
	}

	return ps, nil
}

// viewBasis returns the right/up unit vectors of an orthographic view
// along dir, following the usual camera convention (+Z up unless the
// view is near-vertical, then +Y up).
func viewBasis(dir r3.Vector) (right, up r3.Vector) {
	ref := r3.Vector{Z: 1}
	if math.Abs(dir.Dot(ref)) > 0.9 {
		ref = r3.Vector{Y: 1}
	}
	right = ref.Cross(dir).Normalize()
	up = dir.Cross(right).Normalize()
	return right, up
}

// projectFaceOutline maps each face loop to a closed ring. Faces that
// expose loops keep their holes; others fall back to their vertex list.
func projectFaceOutline(face Face, project func(r3.Vector) orb.Point) orb.Polygon {
	type looper interface{ Loops() [][]r3.Vector }

	var loops [][]r3.Vector
	if l, ok := face.(looper); ok {
		loops = l.Loops()
	} else {
		loops = [][]r3.Vector{face.Vertices()}
	}

	var poly orb.Polygon
	for li, loop := range loops {
		if len(loop) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(loop)+1)
		for _, p := range loop {
			ring = append(ring, project(p))
		}
		ring = append(ring, ring[0])

		// GeoJSON winding: outer ring counter-clockwise, holes clockwise.
		ccw := li == 0
		if (ring.Orientation() == orb.CCW) != ccw {
			ring.Reverse()
		}
		poly = append(poly, ring)
	}
	return poly
}

// projectPlane builds the footprint of one mirror plane: a quad centered
// on the solid, sized by its bounding box, the viewport trace line and a
// short normal indicator from the quad center.
func projectPlane(index int, rec PlaneRecord, view, center r3.Vector, size float64, u, v r3.Vector, viewport orb.Bound) ProjectedPlane {
	n := rec.Plane.Normal
	project := func(p r3.Vector) orb.Point {
		return orb.Point{p.Dot(u), p.Dot(v)}
	}

	// Re-center the plane point on the solid: any point on the plane is
	// an equivalent representative, the centered one renders best.
	c := center.Sub(n.Mul(SignedPlaneDistance(center, rec.Plane)))

	e1, e2 := PlaneBasis(n)
	half := size / 2
	quad := orb.Ring{
		project(c.Add(e1.Mul(half)).Add(e2.Mul(half))),
		project(c.Add(e1.Mul(half)).Sub(e2.Mul(half))),
		project(c.Sub(e1.Mul(half)).Sub(e2.Mul(half))),
		project(c.Sub(e1.Mul(half)).Add(e2.Mul(half))),
	}
	quad = append(quad, quad[0])

	normalEnd := c.Add(n.Mul(size * normalIndicatorFraction))
	pp := ProjectedPlane{
		Index:     index,
		Quad:      quad,
		Normal:    orb.LineString{project(c), project(normalEnd)},
		Coverage:  rec.Coverage,
		FaceCount: rec.FaceCount,
	}

	// Trace: the intersection line of the mirror plane with the viewing
	// plane through the solid's center, clipped to the viewport. A plane
	// facing the viewer head-on has no trace.
	nPerp := n.Sub(view.Mul(n.Dot(view)))
	if nPerp.Norm() > 1e-6 {
		alpha := n.Dot(rec.Plane.Point.Sub(center)) / n.Dot(nPerp)
		q := center.Add(nPerp.Mul(alpha))
		t := n.Cross(view)
		if seg, ok := clipLineToBound(project(q), orb.Point{t.Dot(u), t.Dot(v)}, viewport); ok {
			pp.Trace = seg
		}
	}
	return pp
}

// clipLineToBound clips the infinite line through p with direction dir
// against a rectangle, returning the overlapping segment.
func clipLineToBound(p, dir orb.Point, b orb.Bound) (orb.LineString, bool) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)
	for axis := 0; axis < 2; axis++ {
		d := dir[axis]
		lo := b.Min[axis] - p[axis]
		hi := b.Max[axis] - p[axis]
		if math.Abs(d) < 1e-15 {
			if lo > 0 || hi < 0 {
				return nil, false
			}
			continue
		}
		t0, t1 := lo/d, hi/d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = math.Max(tMin, t0)
		tMax = math.Min(tMax, t1)
	}
	if tMin >= tMax {
		return nil, false
	}
	return orb.LineString{
		{p[0] + dir[0]*tMin, p[1] + dir[1]*tMin},
		{p[0] + dir[0]*tMax, p[1] + dir[1]*tMax},
	}, true
}

// simplifyPolygon applies Douglas-Peucker to every ring, keeping the
// original whenever simplification would degenerate a ring.
func simplifyPolygon(poly orb.Polygon, tolerance float64) orb.Polygon {
	if tolerance <= 0 {
		return poly
	}
	simplified, ok := simplify.DouglasPeucker(tolerance).Simplify(poly.Clone()).(orb.Polygon)
	if !ok || len(simplified) != len(poly) {
		return poly
	}
	for _, ring := range simplified {
		if len(ring) < 4 {
			return poly
		}
	}
	return simplified
}

// padBound expands a bound by a margin on every side.
func padBound(b orb.Bound) orb.Bound {
	pad := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]) * viewportPadFraction
	if pad <= 0 {
		pad = 1
	}
	return orb.Bound{
		Min: orb.Point{b.Min[0] - pad, b.Min[1] - pad},
		Max: orb.Point{b.Max[0] + pad, b.Max[1] + pad},
	}
}

func boundDiagonal(b orb.Bound) float64 {
	return math.Hypot(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
}

func maxDimension(min, max r3.Vector) float64 {
	d := max.Sub(min)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

func dedupInts(in []int) []int {
	if len(in) < 2 {
		return in
	}
	out := in[:1]
	for _, x := range in[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

// convexHull2D computes the convex hull of 2D points with Andrew's
// monotone chain, returning vertices in counter-clockwise order.
func convexHull2D(points []orb.Point) []orb.Point {
	if len(points) < 3 {
		result := make([]orb.Point, len(points))
		copy(result, points)
		return result
	}

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	n := len(sorted)
	hull := make([]orb.Point, 0, 2*n)

	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}
