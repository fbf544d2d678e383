package brep

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Compile-time interface checks for the polygonal backend.
var (
	_ Solid = (*PolySolid)(nil)
	_ Face  = (*PolyFace)(nil)
	_ Edge  = (*PolyEdge)(nil)
)

// PolySolid is a faceted solid: planar polygonal faces over explicit
// vertex coordinates. It is the concrete backend behind the Solid
// interface for imported STL and shape-JSON models.
type PolySolid struct {
	name  string
	faces []Face
	bbMin r3.Vector
	bbMax r3.Vector
}

// NewPolySolid builds a solid from a vertex table and per-face loops of
// vertex indices. Loop 0 of each face is the outer boundary; further
// loops are holes. Faces with fewer than 3 vertices or out-of-range
// indices are rejected.
func NewPolySolid(name string, vertices []r3.Vector, faceLoops [][][]int) (*PolySolid, error) {
	if len(faceLoops) == 0 {
		return nil, fmt.Errorf("solid %q has no faces", name)
	}

	s := &PolySolid{
		name:  name,
		faces: make([]Face, 0, len(faceLoops)),
		bbMin: r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		bbMax: r3.Vector{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}

	for fi, loops := range faceLoops {
		resolved := make([][]r3.Vector, len(loops))
		for li, loop := range loops {
			pts := make([]r3.Vector, len(loop))
			for k, idx := range loop {
				if idx < 0 || idx >= len(vertices) {
					return nil, fmt.Errorf("face %d loop %d: vertex index %d out of range (have %d vertices)", fi, li, idx, len(vertices))
				}
				pts[k] = vertices[idx]
			}
			resolved[li] = pts
		}

		face, err := NewPolyFace(resolved)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", fi, err)
		}
		s.faces = append(s.faces, face)
		s.bbMin = vecMin(s.bbMin, face.bbMin)
		s.bbMax = vecMax(s.bbMax, face.bbMax)
	}

	return s, nil
}

// NewPolySolidFromFaces assembles a solid from prebuilt faces. Bounds are
// accumulated from the face vertices.
func NewPolySolidFromFaces(name string, faces []Face) (*PolySolid, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("solid %q has no faces", name)
	}
	s := &PolySolid{
		name:  name,
		faces: faces,
		bbMin: r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		bbMax: r3.Vector{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
	for _, f := range faces {
		for _, p := range f.Vertices() {
			s.bbMin = vecMin(s.bbMin, p)
			s.bbMax = vecMax(s.bbMax, p)
		}
	}
	return s, nil
}

// Name returns the solid's name from the import source.
func (s *PolySolid) Name() string { return s.name }

// Faces returns the face list in stable import order.
func (s *PolySolid) Faces() []Face { return s.faces }

// BoundingBox returns the axis-aligned bounds over all faces.
func (s *PolySolid) BoundingBox() (min, max r3.Vector) {
	return s.bbMin, s.bbMax
}

// PolyFace is a planar polygon with one outer loop and optional hole
// loops. All derived quantities are computed once at construction.
type PolyFace struct {
	loops  [][]r3.Vector
	normal r3.Vector // unit face normal (Newell, outer loop)
	origin r3.Vector // reference point on the face plane
	basisU r3.Vector
	basisV r3.Vector

	area  float64
	perim float64
	com   r3.Vector
	bbMin r3.Vector
	bbMax r3.Vector
	edges []Edge
	verts []r3.Vector
}

// NewPolyFace builds a face from resolved loop coordinates. The loops must
// be closed implicitly (last vertex connects back to the first).
func NewPolyFace(loops [][]r3.Vector) (*PolyFace, error) {
	if len(loops) == 0 || len(loops[0]) < 3 {
		return nil, fmt.Errorf("face needs an outer loop with at least 3 vertices")
	}
	for li, loop := range loops {
		if len(loop) < 3 {
			return nil, fmt.Errorf("loop %d has %d vertices, need at least 3", li, len(loop))
		}
	}

	normal := newellNormal(loops[0])
	if normal.Norm() < 1e-12 {
		return nil, fmt.Errorf("degenerate face: outer loop has no usable normal")
	}
	normal = normal.Normalize()

	f := &PolyFace{
		loops:  loops,
		normal: normal,
		origin: loops[0][0],
		bbMin:  r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		bbMax:  r3.Vector{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
	f.basisU, f.basisV = PlaneBasis(normal)

	// Area and centroid via the shoelace formula in plane coordinates.
	// The outer loop contributes positively, holes subtract.
	var totalArea float64
	var comX, comY float64
	for li, loop := range loops {
		a, cx, cy := loopAreaCentroid2D(f.project2D(loop))
		a = math.Abs(a)
		if li > 0 {
			a = -a
		}
		totalArea += a
		comX += cx * a
		comY += cy * a
	}
	if totalArea <= 0 {
		return nil, fmt.Errorf("degenerate face: non-positive area")
	}
	f.area = totalArea
	f.com = f.lift2D(comX/totalArea, comY/totalArea)

	for _, loop := range loops {
		n := len(loop)
		for k, p := range loop {
			f.verts = append(f.verts, p)
			f.bbMin = vecMin(f.bbMin, p)
			f.bbMax = vecMax(f.bbMax, p)

			edge := &PolyEdge{A: p, B: loop[(k+1)%n]}
			f.perim += edge.Length()
			f.edges = append(f.edges, edge)
		}
	}

	return f, nil
}

// Area returns the face area (outer loop minus holes).
func (f *PolyFace) Area() float64 { return f.area }

// Perimeter returns the total boundary length including hole loops.
func (f *PolyFace) Perimeter() float64 { return f.perim }

// CenterOfMass returns the area centroid of the face.
func (f *PolyFace) CenterOfMass() r3.Vector { return f.com }

// Vertices returns the boundary vertices of all loops.
func (f *PolyFace) Vertices() []r3.Vector { return f.verts }

// Edges returns the boundary segments of all loops.
func (f *PolyFace) Edges() []Edge { return f.edges }

// BoundingBoxDiagonal returns the diagonal length of the face bounds.
func (f *PolyFace) BoundingBoxDiagonal() float64 {
	return f.bbMax.Sub(f.bbMin).Norm()
}

// Normal returns the unit face normal.
func (f *PolyFace) Normal() r3.Vector { return f.normal }

// Loops returns the face boundary loops, outer loop first.
func (f *PolyFace) Loops() [][]r3.Vector { return f.loops }

// Transformed returns a reflected copy of the face. Loop order is reversed
// so the winding stays consistent after the orientation-flipping isometry.
func (f *PolyFace) Transformed(r Reflection) Face {
	loops := make([][]r3.Vector, len(f.loops))
	for li, loop := range f.loops {
		reflected := make([]r3.Vector, len(loop))
		for k, p := range loop {
			reflected[len(loop)-1-k] = r.Apply(p)
		}
		loops[li] = reflected
	}

	// Reflection preserves loop validity, so reconstruction cannot fail.
	nf, err := NewPolyFace(loops)
	if err != nil {
		return f
	}
	return nf
}

// DistanceTo returns the minimum distance from p to the face: the plane
// distance when the projection of p falls inside the polygon, otherwise
// the distance to the nearest boundary segment.
func (f *PolyFace) DistanceTo(p r3.Vector) (float64, error) {
	if f.normal.Norm() < 1e-12 {
		return 0, fmt.Errorf("degenerate face: no plane normal")
	}

	d := f.normal.Dot(p.Sub(f.origin))
	foot := p.Sub(f.normal.Mul(d))
	fx, fy := f.planeCoords(foot)

	inside := false
	for _, loop := range f.loops {
		if pointInLoop2D(fx, fy, f.project2D(loop)) {
			inside = !inside
		}
	}
	if inside {
		return math.Abs(d), nil
	}

	best := math.MaxFloat64
	for _, loop := range f.loops {
		n := len(loop)
		for k := range loop {
			if ds := pointSegmentDistance(p, loop[k], loop[(k+1)%n]); ds < best {
				best = ds
			}
		}
	}
	return best, nil
}

// PolyEdge is a straight boundary segment parametrized over [0, 1].
type PolyEdge struct {
	A r3.Vector
	B r3.Vector
}

// Length returns the segment length.
func (e *PolyEdge) Length() float64 { return e.B.Sub(e.A).Norm() }

// ParameterRange returns the parameter interval of the segment.
func (e *PolyEdge) ParameterRange() (t0, t1 float64) { return 0, 1 }

// PointAt evaluates the segment at parameter t. Degenerate segments and
// parameters outside the range fail; callers drop such samples.
func (e *PolyEdge) PointAt(t float64) (r3.Vector, error) {
	if t < 0 || t > 1 {
		return r3.Vector{}, fmt.Errorf("parameter %g outside [0,1]", t)
	}
	if e.Length() < 1e-12 {
		return r3.Vector{}, fmt.Errorf("degenerate edge")
	}
	return e.A.Add(e.B.Sub(e.A).Mul(t)), nil
}

// newellNormal computes the loop normal by Newell's method. The result is
// not normalized; its magnitude is twice the enclosed area.
func newellNormal(loop []r3.Vector) r3.Vector {
	var n r3.Vector
	for i, cur := range loop {
		next := loop[(i+1)%len(loop)]
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
	}
	return n
}

// planeCoords maps a 3D point already on (or near) the face plane to the
// face's 2D basis coordinates.
func (f *PolyFace) planeCoords(p r3.Vector) (x, y float64) {
	rel := p.Sub(f.origin)
	return rel.Dot(f.basisU), rel.Dot(f.basisV)
}

// lift2D maps plane coordinates back to a 3D point on the face plane.
func (f *PolyFace) lift2D(x, y float64) r3.Vector {
	return f.origin.Add(f.basisU.Mul(x)).Add(f.basisV.Mul(y))
}

// project2D resolves a loop into the face's plane coordinates.
func (f *PolyFace) project2D(loop []r3.Vector) [][2]float64 {
	out := make([][2]float64, len(loop))
	for i, p := range loop {
		x, y := f.planeCoords(p)
		out[i] = [2]float64{x, y}
	}
	return out
}

// loopAreaCentroid2D returns the signed shoelace area and centroid of a
// closed 2D loop.
func loopAreaCentroid2D(loop [][2]float64) (area, cx, cy float64) {
	n := len(loop)
	for i := 0; i < n; i++ {
		x0, y0 := loop[i][0], loop[i][1]
		x1, y1 := loop[(i+1)%n][0], loop[(i+1)%n][1]
		cross := x0*y1 - x1*y0
		area += cross
		cx += (x0 + x1) * cross
		cy += (y0 + y1) * cross
	}
	area /= 2
	if math.Abs(area) < 1e-15 {
		return 0, 0, 0
	}
	cx /= 6 * area
	cy /= 6 * area
	return area, cx, cy
}

// pointInLoop2D tests point containment by ray crossing (even-odd rule).
func pointInLoop2D(px, py float64, loop [][2]float64) bool {
	inside := false
	n := len(loop)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := loop[i][0], loop[i][1]
		xj, yj := loop[j][0], loop[j][1]
		if (yi > py) != (yj > py) &&
			px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// pointSegmentDistance returns the distance from p to segment ab in 3D.
func pointSegmentDistance(p, a, b r3.Vector) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq < 1e-24 {
		return p.Sub(a).Norm()
	}
	t := p.Sub(a).Dot(ab) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.Sub(a.Add(ab.Mul(t))).Norm()
}

func vecMin(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vecMax(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
