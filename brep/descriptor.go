package brep

import "github.com/golang/geo/r3"

// EdgeSamples is the per-edge sampling density of the coincidence test.
// Each edge contributes EdgeSamples-1 interior probe points at fractions
// k/EdgeSamples of its parameter range.
const EdgeSamples = 5

// FaceDescriptor caches the scalar invariants of one face. The pairwise
// scan compares descriptors first and only runs the expensive coincidence
// test on pairs that survive the cheap filters.
type FaceDescriptor struct {
	Index     int
	Area      float64
	Perimeter float64
	Center    r3.Vector
	BBoxDiag  float64
}

// ComputeDescriptors extracts a descriptor per face, in face order.
func ComputeDescriptors(faces []Face) []FaceDescriptor {
	descriptors := make([]FaceDescriptor, len(faces))
	for i, f := range faces {
		descriptors[i] = FaceDescriptor{
			Index:     i,
			Area:      f.Area(),
			Perimeter: f.Perimeter(),
			Center:    f.CenterOfMass(),
			BBoxDiag:  f.BoundingBoxDiagonal(),
		}
	}
	return descriptors
}

// SampleBoundaryPoints collects the probe points for the coincidence
// test: every face vertex plus interior points along each edge. A sample
// that fails to evaluate is dropped rather than failing the whole face.
func SampleBoundaryPoints(f Face) []r3.Vector {
	points := append([]r3.Vector(nil), f.Vertices()...)
	for _, e := range f.Edges() {
		t0, t1 := e.ParameterRange()
		for k := 1; k < EdgeSamples; k++ {
			t := t0 + (t1-t0)*float64(k)/EdgeSamples
			p, err := e.PointAt(t)
			if err != nil {
				continue
			}
			points = append(points, p)
		}
	}
	return points
}
