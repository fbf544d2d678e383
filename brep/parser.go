package brep

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/geo/r3"
)

// ShapeDocument is the native JSON form of a faceted solid: a shared
// vertex table and per-face loops of vertex indices. Loop 0 of a face is
// the outer boundary, further loops are holes.
type ShapeDocument struct {
	Name     string       `json:"name,omitempty"`
	Units    string       `json:"units,omitempty"`
	Vertices [][3]float64 `json:"vertices"`
	Faces    []ShapeFace  `json:"faces"`
}

// ShapeFace is one face entry of a shape document.
type ShapeFace struct {
	Loops [][]int `json:"loops"`
}

// ParseShapeFile reads and parses a shape JSON file
func ParseShapeFile(path string) (*PolySolid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseShapeJSON(data)
}

// ParseShapeJSON parses shape JSON data into a solid
func ParseShapeJSON(data []byte) (*PolySolid, error) {
	var doc ShapeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return doc.Solid()
}

// Solid builds the polygonal solid described by the document.
func (doc *ShapeDocument) Solid() (*PolySolid, error) {
	if len(doc.Vertices) == 0 {
		return nil, fmt.Errorf("shape %q has no vertices", doc.Name)
	}
	if len(doc.Faces) == 0 {
		return nil, fmt.Errorf("shape %q has no faces", doc.Name)
	}

	vertices := make([]r3.Vector, len(doc.Vertices))
	for i, v := range doc.Vertices {
		vertices[i] = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	}

	loops := make([][][]int, len(doc.Faces))
	for i, f := range doc.Faces {
		if len(f.Loops) == 0 {
			return nil, fmt.Errorf("face %d has no loops", i)
		}
		loops[i] = f.Loops
	}

	solid, err := NewPolySolid(doc.Name, vertices, loops)
	if err != nil {
		return nil, fmt.Errorf("building solid: %w", err)
	}
	return solid, nil
}

// ShapeSummary provides a summary of a solid's contents
type ShapeSummary struct {
	Name        string
	FaceCount   int
	EdgeCount   int
	VertexCount int
	TotalArea   float64
	BBoxMin     r3.Vector
	BBoxMax     r3.Vector
}

// Summarize extracts key information from a solid
func Summarize(s Solid) ShapeSummary {
	var summary ShapeSummary
	if ps, ok := s.(*PolySolid); ok {
		summary.Name = ps.Name()
	}

	for _, f := range s.Faces() {
		summary.FaceCount++
		summary.EdgeCount += len(f.Edges())
		summary.VertexCount += len(f.Vertices())
		summary.TotalArea += f.Area()
	}

	summary.BBoxMin, summary.BBoxMax = s.BoundingBox()
	return summary
}

// String formats the summary for CLI output.
func (s ShapeSummary) String() string {
	name := s.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("Shape: %s\nFaces: %d\nEdges: %d\nVertices: %d\nTotal area: %.4f\nBounds: [%.3f, %.3f, %.3f] .. [%.3f, %.3f, %.3f]",
		name, s.FaceCount, s.EdgeCount, s.VertexCount, s.TotalArea,
		s.BBoxMin.X, s.BBoxMin.Y, s.BBoxMin.Z,
		s.BBoxMax.X, s.BBoxMax.Y, s.BBoxMax.Z)
}
