package brep

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// stlCoplanarDot is the normal-agreement threshold for merging adjacent
// triangles into one planar face (within about 0.08 degrees, loose
// enough to absorb float32 rounding in binary files).
const stlCoplanarDot = 0.999999

// ParseSTLFile reads and parses an STL file, binary or ASCII.
func ParseSTLFile(path string) (*PolySolid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseSTL(data)
}

// ParseSTL parses STL data in either binary or ASCII form. Adjacent
// coplanar triangles are merged into polygonal faces, so a tessellated
// box imports as 6 quads rather than 12 triangles.
func ParseSTL(data []byte) (*PolySolid, error) {
	var (
		name string
		tris []stlTriangle
		w    vertexWelder
		err  error
	)
	if isBinarySTL(data) {
		tris, err = parseBinarySTL(data, &w)
	} else {
		name, tris, err = parseASCIISTL(data, &w)
	}
	if err != nil {
		return nil, err
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("STL contains no usable triangles")
	}

	faceLoops := mergeCoplanarTriangles(tris, w.verts)
	solid, err := NewPolySolid(name, w.verts, faceLoops)
	if err != nil {
		return nil, fmt.Errorf("building solid: %w", err)
	}
	return solid, nil
}

// isBinarySTL decides the variant. The byte-length check is
// authoritative: binary files found in the wild occasionally begin
// with "solid" too.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	if int64(len(data)) == 84+int64(count)*50 {
		return true
	}
	head := bytes.TrimLeft(data, " \t\r\n")
	return !bytes.HasPrefix(head, []byte("solid"))
}

// stlTriangle is one welded facet with its unit normal recomputed from
// the vertex winding. File normals are ignored: they are frequently
// zeroed or inconsistent in the wild.
type stlTriangle struct {
	v      [3]int
	normal r3.Vector
}

func newSTLTriangle(idx [3]int, verts []r3.Vector) (stlTriangle, bool) {
	if idx[0] == idx[1] || idx[1] == idx[2] || idx[0] == idx[2] {
		return stlTriangle{}, false
	}
	a, b, c := verts[idx[0]], verts[idx[1]], verts[idx[2]]
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Norm() < 1e-18 {
		return stlTriangle{}, false
	}
	return stlTriangle{v: idx, normal: n.Normalize()}, true
}

// vertexWelder dedupes exact-coordinate vertices into a shared table.
type vertexWelder struct {
	index map[[3]float64]int
	verts []r3.Vector
}

func (w *vertexWelder) add(v r3.Vector) int {
	if w.index == nil {
		w.index = make(map[[3]float64]int)
	}
	key := [3]float64{v.X, v.Y, v.Z}
	if i, ok := w.index[key]; ok {
		return i
	}
	w.verts = append(w.verts, v)
	w.index[key] = len(w.verts) - 1
	return len(w.verts) - 1
}

func parseBinarySTL(data []byte, w *vertexWelder) ([]stlTriangle, error) {
	count := binary.LittleEndian.Uint32(data[80:84])
	if int64(len(data)) < 84+int64(count)*50 {
		return nil, fmt.Errorf("binary STL truncated: header says %d triangles, have %d bytes", count, len(data))
	}

	tris := make([]stlTriangle, 0, count)
	for i := 0; i < int(count); i++ {
		base := 84 + i*50
		var idx [3]int
		for k := 0; k < 3; k++ {
			off := base + 12 + k*12 // skip the stored normal
			v := r3.Vector{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))),
			}
			idx[k] = w.add(v)
		}
		if t, ok := newSTLTriangle(idx, w.verts); ok {
			tris = append(tris, t)
		}
	}
	return tris, nil
}

func parseASCIISTL(data []byte, w *vertexWelder) (string, []stlTriangle, error) {
	var (
		name string
		tris []stlTriangle
		cur  []int
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if name == "" && len(fields) > 1 {
				name = fields[1]
			}
		case "vertex":
			if len(fields) < 4 {
				return "", nil, fmt.Errorf("line %d: vertex needs 3 coordinates", line)
			}
			var c [3]float64
			for k := 0; k < 3; k++ {
				f, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return "", nil, fmt.Errorf("line %d: parsing coordinate: %w", line, err)
				}
				c[k] = f
			}
			cur = append(cur, w.add(r3.Vector{X: c[0], Y: c[1], Z: c[2]}))
		case "endfacet":
			if len(cur) != 3 {
				return "", nil, fmt.Errorf("line %d: facet has %d vertices, want 3", line, len(cur))
			}
			if t, ok := newSTLTriangle([3]int{cur[0], cur[1], cur[2]}, w.verts); ok {
				tris = append(tris, t)
			}
			cur = cur[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("reading STL: %w", err)
	}
	return name, tris, nil
}

// mergeCoplanarTriangles groups triangles that share an edge and agree
// on their plane normal, then traces each group's boundary. Groups
// whose boundary cannot be chained fall back to their raw triangles.
func mergeCoplanarTriangles(tris []stlTriangle, verts []r3.Vector) [][][]int {
	groups := newDSU(len(tris))

	byEdge := make(map[[2]int][]int)
	for ti, t := range tris {
		for k := 0; k < 3; k++ {
			e := edgeKey(t.v[k], t.v[(k+1)%3])
			byEdge[e] = append(byEdge[e], ti)
		}
	}
	for _, shared := range byEdge {
		for i := 0; i < len(shared); i++ {
			for j := i + 1; j < len(shared); j++ {
				if tris[shared[i]].normal.Dot(tris[shared[j]].normal) > stlCoplanarDot {
					groups.union(shared[i], shared[j])
				}
			}
		}
	}

	// Collect groups in first-seen triangle order so that the face
	// list of an import is reproducible.
	members := make(map[int][]int)
	var order []int
	for ti := range tris {
		root := groups.find(ti)
		if _, ok := members[root]; !ok {
			order = append(order, root)
		}
		members[root] = append(members[root], ti)
	}

	var faces [][][]int
	for _, root := range order {
		group := members[root]
		loops, ok := boundaryLoops(tris, group, verts)
		if !ok {
			for _, ti := range group {
				t := tris[ti]
				faces = append(faces, [][]int{{t.v[0], t.v[1], t.v[2]}})
			}
			continue
		}
		faces = append(faces, loops)
	}
	return faces
}

// boundaryLoops chains the unpaired half-edges of a triangle group into
// closed loops, largest enclosed area first. Interior edges appear in
// both directions and cancel out.
func boundaryLoops(tris []stlTriangle, group []int, verts []r3.Vector) ([][]int, bool) {
	directed := make(map[[2]int]bool)
	for _, ti := range group {
		t := tris[ti]
		for k := 0; k < 3; k++ {
			directed[[2]int{t.v[k], t.v[(k+1)%3]}] = true
		}
	}

	// Boundary half-edges, kept in triangle order for determinism.
	next := make(map[int][]int)
	var starts []int
	remaining := 0
	for _, ti := range group {
		t := tris[ti]
		for k := 0; k < 3; k++ {
			a, b := t.v[k], t.v[(k+1)%3]
			if directed[[2]int{b, a}] {
				continue
			}
			next[a] = append(next[a], b)
			starts = append(starts, a)
			remaining++
		}
	}
	if remaining < 3 {
		return nil, false
	}

	var loops [][]int
	used := 0
	for _, start := range starts {
		if len(next[start]) == 0 {
			continue
		}
		var loop []int
		at := start
		for {
			outs := next[at]
			if len(outs) == 0 {
				return nil, false
			}
			next[at] = outs[1:]
			loop = append(loop, at)
			used++
			at = outs[0]
			if at == start {
				break
			}
			if len(loop) > remaining {
				return nil, false
			}
		}
		loop = dropCollinear(loop, verts)
		if len(loop) < 3 {
			return nil, false
		}
		loops = append(loops, loop)
	}
	if used != remaining {
		return nil, false
	}

	sort.SliceStable(loops, func(i, j int) bool {
		return loopArea(loops[i], verts) > loopArea(loops[j], verts)
	})
	return loops, true
}

// loopArea returns the enclosed area of an index loop.
func loopArea(loop []int, verts []r3.Vector) float64 {
	pts := make([]r3.Vector, len(loop))
	for i, idx := range loop {
		pts[i] = verts[idx]
	}
	return newellNormal(pts).Norm() / 2
}

// dropCollinear removes boundary vertices that sit on a straight run
// between their neighbours, left behind by gridded tessellations.
func dropCollinear(loop []int, verts []r3.Vector) []int {
	n := len(loop)
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		prev := verts[loop[(i-1+n)%n]]
		cur := verts[loop[i]]
		nxt := verts[loop[(i+1)%n]]
		a := cur.Sub(prev)
		b := nxt.Sub(cur)
		if a.Cross(b).Norm() > 1e-6*a.Norm()*b.Norm() {
			out = append(out, loop[i])
		}
	}
	return out
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// dsu is a union-find over triangle indices.
type dsu []int

func newDSU(n int) dsu {
	d := make(dsu, n)
	for i := range d {
		d[i] = i
	}
	return d
}

func (d dsu) find(x int) int {
	for d[x] != x {
		d[x] = d[d[x]]
		x = d[x]
	}
	return x
}

func (d dsu) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra != rb {
		d[rb] = ra
	}
}
