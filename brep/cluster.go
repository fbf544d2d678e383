package brep

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// normalGroup is a cluster under construction. The sum accumulates
// sign-aligned member normals so the running mean stays meaningful even
// when members arrive with antiparallel orientations.
type normalGroup struct {
	pairs []FacePair
	sum   r3.Vector
}

// ClusterPairs groups face pairs whose reflection planes share an
// orientation. Each incoming pair is compared against the running mean
// normal of every existing group and joins the first one whose |dot|
// clears cfg.NormalAlignment, else it starts a new group. Comparing
// against the mean rather than the group's first member keeps a drifting
// chain of pairwise-similar normals from collapsing into one group.
// Groups are returned in formation order.
func ClusterPairs(pairs []FacePair, totalFaces int, cfg DetectorConfig) []PlaneGroup {
	var groups []*normalGroup

	for _, pair := range pairs {
		placed := false
		for _, g := range groups {
			mean := g.sum.Normalize()
			d := pair.Normal.Dot(mean)
			if math.Abs(d) > cfg.NormalAlignment {
				aligned := pair.Normal
				if d < 0 {
					aligned = aligned.Mul(-1)
				}
				g.sum = g.sum.Add(aligned)
				g.pairs = append(g.pairs, pair)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &normalGroup{
				pairs: []FacePair{pair},
				sum:   pair.Normal,
			})
		}
	}

	result := make([]PlaneGroup, len(groups))
	for i, g := range groups {
		result[i] = g.finish(totalFaces)
	}
	return result
}

// finish derives the group's representative plane and coverage. The plane
// point is the arithmetic mean of the member midpoints; the normal is the
// dominant axis of the member normals, oriented to agree with the running
// mean.
func (g *normalGroup) finish(totalFaces int) PlaneGroup {
	normal := dominantDirection(g.pairs)
	if normal.Dot(g.sum) < 0 {
		normal = normal.Mul(-1)
	}

	var point r3.Vector
	for _, p := range g.pairs {
		point = point.Add(p.Midpoint)
	}
	point = point.Mul(1 / float64(len(g.pairs)))

	unique := make(map[int]struct{}, len(g.pairs)*2)
	for _, p := range g.pairs {
		unique[p.I] = struct{}{}
		unique[p.J] = struct{}{}
	}

	coverage := 0.0
	if totalFaces > 0 {
		coverage = float64(len(unique)) / float64(totalFaces)
	}

	return PlaneGroup{
		Pairs:     g.pairs,
		Plane:     MirrorPlane{Point: point, Normal: normal},
		Coverage:  coverage,
		FaceCount: len(unique),
	}
}

// dominantDirection returns the unit eigenvector with the largest
// eigenvalue of the orientation tensor sum over n_i n_i^T. Unlike a raw
// average, antiparallel members reinforce the axis instead of canceling.
func dominantDirection(pairs []FacePair) r3.Vector {
	tensor := mat.NewSymDense(3, nil)
	for _, p := range pairs {
		n := [3]float64{p.Normal.X, p.Normal.Y, p.Normal.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				tensor.SetSym(i, j, tensor.At(i, j)+n[i]*n[j])
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(tensor, true) {
		return pairs[0].Normal
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come back ascending, so the last column is the axis.
	axis := r3.Vector{X: vecs.At(0, 2), Y: vecs.At(1, 2), Z: vecs.At(2, 2)}
	if axis.Norm() < 1e-12 {
		return pairs[0].Normal
	}
	return axis.Normalize()
}

// RankGroups filters out groups with fewer than minPairs pairs and sorts
// the survivors by coverage, highest first. The sort is stable so equal
// coverage keeps formation order.
func RankGroups(groups []PlaneGroup, minPairs int) []PlaneGroup {
	var ranked []PlaneGroup
	for _, g := range groups {
		if len(g.Pairs) < minPairs {
			continue
		}
		ranked = append(ranked, g)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Coverage > ranked[j].Coverage
	})
	return ranked
}

// largestGroup returns the group with the most pairs. Earlier groups win
// ties, so the first-formed group is preferred.
func largestGroup(groups []PlaneGroup) PlaneGroup {
	best := groups[0]
	for _, g := range groups[1:] {
		if len(g.Pairs) > len(best.Pairs) {
			best = g
		}
	}
	return best
}

// Record converts the group to its reported form.
func (g PlaneGroup) Record() PlaneRecord {
	return PlaneRecord{
		Plane:     g.Plane,
		Coverage:  g.Coverage,
		FaceCount: g.FaceCount,
		Pairs:     g.Pairs,
	}
}
