package brep

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"
)

// DefaultTolerance is the geometric tolerance, in the model's length
// units, used by all face comparisons when the caller does not override
// it.
const DefaultTolerance = 0.01

// DetectorConfig holds tuning for symmetry detection.
// All length thresholds are in the same units as the input model.
type DetectorConfig struct {
	Tolerance       float64 // geometric tolerance for filters and the coincidence test
	MatchFraction   float64 // fraction of samples that must land on the partner face
	NormalAlignment float64 // |dot| above which two pair normals share a group
	MinCoverage     float64 // coverage below which the best plane is not significant
	FullCoverage    float64 // coverage at which symmetry counts as full
	MinGroupPairs   int     // smallest group the all-planes variant reports
	Workers         int     // pair-scan goroutines; <=0 uses GOMAXPROCS
}

// DefaultDetectorConfig returns sensible defaults for symmetry detection.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Tolerance:       DefaultTolerance,
		MatchFraction:   0.7,  // strictly more than 70% of samples must coincide
		NormalAlignment: 0.98, // within ~11 degrees
		MinCoverage:     0.2,
		FullCoverage:    0.6,
		MinGroupPairs:   2,
		Workers:         0,
	}
}

// DetectorConfig builds a detector configuration from the config file
// section, filling unset fields with the package defaults.
func (a AnalysisConfig) DetectorConfig() DetectorConfig {
	cfg := DefaultDetectorConfig()
	if a.Tolerance > 0 {
		cfg.Tolerance = a.Tolerance
	}
	if a.MinCoverage > 0 {
		cfg.MinCoverage = a.MinCoverage
	}
	if a.Workers > 0 {
		cfg.Workers = a.Workers
	}
	return cfg
}

// FacesCoincide reports whether a mirrored face lands on the candidate
// face. Bounding box diagonals are compared first as a cheap reject, then
// boundary samples of the mirrored face are tested against the candidate:
// the faces coincide when strictly more than matchFraction of the samples
// lie within tol of the candidate surface. A face yielding no usable
// samples never coincides. Failed distance queries count as misses.
func FacesCoincide(mirrored, candidate Face, tol, matchFraction float64) bool {
	if math.Abs(mirrored.BoundingBoxDiagonal()-candidate.BoundingBoxDiagonal()) > tol {
		return false
	}

	samples := SampleBoundaryPoints(mirrored)
	if len(samples) == 0 {
		return false
	}

	matched := 0
	for _, p := range samples {
		d, err := candidate.DistanceTo(p)
		if err != nil {
			continue
		}
		if d < tol {
			matched++
		}
	}

	return float64(matched) > matchFraction*float64(len(samples))
}

// FindSymmetricPairs scans every face pair (i, j) with i < j for mirror
// symmetry: cheap area/perimeter filters, then the reflection hypothesis
// from the two face centers, then the coincidence test on the mirrored
// face. Rows of the scan are distributed over a worker pool and each
// worker collects into its own partial list; the merged result is sorted
// by (I, J) so the output does not depend on scheduling. Cancelling the
// context stops feeding rows and returns the context's error.
func FindSymmetricPairs(ctx context.Context, solid Solid, cfg DetectorConfig) ([]FacePair, error) {
	faces := solid.Faces()
	n := len(faces)
	if n < 2 {
		return nil, ctx.Err()
	}

	descriptors := ComputeDescriptors(faces)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n-1 {
		workers = n - 1
	}

	rows := make(chan int)
	partials := make([][]FacePair, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			var local []FacePair
			for i := range rows {
				local = append(local, scanRow(faces, descriptors, i, cfg)...)
			}
			partials[slot] = local
		}(w)
	}

feed:
	for i := 0; i < n-1; i++ {
		select {
		case <-ctx.Done():
			break feed
		case rows <- i:
		}
	}
	close(rows)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pairs []FacePair
	for _, part := range partials {
		pairs = append(pairs, part...)
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].I != pairs[b].I {
			return pairs[a].I < pairs[b].I
		}
		return pairs[a].J < pairs[b].J
	})
	return pairs, nil
}

// scanRow compares face i against every face after it. Pure per row, so
// rows can run concurrently without shared state.
func scanRow(faces []Face, descriptors []FaceDescriptor, i int, cfg DetectorConfig) []FacePair {
	var found []FacePair
	a := descriptors[i]

	for j := i + 1; j < len(faces); j++ {
		b := descriptors[j]

		if math.Abs(a.Area-b.Area) > cfg.Tolerance {
			continue
		}
		if math.Abs(a.Perimeter-b.Perimeter) > cfg.Tolerance {
			continue
		}

		// Coincident centers leave the mirror direction undefined.
		plane, ok := MirrorHypothesis(a.Center, b.Center, cfg.Tolerance)
		if !ok {
			continue
		}

		mirrored := faces[i].Transformed(plane.Reflection())
		if FacesCoincide(mirrored, faces[j], cfg.Tolerance, cfg.MatchFraction) {
			found = append(found, FacePair{I: i, J: j, Midpoint: plane.Point, Normal: plane.Normal})
		}
	}

	return found
}

// Detect runs the single-plane analysis: find pairs, cluster them by
// orientation, then classify the largest group by coverage. Coverage
// below MinCoverage reports no plane at all; between MinCoverage and
// FullCoverage the plane is reported as partial symmetry.
func Detect(ctx context.Context, solid Solid, cfg DetectorConfig) (SymmetryResult, error) {
	start := time.Now()

	pairs, err := FindSymmetricPairs(ctx, solid, cfg)
	if err != nil {
		return SymmetryResult{}, err
	}

	result := SymmetryResult{
		TotalFaces: len(solid.Faces()),
		TotalPairs: len(pairs),
		Timestamp:  time.Now().UnixMilli(),
	}

	if len(pairs) == 0 {
		result.Status = StatusNoPairs
		result.ElapsedMS = elapsedMS(start)
		return result, nil
	}

	groups := ClusterPairs(pairs, result.TotalFaces, cfg)
	best := largestGroup(groups)

	switch {
	case best.Coverage < cfg.MinCoverage:
		result.Status = StatusNoSignificant
	case best.Coverage < cfg.FullCoverage:
		result.Status = StatusPartial
		result.Planes = []PlaneRecord{best.Record()}
	default:
		result.Status = StatusFull
		result.Planes = []PlaneRecord{best.Record()}
	}

	result.ElapsedMS = elapsedMS(start)
	return result, nil
}

// DetectAll runs the all-planes analysis: every orientation group with at
// least MinGroupPairs pairs is reported, sorted by coverage descending.
func DetectAll(ctx context.Context, solid Solid, cfg DetectorConfig) (SymmetryResult, error) {
	start := time.Now()

	pairs, err := FindSymmetricPairs(ctx, solid, cfg)
	if err != nil {
		return SymmetryResult{}, err
	}

	result := SymmetryResult{
		TotalFaces: len(solid.Faces()),
		TotalPairs: len(pairs),
		Timestamp:  time.Now().UnixMilli(),
	}

	if len(pairs) == 0 {
		result.Status = StatusNoPairs
		result.ElapsedMS = elapsedMS(start)
		return result, nil
	}

	groups := ClusterPairs(pairs, result.TotalFaces, cfg)
	ranked := RankGroups(groups, cfg.MinGroupPairs)

	if len(ranked) == 0 {
		result.Status = StatusNoSignificant
	} else {
		result.Status = StatusMultiplePlanes
		result.Planes = make([]PlaneRecord, len(ranked))
		for i, g := range ranked {
			result.Planes[i] = g.Record()
		}
	}

	result.ElapsedMS = elapsedMS(start)
	return result, nil
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
