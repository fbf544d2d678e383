package brep

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// StateTracker holds the latest decoded solid and symmetry result per
// shape for the HTTP endpoints and MQTT handlers.
type StateTracker struct {
	mu        sync.RWMutex
	solids    map[string]Solid
	hashes    map[string]string // shape ID -> content hash of the last payload
	results   map[string]*SymmetryResult
	detector  DetectorConfig
	allPlanes bool
	cache     *AnalysisCache
	cachePath string // path to the analysis cache file; empty disables persistence
}

// NewStateTracker creates a new state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{
		solids:   make(map[string]Solid),
		hashes:   make(map[string]string),
		results:  make(map[string]*SymmetryResult),
		detector: DefaultDetectorConfig(),
	}
}

// NewStateTrackerWithCache creates a state tracker that persists results
// to the given cache file path. If the file exists, cached results are
// loaded on creation so they survive restarts.
func NewStateTrackerWithCache(cachePath string) *StateTracker {
	st := NewStateTracker()
	st.cachePath = cachePath
	if cachePath != "" {
		if cache, err := LoadAnalysisCache(cachePath); err == nil && cache != nil {
			st.cache = cache
			for id, entry := range cache.Shapes {
				if entry.Result != nil {
					r := *entry.Result
					st.results[id] = &r
					st.hashes[id] = entry.ContentHash
				}
			}
		}
	}
	if st.cache == nil {
		st.cache = &AnalysisCache{}
	}
	return st
}

// SetDetector configures how RefreshAnalysis runs the detection
func (st *StateTracker) SetDetector(cfg DetectorConfig, allPlanes bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.detector = cfg
	st.allPlanes = allPlanes
}

// UpdateSolid stores the latest decoded solid for a shape along with the
// content hash of the payload it was decoded from
func (st *StateTracker) UpdateSolid(shapeID string, solid Solid, contentHash string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.solids[shapeID] = solid
	st.hashes[shapeID] = contentHash
}

// GetSolid returns the stored solid for a shape
func (st *StateTracker) GetSolid(shapeID string) (Solid, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.solids[shapeID]
	return s, ok
}

// HasSolids returns true if at least one shape has been received
func (st *StateTracker) HasSolids() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.solids) > 0
}

// ContentHash returns the content hash of the last payload for a shape,
// or the empty string when none was stored
func (st *StateTracker) ContentHash(shapeID string) string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.hashes[shapeID]
}

// NeedsAnalysis reports whether the payload hash differs from what the
// cache recorded at the last analysis
func (st *StateTracker) NeedsAnalysis(shapeID, contentHash string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.cache == nil {
		_, ok := st.results[shapeID]
		return !ok || st.hashes[shapeID] != contentHash
	}
	return st.cache.ShouldReanalyze(shapeID, contentHash, 0)
}

// UpdateResult stores a result and persists it to the cache file
func (st *StateTracker) UpdateResult(shapeID string, result *SymmetryResult) {
	if result == nil {
		return
	}
	st.mu.Lock()
	r := *result
	st.results[shapeID] = &r
	hash := st.hashes[shapeID]
	if st.cache != nil {
		st.cache.Put(shapeID, hash, &r)
	}
	cache := st.cache
	cachePath := st.cachePath
	st.mu.Unlock()

	if cachePath != "" && cache != nil {
		if err := SaveAnalysisCache(cachePath, cache); err != nil {
			log.Printf("warning: failed to save analysis cache: %v", err)
		}
	}
}

// GetResult returns a copy of the stored result for a shape
func (st *StateTracker) GetResult(shapeID string) (*SymmetryResult, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	r, ok := st.results[shapeID]
	if !ok {
		return nil, false
	}
	rCopy := *r
	return &rCopy, true
}

// GetResults returns copies of all stored results
func (st *StateTracker) GetResults() map[string]*SymmetryResult {
	st.mu.RLock()
	defer st.mu.RUnlock()

	results := make(map[string]*SymmetryResult, len(st.results))
	for id, r := range st.results {
		rCopy := *r
		results[id] = &rCopy
	}
	return results
}

// ResultIDs returns the shape IDs that have results, sorted
func (st *StateTracker) ResultIDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.results))
	for id := range st.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RefreshAnalysis reruns the symmetry detection for a shape from its
// stored solid, stores the result, and returns a copy of it
func (st *StateTracker) RefreshAnalysis(ctx context.Context, shapeID string) (*SymmetryResult, error) {
	st.mu.RLock()
	solid, ok := st.solids[shapeID]
	cfg := st.detector
	allPlanes := st.allPlanes
	st.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no shape data for %s", shapeID)
	}

	var result SymmetryResult
	var err error
	if allPlanes {
		result, err = DetectAll(ctx, solid, cfg)
	} else {
		result, err = Detect(ctx, solid, cfg)
	}
	if err != nil {
		return nil, err
	}
	result.ShapeID = shapeID

	st.UpdateResult(shapeID, &result)

	rCopy := result
	return &rCopy, nil
}
