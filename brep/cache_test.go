package brep

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func cachedResult(id, status string) *SymmetryResult {
	return &SymmetryResult{
		ShapeID:    id,
		TotalFaces: 6,
		TotalPairs: 3,
		Status:     status,
		Timestamp:  time.Now().Unix(),
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("shape data"))
	b := ContentHash([]byte("shape data"))
	c := ContentHash([]byte("shape data, revised"))

	if a != b {
		t.Errorf("same data hashed differently: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different data produced the same hash")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestLoadAnalysisCache_Missing(t *testing.T) {
	cache, err := LoadAnalysisCache(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadAnalysisCache() error = %v", err)
	}
	if cache != nil {
		t.Errorf("cache = %+v, want nil for a missing file", cache)
	}
}

func TestLoadAnalysisCache_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := LoadAnalysisCache(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "parsing cache file") {
		t.Errorf("error = %v, want parsing-cache wrap", err)
	}
}

func TestSaveAndLoadAnalysisCache(t *testing.T) {
	// Nested path exercises directory creation on save.
	path := filepath.Join(t.TempDir(), "state", "cache.json")

	cache := &AnalysisCache{}
	cache.Put("bracket", "hash-1", cachedResult("bracket", StatusFull))
	cache.Put("housing", "hash-2", cachedResult("housing", StatusPartial))

	if err := SaveAnalysisCache(path, cache); err != nil {
		t.Fatalf("SaveAnalysisCache() error = %v", err)
	}
	if cache.LastUpdated == 0 {
		t.Error("Save should stamp LastUpdated")
	}

	loaded, err := LoadAnalysisCache(path)
	if err != nil {
		t.Fatalf("LoadAnalysisCache() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadAnalysisCache() returned nil for existing file")
	}

	result, ok := loaded.Get("bracket")
	if !ok {
		t.Fatal("Get(bracket) not found after reload")
	}
	if result.Status != StatusFull {
		t.Errorf("Status = %q, want %q", result.Status, StatusFull)
	}
	if entry := loaded.Shapes["housing"]; entry.ContentHash != "hash-2" {
		t.Errorf("housing ContentHash = %q, want hash-2", entry.ContentHash)
	}
}

func TestCacheGet(t *testing.T) {
	var nilCache *AnalysisCache
	if _, ok := nilCache.Get("anything"); ok {
		t.Error("nil cache should report no entries")
	}

	cache := &AnalysisCache{}
	if _, ok := cache.Get("anything"); ok {
		t.Error("empty cache should report no entries")
	}

	cache.Shapes = map[string]CacheEntry{
		"hollow": {ContentHash: "h", Result: nil},
	}
	if _, ok := cache.Get("hollow"); ok {
		t.Error("entry without a result should report missing")
	}

	cache.Put("bracket", "h1", cachedResult("bracket", StatusFull))
	result, ok := cache.Get("bracket")
	if !ok || result.ShapeID != "bracket" {
		t.Errorf("Get(bracket) = %+v, %v; want stored result", result, ok)
	}
}

func TestShouldReanalyze(t *testing.T) {
	fresh := &AnalysisCache{}
	fresh.Put("bracket", "hash-1", cachedResult("bracket", StatusFull))

	stale := &AnalysisCache{
		Shapes: map[string]CacheEntry{
			"bracket": {
				ContentHash: "hash-1",
				Result:      cachedResult("bracket", StatusFull),
				LastUpdated: time.Now().Add(-2 * time.Hour).Unix(),
			},
		},
	}

	tests := []struct {
		name   string
		cache  *AnalysisCache
		id     string
		hash   string
		maxAge time.Duration
		want   bool
	}{
		{
			name: "nil cache",
			id:   "bracket", hash: "hash-1",
			want: true,
		},
		{
			name:  "unknown shape",
			cache: fresh,
			id:    "housing", hash: "hash-1",
			want: true,
		},
		{
			name:  "unchanged hash",
			cache: fresh,
			id:    "bracket", hash: "hash-1",
			want: false,
		},
		{
			name:  "changed hash",
			cache: fresh,
			id:    "bracket", hash: "hash-2",
			want: true,
		},
		{
			name:  "stale entry past max age",
			cache: stale,
			id:    "bracket", hash: "hash-1",
			maxAge: time.Hour,
			want:   true,
		},
		{
			name:  "stale entry within max age",
			cache: stale,
			id:    "bracket", hash: "hash-1",
			maxAge: 3 * time.Hour,
			want:   false,
		},
		{
			name:  "zero max age disables age check",
			cache: stale,
			id:    "bracket", hash: "hash-1",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cache.ShouldReanalyze(tt.id, tt.hash, tt.maxAge); got != tt.want {
				t.Errorf("ShouldReanalyze() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Legacy format migration
// ---------------------------------------------------------------------------

func TestAnalysisCache_LegacyFormat(t *testing.T) {
	// Old cache files stored bare results without the CacheEntry wrapper.
	legacy := `{
  "shapes": {
    "bracket": {
      "shapeId": "bracket",
      "totalFaces": 6,
      "totalPairs": 3,
      "status": "Full symmetry detected"
    }
  },
  "lastUpdated": 1700000000
}`
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cache, err := LoadAnalysisCache(path)
	if err != nil {
		t.Fatalf("LoadAnalysisCache() error = %v", err)
	}

	result, ok := cache.Get("bracket")
	if !ok {
		t.Fatal("Get(bracket) not found in legacy cache")
	}
	if result.Status != StatusFull {
		t.Errorf("Status = %q, want %q", result.Status, StatusFull)
	}

	entry := cache.Shapes["bracket"]
	if entry.ContentHash != "" {
		t.Errorf("legacy ContentHash = %q, want empty", entry.ContentHash)
	}
	if entry.LastUpdated != 1700000000 {
		t.Errorf("legacy LastUpdated = %d, want envelope timestamp", entry.LastUpdated)
	}

	// An empty hash can never match, so legacy entries reanalyze once.
	if !cache.ShouldReanalyze("bracket", "hash-1", 0) {
		t.Error("legacy entry should trigger reanalysis")
	}
}

func TestAnalysisCache_NewFormat(t *testing.T) {
	current := `{
  "shapes": {
    "bracket": {
      "contentHash": "hash-1",
      "result": {"shapeId": "bracket", "status": "Partial symmetry detected"},
      "lastUpdated": 1700000500
    }
  },
  "lastUpdated": 1700000500
}`
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(current), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cache, err := LoadAnalysisCache(path)
	if err != nil {
		t.Fatalf("LoadAnalysisCache() error = %v", err)
	}

	entry := cache.Shapes["bracket"]
	if entry.ContentHash != "hash-1" {
		t.Errorf("ContentHash = %q, want hash-1", entry.ContentHash)
	}
	if entry.Result == nil || entry.Result.Status != StatusPartial {
		t.Errorf("Result = %+v, want partial status", entry.Result)
	}
	if cache.ShouldReanalyze("bracket", "hash-1", 0) {
		t.Error("matching hash should not reanalyze")
	}
}

func TestAnalysisCache_EmptyShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(`{"shapes": {}, "lastUpdated": 42}`), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cache, err := LoadAnalysisCache(path)
	if err != nil {
		t.Fatalf("LoadAnalysisCache() error = %v", err)
	}
	if cache.Shapes == nil {
		t.Error("Shapes map should be initialized for an empty cache")
	}
	if cache.LastUpdated != 42 {
		t.Errorf("LastUpdated = %d, want 42", cache.LastUpdated)
	}
}
