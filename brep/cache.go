package brep

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultCachePath is the default path for the analysis result cache
const DefaultCachePath = ".analysis-cache.json"

// AnalysisCache stores per-shape analysis results keyed by shape ID,
// each tagged with a content hash of the source data so unchanged
// shapes are not analyzed again.
type AnalysisCache struct {
	Shapes      map[string]CacheEntry `json:"shapes"`
	LastUpdated int64                 `json:"lastUpdated"`
}

// CacheEntry is one cached analysis outcome.
type CacheEntry struct {
	ContentHash string          `json:"contentHash"`
	Result      *SymmetryResult `json:"result"`
	LastUpdated int64           `json:"lastUpdated"`
}

// ContentHash returns the hex digest used to detect shape data changes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LoadAnalysisCache loads the analysis cache from a JSON file
func LoadAnalysisCache(path string) (*AnalysisCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No cache file yet
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	var cache AnalysisCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing cache file: %w", err)
	}

	return &cache, nil
}

// SaveAnalysisCache saves the analysis cache to a JSON file
func SaveAnalysisCache(path string, cache *AnalysisCache) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	// Update timestamp
	cache.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Get returns the cached result for a shape ID.
func (c *AnalysisCache) Get(shapeID string) (*SymmetryResult, bool) {
	if c == nil || c.Shapes == nil {
		return nil, false
	}
	entry, ok := c.Shapes[shapeID]
	if !ok || entry.Result == nil {
		return nil, false
	}
	return entry.Result, true
}

// Put stores an analysis outcome under the shape ID.
func (c *AnalysisCache) Put(shapeID, contentHash string, result *SymmetryResult) {
	if c.Shapes == nil {
		c.Shapes = make(map[string]CacheEntry)
	}
	c.Shapes[shapeID] = CacheEntry{
		ContentHash: contentHash,
		Result:      result,
		LastUpdated: time.Now().Unix(),
	}
}

// ShouldReanalyze reports whether a shape needs a fresh analysis: no
// cached entry, changed content hash, or an entry older than maxAge.
// A maxAge of zero disables the age check.
func (c *AnalysisCache) ShouldReanalyze(shapeID, contentHash string, maxAge time.Duration) bool {
	if c == nil || c.Shapes == nil {
		return true
	}
	entry, ok := c.Shapes[shapeID]
	if !ok || entry.Result == nil {
		return true
	}
	if entry.ContentHash != contentHash {
		return true
	}
	if maxAge > 0 && time.Since(time.Unix(entry.LastUpdated, 0)) > maxAge {
		return true
	}
	return false
}

// UnmarshalJSON provides backward compatibility with old cache files
// where Shapes was map[string]SymmetryResult (no CacheEntry wrapper).
// It probes the raw JSON and falls back to the legacy format when the
// entries lack a "contentHash" key.
func (c *AnalysisCache) UnmarshalJSON(data []byte) error {
	// Step 1: Unmarshal the envelope with raw shape entries.
	var envelope struct {
		Shapes      map[string]json.RawMessage `json:"shapes"`
		LastUpdated int64                      `json:"lastUpdated"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	c.LastUpdated = envelope.LastUpdated

	if len(envelope.Shapes) == 0 {
		c.Shapes = make(map[string]CacheEntry)
		return nil
	}

	// Step 2: Detect format by probing the first entry for a "contentHash" key.
	isNewFormat := false
	for _, raw := range envelope.Shapes {
		var probe struct {
			ContentHash *json.RawMessage `json:"contentHash"`
		}
		if err := json.Unmarshal(raw, &probe); err == nil && probe.ContentHash != nil {
			isNewFormat = true
		}
		break
	}

	c.Shapes = make(map[string]CacheEntry, len(envelope.Shapes))

	if isNewFormat {
		for id, raw := range envelope.Shapes {
			var entry CacheEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return err
			}
			c.Shapes[id] = entry
		}
	} else {
		// Legacy format: bare SymmetryResult values.
		for id, raw := range envelope.Shapes {
			var result SymmetryResult
			if err := json.Unmarshal(raw, &result); err != nil {
				return err
			}
			c.Shapes[id] = CacheEntry{
				Result:      &result,
				LastUpdated: envelope.LastUpdated,
			}
		}
	}

	return nil
}
