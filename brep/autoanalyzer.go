package brep

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultMinAnalysisInterval is the minimum time between automatic
	// analyses of the same shape (debounce). Explicit requests bypass it.
	DefaultMinAnalysisInterval = 1 * time.Minute

	// DefaultAnalysisTimeout bounds a single detection run.
	DefaultAnalysisTimeout = 5 * time.Minute
)

// AutoAnalyzer orchestrates analysis when shape data arrives over MQTT.
// It debounces repeated payloads, skips payloads whose content hash has
// not changed since the last analysis, persists results, and publishes
// them back to the broker.
type AutoAnalyzer struct {
	config       *Config
	stateTracker *StateTracker
	publisher    *Publisher
	dataDir      string

	mu           sync.Mutex
	lastAnalyzed map[string]time.Time
}

// NewAutoAnalyzer creates an AutoAnalyzer ready to handle shape data events.
func NewAutoAnalyzer(config *Config, st *StateTracker, pub *Publisher, dataDir string) *AutoAnalyzer {
	return &AutoAnalyzer{
		config:       config,
		stateTracker: st,
		publisher:    pub,
		dataDir:      dataDir,
		lastAnalyzed: make(map[string]time.Time),
	}
}

// OnShapeData is the MessageHandler callback registered with the MQTT client.
// It is safe to call from any goroutine.
func (aa *AutoAnalyzer) OnShapeData(shapeID string, rawPayload []byte, solid Solid, err error) {
	if err != nil {
		log.Printf("[ANALYZE] %s: ignoring undecodable payload: %v", shapeID, err)
		return
	}

	hash := ContentHash(rawPayload)

	// --- Step 1: Content hash short-circuit ---
	// Retained messages are redelivered on every reconnect; an unchanged
	// payload means the stored result is still valid.
	if !aa.stateTracker.NeedsAnalysis(shapeID, hash) {
		log.Printf("[ANALYZE] %s: skipping, content unchanged since last analysis", shapeID)
		// Keep the decoded solid around so rendering works after a restart.
		aa.stateTracker.UpdateSolid(shapeID, solid, hash)
		return
	}

	// --- Step 2: Debounce ---
	aa.mu.Lock()
	if last, ok := aa.lastAnalyzed[shapeID]; ok {
		if time.Since(last) < DefaultMinAnalysisInterval {
			aa.mu.Unlock()
			log.Printf("[ANALYZE] %s: skipping, last analyzed %s ago (min interval %s)",
				shapeID, time.Since(last).Round(time.Second), DefaultMinAnalysisInterval)
			return
		}
	}
	aa.mu.Unlock()

	// --- Step 3: Analyze and publish ---
	aa.stateTracker.UpdateSolid(shapeID, solid, hash)
	aa.analyzeAndPublish(shapeID)
}

// SetPublisher attaches the MQTT result publisher. The analyzer works
// without one; results are then only stored and saved to disk.
func (aa *AutoAnalyzer) SetPublisher(pub *Publisher) {
	aa.mu.Lock()
	defer aa.mu.Unlock()
	aa.publisher = pub
}

// OnAnalyzeRequest is the AnalyzeRequestHandler callback registered with
// the MQTT client. Explicit requests bypass the debounce and hash checks
// and may carry per-request detector overrides.
func (aa *AutoAnalyzer) OnAnalyzeRequest(req AnalysisRequest) {
	log.Printf("[ANALYZE] Analysis request received for %s", req.ShapeID)
	if _, err := aa.Analyze(req); err != nil {
		log.Printf("[ANALYZE] %v", err)
	}
}

// Analyze runs one explicit analysis request and returns the stored
// result. When no shape data is held for the requested ID, it is
// fetched from the request URL or the configured shape URL.
func (aa *AutoAnalyzer) Analyze(req AnalysisRequest) (*SymmetryResult, error) {
	shapeID := req.ShapeID

	solid, ok := aa.stateTracker.GetSolid(shapeID)
	if !ok {
		// No stored data; try fetching from the request URL or the
		// configured shape URL.
		url := req.URL
		if url == "" {
			if sc := aa.config.GetShapeByID(shapeID); sc != nil {
				url = sc.URL
			}
		}
		if url == "" {
			return nil, fmt.Errorf("%s: no stored shape data and no URL", shapeID)
		}

		log.Printf("[ANALYZE] %s: fetching shape from %s", shapeID, url)
		fetched, err := FetchShapeFromURL(url)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to fetch shape: %w", shapeID, err)
		}
		solid = fetched
		aa.stateTracker.UpdateSolid(shapeID, solid, "")
	}

	cfg := aa.config.Analysis.DetectorConfig()
	allPlanes := aa.config.Analysis.AllPlanes
	if req.Tolerance > 0 {
		cfg.Tolerance = req.Tolerance
	}
	if req.AllPlanes {
		allPlanes = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultAnalysisTimeout)
	defer cancel()

	var result SymmetryResult
	var err error
	if allPlanes {
		result, err = DetectAll(ctx, solid, cfg)
	} else {
		result, err = Detect(ctx, solid, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: analysis failed: %w", shapeID, err)
	}
	result.ShapeID = shapeID

	aa.stateTracker.UpdateResult(shapeID, &result)
	aa.finishAnalysis(shapeID, &result)
	return &result, nil
}

// analyzeAndPublish reruns the detection for a shape from its stored
// solid using the tracker's detector settings.
func (aa *AutoAnalyzer) analyzeAndPublish(shapeID string) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultAnalysisTimeout)
	defer cancel()

	result, err := aa.stateTracker.RefreshAnalysis(ctx, shapeID)
	if err != nil {
		log.Printf("[ANALYZE] %s: analysis failed: %v", shapeID, err)
		return
	}

	aa.finishAnalysis(shapeID, result)
}

// finishAnalysis persists the result to the data directory, publishes it,
// and updates the in-memory debounce timestamp.
func (aa *AutoAnalyzer) finishAnalysis(shapeID string, result *SymmetryResult) {
	log.Printf("[ANALYZE] %s: %s (%d pairs, %d planes, %.1f ms)",
		shapeID, result.Status, result.TotalPairs, len(result.Planes), result.ElapsedMS)

	if aa.dataDir != "" {
		if path, err := SaveResult(aa.dataDir, *result); err != nil {
			log.Printf("[ANALYZE] %s: failed to save result: %v", shapeID, err)
		} else {
			log.Printf("[ANALYZE] %s: result saved to %s", shapeID, path)
		}
	}

	aa.mu.Lock()
	pub := aa.publisher
	aa.lastAnalyzed[shapeID] = time.Now()
	aa.mu.Unlock()

	if pub != nil {
		if err := pub.PublishResult(result); err != nil {
			log.Printf("[ANALYZE] %s: failed to publish result: %v", shapeID, err)
		}
	}
	log.Printf("[ANALYZE] %s: analysis complete", shapeID)
}

// String implements fmt.Stringer for debug logging.
func (aa *AutoAnalyzer) String() string {
	aa.mu.Lock()
	defer aa.mu.Unlock()
	return fmt.Sprintf("AutoAnalyzer{dataDir=%s, shapes=%d, lastAnalyzed=%d}",
		aa.dataDir, len(aa.config.Shapes), len(aa.lastAnalyzed))
}
