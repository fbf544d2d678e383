package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/kwv/symscan/brep"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// boxSolid builds a 2x2x2 axis-aligned box centered on the origin. Six
// faces are enough to exercise projection and rendering without heavy
// test fixtures.
func boxSolid(t *testing.T) *brep.PolySolid {
	t.Helper()
	vertices := []r3.Vector{
		{X: -1, Y: -1, Z: -1},
		{X: 1, Y: -1, Z: -1},
		{X: 1, Y: 1, Z: -1},
		{X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1},
		{X: 1, Y: -1, Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: -1, Y: 1, Z: 1},
	}
	loops := [][][]int{
		{{0, 4, 7, 3}},
		{{1, 2, 6, 5}},
		{{0, 1, 5, 4}},
		{{3, 7, 6, 2}},
		{{0, 3, 2, 1}},
		{{4, 5, 6, 7}},
	}
	solid, err := brep.NewPolySolid("box", vertices, loops)
	if err != nil {
		t.Fatalf("NewPolySolid() error = %v", err)
	}
	return solid
}

// boxResult returns a plausible full-symmetry result for the box fixture.
func boxResult(id string) *brep.SymmetryResult {
	return &brep.SymmetryResult{
		ShapeID:    id,
		TotalFaces: 6,
		TotalPairs: 3,
		Status:     brep.StatusFull,
		Planes: []brep.PlaneRecord{
			{
				Plane:     brep.MirrorPlane{Normal: r3.Vector{X: 1}},
				Coverage:  1.0,
				FaceCount: 6,
				Pairs: []brep.FacePair{
					{I: 0, J: 1, Normal: r3.Vector{X: 1}},
				},
			},
		},
	}
}

// populatedTracker returns a StateTracker holding the box solid and its result.
func populatedTracker(t *testing.T) *brep.StateTracker {
	t.Helper()
	st := brep.NewStateTracker()
	st.UpdateSolid("box", boxSolid(t), "")
	st.UpdateResult("box", boxResult("box"))
	return st
}

// emptyTracker returns a StateTracker with no shapes.
func emptyTracker() *brep.StateTracker {
	return brep.NewStateTracker()
}

// testAnalyzer wires an AutoAnalyzer to the tracker with no publisher and
// no data directory, so analyses stay in memory.
func testAnalyzer(st *brep.StateTracker) *brep.AutoAnalyzer {
	return brep.NewAutoAnalyzer(&brep.Config{}, st, nil, "")
}

// ---------------------------------------------------------------------------
// viewDirection / applyRenderConfig
// ---------------------------------------------------------------------------

func TestViewDirection_NilConfig(t *testing.T) {
	got := viewDirection(nil)
	want := r3.Vector{Z: 1}
	if got != want {
		t.Errorf("viewDirection(nil) = %v, want %v", got, want)
	}
}

func TestViewDirection_ConfiguredView(t *testing.T) {
	cfg := &brep.Config{
		Render: brep.RenderConfig{View: []float64{0, 2, 0}},
	}
	got := viewDirection(cfg)
	want := r3.Vector{Y: 1} // normalized
	if got != want {
		t.Errorf("viewDirection = %v, want %v", got, want)
	}
}

func TestApplyRenderConfig(t *testing.T) {
	ps, err := brep.ProjectSolid(boxSolid(t), nil, r3.Vector{Z: 1})
	if err != nil {
		t.Fatalf("ProjectSolid() error = %v", err)
	}

	renderer := brep.NewResultVectorRenderer(ps)
	defaultWidth := renderer.WidthMM

	// Nil config leaves defaults alone.
	applyRenderConfig(renderer, nil)
	if renderer.WidthMM != defaultWidth {
		t.Errorf("WidthMM = %v after nil config, want %v", renderer.WidthMM, defaultWidth)
	}

	// Zero width is ignored, positive width is applied.
	applyRenderConfig(renderer, &brep.Config{})
	if renderer.WidthMM != defaultWidth {
		t.Errorf("WidthMM = %v after zero-width config, want %v", renderer.WidthMM, defaultWidth)
	}
	applyRenderConfig(renderer, &brep.Config{Render: brep.RenderConfig{WidthMM: 150}})
	if renderer.WidthMM != 150 {
		t.Errorf("WidthMM = %v, want 150", renderer.WidthMM)
	}
}

// ---------------------------------------------------------------------------
// newHTTPServer -- /health
// ---------------------------------------------------------------------------

func TestHealth_NoShapes(t *testing.T) {
	handler := newHTTPServer(emptyTracker(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Status    string `json:"status"`
		HasShapes bool   `json:"hasShapes"`
		Results   int    `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.HasShapes {
		t.Error("hasShapes = true, want false when no shapes loaded")
	}
	if body.Results != 0 {
		t.Errorf("results = %d, want 0", body.Results)
	}
}

func TestHealth_WithShapes(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		HasShapes bool `json:"hasShapes"`
		Results   int  `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /health response: %v", err)
	}
	if !body.HasShapes {
		t.Error("hasShapes = false, want true when shapes are loaded")
	}
	if body.Results != 1 {
		t.Errorf("results = %d, want 1", body.Results)
	}
}

// ---------------------------------------------------------------------------
// newHTTPServer -- /api/results
// ---------------------------------------------------------------------------

func TestResults_Empty(t *testing.T) {
	handler := newHTTPServer(emptyTracker(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/api/results status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", cc, "no-cache")
	}

	var body map[string]*brep.SymmetryResult
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /api/results response: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("expected empty results map, got %d entries", len(body))
	}
}

func TestResults_WithResult(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/api/results status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]*brep.SymmetryResult
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /api/results response: %v", err)
	}
	result, ok := body["box"]
	if !ok {
		t.Fatalf("expected result for %q, got keys %v", "box", resultKeys(body))
	}
	if result.Status != brep.StatusFull {
		t.Errorf("status = %q, want %q", result.Status, brep.StatusFull)
	}
}

func resultKeys(m map[string]*brep.SymmetryResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// ---------------------------------------------------------------------------
// newHTTPServer -- /api/results/{id}
// ---------------------------------------------------------------------------

func TestResultByID(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/results/box", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/api/results/box status = %d, want %d, body=%q", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var result brep.SymmetryResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.ShapeID != "box" {
		t.Errorf("shapeId = %q, want %q", result.ShapeID, "box")
	}
	if result.TotalFaces != 6 {
		t.Errorf("totalFaces = %d, want 6", result.TotalFaces)
	}
	if len(result.Planes) != 1 {
		t.Errorf("planes = %d, want 1", len(result.Planes))
	}
}

func TestResultByID_NotFound(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/results/missing", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("/api/results/missing status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !strings.Contains(w.Body.String(), `No result for shape "missing"`) {
		t.Errorf("body = %q, want mention of missing shape", w.Body.String())
	}
}

func TestResultByID_UnknownSubresource(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/results/box/unknown", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("/api/results/box/unknown status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------------------------------------------------------------------------
// newHTTPServer -- /api/results/{id}/geojson
// ---------------------------------------------------------------------------

func TestResultGeoJSON(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/results/box/geojson", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/api/results/box/geojson status = %d, want %d, body=%q", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/geo+json")
	}

	var fc brep.FeatureCollection
	if err := json.NewDecoder(w.Body).Decode(&fc); err != nil {
		t.Fatalf("failed to decode feature collection: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("type = %q, want %q", fc.Type, "FeatureCollection")
	}
	// Six face polygons plus silhouette plus plane features.
	if len(fc.Features) < 7 {
		t.Errorf("features = %d, want at least 7", len(fc.Features))
	}
}

func TestResultGeoJSON_NoResult(t *testing.T) {
	st := brep.NewStateTracker()
	st.UpdateSolid("box", boxSolid(t), "")
	handler := newHTTPServer(st, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/results/box/geojson", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("geojson without result: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestResultGeoJSON_NoSolid(t *testing.T) {
	// Result present but shape data missing (e.g. cache restored without
	// the retained MQTT payload).
	st := brep.NewStateTracker()
	st.UpdateResult("box", boxResult("box"))
	handler := newHTTPServer(st, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/results/box/geojson", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("geojson without solid: status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ---------------------------------------------------------------------------
// newHTTPServer -- render endpoints with no shapes (503 paths)
// ---------------------------------------------------------------------------

func TestRenderEndpoints_NoShapes_503(t *testing.T) {
	handler := newHTTPServer(emptyTracker(), nil, nil)

	endpoints := []string{
		"/render/box.svg",
		"/render/box.png",
	}

	for _, ep := range endpoints {
		t.Run(ep, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, ep, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("%s status = %d, want %d", ep, w.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// newHTTPServer -- render endpoints with shapes (200 paths)
// ---------------------------------------------------------------------------

func TestRenderSVG_WithShapes(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/render/box.svg", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/render/box.svg status = %d, want %d, body=%q", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want %q", ct, "image/svg+xml")
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", cc, "no-cache")
	}
	if w.Body.Len() == 0 {
		t.Error("response body is empty; expected SVG data")
	}
}

func TestRenderPNG_WithShapes(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/render/box.png", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/render/box.png status = %d, want %d, body=%q", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want %q", ct, "image/png")
	}
	if w.Body.Len() == 0 {
		t.Error("response body is empty; expected PNG data")
	}
}

func TestRender_WithoutResult(t *testing.T) {
	// A shape whose analysis has not completed yet still renders, just
	// without plane overlays.
	st := brep.NewStateTracker()
	st.UpdateSolid("box", boxSolid(t), "")
	handler := newHTTPServer(st, nil, nil)

	for _, ep := range []string{"/render/box.svg", "/render/box.png"} {
		t.Run(ep, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, ep, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("%s without result: status = %d, want %d, body=%q", ep, w.Code, http.StatusOK, w.Body.String())
			}
			if w.Body.Len() == 0 {
				t.Error("response body is empty")
			}
		})
	}
}

func TestRender_WithRenderConfig(t *testing.T) {
	cfg := &brep.Config{
		Render: brep.RenderConfig{
			View:       []float64{1, 1, 1},
			WidthMM:    120,
			Resolution: 96,
		},
	}
	handler := newHTTPServer(populatedTracker(t), cfg, nil)
	req := httptest.NewRequest(http.MethodGet, "/render/box.svg", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/render/box.svg with render config: status = %d, want %d, body=%q", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRender_BadPaths(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)

	paths := []string{
		"/render/box.gif",
		"/render/box",
		"/render/.svg",
		"/render/a/b.svg",
	}
	for _, ep := range paths {
		t.Run(ep, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, ep, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("%s status = %d, want %d", ep, w.Code, http.StatusNotFound)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// newHTTPServer -- /api/analyze
// ---------------------------------------------------------------------------

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/analyze status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestAnalyze_NoAnalyzer(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"shapeId":"box"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /api/analyze without analyzer: status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAnalyze_InvalidBody(t *testing.T) {
	st := populatedTracker(t)
	handler := newHTTPServer(st, nil, testAnalyzer(st))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAnalyze_MissingShapeID(t *testing.T) {
	st := populatedTracker(t)
	handler := newHTTPServer(st, nil, testAnalyzer(st))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"tolerance":0.05}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("missing shapeId: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "shapeId is required") {
		t.Errorf("body = %q, want shapeId error", w.Body.String())
	}
}

func TestAnalyze_UnknownShape(t *testing.T) {
	st := emptyTracker()
	handler := newHTTPServer(st, nil, testAnalyzer(st))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"shapeId":"nope"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("unknown shape: status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(w.Body.String(), "no stored shape data") {
		t.Errorf("body = %q, want missing-data error", w.Body.String())
	}
}

func TestAnalyze_Success(t *testing.T) {
	st := brep.NewStateTracker()
	st.UpdateSolid("box", boxSolid(t), "")
	handler := newHTTPServer(st, nil, testAnalyzer(st))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"shapeId":"box"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/analyze status = %d, want %d, body=%q", w.Code, http.StatusOK, w.Body.String())
	}

	var result brep.SymmetryResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode analysis result: %v", err)
	}
	if result.ShapeID != "box" {
		t.Errorf("shapeId = %q, want %q", result.ShapeID, "box")
	}
	if result.Status != brep.StatusFull {
		t.Errorf("status = %q, want %q", result.Status, brep.StatusFull)
	}

	// The result is stored for subsequent GETs.
	if _, ok := st.GetResult("box"); !ok {
		t.Error("analysis result was not stored in the tracker")
	}
}

func TestAnalyze_AllPlanes(t *testing.T) {
	st := brep.NewStateTracker()
	st.UpdateSolid("box", boxSolid(t), "")
	handler := newHTTPServer(st, nil, testAnalyzer(st))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"shapeId":"box","allPlanes":true}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("all-planes analyze status = %d, want %d, body=%q", w.Code, http.StatusOK, w.Body.String())
	}

	var result brep.SymmetryResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode analysis result: %v", err)
	}
	// On a cube every perpendicular face pair mirrors across a diagonal
	// plane (two pairs each); the three axis planes carry one pair each
	// and are dropped.
	if len(result.Planes) != 6 {
		t.Errorf("planes = %d, want 6", len(result.Planes))
	}
	if result.Status != brep.StatusMultiplePlanes {
		t.Errorf("status = %q, want %q", result.Status, brep.StatusMultiplePlanes)
	}
}

// ---------------------------------------------------------------------------
// newHTTPServer -- index page
// ---------------------------------------------------------------------------

func TestIndexPage_NoResults(t *testing.T) {
	handler := newHTTPServer(emptyTracker(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/ status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(w.Body.String(), "No shapes analyzed yet") {
		t.Errorf("body = %q, want empty-state message", w.Body.String())
	}
}

func TestIndexPage_WithResults(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("/ status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "/render/box.svg") {
		t.Errorf("body = %q, want embedded render link", w.Body.String())
	}
}

func TestIndexPage_UnknownPath(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("/nope status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
