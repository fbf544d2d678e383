package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	"github.com/kwv/symscan/brep"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *brep.StateTracker, config *brep.Config, analyzer *brep.AutoAnalyzer) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasShapes bool      `json:"hasShapes"`
			Results   int       `json:"results"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasShapes: stateTracker.HasSolids(),
			Results:   len(stateTracker.ResultIDs()),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// All analysis results, keyed by shape ID
	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(stateTracker.GetResults()); err != nil {
			log.Printf("Error encoding results: %v", err)
		}
	})

	// Single result by shape ID, plus its GeoJSON projection under
	// /api/results/{id}/geojson
	mux.HandleFunc("/api/results/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/results/")
		id, sub, _ := strings.Cut(rest, "/")
		if id == "" {
			http.NotFound(w, r)
			return
		}

		switch sub {
		case "":
			result, ok := stateTracker.GetResult(id)
			if !ok {
				http.Error(w, fmt.Sprintf("No result for shape %q", id), http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-cache")
			if err := json.NewEncoder(w).Encode(result); err != nil {
				log.Printf("Error encoding result for %s: %v", id, err)
			}

		case "geojson":
			result, ok := stateTracker.GetResult(id)
			if !ok {
				http.Error(w, fmt.Sprintf("No result for shape %q", id), http.StatusNotFound)
				return
			}
			solid, ok := stateTracker.GetSolid(id)
			if !ok {
				http.Error(w, "No shape data available", http.StatusServiceUnavailable)
				return
			}
			ps, err := brep.ProjectSolid(solid, result, viewDirection(config))
			if err != nil {
				log.Printf("Error projecting %s: %v", id, err)
				http.Error(w, "Projection failed", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/geo+json")
			w.Header().Set("Cache-Control", "no-cache")
			if err := json.NewEncoder(w).Encode(brep.ResultFeatureCollection(ps)); err != nil {
				log.Printf("Error encoding GeoJSON for %s: %v", id, err)
			}

		default:
			http.NotFound(w, r)
		}
	})

	// Run an analysis on demand. The request body is the same JSON a
	// client would publish on the MQTT analyze topic.
	mux.HandleFunc("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if analyzer == nil {
			http.Error(w, "Analysis not available", http.StatusServiceUnavailable)
			return
		}

		var req brep.AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.ShapeID == "" {
			http.Error(w, "shapeId is required", http.StatusBadRequest)
			return
		}

		result, err := analyzer.Analyze(req)
		if err != nil {
			log.Printf("Error analyzing %s: %v", req.ShapeID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Printf("Error encoding analysis result for %s: %v", req.ShapeID, err)
		}
	})

	// Rendered views: /render/{id}.svg and /render/{id}.png. Shapes
	// without a result yet render without plane overlays.
	mux.HandleFunc("/render/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/render/")

		var id, format string
		switch {
		case strings.HasSuffix(rest, ".svg"):
			id, format = strings.TrimSuffix(rest, ".svg"), "svg"
		case strings.HasSuffix(rest, ".png"):
			id, format = strings.TrimSuffix(rest, ".png"), "png"
		default:
			http.NotFound(w, r)
			return
		}
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}

		solid, ok := stateTracker.GetSolid(id)
		if !ok {
			http.Error(w, "No shape data available", http.StatusServiceUnavailable)
			return
		}
		result, _ := stateTracker.GetResult(id)

		ps, err := brep.ProjectSolid(solid, result, viewDirection(config))
		if err != nil {
			log.Printf("Error projecting %s: %v", id, err)
			http.Error(w, "Projection failed", http.StatusInternalServerError)
			return
		}

		switch format {
		case "svg":
			renderer := brep.NewResultVectorRenderer(ps)
			applyRenderConfig(renderer, config)
			w.Header().Set("Content-Type", "image/svg+xml")
			w.Header().Set("Cache-Control", "no-cache")
			if err := renderer.RenderToSVG(w); err != nil {
				log.Printf("Error encoding SVG for %s: %v", id, err)
			}
		case "png":
			// The raster renderer carries the text legend, so HTTP
			// clients asking for PNG get the annotated variant.
			renderer := brep.NewResultRenderer(ps, result)
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Cache-Control", "no-cache")
			if err := renderer.WritePNG(w); err != nil {
				log.Printf("Error encoding PNG for %s: %v", id, err)
			}
		}
	})

	// Default route serves HTML page embedding the SVG render
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		ids := stateTracker.ResultIDs()
		if len(ids) == 0 {
			_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>symscan</title>
</head>
<body>
<p>No shapes analyzed yet.</p>
</body>
</html>`)
			return
		}

		_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>symscan</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
html,body{width:100%%;height:100%%;overflow:hidden;background:#1a1a1a}
img{display:block;width:100vw;height:100vh;object-fit:contain}
</style>
</head>
<body>
<img src="/render/%s.svg" alt="Symmetry render">
</body>
</html>`, ids[0])
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

// viewDirection returns the configured projection view, or the +Z default.
func viewDirection(config *brep.Config) r3.Vector {
	if config != nil {
		return config.ViewDirection()
	}
	return r3.Vector{Z: 1}
}

// applyRenderConfig copies configured page width and raster resolution
// onto a vector renderer.
func applyRenderConfig(renderer *brep.ResultVectorRenderer, config *brep.Config) {
	if config == nil {
		return
	}
	if config.Render.WidthMM > 0 {
		renderer.WidthMM = config.Render.WidthMM
	}
	renderer.SetDPI(config.Render.Resolution)
}
