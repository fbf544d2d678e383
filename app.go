package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kwv/symscan/brep"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *brep.Config
	StateTracker *brep.StateTracker
	MQTTClient   *brep.MQTTClient
	Publisher    *brep.Publisher
	Analyzer     *brep.AutoAnalyzer

	// CLI flags (effectively dependencies)
	ConfigFile string
	DataDir    string
	AllPlanes  bool
	Tolerance  float64
	OutputFile string
	SVGFile    string
	PNGFile    string
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: brep.NewStateTracker(),
	}
}

// RunSummary prints shape statistics for a file or configured shape ID
// without running the detector.
func (a *App) RunSummary(arg string) {
	a.Config = a.loadConfigOptional()

	id, solid, err := a.resolveShape(arg)
	if err != nil {
		log.Fatalf("Error loading shape: %v", err)
	}

	fmt.Printf("=== %s ===\n", id)
	fmt.Println(brep.Summarize(solid))
}

// RunAnalyze analyzes a single shape (file path or configured shape ID),
// prints the report, and writes the optional JSON/SVG/PNG outputs.
func (a *App) RunAnalyze(arg string) {
	a.Config = a.loadConfigOptional()

	id, solid, err := a.resolveShape(arg)
	if err != nil {
		log.Fatalf("Error loading shape: %v", err)
	}

	cfg := brep.DefaultDetectorConfig()
	allPlanes := a.AllPlanes
	if a.Config != nil {
		cfg = a.Config.Analysis.DetectorConfig()
		allPlanes = allPlanes || a.Config.Analysis.AllPlanes
	}
	if a.Tolerance > 0 {
		cfg.Tolerance = a.Tolerance
	}

	var result brep.SymmetryResult
	if allPlanes {
		result, err = brep.DetectAll(context.Background(), solid, cfg)
	} else {
		result, err = brep.Detect(context.Background(), solid, cfg)
	}
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	result.ShapeID = id

	fmt.Print(brep.FormatReport(result))

	if a.OutputFile != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Error encoding result: %v", err)
		}
		if err := os.WriteFile(a.OutputFile, data, 0644); err != nil {
			log.Fatalf("Error writing %s: %v", a.OutputFile, err)
		}
		fmt.Printf("Result written to %s\n", a.OutputFile)
	}

	if a.SVGFile != "" {
		if err := a.writeVectorRender(a.SVGFile, solid, &result, "svg"); err != nil {
			log.Fatalf("Error writing SVG: %v", err)
		}
		fmt.Printf("SVG render written to %s\n", a.SVGFile)
	}
	if a.PNGFile != "" {
		if err := a.writeVectorRender(a.PNGFile, solid, &result, "png"); err != nil {
			log.Fatalf("Error writing PNG: %v", err)
		}
		fmt.Printf("PNG render written to %s\n", a.PNGFile)
	}
}

// RunOnce loads every configured shape, analyzes it, and writes the
// report, the result JSON and an SVG render to the data directory.
func (a *App) RunOnce() {
	resolvedConfig := a.resolvedConfigPath()
	config, err := brep.LoadConfig(resolvedConfig)
	if err != nil {
		log.Fatalf("Failed to load config: %v (looked at %s)", err, resolvedConfig)
	}
	a.Config = config

	dataDir := a.effectiveDataDir()

	cfg := config.Analysis.DetectorConfig()
	if a.Tolerance > 0 {
		cfg.Tolerance = a.Tolerance
	}
	allPlanes := a.AllPlanes || config.Analysis.AllPlanes

	for _, sc := range config.Shapes {
		solid, err := a.loadConfiguredShape(sc, dataDir)
		if err != nil {
			fmt.Printf("Error loading %s: %v\n\n", sc.ID, err)
			continue
		}

		var result brep.SymmetryResult
		if allPlanes {
			result, err = brep.DetectAll(context.Background(), solid, cfg)
		} else {
			result, err = brep.Detect(context.Background(), solid, cfg)
		}
		if err != nil {
			fmt.Printf("Error analyzing %s: %v\n\n", sc.ID, err)
			continue
		}
		result.ShapeID = sc.ID

		fmt.Printf("=== %s ===\n", sc.ID)
		fmt.Print(brep.FormatReport(result))

		if path, err := brep.SaveResult(dataDir, result); err != nil {
			log.Printf("Warning: failed to save result for %s: %v", sc.ID, err)
		} else {
			fmt.Printf("Result saved to %s\n", path)
		}

		svgPath := filepath.Join(dataDir, sc.ID+"_symmetry.svg")
		if err := a.writeVectorRender(svgPath, solid, &result, "svg"); err != nil {
			log.Printf("Warning: failed to render %s: %v", sc.ID, err)
		} else {
			fmt.Printf("Render saved to %s\n", svgPath)
		}
		fmt.Println()
	}
}

// RunService starts the combined MQTT and HTTP analysis service
func (a *App) RunService() {
	fmt.Println("Starting symscan service...")

	// 1. Resolve the config path relative to data-dir if provided
	resolvedConfig := a.resolvedConfigPath()

	// 2. Load config.yaml (required)
	config, err := brep.LoadConfig(resolvedConfig)
	if err != nil {
		log.Fatalf("Failed to load config: %v (looked at %s)", err, resolvedConfig)
	}
	a.Config = config
	log.Printf("Loaded config from %s", resolvedConfig)

	dataDir := a.effectiveDataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory %s: %v", dataDir, err)
	}

	// 3. State tracker backed by the persisted analysis cache
	cachePath := filepath.Join(dataDir, brep.DefaultCachePath)
	a.StateTracker = brep.NewStateTrackerWithCache(cachePath)

	detectorCfg := config.Analysis.DetectorConfig()
	if a.Tolerance > 0 {
		detectorCfg.Tolerance = a.Tolerance
	}
	a.StateTracker.SetDetector(detectorCfg, a.AllPlanes || config.Analysis.AllPlanes)

	// 4. Auto analyzer drives analysis on shape arrival; the publisher
	// is attached once MQTT is up
	a.Analyzer = brep.NewAutoAnalyzer(config, a.StateTracker, nil, dataDir)

	// 5. Connect to MQTT
	mqttClient, err := brep.InitMQTT(config, a.Analyzer.OnShapeData)
	if err != nil {
		log.Fatalf("Failed to initialize MQTT: %v", err)
	}
	a.MQTTClient = mqttClient

	if mqttClient == nil {
		log.Fatal("MQTT broker not configured in config.yaml")
	}

	mqttClient.SetAnalyzeRequestHandler(a.Analyzer.OnAnalyzeRequest)

	a.Publisher = brep.NewPublisher(mqttClient.GetClient())
	a.Publisher.SetPrefix(config.MQTT.TopicPrefix)
	a.Analyzer.SetPublisher(a.Publisher)
	fmt.Println("MQTT result publisher initialized")

	// 6. Load configured shape files; anything the cache does not
	// cover gets analyzed right away
	if loaded := a.loadInitialShapes(dataDir); loaded > 0 {
		fmt.Printf("Loaded %d initial shape(s) from disk\n", loaded)
	}

	// 7. Start the HTTP server
	httpServer := newHTTPServer(a.StateTracker, a.Config, a.Analyzer)
	go func() {
		log.Printf("[HTTP] Starting server on %s", config.HTTPAddr)
		if err := http.ListenAndServe(config.HTTPAddr, httpServer); err != nil {
			log.Fatalf("[HTTP] Server error: %v", err)
		}
	}()

	// 8. Print service info
	fmt.Println("\nService Running")
	fmt.Println("===============")

	fmt.Println("\nMQTT:")
	fmt.Println("  Subscribed topics:")
	for _, sc := range config.Shapes {
		fmt.Printf("    - %s/shapes/%s/data\n", config.MQTT.TopicPrefix, sc.ID)
	}
	fmt.Printf("    - %s/analyze/request\n", config.MQTT.TopicPrefix)
	fmt.Printf("  Publishing results to: %s/results/{shapeID}\n", a.Publisher.Prefix())
	fmt.Printf("  Combined results: %s/results/combined\n", a.Publisher.Prefix())

	fmt.Printf("\nHTTP endpoints (%s):\n", config.HTTPAddr)
	fmt.Println("  GET  /health                   - Health check")
	fmt.Println("  GET  /api/results              - All analysis results")
	fmt.Println("  GET  /api/results/{id}         - One analysis result")
	fmt.Println("  GET  /api/results/{id}/geojson - Projected outlines and plane traces")
	fmt.Println("  GET  /render/{id}.svg          - Vector render")
	fmt.Println("  GET  /render/{id}.png          - Annotated raster render")
	fmt.Println("  POST /api/analyze              - Run an analysis")

	fmt.Println("\nPress Ctrl+C to stop")

	// 9. Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
}

// loadInitialShapes reads configured shape files from disk and feeds
// them through the analyzer's arrival flow, so cached results are
// honored and new files are analyzed immediately.
func (a *App) loadInitialShapes(dataDir string) int {
	loaded := 0
	for _, sc := range a.Config.Shapes {
		if sc.File == "" {
			continue
		}
		path := resolveShapePath(sc.File, dataDir)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: failed to read shape %s from %s: %v", sc.ID, path, err)
			continue
		}
		solid, err := brep.DecodeShapeData(data)
		if err != nil {
			log.Printf("Warning: failed to decode shape %s: %v", sc.ID, err)
			continue
		}
		a.Analyzer.OnShapeData(sc.ID, data, solid, nil)
		loaded++
	}
	return loaded
}

// resolveShape turns the -analyze/-summary argument into a shape ID and
// a loaded solid. A path to an existing file wins; otherwise the
// argument is looked up as a configured shape ID.
func (a *App) resolveShape(arg string) (string, brep.Solid, error) {
	if _, err := os.Stat(arg); err == nil {
		solid, err := brep.DecodeShapeFile(arg)
		if err != nil {
			return "", nil, err
		}
		id := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		return id, solid, nil
	}

	if a.Config != nil {
		if sc := a.Config.GetShapeByID(arg); sc != nil {
			solid, err := a.loadConfiguredShape(*sc, a.effectiveDataDir())
			if err != nil {
				return "", nil, err
			}
			return sc.ID, solid, nil
		}
	}

	return "", nil, fmt.Errorf("%s is neither a shape file nor a configured shape ID", arg)
}

// loadConfiguredShape loads one configured shape from its file or URL.
func (a *App) loadConfiguredShape(sc brep.ShapeConfig, dataDir string) (brep.Solid, error) {
	if sc.File != "" {
		solid, err := brep.DecodeShapeFile(resolveShapePath(sc.File, dataDir))
		if err != nil {
			return nil, err
		}
		return solid, nil
	}
	if sc.URL != "" {
		solid, err := brep.FetchShapeFromURL(sc.URL)
		if err != nil {
			return nil, err
		}
		return solid, nil
	}
	return nil, fmt.Errorf("shape %s has no file or url", sc.ID)
}

// writeVectorRender projects the solid and writes an SVG or PNG render
// to the given path.
func (a *App) writeVectorRender(path string, solid brep.Solid, result *brep.SymmetryResult, format string) error {
	ps, err := brep.ProjectSolid(solid, result, viewDirection(a.Config))
	if err != nil {
		return fmt.Errorf("projecting shape: %w", err)
	}

	renderer := brep.NewResultVectorRenderer(ps)
	applyRenderConfig(renderer, a.Config)

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if format == "png" {
		err = renderer.RenderToPNG(f)
	} else {
		err = renderer.RenderToSVG(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// loadConfigOptional loads the config file when present. One-shot modes
// work without one as long as the target is a local shape file.
func (a *App) loadConfigOptional() *brep.Config {
	path := a.resolvedConfigPath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	config, err := brep.LoadConfig(path)
	if err != nil {
		log.Printf("Warning: Failed to load config file %s: %v", path, err)
		return nil
	}
	log.Printf("Loaded config from %s", path)
	return config
}

// resolvedConfigPath resolves the config file relative to the data
// directory when the -config flag was left at its default.
func (a *App) resolvedConfigPath() string {
	if a.DataDir != "." && a.ConfigFile == "config.yaml" {
		return filepath.Join(a.DataDir, "config.yaml")
	}
	return a.ConfigFile
}

// effectiveDataDir prefers an explicit -data-dir flag over the config
// file's dataDir.
func (a *App) effectiveDataDir() string {
	if a.DataDir != "" && a.DataDir != "." {
		return a.DataDir
	}
	if a.Config != nil && a.Config.DataDir != "" {
		return a.Config.DataDir
	}
	return a.DataDir
}

// resolveShapePath returns the first existing candidate for a configured
// shape file: the path as given, then relative to the data directory.
func resolveShapePath(file, dataDir string) string {
	if filepath.IsAbs(file) {
		return file
	}
	if _, err := os.Stat(file); err == nil {
		return file
	}
	joined := filepath.Join(dataDir, file)
	if _, err := os.Stat(joined); err == nil {
		return joined
	}
	return file
}
