package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kwv/symscan/brep"
)

// boxShapeJSON is a 2x2x2 box in the native shape document form.
const boxShapeJSON = `{
  "name": "box",
  "vertices": [
    [-1, -1, -1], [1, -1, -1], [1, 1, -1], [-1, 1, -1],
    [-1, -1, 1], [1, -1, 1], [1, 1, 1], [-1, 1, 1]
  ],
  "faces": [
    {"loops": [[0, 4, 7, 3]]},
    {"loops": [[1, 2, 6, 5]]},
    {"loops": [[0, 1, 5, 4]]},
    {"loops": [[3, 7, 6, 2]]},
    {"loops": [[0, 3, 2, 1]]},
    {"loops": [[4, 5, 6, 7]]}
  ]
}`

// writeBoxShapeFile writes the box fixture to the given path.
func writeBoxShapeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(boxShapeJSON), 0644); err != nil {
		t.Fatalf("Failed to write shape file: %v", err)
	}
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app == nil {
		t.Fatal("NewApp returned nil")
		return
	}
	if app.StateTracker == nil {
		t.Error("StateTracker should be initialized")
	}
}

// ---------------------------------------------------------------------------
// path resolution helpers
// ---------------------------------------------------------------------------

func TestResolveShapePath(t *testing.T) {
	tmpDir := t.TempDir()
	inDataDir := filepath.Join(tmpDir, "stored.json")
	writeBoxShapeFile(t, inDataDir)

	tests := []struct {
		name string
		file string
		want string
	}{
		{
			name: "absolute path returned as-is",
			file: inDataDir,
			want: inDataDir,
		},
		{
			name: "relative file under data dir",
			file: "stored.json",
			want: inDataDir,
		},
		{
			name: "missing file returned as given",
			file: "nowhere.json",
			want: "nowhere.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveShapePath(tt.file, tmpDir)
			if got != tt.want {
				t.Errorf("resolveShapePath(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestResolvedConfigPath(t *testing.T) {
	tests := []struct {
		name       string
		configFile string
		dataDir    string
		want       string
	}{
		{
			name:       "default flags",
			configFile: "config.yaml",
			dataDir:    ".",
			want:       "config.yaml",
		},
		{
			name:       "data dir set, config default",
			configFile: "config.yaml",
			dataDir:    "/data",
			want:       filepath.Join("/data", "config.yaml"),
		},
		{
			name:       "explicit config wins over data dir",
			configFile: "/etc/symscan.yaml",
			dataDir:    "/data",
			want:       "/etc/symscan.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp()
			app.ConfigFile = tt.configFile
			app.DataDir = tt.dataDir
			if got := app.resolvedConfigPath(); got != tt.want {
				t.Errorf("resolvedConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEffectiveDataDir(t *testing.T) {
	tests := []struct {
		name   string
		flag   string
		config *brep.Config
		want   string
	}{
		{
			name: "flag wins",
			flag: "/flag/dir",
			config: &brep.Config{
				DataDir: "/config/dir",
			},
			want: "/flag/dir",
		},
		{
			name: "config fallback when flag is default",
			flag: ".",
			config: &brep.Config{
				DataDir: "/config/dir",
			},
			want: "/config/dir",
		},
		{
			name:   "default without config",
			flag:   ".",
			config: nil,
			want:   ".",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp()
			app.DataDir = tt.flag
			app.Config = tt.config
			if got := app.effectiveDataDir(); got != tt.want {
				t.Errorf("effectiveDataDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// loadConfigOptional
// ---------------------------------------------------------------------------

func TestLoadConfigOptional_Missing(t *testing.T) {
	app := NewApp()
	app.ConfigFile = filepath.Join(t.TempDir(), "config.yaml")

	if config := app.loadConfigOptional(); config != nil {
		t.Errorf("expected nil config for missing file, got %+v", config)
	}
}

func TestLoadConfigOptional_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	// Parses as YAML but fails validation: no broker, no shapes.
	if err := os.WriteFile(path, []byte("dataDir: /tmp\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	app := NewApp()
	app.ConfigFile = path

	if config := app.loadConfigOptional(); config != nil {
		t.Errorf("expected nil config for invalid file, got %+v", config)
	}
}

func TestLoadConfigOptional_Valid(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `mqtt:
  broker: tcp://localhost:1883
shapes:
  - id: box
    file: box.json
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	app := NewApp()
	app.ConfigFile = path

	config := app.loadConfigOptional()
	if config == nil {
		t.Fatal("expected config, got nil")
	}
	if config.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("broker = %q, want tcp://localhost:1883", config.MQTT.Broker)
	}
	if len(config.Shapes) != 1 || config.Shapes[0].ID != "box" {
		t.Errorf("shapes = %+v, want one shape with id box", config.Shapes)
	}
}

// ---------------------------------------------------------------------------
// resolveShape / loadConfiguredShape
// ---------------------------------------------------------------------------

func TestResolveShape_File(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "gadget.json")
	writeBoxShapeFile(t, path)

	app := NewApp()
	id, solid, err := app.resolveShape(path)
	if err != nil {
		t.Fatalf("resolveShape() error = %v", err)
	}
	if id != "gadget" {
		t.Errorf("id = %q, want %q (file stem)", id, "gadget")
	}
	if got := len(solid.Faces()); got != 6 {
		t.Errorf("faces = %d, want 6", got)
	}
}

func TestResolveShape_ConfiguredID(t *testing.T) {
	tmpDir := t.TempDir()
	writeBoxShapeFile(t, filepath.Join(tmpDir, "box.json"))

	app := NewApp()
	app.DataDir = tmpDir
	app.Config = &brep.Config{
		Shapes: []brep.ShapeConfig{
			{ID: "box", File: "box.json"},
		},
	}

	id, solid, err := app.resolveShape("box")
	if err != nil {
		t.Fatalf("resolveShape() error = %v", err)
	}
	if id != "box" {
		t.Errorf("id = %q, want %q", id, "box")
	}
	if solid == nil {
		t.Fatal("solid is nil")
	}
}

func TestResolveShape_Unknown(t *testing.T) {
	app := NewApp()
	_, _, err := app.resolveShape("missing")
	if err == nil {
		t.Fatal("expected error for unknown shape")
	}
	if !strings.Contains(err.Error(), "neither a shape file nor a configured shape ID") {
		t.Errorf("error = %v, want unknown-shape message", err)
	}
}

func TestLoadConfiguredShape_NoSource(t *testing.T) {
	app := NewApp()
	_, err := app.loadConfiguredShape(brep.ShapeConfig{ID: "empty"}, ".")
	if err == nil {
		t.Fatal("expected error for shape without file or url")
	}
	if !strings.Contains(err.Error(), "no file or url") {
		t.Errorf("error = %v, want no-source message", err)
	}
}

// ---------------------------------------------------------------------------
// writeVectorRender
// ---------------------------------------------------------------------------

func TestWriteVectorRender_SVG(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "box.svg")

	app := NewApp()
	result := boxResult("box")

	if err := app.writeVectorRender(path, boxSolid(t), result, "svg"); err != nil {
		t.Fatalf("writeVectorRender() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read render: %v", err)
	}
	if len(data) == 0 {
		t.Error("render file is empty")
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("render does not look like SVG")
	}
}

func TestWriteVectorRender_PNG(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "box.png")

	app := NewApp()
	// A small page keeps rasterization cheap.
	app.Config = &brep.Config{
		Render: brep.RenderConfig{WidthMM: 60, Resolution: 72},
	}

	if err := app.writeVectorRender(path, boxSolid(t), nil, "png"); err != nil {
		t.Fatalf("writeVectorRender() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read render: %v", err)
	}
	// PNG signature
	if len(data) < 8 || data[0] != 0x89 || data[1] != 'P' {
		t.Error("render does not look like PNG")
	}
}

func TestWriteVectorRender_BadPath(t *testing.T) {
	app := NewApp()
	err := app.writeVectorRender(filepath.Join(t.TempDir(), "missing", "box.svg"), boxSolid(t), nil, "svg")
	if err == nil {
		t.Error("expected error for uncreatable path")
	}
}

// ---------------------------------------------------------------------------
// loadInitialShapes
// ---------------------------------------------------------------------------

func TestLoadInitialShapes(t *testing.T) {
	tmpDir := t.TempDir()
	writeBoxShapeFile(t, filepath.Join(tmpDir, "box.json"))

	app := NewApp()
	app.Config = &brep.Config{
		Shapes: []brep.ShapeConfig{
			{ID: "box", File: "box.json"},
			{ID: "remote", URL: "http://example.com/shape.json"}, // skipped, no file
			{ID: "gone", File: "gone.json"},                      // skipped, unreadable
		},
	}
	app.Analyzer = brep.NewAutoAnalyzer(app.Config, app.StateTracker, nil, "")

	loaded := app.loadInitialShapes(tmpDir)
	if loaded != 1 {
		t.Errorf("loaded = %d, want 1", loaded)
	}

	if _, ok := app.StateTracker.GetSolid("box"); !ok {
		t.Error("box solid was not stored")
	}
	// Arrival flow runs the analysis too.
	result, ok := app.StateTracker.GetResult("box")
	if !ok {
		t.Fatal("box was not analyzed")
	}
	if result.Status != brep.StatusFull {
		t.Errorf("status = %q, want %q", result.Status, brep.StatusFull)
	}
}

func TestLoadInitialShapes_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "bad.json"), []byte("{not a shape"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	app := NewApp()
	app.Config = &brep.Config{
		Shapes: []brep.ShapeConfig{{ID: "bad", File: "bad.json"}},
	}
	app.Analyzer = brep.NewAutoAnalyzer(app.Config, app.StateTracker, nil, "")

	if loaded := app.loadInitialShapes(tmpDir); loaded != 0 {
		t.Errorf("loaded = %d, want 0 (undecodable files are skipped)", loaded)
	}
}

// ---------------------------------------------------------------------------
// one-shot runs
// ---------------------------------------------------------------------------

func TestRunSummary_File(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "box.json")
	writeBoxShapeFile(t, path)

	app := NewApp()
	app.ConfigFile = filepath.Join(tmpDir, "config.yaml") // absent; summary works without it

	// Should not fatal on a valid file.
	app.RunSummary(path)
}

func TestRunAnalyze_WithOutputs(t *testing.T) {
	tmpDir := t.TempDir()
	shapePath := filepath.Join(tmpDir, "box.json")
	writeBoxShapeFile(t, shapePath)

	app := NewApp()
	app.ConfigFile = filepath.Join(tmpDir, "config.yaml")
	app.OutputFile = filepath.Join(tmpDir, "result.json")
	app.SVGFile = filepath.Join(tmpDir, "render.svg")

	app.RunAnalyze(shapePath)

	result, err := brep.LoadResult(app.OutputFile)
	if err != nil {
		t.Fatalf("LoadResult() error = %v", err)
	}
	if result == nil {
		t.Fatal("result JSON was not written")
	}
	if result.ShapeID != "box" {
		t.Errorf("shapeId = %q, want %q", result.ShapeID, "box")
	}
	if result.Status != brep.StatusFull {
		t.Errorf("status = %q, want %q", result.Status, brep.StatusFull)
	}

	svg, err := os.ReadFile(app.SVGFile)
	if err != nil {
		t.Fatalf("Failed to read SVG render: %v", err)
	}
	if len(svg) == 0 {
		t.Error("SVG render is empty")
	}
}

func TestRunOnce(t *testing.T) {
	tmpDir := t.TempDir()
	writeBoxShapeFile(t, filepath.Join(tmpDir, "box.json"))
	yaml := `mqtt:
  broker: tcp://localhost:1883
shapes:
  - id: box
    file: box.json
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	app := NewApp()
	app.ConfigFile = "config.yaml"
	app.DataDir = tmpDir

	app.RunOnce()

	// Result JSON and SVG render land in the data directory.
	result, err := brep.LoadResult(filepath.Join(tmpDir, brep.ResultFileName("box")))
	if err != nil {
		t.Fatalf("LoadResult() error = %v", err)
	}
	if result == nil {
		t.Fatal("result was not saved")
	}
	if result.ShapeID != "box" {
		t.Errorf("shapeId = %q, want %q", result.ShapeID, "box")
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "box_symmetry.svg")); err != nil {
		t.Errorf("SVG render was not written: %v", err)
	}
}
