package brep

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
)

// maxListedPairs caps the per-plane pair listing in reports. Planes with
// this many pairs or more print only the count.
const maxListedPairs = 10

// FormatReport renders an analysis as the human-readable report printed
// by the CLI and published alongside the JSON result.
func FormatReport(result SymmetryResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyzed shape: %s\n", result.ShapeID)
	fmt.Fprintf(&b, "Total faces: %d\n", result.TotalFaces)
	fmt.Fprintf(&b, "Symmetric face pairs found: %d\n", result.TotalPairs)
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Number of mirror planes detected: %d\n", len(result.Planes))

	for idx, plane := range result.Planes {
		fmt.Fprintf(&b, "\nMirror Plane #%d:\n", idx+1)
		fmt.Fprintf(&b, "  Point: %s\n", formatVec(plane.Plane.Point))
		fmt.Fprintf(&b, "  Normal: %s\n", formatVec(plane.Plane.Normal))
		fmt.Fprintf(&b, "  Coverage: %.1f%%\n", plane.Coverage*100)
		fmt.Fprintf(&b, "  Face pairs: %d\n", len(plane.Pairs))
		if len(plane.Pairs) < maxListedPairs {
			fmt.Fprintf(&b, "  Paired faces:\n")
			for _, p := range plane.Pairs {
				fmt.Fprintf(&b, "    Face %d ↔ Face %d\n", p.I+1, p.J+1)
			}
		}
	}

	return b.String()
}

// Summary returns a one-line digest for logs.
func (r SymmetryResult) Summary() string {
	return fmt.Sprintf("%s: %s (%d faces, %d pairs, %d planes)",
		r.ShapeID, r.Status, r.TotalFaces, r.TotalPairs, len(r.Planes))
}

func formatVec(v r3.Vector) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}

// ResultFileName returns the conventional result file name for a shape.
func ResultFileName(shapeID string) string {
	return shapeID + "_symmetry.json"
}

// SaveResult writes the result into dir under the conventional name and
// returns the full path.
func SaveResult(dir string, result SymmetryResult) (string, error) {
	if result.ShapeID == "" {
		return "", fmt.Errorf("result has no shape ID")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating result directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}

	path := filepath.Join(dir, ResultFileName(result.ShapeID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing result file: %w", err)
	}

	return path, nil
}

// LoadResult reads a previously saved result. A missing file is not an
// error; it returns (nil, nil) like an empty cache.
func LoadResult(path string) (*SymmetryResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading result file: %w", err)
	}

	var result SymmetryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing result file: %w", err)
	}

	return &result, nil
}
