package brep

import (
	"encoding/json"

	"github.com/paulmach/orb"
)

// GeometryType represents the GeoJSON geometry type
type GeometryType string

const (
	GeometryPoint           GeometryType = "Point"
	GeometryLineString      GeometryType = "LineString"
	GeometryPolygon         GeometryType = "Polygon"
	GeometryMultiPoint      GeometryType = "MultiPoint"
	GeometryMultiLineString GeometryType = "MultiLineString"
	GeometryMultiPolygon    GeometryType = "MultiPolygon"
)

// Geometry represents a GeoJSON geometry object
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature represents a GeoJSON feature with geometry and properties
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	ID         interface{}            `json:"id,omitempty"`
}

// FeatureCollection represents a GeoJSON FeatureCollection
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// NewFeatureCollection creates a new empty FeatureCollection
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]*Feature, 0),
	}
}

// AddFeature appends a feature to the collection
func (fc *FeatureCollection) AddFeature(f *Feature) {
	fc.Features = append(fc.Features, f)
}

// NewFeature creates a Feature with the given geometry and properties
func NewFeature(geom *Geometry, props map[string]interface{}) *Feature {
	if props == nil {
		props = make(map[string]interface{})
	}
	return &Feature{
		Type:       "Feature",
		Geometry:   geom,
		Properties: props,
	}
}

// ResultFeatureCollection converts a projected shape to GeoJSON for web
// viewers: one Polygon per face outline, the silhouette, and per plane
// the viewport trace line and the plane rectangle.
func ResultFeatureCollection(ps *ProjectedShape) *FeatureCollection {
	fc := NewFeatureCollection()
	if ps == nil {
		return fc
	}

	for _, face := range ps.Faces {
		props := map[string]interface{}{
			"kind":      "face",
			"faceIndex": face.Index,
			"area":      face.Area,
			"paired":    face.Paired(),
		}
		if len(face.PlaneIndexes) > 0 {
			props["planeIndexes"] = face.PlaneIndexes
		}
		fc.AddFeature(NewFeature(polygonGeometry(face.Outline), props))
	}

	if len(ps.Silhouette) > 0 {
		fc.AddFeature(NewFeature(ringGeometry(ps.Silhouette), map[string]interface{}{
			"kind": "silhouette",
		}))
	}

	for _, plane := range ps.Planes {
		props := map[string]interface{}{
			"kind":       "planeTrace",
			"planeIndex": plane.Index,
			"coverage":   plane.Coverage,
			"faceCount":  plane.FaceCount,
		}
		if len(plane.Trace) >= 2 {
			fc.AddFeature(NewFeature(lineStringGeometry(plane.Trace), props))
		}

		quadProps := map[string]interface{}{
			"kind":       "planeQuad",
			"planeIndex": plane.Index,
			"coverage":   plane.Coverage,
			"faceCount":  plane.FaceCount,
		}
		fc.AddFeature(NewFeature(ringGeometry(plane.Quad), quadProps))
	}

	return fc
}

// polygonGeometry converts an orb.Polygon to a GeoJSON Polygon geometry.
// The first ring is the outer boundary, subsequent rings are holes.
func polygonGeometry(poly orb.Polygon) *Geometry {
	rings := make([][][2]float64, len(poly))
	for i, ring := range poly {
		rings[i] = ringCoords(ring)
	}
	coordsJSON, _ := json.Marshal(rings)
	return &Geometry{
		Type:        GeometryPolygon,
		Coordinates: coordsJSON,
	}
}

// ringGeometry converts a single closed ring to a GeoJSON Polygon.
func ringGeometry(ring orb.Ring) *Geometry {
	coordsJSON, _ := json.Marshal([][][2]float64{ringCoords(ring)})
	return &Geometry{
		Type:        GeometryPolygon,
		Coordinates: coordsJSON,
	}
}

// lineStringGeometry converts an orb.LineString to a GeoJSON LineString.
func lineStringGeometry(ls orb.LineString) *Geometry {
	coords := make([][2]float64, len(ls))
	for i, p := range ls {
		coords[i] = [2]float64{p[0], p[1]}
	}
	coordsJSON, _ := json.Marshal(coords)
	return &Geometry{
		Type:        GeometryLineString,
		Coordinates: coordsJSON,
	}
}

// ringCoords copies ring points into coordinate pairs, closing the ring
// when the source is not already closed.
func ringCoords(ring orb.Ring) [][2]float64 {
	coords := make([][2]float64, len(ring))
	for i, p := range ring {
		coords[i] = [2]float64{p[0], p[1]}
	}
	if len(coords) > 0 {
		first := coords[0]
		last := coords[len(coords)-1]
		if first[0] != last[0] || first[1] != last[1] {
			coords = append(coords, first)
		}
	}
	return coords
}
