package brep

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
)

// Solid is the read-only boundary representation the detector works on.
// Face order must be stable: face indices in results refer to it.
type Solid interface {
	Faces() []Face
	BoundingBox() (min, max r3.Vector)
}

// Face is one bounded portion of a solid's boundary surface.
type Face interface {
	Area() float64
	Perimeter() float64
	CenterOfMass() r3.Vector
	Vertices() []r3.Vector
	Edges() []Edge
	BoundingBoxDiagonal() float64

	// Transformed returns a reflected copy; the receiver is not mutated.
	Transformed(r Reflection) Face

	// DistanceTo returns the minimum distance from p to the face surface.
	DistanceTo(p r3.Vector) (float64, error)
}

// Edge is one boundary curve of a face.
type Edge interface {
	Length() float64
	ParameterRange() (t0, t1 float64)

	// PointAt evaluates the curve at parameter t. Evaluation may fail on
	// degenerate edges; callers treat a failed sample as missing data.
	PointAt(t float64) (r3.Vector, error)
}

// MirrorPlane is a candidate symmetry plane: a point on the plane and a
// unit normal. Any point on the plane is an equivalent representative.
type MirrorPlane struct {
	Point  r3.Vector
	Normal r3.Vector
}

// FacePair records two faces found to be mirror images of each other,
// tagged with the reflection plane that maps one onto the other.
// I < J always; Normal is the unit vector from face I's center toward
// face J's center.
type FacePair struct {
	I        int
	J        int
	Midpoint r3.Vector
	Normal   r3.Vector
}

// PlaneGroup is a cluster of face pairs sharing one plane orientation.
type PlaneGroup struct {
	Pairs     []FacePair
	Plane     MirrorPlane
	Coverage  float64
	FaceCount int
}

// PlaneRecord is the reported form of a surviving plane group.
type PlaneRecord struct {
	Plane     MirrorPlane `json:"plane"`
	Coverage  float64     `json:"coverage"`
	FaceCount int         `json:"faceCount"`
	Pairs     []FacePair  `json:"pairs"`
}

// SymmetryResult packages one analysis run for reporting, persistence
// and publishing.
type SymmetryResult struct {
	ShapeID    string        `json:"shapeId"`
	TotalFaces int           `json:"totalFaces"`
	TotalPairs int           `json:"totalPairs"`
	Status     string        `json:"status"`
	Planes     []PlaneRecord `json:"planes"`
	ElapsedMS  float64       `json:"elapsedMs"`
	Timestamp  int64         `json:"timestamp"`
}

// Status strings reported by the single-plane and all-planes variants.
const (
	StatusNoPairs        = "No symmetrical faces found"
	StatusNoSignificant  = "No significant symmetry detected"
	StatusPartial        = "Partial symmetry detected"
	StatusFull           = "Full symmetry detected"
	StatusMultiplePlanes = "Multiple symmetry planes detected"
)

// AnalysisRequest is the request payload accepted on the analyze topic
// and the HTTP analyze endpoint. ShapeID names the shape the result is
// stored under and is required; URL optionally points at the boundary
// data to fetch when no stored data is held for that ID.
type AnalysisRequest struct {
	ShapeID   string  `json:"shapeId,omitempty"`
	URL       string  `json:"url,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`
	AllPlanes bool    `json:"allPlanes,omitempty"`
}

// ShapeConfig defines one shape source from the config file.
type ShapeConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	File string `yaml:"file,omitempty" json:"file,omitempty"` // local path
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`   // remote fetch
}

// AnalysisConfig holds detection tuning from the config file.
// Zero values fall back to the package defaults.
type AnalysisConfig struct {
	Tolerance   float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	MinCoverage float64 `yaml:"minCoverage,omitempty" json:"minCoverage,omitempty"`
	AllPlanes   bool    `yaml:"allPlanes,omitempty" json:"allPlanes,omitempty"`
	Workers     int     `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// RenderConfig holds projection and output settings for renders.
type RenderConfig struct {
	View       []float64 `yaml:"view,omitempty" json:"view,omitempty"` // view direction, 3 components
	WidthMM    float64   `yaml:"widthMm,omitempty" json:"widthMm,omitempty"`
	Resolution float64   `yaml:"resolution,omitempty" json:"resolution,omitempty"` // raster DPI
}

// Config represents the full configuration file.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	Shapes   []ShapeConfig  `yaml:"shapes" json:"shapes"`
	Analysis AnalysisConfig `yaml:"analysis,omitempty" json:"analysis,omitempty"`
	Render   RenderConfig   `yaml:"render,omitempty" json:"render,omitempty"`
	DataDir  string         `yaml:"dataDir,omitempty" json:"dataDir,omitempty"`
	HTTPAddr string         `yaml:"httpAddr,omitempty" json:"httpAddr,omitempty"`
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker" json:"broker"`
	TopicPrefix string `yaml:"topicPrefix" json:"topicPrefix"`
	ClientID    string `yaml:"clientId" json:"clientId"`
	Username    string `yaml:"username,omitempty" json:"username,omitempty"`
	Password    string `yaml:"password,omitempty" json:"password,omitempty"`
}

// GetShapeByID returns the shape config for the given ID.
func (c *Config) GetShapeByID(id string) *ShapeConfig {
	for i := range c.Shapes {
		if c.Shapes[i].ID == id {
			return &c.Shapes[i]
		}
	}
	return nil
}

// ViewDirection returns the configured view direction or the +Z default.
func (c *Config) ViewDirection() r3.Vector {
	if len(c.Render.View) == 3 {
		v := r3.Vector{X: c.Render.View[0], Y: c.Render.View[1], Z: c.Render.View[2]}
		if v.Norm() > 0 {
			return v.Normalize()
		}
	}
	return r3.Vector{Z: 1}
}

// vecJSON is the wire form of a 3D vector: a plain [x, y, z] array.
type vecJSON [3]float64

func toVecJSON(v r3.Vector) vecJSON { return vecJSON{v.X, v.Y, v.Z} }
func (a vecJSON) vector() r3.Vector { return r3.Vector{X: a[0], Y: a[1], Z: a[2]} }

// MarshalJSON encodes the plane as {"point":[x,y,z],"normal":[x,y,z]}.
func (mp MirrorPlane) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Point  vecJSON `json:"point"`
		Normal vecJSON `json:"normal"`
	}{toVecJSON(mp.Point), toVecJSON(mp.Normal)})
}

// UnmarshalJSON decodes the array-based plane encoding.
func (mp *MirrorPlane) UnmarshalJSON(data []byte) error {
	var w struct {
		Point  vecJSON `json:"point"`
		Normal vecJSON `json:"normal"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parsing mirror plane: %w", err)
	}
	mp.Point = w.Point.vector()
	mp.Normal = w.Normal.vector()
	return nil
}

// MarshalJSON encodes the pair with 3-element coordinate arrays.
func (p FacePair) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		I        int     `json:"i"`
		J        int     `json:"j"`
		Midpoint vecJSON `json:"midpoint"`
		Normal   vecJSON `json:"normal"`
	}{p.I, p.J, toVecJSON(p.Midpoint), toVecJSON(p.Normal)})
}

// UnmarshalJSON decodes the array-based pair encoding.
func (p *FacePair) UnmarshalJSON(data []byte) error {
	var w struct {
		I        int     `json:"i"`
		J        int     `json:"j"`
		Midpoint vecJSON `json:"midpoint"`
		Normal   vecJSON `json:"normal"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parsing face pair: %w", err)
	}
	p.I = w.I
	p.J = w.J
	p.Midpoint = w.Midpoint.vector()
	p.Normal = w.Normal.vector()
	return nil
}
