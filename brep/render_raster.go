package brep

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Greyscale colors shared by the raster drawing
var (
	rasterBackground = color.RGBA{240, 240, 240, 255}
	rasterFaceFill   = color.NRGBA{226, 226, 226, 255}
	rasterFaceEdge   = color.RGBA{90, 90, 90, 255}
)

// ResultRenderer rasterizes a projected shape with its mirror planes
// into an image, including a text legend. The vector renderer produces
// nicer output but cannot label planes without font loading, so HTTP
// clients that want annotated images get this one.
type ResultRenderer struct {
	Projection *ProjectedShape
	Result     *SymmetryResult
	WidthPx    int // target image width in pixels
	Padding    int // padding around the drawing
}

// NewResultRenderer creates a renderer with default settings
func NewResultRenderer(ps *ProjectedShape, result *SymmetryResult) *ResultRenderer {
	return &ResultRenderer{
		Projection: ps,
		Result:     result,
		WidthPx:    800,
		Padding:    30,
	}
}

// Render creates the annotated image
func (r *ResultRenderer) Render() *image.RGBA {
	ps := r.Projection
	b := ps.Bound
	bw := b.Max[0] - b.Min[0]
	bh := b.Max[1] - b.Min[1]

	widthPx := r.WidthPx
	if widthPx <= 0 {
		widthPx = 800
	}
	scale := 1.0
	if bw > 0 {
		scale = float64(widthPx-2*r.Padding) / bw
	}
	height := int(bh*scale) + 2*r.Padding

	// Limit size
	if height > 4000 {
		scale *= float64(4000-2*r.Padding) / (bh * scale)
		height = 4000
		widthPx = int(bw*scale) + 2*r.Padding
	}
	if widthPx <= 0 {
		widthPx = 1
	}
	if height <= 0 {
		height = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, widthPx, height))
	for y := 0; y < height; y++ {
		for x := 0; x < widthPx; x++ {
			img.Set(x, y, rasterBackground)
		}
	}

	// Projected coordinates have the vertical axis pointing up, image
	// coordinates point down, so flip Y.
	toImage := func(p orb.Point) image.Point {
		x := int((p[0]-b.Min[0])*scale) + r.Padding
		y := height - 1 - (int((p[1]-b.Min[1])*scale) + r.Padding)
		return image.Point{X: x, Y: y}
	}
	ringPoints := func(ring orb.Ring) []image.Point {
		pts := make([]image.Point, 0, len(ring))
		for _, p := range ring {
			pts = append(pts, toImage(p))
		}
		return pts
	}

	// First pass: face fills (grey for unpaired, plane tint for paired)
	for _, face := range ps.Faces {
		fill := rasterFaceFill
		if face.Paired() {
			fill = withAlpha(PlaneColor(face.PlaneIndexes[0]), 110)
		}
		rings := make([][]image.Point, 0, len(face.Outline))
		for _, ring := range face.Outline {
			rings = append(rings, ringPoints(ring))
		}
		fillPolygonEvenOdd(img, rings, fill)
	}

	// Second pass: face outlines
	for _, face := range ps.Faces {
		for _, ring := range face.Outline {
			pts := ringPoints(ring)
			for i := 0; i < len(pts); i++ {
				p1 := pts[i]
				p2 := pts[(i+1)%len(pts)]
				drawLine(img, p1, p2, 1, rasterFaceEdge)
			}
		}
	}

	// Silhouette outline
	if len(ps.Silhouette) > 1 {
		pts := ringPoints(ps.Silhouette)
		for i := 0; i < len(pts); i++ {
			drawLine(img, pts[i], pts[(i+1)%len(pts)], 2, color.RGBA{0, 0, 0, 255})
		}
	}

	// Third pass: plane traces (dashed) and normal indicators
	for _, plane := range ps.Planes {
		pc := PlaneColor(plane.Index)
		solid := color.RGBA{pc.R, pc.G, pc.B, 255}

		if len(plane.Trace) >= 2 {
			p1 := toImage(plane.Trace[0])
			p2 := toImage(plane.Trace[len(plane.Trace)-1])
			drawDashedLine(img, p1, p2, 2, 8, solid)
		}
		if len(plane.Normal) >= 2 {
			p1 := toImage(plane.Normal[0])
			p2 := toImage(plane.Normal[1])
			drawLine(img, p1, p2, 1, solid)
		}
	}

	r.drawLegend(img)

	return img
}

// WritePNG renders and encodes the image to the writer
func (r *ResultRenderer) WritePNG(w io.Writer) error {
	return png.Encode(w, r.Render())
}

// SavePNG renders and saves the image to a file
func (r *ResultRenderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, r.Render())
}

// drawLegend adds the status line and one labeled swatch per plane
func (r *ResultRenderer) drawLegend(img *image.RGBA) {
	y := 15
	if r.Result != nil {
		drawText(img, 10, y, r.Result.Status, color.RGBA{0, 0, 0, 255})
		y += 18
	}

	for _, plane := range r.Projection.Planes {
		pc := PlaneColor(plane.Index)
		swatch := color.RGBA{pc.R, pc.G, pc.B, 255}

		// Draw color swatch (12x12 square)
		for dy := 0; dy < 12; dy++ {
			for dx := 0; dx < 12; dx++ {
				img.Set(10+dx, y+dy-6, swatch)
			}
		}

		label := fmt.Sprintf("plane %d: %d faces, %.0f%% coverage",
			plane.Index, plane.FaceCount, plane.Coverage*100)
		drawText(img, 28, y, label, color.RGBA{0, 0, 0, 255})

		y += 18
	}
}

// fillPolygonEvenOdd fills a polygon given as rings of image points.
// Holes are handled by even-odd scanline parity, so ring orientation
// does not matter here.
func fillPolygonEvenOdd(img *image.RGBA, rings [][]image.Point, c color.NRGBA) {
	bounds := img.Bounds()
	minY, maxY := bounds.Max.Y, bounds.Min.Y
	for _, ring := range rings {
		for _, p := range ring {
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	if minY < bounds.Min.Y {
		minY = bounds.Min.Y
	}
	if maxY >= bounds.Max.Y {
		maxY = bounds.Max.Y - 1
	}

	for y := minY; y <= maxY; y++ {
		// Sample at pixel centers so horizontal edges do not double-count.
		fy := float64(y) + 0.5
		var xs []float64
		for _, ring := range rings {
			n := len(ring)
			for i := 0; i < n; i++ {
				p1 := ring[i]
				p2 := ring[(i+1)%n]
				y1, y2 := float64(p1.Y), float64(p2.Y)
				if (y1 <= fy && y2 > fy) || (y2 <= fy && y1 > fy) {
					t := (fy - y1) / (y2 - y1)
					xs = append(xs, float64(p1.X)+t*float64(p2.X-p1.X))
				}
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)

		for i := 0; i+1 < len(xs); i += 2 {
			x1 := int(xs[i])
			x2 := int(xs[i+1])
			if x1 < bounds.Min.X {
				x1 = bounds.Min.X
			}
			if x2 >= bounds.Max.X {
				x2 = bounds.Max.X - 1
			}
			for x := x1; x <= x2; x++ {
				if c.A == 255 {
					img.Set(x, y, c)
				} else {
					img.Set(x, y, blendColors(img.RGBAAt(x, y), c))
				}
			}
		}
	}
}

// drawLine draws a straight line with the given thickness
func drawLine(img *image.RGBA, p1, p2 image.Point, thickness int, c color.RGBA) {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	if steps == 0 {
		drawSquare(img, p1.X, p1.Y, thickness, c)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := p1.X + int(t*float64(dx))
		y := p1.Y + int(t*float64(dy))
		drawSquare(img, x, y, thickness, c)
	}
}

// drawDashedLine draws a line with on/off dashes of dashLen pixels
func drawDashedLine(img *image.RGBA, p1, p2 image.Point, thickness, dashLen int, c color.RGBA) {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	if steps == 0 {
		drawSquare(img, p1.X, p1.Y, thickness, c)
		return
	}
	if dashLen < 1 {
		dashLen = 1
	}
	for i := 0; i <= steps; i++ {
		if (i/dashLen)%2 == 1 {
			continue
		}
		t := float64(i) / float64(steps)
		x := p1.X + int(t*float64(dx))
		y := p1.Y + int(t*float64(dy))
		drawSquare(img, x, y, thickness, c)
	}
}

// drawSquare draws a filled square centered at (cx, cy)
func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			x, y := cx+dx, cy+dy
			if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
				img.Set(x, y, c)
			}
		}
	}
}

// blendColors performs alpha blending of two colors
func blendColors(bg color.RGBA, fg color.NRGBA) color.NRGBA {
	// Convert RGBA background to NRGBA for proper blending
	// RGBA is premultiplied, so we need to un-premultiply it first
	var bgNRGBA color.NRGBA
	switch bg.A {
	case 0:
		bgNRGBA = color.NRGBA{0, 0, 0, 0}
	case 255:
		bgNRGBA = color.NRGBA{bg.R, bg.G, bg.B, 255}
	default:
		// Un-premultiply: divide RGB by alpha
		alpha32 := uint32(bg.A)
		bgNRGBA = color.NRGBA{
			R: uint8((uint32(bg.R) * 255) / alpha32),
			G: uint8((uint32(bg.G) * 255) / alpha32),
			B: uint8((uint32(bg.B) * 255) / alpha32),
			A: bg.A,
		}
	}

	// Now perform standard alpha blending with non-premultiplied colors
	alpha := float64(fg.A) / 255.0
	invAlpha := 1.0 - alpha

	return color.NRGBA{
		R: uint8(float64(fg.R)*alpha + float64(bgNRGBA.R)*invAlpha),
		G: uint8(float64(fg.G)*alpha + float64(bgNRGBA.G)*invAlpha),
		B: uint8(float64(fg.B)*alpha + float64(bgNRGBA.B)*invAlpha),
		A: 255,
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
