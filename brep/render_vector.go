package brep

import (
	"image/color"
	"image/png"
	"io"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// planePalette assigns each detected plane a distinct color. Plane i
// uses entry i modulo the palette size.
var planePalette = []color.NRGBA{
	{R: 255, G: 0, B: 0, A: 255},     // red
	{R: 0, G: 128, B: 0, A: 255},     // green
	{R: 0, G: 0, B: 255, A: 255},     // blue
	{R: 255, G: 255, B: 0, A: 255},   // yellow
	{R: 255, G: 0, B: 255, A: 255},   // magenta
	{R: 0, G: 255, B: 255, A: 255},   // cyan
	{R: 255, G: 165, B: 0, A: 255},   // orange
	{R: 238, G: 130, B: 238, A: 255}, // violet
}

// PlaneColor returns the palette color for plane index i.
func PlaneColor(i int) color.NRGBA {
	if i < 0 {
		i = 0
	}
	return planePalette[i%len(planePalette)]
}

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
// This is needed for the canvas library which expects premultiplied RGBA
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	// Premultiply: multiply RGB by alpha
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// withAlpha returns the color with its alpha replaced.
func withAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a
	return c
}

// ResultVectorRenderer draws a projected shape and its mirror planes as
// vector graphics: grey face outlines, paired faces tinted with their
// plane's color, translucent plane rectangles, trace lines and normal
// indicators.
type ResultVectorRenderer struct {
	Projection *ProjectedShape
	WidthMM    float64           // output width; height follows the viewport aspect
	Resolution canvas.Resolution // resolution for PNG output
}

// NewResultVectorRenderer creates a renderer with default settings
func NewResultVectorRenderer(ps *ProjectedShape) *ResultVectorRenderer {
	return &ResultVectorRenderer{
		Projection: ps,
		WidthMM:    200.0,
		Resolution: canvas.DPI(300), // 300 DPI default for PNG output
	}
}

// SetDPI overrides the PNG export resolution. Non-positive values are
// ignored.
func (r *ResultVectorRenderer) SetDPI(dpi float64) {
	if dpi > 0 {
		r.Resolution = canvas.DPI(dpi)
	}
}

// RenderToSVG writes the projection as an SVG to the provided writer
func (r *ResultVectorRenderer) RenderToSVG(w io.Writer) error {
	width, height := r.pageSize()

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)

	// Close SVG renderer to write closing tags
	return svgRenderer.Close()
}

// RenderToPNG writes the projection as a PNG to the provided writer
func (r *ResultVectorRenderer) RenderToPNG(w io.Writer) error {
	width, height := r.pageSize()

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)

	// Rasterizer implements draw.Image, which embeds image.Image
	return png.Encode(w, rast)
}

func (r *ResultVectorRenderer) pageSize() (width, height float64) {
	b := r.Projection.Bound
	bw := b.Max[0] - b.Min[0]
	bh := b.Max[1] - b.Min[1]
	width = r.WidthMM
	if width <= 0 {
		width = 200.0
	}
	if bw <= 0 || bh <= 0 {
		return width, width
	}
	return width, width * bh / bw
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// renderToCanvas draws the projection onto a canvas renderer (shared
// logic for SVG and PNG).
func (r *ResultVectorRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	ps := r.Projection
	b := ps.Bound
	scale := width / (b.Max[0] - b.Min[0])

	toCanvas := func(p orb.Point) (float64, float64) {
		return (p[0] - b.Min[0]) * scale, (p[1] - b.Min[1]) * scale
	}
	ringPath := func(cp *canvas.Path, ring orb.Ring) {
		for i, p := range ring {
			cx, cy := toCanvas(p)
			if i == 0 {
				cp.MoveTo(cx, cy)
			} else {
				cp.LineTo(cx, cy)
			}
		}
		cp.Close()
	}
	polyPath := func(poly orb.Polygon) *canvas.Path {
		cp := &canvas.Path{}
		for _, ring := range poly {
			ringPath(cp, ring)
		}
		return cp
	}

	// White background
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// Face fills: grey for unpaired faces, the plane tint for paired ones.
	for _, face := range ps.Faces {
		fill := color.NRGBA{R: 232, G: 232, B: 232, A: 255}
		if face.Paired() {
			fill = withAlpha(PlaneColor(face.PlaneIndexes[0]), 90)
		}

		faceStyle := canvas.DefaultStyle
		faceStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(fill)}
		faceStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
		renderer.RenderPath(polyPath(face.Outline), faceStyle, canvas.Identity)
	}

	// Face outlines on top of the fills.
	outlineStyle := canvas.DefaultStyle
	outlineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	outlineStyle.Stroke = canvas.Paint{Color: color.RGBA{R: 90, G: 90, B: 90, A: 255}}
	outlineStyle.StrokeWidth = 0.3
	for _, face := range ps.Faces {
		renderer.RenderPath(polyPath(face.Outline), outlineStyle, canvas.Identity)
	}

	// Silhouette.
	if len(ps.Silhouette) > 0 {
		silStyle := canvas.DefaultStyle
		silStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		silStyle.Stroke = canvas.Paint{Color: canvas.Black}
		silStyle.StrokeWidth = 0.5
		cp := &canvas.Path{}
		ringPath(cp, ps.Silhouette)
		renderer.RenderPath(cp, silStyle, canvas.Identity)
	}

	// Plane rectangles, translucent in the plane's color.
	for _, plane := range ps.Planes {
		c := PlaneColor(plane.Index)

		quadStyle := canvas.DefaultStyle
		quadStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(withAlpha(c, 45))}
		quadStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(c)}
		quadStyle.StrokeWidth = 0.4
		cp := &canvas.Path{}
		ringPath(cp, plane.Quad)
		renderer.RenderPath(cp, quadStyle, canvas.Identity)
	}

	// Trace lines across the viewport, dashed.
	for _, plane := range ps.Planes {
		if len(plane.Trace) < 2 {
			continue
		}
		traceStyle := canvas.DefaultStyle
		traceStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		traceStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(PlaneColor(plane.Index))}
		traceStyle.StrokeWidth = 0.8
		traceStyle.Dashes = []float64{3.0, 2.0}

		cp := &canvas.Path{}
		x1, y1 := toCanvas(plane.Trace[0])
		x2, y2 := toCanvas(plane.Trace[len(plane.Trace)-1])
		cp.MoveTo(x1, y1)
		cp.LineTo(x2, y2)
		renderer.RenderPath(cp, traceStyle, canvas.Identity)
	}

	// Normal indicators.
	for _, plane := range ps.Planes {
		if len(plane.Normal) < 2 {
			continue
		}
		normalStyle := canvas.DefaultStyle
		normalStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		normalStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(PlaneColor(plane.Index))}
		normalStyle.StrokeWidth = 0.6

		cp := &canvas.Path{}
		x1, y1 := toCanvas(plane.Normal[0])
		x2, y2 := toCanvas(plane.Normal[1])
		cp.MoveTo(x1, y1)
		cp.LineTo(x2, y2)
		renderer.RenderPath(cp, normalStyle, canvas.Identity)
	}

	// Legend: one color swatch per plane in the top-left corner.
	// Text rendering in tdewolff/canvas requires loading a font family,
	// so the vector legend stays symbolic; the raster renderer carries
	// the text variant.
	swatch := 4.0
	gap := 2.0
	for i, plane := range ps.Planes {
		legendStyle := canvas.DefaultStyle
		legendStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(PlaneColor(plane.Index))}
		legendStyle.Stroke = canvas.Paint{Color: canvas.Black}
		legendStyle.StrokeWidth = 0.2

		tag := canvas.Rectangle(swatch, swatch)
		tag = tag.Translate(gap, height-gap-swatch-float64(i)*(swatch+gap))
		renderer.RenderPath(tag, legendStyle, canvas.Identity)
	}
}

// RenderResultSVG projects the solid along the view direction and
// writes an SVG drawing of the result.
func RenderResultSVG(w io.Writer, solid Solid, result *SymmetryResult, view r3.Vector) error {
	ps, err := ProjectSolid(solid, result, view)
	if err != nil {
		return err
	}
	return NewResultVectorRenderer(ps).RenderToSVG(w)
}

// RenderResultPNG projects the solid along the view direction and
// writes a rasterized PNG of the vector drawing.
func RenderResultPNG(w io.Writer, solid Solid, result *SymmetryResult, view r3.Vector) error {
	ps, err := ProjectSolid(solid, result, view)
	if err != nil {
		return err
	}
	return NewResultVectorRenderer(ps).RenderToPNG(w)
}
