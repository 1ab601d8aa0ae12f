// Package compositor draws the crop surface: background, transformed media,
// the dimmed mask around the crop frame, the frame border and the resize handle.
package compositor

import (
	"errors"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/types"
)

// ErrSurfaceUnavailable is returned when there is nothing to draw onto.
var ErrSurfaceUnavailable = errors.New("rendering surface unavailable")

// Style holds the fixed visual parameters of the surface.
type Style struct {
	Background   color.RGBA
	Mask         color.NRGBA
	Border       color.RGBA
	BorderWidth  int
	HandleFill   color.RGBA
	HandleStroke color.RGBA
	// HandleRadius is the visual radius. The stroke is centred on it.
	HandleRadius      float64
	HandleStrokeWidth float64
}

// DefaultStyle returns the stock look: #1a1a1a background, 40% black mask,
// 3px white border and a red handle with a white outline.
func DefaultStyle() Style {
	return Style{
		Background:        color.RGBA{0x1a, 0x1a, 0x1a, 0xff},
		Mask:              color.NRGBA{0, 0, 0, 102},
		Border:            color.RGBA{0xff, 0xff, 0xff, 0xff},
		BorderWidth:       3,
		HandleFill:        color.RGBA{0xff, 0, 0, 0xff},
		HandleStroke:      color.RGBA{0xff, 0xff, 0xff, 0xff},
		HandleRadius:      8,
		HandleStrokeWidth: 2,
	}
}

// Config holds compositor configuration
type Config struct {
	Style    Style
	Sampling string
}

// Scene is everything one frame depends on.
type Scene struct {
	// Media is the current frame, nil when nothing is loaded.
	Media image.Image
	Model transform.Model
	// Crop is the effective frame: the transient candidate while resizing,
	// the committed frame otherwise.
	Crop types.Size
}

// Compositor renders scenes. It keeps no per-frame state, so rendering the
// same scene twice yields identical pixels.
type Compositor struct {
	style   Style
	sampler draw.Interpolator
}

// New creates a compositor with the default style and nearest-neighbour sampling
func New() *Compositor {
	return &Compositor{
		style:   DefaultStyle(),
		sampler: draw.NearestNeighbor,
	}
}

// NewWithConfig creates a compositor with custom configuration
func NewWithConfig(cfg Config) *Compositor {
	return &Compositor{
		style:   cfg.Style,
		sampler: Sampler(cfg.Sampling),
	}
}

// Style returns the compositor's style.
func (c *Compositor) Style() Style {
	return c.style
}

// Interpolator returns the sampler used for media.
func (c *Compositor) Interpolator() draw.Interpolator {
	return c.sampler
}

// Render draws scene over the whole of dst.
func (c *Compositor) Render(dst draw.Image, scene Scene) error {
	if dst == nil || dst.Bounds().Empty() {
		return ErrSurfaceUnavailable
	}
	b := dst.Bounds()

	draw.Draw(dst, b, image.NewUniform(c.style.Background), image.Point{}, draw.Src)

	if scene.Media != nil {
		DrawMedia(dst, scene.Media, scene.Model, r2.Vec{X: float64(b.Min.X), Y: float64(b.Min.Y)}, c.sampler)
	}

	surface := types.NewSize(float64(b.Dx()), float64(b.Dy()))
	box := transform.CropPixels(surface, scene.Crop).Add(b.Min)

	c.drawMask(dst, box)
	strokeRect(dst, box, c.style.BorderWidth, c.style.Border)

	h := r2.Vec{X: float64(box.Max.X), Y: float64(box.Max.Y)}
	c.drawHandle(dst, h)
	return nil
}

// DrawMedia draws src through the model's source-to-canvas transform, shifted
// by offset. Source coordinates are relative to src's top-left corner.
func DrawMedia(dst draw.Image, src image.Image, m transform.Model, offset r2.Vec, interp draw.Transformer) {
	sb := src.Bounds()
	a := transform.Translation(r2.Vec{X: -float64(sb.Min.X), Y: -float64(sb.Min.Y)}).
		Then(m.SourceToCanvas()).
		Then(transform.Translation(offset))
	interp.Transform(dst, a.Aff3(), src, sb, draw.Over, nil)
}

// drawMask dims everything outside box with four bands.
func (c *Compositor) drawMask(dst draw.Image, box image.Rectangle) {
	b := dst.Bounds()
	shade := image.NewUniform(c.style.Mask)
	bands := [4]image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, box.Min.Y),     // top
		image.Rect(b.Min.X, box.Max.Y, b.Max.X, b.Max.Y),     // bottom
		image.Rect(b.Min.X, box.Min.Y, box.Min.X, box.Max.Y), // left
		image.Rect(box.Max.X, box.Min.Y, b.Max.X, box.Max.Y), // right
	}
	for _, r := range bands {
		// Bands may be inverted when the box overflows the surface.
		r = r.Canon().Intersect(b)
		if r.Empty() {
			continue
		}
		draw.Draw(dst, r, shade, image.Point{}, draw.Over)
	}
}

// strokeRect outlines r with a stroke of the given width centred on its edge.
func strokeRect(dst draw.Image, r image.Rectangle, width int, c color.Color) {
	if width <= 0 {
		return
	}
	out := width / 2
	outer := r.Inset(-out)
	src := image.NewUniform(c)
	edges := [4]image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+width),
		image.Rect(outer.Min.X, outer.Max.Y-width, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+width, outer.Max.Y),
		image.Rect(outer.Max.X-width, outer.Min.Y, outer.Max.X, outer.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}

// Sampler maps a sampling policy name to an interpolator. Unknown names fall
// back to nearest neighbour.
func Sampler(name string) draw.Interpolator {
	switch strings.ToLower(name) {
	case "bilinear":
		return draw.BiLinear
	case "approxbilinear":
		return draw.ApproxBiLinear
	case "catmullrom":
		return draw.CatmullRom
	default:
		return draw.NearestNeighbor
	}
}
