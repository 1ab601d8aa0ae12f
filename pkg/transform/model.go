// Package transform holds the geometry shared by the preview and the export:
// where the media sits on the surface and where the crop frame is.
package transform

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/types"
)

// Scale and crop limits.
const (
	MinScale    = 0.1
	MaxScale    = 5.0
	MinCropSide = 100.0
)

// Model is the transform state of the active media. It is a plain value:
// callers copy it, change fields and hand the copy back.
type Model struct {
	// Natural is the media size in source pixels.
	Natural types.Size
	// Position is the canvas-space offset of the media's top-left corner
	// before rotation. It is never clamped.
	Position r2.Vec
	Scale    float64
	// Rotation in degrees, within [-180, 180].
	Rotation float64
}

// New returns a model for media of the given natural size at scale 1.
func New(natural types.Size) Model {
	return Model{Natural: natural, Scale: 1}
}

// ScaledSize returns the media size on the canvas.
func (m Model) ScaledSize() types.Size {
	return types.Size{Width: m.Natural.Width * m.Scale, Height: m.Natural.Height * m.Scale}
}

// Pivot returns the rotation pivot: the centre of the scaled media box.
func (m Model) Pivot() r2.Vec {
	s := m.ScaledSize()
	return r2.Add(m.Position, r2.Vec{X: s.Width / 2, Y: s.Height / 2})
}

// Rotated reports whether the rotated branch of SourceToCanvas applies.
func (m Model) Rotated() bool {
	return NormalizeRotation(m.Rotation) != 0
}

// SourceToCanvas maps source pixel coordinates to canvas coordinates.
//
// Without rotation this is canvas = position + source*scale. With rotation the
// media is translated to the pivot, rotated there and drawn centred on it.
func (m Model) SourceToCanvas() Affine {
	if !m.Rotated() {
		return Scaling(m.Scale, m.Scale).Then(Translation(m.Position))
	}

	s := m.ScaledSize()
	theta := NormalizeRotation(m.Rotation) * math.Pi / 180
	return Scaling(m.Scale, m.Scale).
		Then(Translation(r2.Vec{X: -s.Width / 2, Y: -s.Height / 2})).
		Then(Rotation(theta)).
		Then(Translation(m.Pivot()))
}

// CanvasToSource is the inverse of SourceToCanvas.
func (m Model) CanvasToSource() (Affine, bool) {
	return m.SourceToCanvas().Inverse()
}

// CanvasBounds returns the canvas-space bounding box of the transformed media.
func (m Model) CanvasBounds() Rect {
	return m.SourceToCanvas().Bounds(Rect{W: m.Natural.Width, H: m.Natural.Height})
}

// Centered returns a copy positioned so the media's scaled box is centred on
// a surface of the given size.
func (m Model) Centered(surface types.Size) Model {
	s := m.ScaledSize()
	m.Position = r2.Vec{X: (surface.Width - s.Width) / 2, Y: (surface.Height - s.Height) / 2}
	return m
}

// ClampScale limits s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// NormalizeRotation folds deg into [-180, 180]. Whole turns map to 0.
func NormalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	r := math.Mod(deg, 360)
	switch {
	case r > 180:
		r -= 360
	case r < -180:
		r += 360
	}
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// ClampCropSide raises v to MinCropSide.
func ClampCropSide(v float64) float64 {
	return math.Max(MinCropSide, v)
}

// Rect is an axis-aligned canvas-space rectangle with a float origin.
type Rect struct {
	X, Y, W, H float64
}

// Min returns the top-left corner.
func (r Rect) Min() r2.Vec { return r2.Vec{X: r.X, Y: r.Y} }

// Max returns the bottom-right corner.
func (r Rect) Max() r2.Vec { return r2.Vec{X: r.X + r.W, Y: r.Y + r.H} }

// Contains reports whether p lies inside r.
func (r Rect) Contains(p r2.Vec) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Pixels returns r snapped to the pixel grid. Half-pixel edges round up,
// also for negative origins.
func (r Rect) Pixels() image.Rectangle {
	x0, y0 := snap(r.X), snap(r.Y)
	return image.Rect(x0, y0, x0+snap(r.W), y0+snap(r.H))
}

func snap(v float64) int {
	return int(math.Floor(v + 0.5))
}

// CropBox returns the crop frame rectangle: frame sized and centred on the
// surface. The origin is surface/2 - frame/2 and may be fractional or negative.
func CropBox(surface, frame types.Size) Rect {
	return Rect{
		X: surface.Width/2 - frame.Width/2,
		Y: surface.Height/2 - frame.Height/2,
		W: frame.Width,
		H: frame.Height,
	}
}

// CropPixels returns the crop box on whole surface pixels. The preview, the
// export and the handle hit test all use this box.
func CropPixels(surface, frame types.Size) image.Rectangle {
	return CropBox(surface, frame).Pixels()
}

// HandleCenter returns the resize handle position: the bottom-right corner of
// the pixel-snapped crop box.
func HandleCenter(surface, frame types.Size) r2.Vec {
	p := CropPixels(surface, frame).Max
	return r2.Vec{X: float64(p.X), Y: float64(p.Y)}
}
