package framing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/types"
)

var (
	subjectColor = color.NRGBA{0, 255, 0, 255}   // detected subject
	frameColor   = color.NRGBA{255, 204, 0, 255} // crop frame, in media space
	centreColor  = color.NRGBA{255, 0, 0, 255}   // crop centre
	mediaColor   = color.NRGBA{0, 170, 255, 255} // media centre
)

// Overlay draws the detected subject and the region the crop frame covers
// onto a copy of img, in img's own coordinates. For a rotated model the frame
// is drawn as its bounding box.
func Overlay(img image.Image, subject types.Box, m transform.Model, frame, surface types.Size) *image.NRGBA {
	out := imaging.Clone(img)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	if w == 0 || h == 0 {
		return out
	}
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	drawBox(out, subject, subjectColor, stroke)

	if inv, ok := m.CanvasToSource(); ok && !m.Natural.Empty() {
		crop := transform.CropBox(surface, frame)
		r := inv.Bounds(crop)
		drawBox(out, types.Box{
			X: r.X / m.Natural.Width,
			Y: r.Y / m.Natural.Height,
			W: r.W / m.Natural.Width,
			H: r.H / m.Natural.Height,
		}, frameColor, stroke)

		c := inv.Apply(r2.Vec{X: crop.X + crop.W/2, Y: crop.Y + crop.H/2})
		px := int(c.X*float64(w)/m.Natural.Width + 0.5)
		py := int(c.Y*float64(h)/m.Natural.Height + 0.5)
		drawHLine(out, py, px-cross, px+cross, centreColor)
		drawVLine(out, px, py-cross, py+cross, centreColor)
	}

	ix, iy := w/2, h/2
	drawHLine(out, iy, ix-6, ix+6, mediaColor)
	drawVLine(out, ix, iy-6, iy+6, mediaColor)
	return out
}

// boxToPixels maps a normalized box to pixel edges, keeping at least one pixel.
func boxToPixels(box types.Box, w, h int) (int, int, int, int) {
	x0 := int(clamp01(box.X)*float64(w) + 0.5)
	y0 := int(clamp01(box.Y)*float64(h) + 0.5)
	x1 := int(clamp01(box.X+box.W)*float64(w) + 0.5)
	y1 := int(clamp01(box.Y+box.H)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func drawBox(img *image.NRGBA, box types.Box, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(box, img.Bounds().Dx(), img.Bounds().Dy())
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < 0 || y >= b.Dy() {
		return
	}
	x0, x1 = max(min(x0, x1), 0), min(max(x0, x1), b.Dx())
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < 0 || x >= b.Dx() {
		return
	}
	y0, y1 = max(min(y0, y1), 0), min(max(y0, y1), b.Dy())
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
