package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r2"
)

// kappa places cubic Bézier control points for a quarter circle.
const kappa = 0.5522847498

// drawHandle paints the resize handle centred at p: the stroke colour out to
// radius+stroke/2, then the fill colour out to radius-stroke/2.
func (c *Compositor) drawHandle(dst draw.Image, p r2.Vec) {
	half := c.style.HandleStrokeWidth / 2
	fillDisc(dst, p, c.style.HandleRadius+half, c.style.HandleStroke)
	fillDisc(dst, p, c.style.HandleRadius-half, c.style.HandleFill)
}

// fillDisc rasterizes an anti-aliased disc into a local coverage mask and
// composites it onto dst. The mask keeps rasterizer coordinates positive
// even when the disc overhangs the surface.
func fillDisc(dst draw.Image, center r2.Vec, radius float64, col color.Color) {
	if radius <= 0 {
		return
	}
	origin := image.Pt(int(math.Floor(center.X-radius))-1, int(math.Floor(center.Y-radius))-1)
	size := int(math.Ceil(2*radius)) + 3

	cx := float32(center.X - float64(origin.X))
	cy := float32(center.Y - float64(origin.Y))
	r := float32(radius)
	k := float32(kappa) * r

	z := vector.NewRasterizer(size, size)
	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, size, size))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	target := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}
	draw.DrawMask(dst, target, image.NewUniform(col), image.Point{}, mask, image.Point{}, draw.Over)
}
