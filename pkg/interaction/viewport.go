package interaction

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/types"
)

// Viewport relates the surface's pixel buffer to the size it is displayed at.
// Pointer events arrive in display units and must be scaled into buffer
// pixels before any geometry is compared.
type Viewport struct {
	Buffer  types.Size
	Display types.Size
}

// ToSurface maps a display-space point to surface pixels. An unset display
// size means the two spaces coincide.
func (v Viewport) ToSurface(p r2.Vec) r2.Vec {
	if v.Display.Empty() || v.Buffer.Empty() {
		return p
	}
	return r2.Vec{
		X: p.X * v.Buffer.Width / v.Display.Width,
		Y: p.Y * v.Buffer.Height / v.Display.Height,
	}
}
