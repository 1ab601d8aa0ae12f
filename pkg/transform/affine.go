package transform

import (
	"math"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/spatial/r2"
)

// Affine is a 2x3 affine matrix mapping (x, y) to
//
//	[A B TX]
//	[C D TY]
type Affine struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translation returns a translation by v.
func Translation(v r2.Vec) Affine {
	return Affine{A: 1, D: 1, TX: v.X, TY: v.Y}
}

// Rotation returns a rotation about the origin. On a y-down surface a positive
// angle turns clockwise.
func Rotation(radians float64) Affine {
	sin, cos := math.Sincos(radians)
	return Affine{A: cos, B: -sin, C: sin, D: cos}
}

// Scaling returns a scale about the origin.
func Scaling(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Then returns t followed by next, i.e. next * t.
func (t Affine) Then(next Affine) Affine {
	return next.Compose(t)
}

// Compose returns t * other: other is applied first.
func (t Affine) Compose(other Affine) Affine {
	return Affine{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}

// Apply maps p through t.
func (t Affine) Apply(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Inverse returns the inverse transform. ok is false for singular matrices.
func (t Affine) Inverse() (inv Affine, ok bool) {
	det := t.A*t.D - t.B*t.C
	if math.Abs(det) < 1e-12 {
		return Affine{}, false
	}

	invDet := 1.0 / det
	return Affine{
		A:  t.D * invDet,
		B:  -t.B * invDet,
		TX: (t.B*t.TY - t.D*t.TX) * invDet,
		C:  -t.C * invDet,
		D:  t.A * invDet,
		TY: (t.C*t.TX - t.A*t.TY) * invDet,
	}, true
}

// Aff3 returns t in the layout expected by golang.org/x/image/draw.
func (t Affine) Aff3() f64.Aff3 {
	return f64.Aff3{t.A, t.B, t.TX, t.C, t.D, t.TY}
}

// Bounds returns the axis-aligned bounding rectangle of r mapped through t.
func (t Affine) Bounds(r Rect) Rect {
	corners := [4]r2.Vec{
		t.Apply(r2.Vec{X: r.X, Y: r.Y}),
		t.Apply(r2.Vec{X: r.X + r.W, Y: r.Y}),
		t.Apply(r2.Vec{X: r.X, Y: r.Y + r.H}),
		t.Apply(r2.Vec{X: r.X + r.W, Y: r.Y + r.H}),
	}
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
