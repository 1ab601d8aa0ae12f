package zoom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

// sourceUnder returns the media-space point shown at canvas point p.
func sourceUnder(p r2.Vec, scale float64, pos r2.Vec) r2.Vec {
	return r2.Scale(1/scale, r2.Sub(p, pos))
}

func TestScrollDownOnce(t *testing.T) {
	c := New()
	pointer := r2.Vec{X: 400, Y: 300}
	pos := r2.Vec{X: 100, Y: 50}

	scale, newPos := c.Wheel(pointer, 120, 1.0, pos, true)
	if math.Abs(scale-0.9) > 1e-12 {
		t.Fatalf("Expected scale 0.9, got %v", scale)
	}

	want := r2.Vec{X: 130, Y: 75}
	if r2.Norm(r2.Sub(newPos, want)) > 1e-9 {
		t.Errorf("Expected position %v, got %v", want, newPos)
	}

	src := sourceUnder(pointer, 1.0, pos)
	after := r2.Add(newPos, r2.Scale(scale, src))
	if r2.Norm(r2.Sub(after, pointer)) >= 1 {
		t.Errorf("Cursor anchor drifted to %v", after)
	}
}

func TestAnchorInvariant(t *testing.T) {
	c := New()
	pos := r2.Vec{X: -250.5, Y: 37.25}
	scale := 1.3

	for _, tt := range []struct {
		pointer r2.Vec
		delta   float64
	}{
		{r2.Vec{X: 0, Y: 0}, -1},
		{r2.Vec{X: 812, Y: 44}, 3},
		{r2.Vec{X: 1199, Y: 1199}, -53},
		{r2.Vec{X: -20, Y: 600}, 0.5},
	} {
		newScale, newPos := c.Wheel(tt.pointer, tt.delta, scale, pos, true)

		src := sourceUnder(tt.pointer, scale, pos)
		back := r2.Add(newPos, r2.Scale(newScale, src))
		if d := r2.Norm(r2.Sub(back, tt.pointer)); d >= 1e-6 {
			t.Errorf("pointer %v: anchor moved by %v", tt.pointer, d)
		}
	}
}

func TestScaleClamped(t *testing.T) {
	c := NewWithConfig(Config{Sensitivity: 20})

	s, _ := c.Wheel(r2.Vec{}, 1, 0.15, r2.Vec{}, true)
	if s != 0.1 {
		t.Errorf("Expected clamp to 0.1, got %v", s)
	}
	s, _ = c.Wheel(r2.Vec{}, -1, 4.9, r2.Vec{}, true)
	if s != 5.0 {
		t.Errorf("Expected clamp to 5.0, got %v", s)
	}
}

func TestNoMediaIsNoOp(t *testing.T) {
	c := New()
	pos := r2.Vec{X: 5, Y: 6}
	s, p := c.Wheel(r2.Vec{X: 10, Y: 10}, -1, 1.0, pos, false)
	if s != 1.0 || p != pos {
		t.Errorf("Expected unchanged state, got %v %v", s, p)
	}
}

func TestZeroDeltaIsNoOp(t *testing.T) {
	c := New()
	pos := r2.Vec{X: 5, Y: 6}
	s, p := c.Wheel(r2.Vec{X: 10, Y: 10}, 0, 2.0, pos, true)
	if s != 2.0 || p != pos {
		t.Errorf("Expected unchanged state, got %v %v", s, p)
	}
}

func TestClampSensitivity(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 10},
		{-4, 1},
		{0.5, 1},
		{7, 7},
		{25, 20},
	}
	for _, tt := range tests {
		if got := ClampSensitivity(tt.in); got != tt.want {
			t.Errorf("ClampSensitivity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
