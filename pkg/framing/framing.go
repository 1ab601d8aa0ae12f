// Package framing turns a detected subject box into an initial transform that
// places the subject in the crop frame.
package framing

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/types"
)

// DefaultPadding is the fraction of the frame left free on each side of the subject.
const DefaultPadding = 0.1

// Fit returns the scale and position that centre subject in the crop box and
// make it fill the frame minus DefaultPadding. The media is assumed unrotated.
func Fit(subject types.Box, natural, frame, surface types.Size) (float64, r2.Vec) {
	m := FitModel(transform.New(natural), subject, frame, surface, DefaultPadding)
	return m.Scale, m.Position
}

// FitModel returns a copy of m rescaled and repositioned so the subject centre
// lands on the crop box centre. Rotation is kept.
//
// subject is normalized to the media's natural size. An empty subject frames
// the whole media.
func FitModel(m transform.Model, subject types.Box, frame, surface types.Size, padding float64) transform.Model {
	if m.Natural.Empty() || frame.Empty() {
		return m
	}
	subject = clampBox(subject)
	if subject.W <= 0 || subject.H <= 0 {
		subject = types.Box{W: 1, H: 1}
	}
	padding = math.Max(0, math.Min(padding, 0.45))

	sw := subject.W * m.Natural.Width
	sh := subject.H * m.Natural.Height
	fill := 1 - 2*padding
	m.Scale = transform.ClampScale(math.Min(frame.Width*fill/sw, frame.Height*fill/sh))

	cx, cy := subject.Center()
	centre := r2.Vec{X: cx * m.Natural.Width, Y: cy * m.Natural.Height}

	// Position enters SourceToCanvas as a pure translation in both branches.
	m.Position = r2.Vec{}
	at := m.SourceToCanvas().Apply(centre)
	target := r2.Vec{X: surface.Width / 2, Y: surface.Height / 2}
	m.Position = r2.Sub(target, at)
	return m
}

func clampBox(b types.Box) types.Box {
	x0, y0 := clamp01(b.X), clamp01(b.Y)
	x1, y1 := clamp01(b.X+b.W), clamp01(b.Y+b.H)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
