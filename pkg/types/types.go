package types

import (
	"errors"
	"math"
)

// ErrNoMedia is returned when an operation needs loaded media and none is present.
// Drag and wheel treat it as a no-op; export surfaces it as a nil result.
var ErrNoMedia = errors.New("no media loaded")

// Size is a width/height pair in pixels. Canvas-space sizes may be fractional.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Half returns the size divided by two.
func (s Size) Half() Size {
	return Size{Width: s.Width / 2, Height: s.Height / 2}
}

// Round returns the size rounded to whole pixels.
func (s Size) Round() (int, int) {
	return int(math.Round(s.Width)), int(math.Round(s.Height))
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the normalized center of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the subject analysis used for initial framing
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
