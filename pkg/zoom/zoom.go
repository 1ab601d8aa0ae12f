// Package zoom converts wheel input into a new scale and a compensating
// position so the point under the cursor stays put.
package zoom

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/transform"
)

// Sensitivity bounds in percent per wheel notch.
const (
	MinSensitivity     = 1
	MaxSensitivity     = 20
	DefaultSensitivity = 10
)

// Config holds zoom configuration
type Config struct {
	Sensitivity float64
	MinScale    float64
	MaxScale    float64
}

// DefaultConfig returns 10% steps within [0.1, 5.0].
func DefaultConfig() Config {
	return Config{
		Sensitivity: DefaultSensitivity,
		MinScale:    transform.MinScale,
		MaxScale:    transform.MaxScale,
	}
}

// Controller applies wheel steps.
type Controller struct {
	config Config
}

// New creates a controller with the default configuration
func New() *Controller {
	return &Controller{config: DefaultConfig()}
}

// NewWithConfig creates a controller with custom configuration
func NewWithConfig(cfg Config) *Controller {
	if cfg.MinScale <= 0 {
		cfg.MinScale = transform.MinScale
	}
	if cfg.MaxScale < cfg.MinScale {
		cfg.MaxScale = transform.MaxScale
	}
	cfg.Sensitivity = ClampSensitivity(cfg.Sensitivity)
	return &Controller{config: cfg}
}

// Sensitivity returns the step size in percent.
func (c *Controller) Sensitivity() float64 {
	return c.config.Sensitivity
}

// SetSensitivity sets the step size, clamped to [1, 20] percent.
func (c *Controller) SetSensitivity(pct float64) {
	c.config.Sensitivity = ClampSensitivity(pct)
}

// Wheel returns the scale and position after one wheel event at pointer.
// Negative deltaY zooms in. A zero delta or missing media leaves both
// unchanged.
func (c *Controller) Wheel(pointer r2.Vec, deltaY, scale float64, position r2.Vec, hasMedia bool) (float64, r2.Vec) {
	if !hasMedia || deltaY == 0 || scale <= 0 {
		return scale, position
	}

	step := c.config.Sensitivity / 100
	direction := 1.0
	if deltaY > 0 {
		direction = -1
	}

	newScale := scale + direction*step
	if newScale < c.config.MinScale {
		newScale = c.config.MinScale
	}
	if newScale > c.config.MaxScale {
		newScale = c.config.MaxScale
	}

	ratio := newScale / scale
	// Keep the canvas point under the pointer fixed.
	newPos := r2.Sub(pointer, r2.Scale(ratio, r2.Sub(pointer, position)))
	return newScale, newPos
}

// ClampSensitivity limits pct to [MinSensitivity, MaxSensitivity]. Zero
// selects the default.
func ClampSensitivity(pct float64) float64 {
	switch {
	case pct == 0:
		return DefaultSensitivity
	case pct < MinSensitivity:
		return MinSensitivity
	case pct > MaxSensitivity:
		return MaxSensitivity
	}
	return pct
}
