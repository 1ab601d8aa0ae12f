package cropper

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/compositor"
	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/types"
)

// Cropper rasterizes the crop frame's contents into a standalone bitmap
type Cropper struct {
	config  CropConfig
	sampler draw.Interpolator
}

// CropConfig holds configuration for export rasterization
type CropConfig struct {
	// Sampling names the interpolator: nearest, bilinear or catmullrom.
	// It must match the compositor's for the export to equal the preview.
	Sampling string
}

// CropRequest describes one export
type CropRequest struct {
	Media   image.Image
	Model   transform.Model
	Frame   types.Size
	Surface types.Size
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image *image.RGBA
	// Box is the crop frame in canvas space.
	Box transform.Rect
	// Rotated is true when the full-surface path was taken.
	Rotated bool
}

// New creates a new Cropper with nearest-neighbour sampling
func New() *Cropper {
	return NewWithConfig(CropConfig{Sampling: "nearest"})
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig) *Cropper {
	return &Cropper{
		config:  config,
		sampler: compositor.Sampler(config.Sampling),
	}
}

// Crop produces a bitmap exactly frame-sized holding what the surface shows
// inside the crop frame, without mask, border or handle.
//
// Both paths draw on the pixel-snapped crop box in canvas coordinates, the
// same grid and affine the compositor uses, so export and preview match
// pixel for pixel. The result is rebased to a (0,0) origin.
func (c *Cropper) Crop(req CropRequest) (CropResult, error) {
	if req.Media == nil {
		return CropResult{}, types.ErrNoMedia
	}
	w, h := req.Frame.Round()
	if w <= 0 || h <= 0 {
		return CropResult{}, fmt.Errorf("invalid crop frame %vx%v", req.Frame.Width, req.Frame.Height)
	}

	box := transform.CropBox(req.Surface, req.Frame)
	px := transform.CropPixels(req.Surface, req.Frame)
	out := image.NewRGBA(px)

	rotated := req.Model.Rotated()
	if rotated {
		c.cropRotated(out, req)
	} else {
		// Output pixel (i,j) samples canvas point (px.X+i+0.5, px.Y+j+0.5).
		compositor.DrawMedia(out, req.Media, req.Model, r2.Vec{}, c.sampler)
	}
	out.Rect = out.Rect.Sub(px.Min)
	return CropResult{Image: out, Box: box, Rotated: rotated}, nil
}

// cropRotated renders the media over the whole surface with the compositor's
// transform, then copies the crop box out of that buffer. The buffer also
// covers any part of the box that overhangs the surface.
func (c *Cropper) cropRotated(out *image.RGBA, req CropRequest) {
	sw, sh := req.Surface.Round()
	full := image.Rect(0, 0, sw, sh).Union(out.Rect)

	buf := getBuffer(full)
	defer putBuffer(buf)

	compositor.DrawMedia(buf, req.Media, req.Model, r2.Vec{}, c.sampler)
	draw.Draw(out, out.Rect, buf, out.Rect.Min, draw.Src)
}
