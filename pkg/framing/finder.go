package framing

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/croppy/pkg/client"
	"github.com/menta2k/croppy/pkg/detection"
	"github.com/menta2k/croppy/pkg/llamacpp"
	"github.com/menta2k/croppy/pkg/ollama"
	"github.com/menta2k/croppy/pkg/types"
	"github.com/menta2k/croppy/pkg/vision"
)

// Finder locates the subject of an image as a box normalized to its size.
type Finder interface {
	FindSubject(ctx context.Context, img image.Image) (types.Box, error)
}

// SaliencyFinder finds subjects with the local saliency detector.
type SaliencyFinder struct {
	Detector *vision.SubjectDetector
}

// FindSubject returns the salient region, or a centred box for featureless images.
func (f SaliencyFinder) FindSubject(_ context.Context, img image.Image) (types.Box, error) {
	d := f.Detector
	if d == nil {
		d = vision.New()
	}
	box, _, err := d.Subject(img)
	return box, err
}

// ModelFinder finds subjects with a vision model.
type ModelFinder struct {
	Detector *detection.Detector
}

// FindSubject returns the model's subject box. detection.ErrNoSubject is
// passed through.
func (f ModelFinder) FindSubject(ctx context.Context, img image.Image) (types.Box, error) {
	box, _, err := f.Detector.Locate(ctx, img)
	return box, err
}

// Backend selects and configures a Finder.
type Backend struct {
	// Name is "saliency" (the default), "ollama" or "llamacpp".
	Name string
	// URL of the model server. Empty selects the backend's default.
	URL   string
	Model string
	// MaxDim caps the image sent to a model. Zero keeps the detector default.
	MaxDim int
}

// NewFinder builds the Finder b names.
func NewFinder(b Backend) (Finder, error) {
	var c client.VisionClient
	switch b.Name {
	case "", "saliency":
		return SaliencyFinder{Detector: vision.New()}, nil
	case "ollama":
		oc, err := ollama.NewClient(b.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		c = oc
	case "llamacpp":
		lc, err := llamacpp.NewClient(b.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		c = lc
	default:
		return nil, fmt.Errorf("unknown vision backend %q (use saliency, ollama or llamacpp)", b.Name)
	}
	d := detection.NewDetector(c, b.Model)
	if b.MaxDim > 0 {
		d.SetMaxDim(b.MaxDim)
	}
	return ModelFinder{Detector: d}, nil
}
