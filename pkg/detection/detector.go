package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/pkg/client"
	"github.com/menta2k/croppy/pkg/types"
)

// ErrNoSubject is returned when the model reports no usable subject.
var ErrNoSubject = errors.New("no subject found")

// DefaultMaxDim is the longest side of the image sent to the model.
const DefaultMaxDim = 768

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the box of the subject a crop should be framed around.
const DefaultPrompt = `You are a photo framing assistant. Find the subject a tight crop of this image should keep.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  },
  "description": "short neutral sentence (<= 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

RULES
- Coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- The box tightly includes the visually dominant subject. Prefer people, animals and vehicles, else the most salient object.
- Keep heads and faces fully inside the box.
- If there is no clear subject, use label "none" and confidence 0.
- JSON only. No markdown, no code fences, no comments.`

// Detector locates the main subject of an image with a vision model.
type Detector struct {
	client client.VisionClient
	model  string
	maxDim int
}

// NewDetector creates a detector that queries model through c.
func NewDetector(c client.VisionClient, model string) *Detector {
	return &Detector{client: c, model: model, maxDim: DefaultMaxDim}
}

// SetMaxDim changes the longest side of images sent to the model. Zero sends
// them unscaled.
func (d *Detector) SetMaxDim(n int) {
	if n < 0 {
		n = 0
	}
	d.maxDim = n
}

// Locate returns the normalized subject box of img. It returns ErrNoSubject
// when the model finds nothing or its reply cannot be read.
func (d *Detector) Locate(ctx context.Context, img image.Image) (types.Box, *types.AnalysisResult, error) {
	b64, err := PrepareImage(img, d.maxDim)
	if err != nil {
		return types.Box{}, nil, err
	}
	return d.LocateEncoded(ctx, b64)
}

// LocateEncoded is Locate for an image already encoded with PrepareImage.
func (d *Detector) LocateEncoded(ctx context.Context, imageB64 string) (types.Box, *types.AnalysisResult, error) {
	result, err := d.client.LocateSubject(ctx, d.model, DefaultPrompt, imageB64)
	if err != nil {
		return types.Box{}, nil, fmt.Errorf("subject detection failed: %w", err)
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Tags = normalizeTags(result.Tags)

	if !usable(result) {
		logging.Logger().Debug("model found no subject", "label", result.Primary.Label, "description", result.Description)
		return types.Box{}, result, ErrNoSubject
	}
	logging.Logger().Debug("subject located",
		"label", result.Primary.Label,
		"confidence", result.Primary.Confidence,
		"box", result.Primary.Box)
	return result.Primary.Box, result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	b64, err := PrepareImage(img, d.maxDim)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, b64)
}

// PrepareImage downsizes img so its longest side is at most maxDim and
// returns it as base64 JPEG.
func PrepareImage(img image.Image, maxDim int) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", errors.New("empty image")
	}
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode image for model: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// usable reports whether result names a real subject with a non-empty box.
func usable(result *types.AnalysisResult) bool {
	label := strings.ToLower(strings.TrimSpace(result.Primary.Label))
	if label == "" || label == "none" {
		return false
	}
	for _, t := range result.Tags {
		if t == "fallback" {
			return false
		}
	}
	return result.Primary.Box.W > 0 && result.Primary.Box.H > 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clips the box to the unit square.
func normalizeBox(b types.Box) types.Box {
	x0, y0 := clamp(b.X, 0, 1), clamp(b.Y, 0, 1)
	x1, y1 := clamp(b.X+b.W, 0, 1), clamp(b.Y+b.H, 0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
