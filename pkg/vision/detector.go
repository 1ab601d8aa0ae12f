package vision

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/croppy/pkg/types"
)

// SubjectDetector finds the salient region of an image without a model.
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	// AnalysisSize is the longest side of the thumbnail the map is built on.
	AnalysisSize   int
	EdgeWeight     float64
	ContrastWeight float64
	// Spread is the number of standard deviations the box covers on each
	// side of the saliency centroid.
	Spread          float64
	MinSubjectRatio float64
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		AnalysisSize:    256,
		EdgeWeight:      0.6,
		ContrastWeight:  0.4,
		Spread:          2,
		MinSubjectRatio: 0.05,
	}
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = DefaultConfig().AnalysisSize
	}
	if config.Spread <= 0 {
		config.Spread = DefaultConfig().Spread
	}
	return &SubjectDetector{config: config}
}

// Saliency is a per-pixel weight map over a thumbnail.
type Saliency struct {
	Width, Height int
	Values        []float64
}

// At returns the weight at (x, y).
func (s Saliency) At(x, y int) float64 {
	return s.Values[y*s.Width+x]
}

// centredBox is returned when an image has no salient region.
var centredBox = types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// Subject returns the normalized box around the salient region of img and
// whether one was found. Featureless images yield a centred half-size box.
func (d *SubjectDetector) Subject(img image.Image) (types.Box, bool, error) {
	sal, err := d.SaliencyMap(img)
	if err != nil {
		return types.Box{}, false, err
	}

	n := len(sal.Values)
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	ws := make([]float64, 0, n)
	for y := 0; y < sal.Height; y++ {
		for x := 0; x < sal.Width; x++ {
			w := sal.At(x, y)
			if w <= 0 {
				continue
			}
			xs = append(xs, (float64(x)+0.5)/float64(sal.Width))
			ys = append(ys, (float64(y)+0.5)/float64(sal.Height))
			ws = append(ws, w)
		}
	}
	if len(ws) < 2 {
		return centredBox, false, nil
	}

	mx, sx := stat.MeanStdDev(xs, ws)
	my, sy := stat.MeanStdDev(ys, ws)
	if math.IsNaN(sx) || math.IsNaN(sy) {
		return centredBox, false, nil
	}
	return d.boxAround(mx, my, sx, sy), true, nil
}

// SaliencyMap builds the weight map of img: gradient magnitude plus contrast
// against the mean luminance, keeping only above-average pixels.
func (d *SubjectDetector) SaliencyMap(img image.Image) (Saliency, error) {
	if img == nil || img.Bounds().Empty() {
		return Saliency{}, errors.New("empty image")
	}

	size := d.config.AnalysisSize
	thumb := imaging.Fit(img, size, size, imaging.Box)
	w, h := thumb.Bounds().Dx(), thumb.Bounds().Dy()

	lum := make([]float64, w*h)
	var mean float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := thumb.PixOffset(x, y)
			p := thumb.Pix[i : i+4 : i+4]
			a := float64(p[3]) / 255
			l := (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) / 255 * a
			lum[y*w+x] = l
			mean += l
		}
	}
	mean /= float64(len(lum))

	at := func(x, y int) float64 {
		x = max(0, min(w-1, x))
		y = max(0, min(h-1, y))
		return lum[y*w+x]
	}

	sal := Saliency{Width: w, Height: h, Values: make([]float64, w*h)}
	var total float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := (at(x+1, y) - at(x-1, y)) / 2
			gy := (at(x, y+1) - at(x, y-1)) / 2
			v := d.config.EdgeWeight*math.Hypot(gx, gy) + d.config.ContrastWeight*math.Abs(lum[y*w+x]-mean)
			sal.Values[y*w+x] = v
			total += v
		}
	}

	avg := total / float64(len(sal.Values))
	for i, v := range sal.Values {
		if v -= avg; v > 1e-9 {
			sal.Values[i] = v
		} else {
			sal.Values[i] = 0
		}
	}
	return sal, nil
}

func (d *SubjectDetector) boxAround(mx, my, sx, sy float64) types.Box {
	minSide := d.config.MinSubjectRatio
	halfW := math.Max(d.config.Spread*sx, minSide/2)
	halfH := math.Max(d.config.Spread*sy, minSide/2)

	x0, x1 := math.Max(0, mx-halfW), math.Min(1, mx+halfW)
	y0, y1 := math.Max(0, my-halfH), math.Min(1, my+halfH)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
