// Package video decodes video files into frames with OpenCV.
package video

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/pkg/media"
	"github.com/menta2k/croppy/pkg/types"
)

var errEndOfStream = errors.New("end of stream")

// Source is a media.FrameSource backed by a gocv capture.
type Source struct {
	mu    sync.Mutex
	vc    *gocv.VideoCapture
	mat   gocv.Mat
	frame image.Image
	fps   float64
	count int
	size  types.Size
}

// Open opens the video at path and returns it as media positioned on its
// first frame.
func Open(path string) (*media.Media, error) {
	src, err := NewSource(path)
	if err != nil {
		return nil, err
	}
	logging.Logger().Info("video loaded", "path", path,
		"width", src.size.Width, "height", src.size.Height,
		"fps", src.fps, "duration", src.Duration())
	return media.NewVideo(src, filepath.Base(path)), nil
}

// NewSource opens a capture and decodes the first frame.
func NewSource(path string) (*Source, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrDecode, err)
	}

	s := &Source{
		vc:    vc,
		mat:   gocv.NewMat(),
		fps:   vc.Get(gocv.VideoCaptureFPS),
		count: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}
	if err := s.read(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %s has no decodable frames", media.ErrDecode, filepath.Base(path))
	}
	b := s.frame.Bounds()
	s.size = types.NewSize(float64(b.Dx()), float64(b.Dy()))
	return s, nil
}

func (s *Source) read() error {
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return errEndOfStream
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return err
	}
	s.frame = img
	return nil
}

// Frame returns the current frame.
func (s *Source) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Advance decodes the next frame, looping to the start after the last one.
func (s *Source) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.read()
	if errors.Is(err, errEndOfStream) {
		return s.rewind()
	}
	return err
}

// Rewind seeks to the first frame and decodes it.
func (s *Source) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewind()
}

func (s *Source) rewind() error {
	s.vc.Set(gocv.VideoCapturePosFrames, 0)
	return s.read()
}

// FrameRate returns frames per second as reported by the container.
func (s *Source) FrameRate() float64 { return s.fps }

// Duration is frame count over frame rate, zero when either is unknown.
func (s *Source) Duration() time.Duration {
	if s.fps <= 0 || s.count <= 0 {
		return 0
	}
	return time.Duration(float64(s.count) / s.fps * float64(time.Second))
}

// Size returns the frame size.
func (s *Source) Size() types.Size { return s.size }

// Close releases the capture and its frame buffer.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mat.Close()
	return s.vc.Close()
}
