// Package media holds the loaded image or video and its lifecycle.
package media

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/menta2k/croppy/pkg/types"
)

// Kind distinguishes still and moving media.
type Kind int

const (
	Image Kind = iota
	Video
)

func (k Kind) String() string {
	if k == Video {
		return "video"
	}
	return "image"
}

// FrameSource is a decoded video stream.
type FrameSource interface {
	// Frame returns the current frame. It stays valid until the next Advance.
	Frame() image.Image
	// Advance decodes the next frame, wrapping to the start at the end.
	Advance() error
	// Rewind seeks back to the first frame.
	Rewind() error
	FrameRate() float64
	Duration() time.Duration
	Size() types.Size
	Close() error
}

// Media is the single active image or video. Its natural size never changes
// after creation.
type Media struct {
	kind    Kind
	name    string
	natural types.Size
	still   image.Image
	frames  FrameSource

	// placed latches the first-ready placement.
	placed atomic.Bool

	mu       sync.Mutex
	released bool
}

// NewImage wraps a decoded still image.
func NewImage(img image.Image, name string) *Media {
	b := img.Bounds()
	return &Media{
		kind:    Image,
		name:    name,
		natural: types.NewSize(float64(b.Dx()), float64(b.Dy())),
		still:   img,
	}
}

// NewVideo wraps an open frame source. The media owns it and closes it on
// Release.
func NewVideo(src FrameSource, name string) *Media {
	return &Media{
		kind:    Video,
		name:    name,
		natural: src.Size(),
		frames:  src,
	}
}

// Kind returns the media kind.
func (m *Media) Kind() Kind { return m.kind }

// Name returns the name the media was loaded under.
func (m *Media) Name() string { return m.name }

// Size returns the natural size in source pixels.
func (m *Media) Size() types.Size { return m.natural }

// Duration returns the video length, zero for stills.
func (m *Media) Duration() time.Duration {
	if m.frames == nil {
		return 0
	}
	return m.frames.Duration()
}

// FrameRate returns frames per second, zero for stills.
func (m *Media) FrameRate() float64 {
	if m.frames == nil {
		return 0
	}
	return m.frames.FrameRate()
}

// Frame returns what should be drawn now, or nil once released.
func (m *Media) Frame() image.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil
	}
	if m.frames != nil {
		return m.frames.Frame()
	}
	return m.still
}

// Advance moves a video to its next frame. Stills ignore it.
func (m *Media) Advance() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released || m.frames == nil {
		return nil
	}
	return m.frames.Advance()
}

// Rewind returns a video to its first frame.
func (m *Media) Rewind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released || m.frames == nil {
		return nil
	}
	return m.frames.Rewind()
}

// MarkPlaced reports true exactly once per media: the first caller gets to
// run initial placement.
func (m *Media) MarkPlaced() bool {
	return m.placed.CompareAndSwap(false, true)
}

// Placed reports whether initial placement already ran.
func (m *Media) Placed() bool {
	return m.placed.Load()
}

// Released reports whether Release was called.
func (m *Media) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// Release frees the underlying handle. Further calls do nothing.
func (m *Media) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil
	}
	m.released = true
	m.still = nil
	if m.frames != nil {
		return m.frames.Close()
	}
	return nil
}

// Info returns basic metadata about the media
func (m *Media) Info() Info {
	w, h := m.natural.Round()
	info := Info{
		Kind:     m.kind,
		Width:    w,
		Height:   h,
		Area:     w * h,
		Duration: m.Duration(),
	}
	if h > 0 {
		info.AspectRatio = float64(w) / float64(h)
	}
	return info
}

// Info contains basic media metadata
type Info struct {
	Kind        Kind
	Width       int
	Height      int
	AspectRatio float64
	Area        int
	Duration    time.Duration
}
