// Package croppy is an interactive media-cropping engine.
//
// An Editor holds one image or video, the transform that places it on a
// surface, and a fixed-size crop frame centred on that surface. Pointer and
// wheel events move, zoom and resize; Render draws the live preview and
// GetCroppedCanvas produces exactly what the frame shows.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/croppy"
//		"github.com/menta2k/croppy/pkg/cropper"
//		"github.com/menta2k/croppy/pkg/media"
//	)
//
//	func main() {
//		m, err := media.LoadFile("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		ed := croppy.New()
//		defer ed.Close()
//		ed.LoadMedia(m)
//		ed.SetRotation(15)
//		ed.Wheel(600, 600, -1) // zoom in around the surface centre
//
//		sink := cropper.FileSink{Dir: "out"}
//		if _, err := ed.Export(context.Background(), cropper.PNG, sink); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Transform (pkg/transform): media placement and crop-frame geometry
//  2. Compositor (pkg/compositor): the preview with mask, border and handle
//  3. Interaction (pkg/interaction) and Zoom (pkg/zoom): pointer and wheel input
//  4. Cropper (pkg/cropper): export rasterization, encoding and delivery
//  5. Media (pkg/media): decoding and lifecycle of images, videos and PDF pages
package croppy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/internal/config"
	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/pkg/compositor"
	"github.com/menta2k/croppy/pkg/cropper"
	"github.com/menta2k/croppy/pkg/framing"
	"github.com/menta2k/croppy/pkg/interaction"
	"github.com/menta2k/croppy/pkg/media"
	"github.com/menta2k/croppy/pkg/playback"
	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/types"
	"github.com/menta2k/croppy/pkg/zoom"
)

// Version of the croppy library
const Version = "1.0.0"

// SetLogger installs the logger used by every croppy package. nil discards.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}

// Callbacks are change notifications. They run after the editor's state is
// updated and outside its lock, so they may call back into the editor.
type Callbacks struct {
	OnPositionChange func(x, y float64)
	OnScaleChange    func(scale float64)
	OnRotationChange func(deg float64)
	OnCropResize     func(width, height int)
	OnMediaReady     func(info media.Info)
	OnMediaError     func(err error)
}

// Config holds editor configuration
type Config struct {
	Surface     types.Size
	Crop        types.Size
	Style       compositor.Style
	Sampling    string
	Interaction interaction.Config
	Zoom        zoom.Config
	// Quality is the JPEG export quality.
	Quality int
	// FPS drives redraws for videos without a known frame rate.
	FPS            int
	FramingPadding float64
	Callbacks      Callbacks
}

// DefaultConfig returns a 1200x1200 surface with an 832x1216 frame.
func DefaultConfig() Config {
	return Config{
		Surface:        types.NewSize(1200, 1200),
		Crop:           types.NewSize(832, 1216),
		Style:          compositor.DefaultStyle(),
		Sampling:       "nearest",
		Interaction:    interaction.DefaultConfig(),
		Zoom:           zoom.DefaultConfig(),
		Quality:        cropper.DefaultQuality,
		FPS:            60,
		FramingPadding: framing.DefaultPadding,
	}
}

// ConfigFromApp builds an editor configuration from the application config.
func ConfigFromApp(c *config.Config) (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	bg, err := config.ParseHexColor(c.Style.Background)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.Surface = types.NewSize(float64(c.Canvas.Width), float64(c.Canvas.Height))
	cfg.Crop = types.NewSize(float64(c.Crop.Width), float64(c.Crop.Height))
	cfg.Style.Background = bg
	cfg.Style.Mask.A = uint8(math.Round(c.Style.MaskAlpha * 255))
	cfg.Style.BorderWidth = c.Style.BorderWidth
	cfg.Style.HandleRadius = c.Style.HandleRadius
	cfg.Sampling = c.Sampling
	cfg.Interaction = interaction.Config{HandleRadius: c.Style.HandleRadius, HitSlop: c.Style.HitSlop}
	cfg.Zoom = zoom.Config{
		Sensitivity: float64(c.Zoom.Sensitivity),
		MinScale:    c.Zoom.MinScale,
		MaxScale:    c.Zoom.MaxScale,
	}
	cfg.Quality = c.Output.Quality
	cfg.FPS = c.Playback.FPS
	cfg.FramingPadding = c.Vision.Padding
	return cfg, nil
}

// Editor is the state holder: it owns the media, its transform and the crop
// frame, and is the only writer of all three.
type Editor struct {
	config     Config
	callbacks  Callbacks
	compositor *compositor.Compositor
	cropper    *cropper.Cropper
	loop       *playback.Loop
	redraw     atomic.Pointer[func()]
	now        func() time.Time

	mu       sync.RWMutex
	media    *media.Media
	model    transform.Model
	crop     types.Size
	surface  types.Size
	viewport interaction.Viewport
	resolver *interaction.Resolver
	zoom     *zoom.Controller
	playing  bool
}

// New creates an editor with the default configuration
func New() *Editor {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an editor with custom configuration
func NewWithConfig(cfg Config) *Editor {
	if cfg.Surface.Empty() {
		cfg.Surface = DefaultConfig().Surface
	}
	cfg.Crop = clampCrop(cfg.Crop)
	if cfg.Quality <= 0 {
		cfg.Quality = cropper.DefaultQuality
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultConfig().FPS
	}
	if cfg.Interaction.HandleRadius <= 0 {
		cfg.Interaction = interaction.DefaultConfig()
	}

	e := &Editor{
		config:     cfg,
		callbacks:  cfg.Callbacks,
		compositor: compositor.NewWithConfig(compositor.Config{Style: cfg.Style, Sampling: cfg.Sampling}),
		cropper:    cropper.NewWithConfig(cropper.CropConfig{Sampling: cfg.Sampling}),
		loop:       playback.New(time.Second / time.Duration(cfg.FPS)),
		now:        time.Now,
		crop:       cfg.Crop,
		surface:    cfg.Surface,
		viewport:   interaction.Viewport{Buffer: cfg.Surface},
		resolver:   interaction.NewWithConfig(cfg.Interaction),
		zoom:       zoom.NewWithConfig(cfg.Zoom),
	}
	e.loop.SetFrame(e.tick)
	return e
}

// SetCallbacks replaces the change notifications.
func (e *Editor) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = cb
}

// LoadMedia makes m the active media. The previous media is released and
// playback stops. Initial placement runs through OnMediaReady.
func (e *Editor) LoadMedia(m *media.Media) {
	if m == nil {
		return
	}
	e.loop.Stop()

	e.mu.Lock()
	prev := e.media
	e.media = m
	e.model = transform.New(m.Size())
	e.playing = false
	e.resolver.Cancel()
	e.mu.Unlock()

	if prev != nil && prev != m {
		if err := prev.Release(); err != nil {
			logging.Logger().Warn("failed to release media", "name", prev.Name(), "error", err)
		}
	}
	logging.Logger().Info("media loaded", "name", m.Name(), "kind", m.Kind(), "width", m.Size().Width, "height", m.Size().Height)
	e.OnMediaReady(m)
}

// OnMediaReady runs initial placement for m: rotation 0, scale 1, centred on
// the surface. It does so at most once per media and ignores media that is no
// longer active, so a late ready event never overrides user changes.
func (e *Editor) OnMediaReady(m *media.Media) {
	e.mu.Lock()
	if m == nil || m != e.media || !m.MarkPlaced() {
		e.mu.Unlock()
		return
	}
	model := transform.New(m.Size()).Centered(e.surface)
	e.model = model
	cb := e.callbacks
	e.mu.Unlock()

	if cb.OnPositionChange != nil {
		cb.OnPositionChange(model.Position.X, model.Position.Y)
	}
	if cb.OnScaleChange != nil {
		cb.OnScaleChange(model.Scale)
	}
	if cb.OnRotationChange != nil {
		cb.OnRotationChange(0)
	}
	if cb.OnMediaReady != nil {
		cb.OnMediaReady(m.Info())
	}
	e.requestRedraw()
}

// OnMediaError reports a failed load. The active media, if any, is kept.
func (e *Editor) OnMediaError(err error) {
	if err == nil {
		return
	}
	logging.Logger().Warn("media load failed", "error", err)
	e.mu.RLock()
	cb := e.callbacks.OnMediaError
	e.mu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// RemoveMedia releases the active media and clears the transform.
func (e *Editor) RemoveMedia() {
	e.loop.Stop()

	e.mu.Lock()
	m := e.media
	e.media = nil
	e.model = transform.Model{}
	e.playing = false
	e.resolver.Cancel()
	e.mu.Unlock()

	if m != nil {
		if err := m.Release(); err != nil {
			logging.Logger().Warn("failed to release media", "name", m.Name(), "error", err)
		}
		logging.Logger().Info("media removed", "name", m.Name())
	}
	e.requestRedraw()
}

// Close stops playback and releases the media.
func (e *Editor) Close() error {
	e.loop.Stop()
	e.mu.Lock()
	m := e.media
	e.media = nil
	e.playing = false
	e.mu.Unlock()
	if m != nil {
		return m.Release()
	}
	return nil
}

// Resize sets the surface size in pixels. The crop frame stays centred.
func (e *Editor) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	e.surface = types.NewSize(float64(width), float64(height))
	e.viewport.Buffer = e.surface
	e.mu.Unlock()
	e.requestRedraw()
}

// SetViewport sets the size the surface is displayed at. Pointer coordinates
// are scaled from it into surface pixels.
func (e *Editor) SetViewport(displayWidth, displayHeight float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.Display = types.NewSize(displayWidth, displayHeight)
}

// Surface returns the surface size.
func (e *Editor) Surface() (int, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.surface.Round()
}

// Render draws the preview onto dst. A missing surface is logged and skipped.
func (e *Editor) Render(dst draw.Image) error {
	scene := e.scene()
	if err := e.compositor.Render(dst, scene); err != nil {
		if errors.Is(err, compositor.ErrSurfaceUnavailable) {
			logging.Logger().Warn("render skipped", "error", err)
		}
		return err
	}
	return nil
}

// RenderImage renders the preview into a new surface-sized image.
func (e *Editor) RenderImage() *image.RGBA {
	w, h := e.Surface()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := e.Render(dst); err != nil {
		return nil
	}
	return dst
}

func (e *Editor) scene() compositor.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := compositor.Scene{Model: e.model, Crop: e.effectiveCropLocked()}
	if e.media != nil {
		s.Media = e.media.Frame()
	}
	return s
}

func (e *Editor) effectiveCropLocked() types.Size {
	if c, ok := e.resolver.Candidate(); ok {
		return c
	}
	return e.crop
}

// PointerDown starts a drag or, on the handle, a resize. Coordinates are in
// display units.
func (e *Editor) PointerDown(x, y float64) {
	e.mu.Lock()
	p := e.viewport.ToSurface(r2.Vec{X: x, Y: y})
	u := e.resolver.Down(p, interaction.Input{
		Surface:  e.surface,
		Crop:     e.crop,
		Position: e.model.Position,
		HasMedia: e.media != nil,
	})
	notify := e.applyLocked(u)
	e.mu.Unlock()
	notify()
}

// PointerMove continues the active gesture.
func (e *Editor) PointerMove(x, y float64) {
	e.mu.Lock()
	p := e.viewport.ToSurface(r2.Vec{X: x, Y: y})
	notify := e.applyLocked(e.resolver.Move(p))
	e.mu.Unlock()
	notify()
}

// PointerUp ends the active gesture, committing a resize.
func (e *Editor) PointerUp(x, y float64) {
	e.mu.Lock()
	notify := e.applyLocked(e.resolver.Up())
	e.mu.Unlock()
	notify()
}

// PointerLeave ends the gesture exactly like PointerUp.
func (e *Editor) PointerLeave(x, y float64) {
	e.mu.Lock()
	notify := e.applyLocked(e.resolver.Leave())
	e.mu.Unlock()
	notify()
}

// OverHandle reports whether a display-space point would grab the resize
// handle. Hosts use it to pick a cursor.
func (e *Editor) OverHandle(x, y float64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resolver.HitHandle(e.viewport.ToSurface(r2.Vec{X: x, Y: y}), e.surface, e.crop)
}

// applyLocked stores u and returns the notifications to send once unlocked.
func (e *Editor) applyLocked(u interaction.Update) func() {
	cb := e.callbacks
	switch u.Kind {
	case interaction.MovePosition:
		if e.media == nil {
			return func() {}
		}
		e.model.Position = u.Position
		pos := u.Position
		return func() {
			if cb.OnPositionChange != nil {
				cb.OnPositionChange(pos.X, pos.Y)
			}
			e.requestRedraw()
		}
	case interaction.PreviewCrop:
		return e.requestRedraw
	case interaction.CommitCrop:
		e.crop = clampCrop(u.Crop)
		w, h := e.crop.Round()
		return func() {
			if cb.OnCropResize != nil {
				cb.OnCropResize(w, h)
			}
			e.requestRedraw()
		}
	default:
		return func() {}
	}
}

// Wheel zooms around the pointer. Negative deltaY zooms in.
func (e *Editor) Wheel(x, y, deltaY float64) {
	e.mu.Lock()
	p := e.viewport.ToSurface(r2.Vec{X: x, Y: y})
	scale, pos := e.zoom.Wheel(p, deltaY, e.model.Scale, e.model.Position, e.media != nil)
	if scale == e.model.Scale && pos == e.model.Position {
		e.mu.Unlock()
		return
	}
	e.model.Scale, e.model.Position = scale, pos
	cb := e.callbacks
	e.mu.Unlock()

	if cb.OnScaleChange != nil {
		cb.OnScaleChange(scale)
	}
	if cb.OnPositionChange != nil {
		cb.OnPositionChange(pos.X, pos.Y)
	}
	e.requestRedraw()
}

// SetRotation sets the rotation in degrees, folded into [-180, 180].
func (e *Editor) SetRotation(deg float64) {
	deg = transform.NormalizeRotation(deg)
	e.mu.Lock()
	e.model.Rotation = deg
	cb := e.callbacks.OnRotationChange
	e.mu.Unlock()

	if cb != nil {
		cb(deg)
	}
	e.requestRedraw()
}

// SetScale sets the scale directly, clamped to the zoom bounds.
func (e *Editor) SetScale(scale float64) {
	e.mu.Lock()
	if e.media == nil {
		e.mu.Unlock()
		return
	}
	e.model.Scale = transform.ClampScale(scale)
	scale = e.model.Scale
	cb := e.callbacks.OnScaleChange
	e.mu.Unlock()

	if cb != nil {
		cb(scale)
	}
	e.requestRedraw()
}

// SetPosition moves the media's top-left corner.
func (e *Editor) SetPosition(x, y float64) {
	e.mu.Lock()
	if e.media == nil {
		e.mu.Unlock()
		return
	}
	e.model.Position = r2.Vec{X: x, Y: y}
	cb := e.callbacks.OnPositionChange
	e.mu.Unlock()

	if cb != nil {
		cb(x, y)
	}
	e.requestRedraw()
}

// SetCropSize commits a crop frame from explicit input. Each side is raised
// to the 100px minimum. An active resize gesture is dropped.
func (e *Editor) SetCropSize(width, height int) {
	size := clampCrop(types.NewSize(float64(width), float64(height)))
	e.mu.Lock()
	e.resolver.Cancel()
	e.crop = size
	cb := e.callbacks.OnCropResize
	e.mu.Unlock()

	if cb != nil {
		w, h := size.Round()
		cb(w, h)
	}
	e.requestRedraw()
}

// CropSize returns the committed crop frame.
func (e *Editor) CropSize() (int, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.crop.Round()
}

// SetSensitivity sets the zoom step in percent, clamped to [1, 20].
func (e *Editor) SetSensitivity(pct int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zoom.SetSensitivity(float64(pct))
}

// Reset re-centres the media at its current scale.
func (e *Editor) Reset() {
	e.mu.Lock()
	if e.media == nil {
		e.mu.Unlock()
		return
	}
	e.model = e.model.Centered(e.surface)
	pos := e.model.Position
	cb := e.callbacks.OnPositionChange
	e.mu.Unlock()

	if cb != nil {
		cb(pos.X, pos.Y)
	}
	e.requestRedraw()
}

// ApplyFraming sets scale and position together, as computed by the framing package.
func (e *Editor) ApplyFraming(scale float64, position r2.Vec) {
	e.mu.Lock()
	if e.media == nil {
		e.mu.Unlock()
		return
	}
	e.model.Scale = transform.ClampScale(scale)
	e.model.Position = position
	scale = e.model.Scale
	cb := e.callbacks
	e.mu.Unlock()

	if cb.OnScaleChange != nil {
		cb.OnScaleChange(scale)
	}
	if cb.OnPositionChange != nil {
		cb.OnPositionChange(position.X, position.Y)
	}
	e.requestRedraw()
}

// AutoFrame asks f for the subject of the current frame and frames it in the
// crop box. Rotation is kept.
func (e *Editor) AutoFrame(ctx context.Context, f framing.Finder) error {
	e.mu.RLock()
	m, model, crop, surface := e.media, e.model, e.crop, e.surface
	e.mu.RUnlock()
	if m == nil {
		return types.ErrNoMedia
	}
	frame := m.Frame()
	if frame == nil {
		return types.ErrNoMedia
	}

	box, err := f.FindSubject(ctx, frame)
	if err != nil {
		return fmt.Errorf("auto-framing failed: %w", err)
	}
	fitted := framing.FitModel(model, box, crop, surface, e.config.FramingPadding)
	logging.Logger().Debug("auto-framed", "box", box, "scale", fitted.Scale, "x", fitted.Position.X, "y", fitted.Position.Y)

	// The media may have changed while the finder ran.
	e.mu.RLock()
	current := e.media
	e.mu.RUnlock()
	if current != m {
		return nil
	}
	e.ApplyFraming(fitted.Scale, fitted.Position)
	return nil
}

// GetCroppedCanvas returns exactly what the crop frame shows, without the
// overlay, or nil when no media is loaded.
func (e *Editor) GetCroppedCanvas() *image.RGBA {
	result, err := e.cropResult()
	if err != nil {
		if !errors.Is(err, types.ErrNoMedia) {
			logging.Logger().Warn("crop failed", "error", err)
		}
		return nil
	}
	return result.Image
}

func (e *Editor) cropResult() (cropper.CropResult, error) {
	e.mu.RLock()
	req := cropper.CropRequest{Model: e.model, Frame: e.crop, Surface: e.surface}
	if e.media != nil {
		req.Media = e.media.Frame()
	}
	e.mu.RUnlock()
	return e.cropper.Crop(req)
}

// Export encodes the crop in format f and hands it to every sink. Sink
// failures are returned and leave the editor untouched.
func (e *Editor) Export(ctx context.Context, f cropper.Format, sinks ...cropper.Sink) (cropper.Export, error) {
	result, err := e.cropResult()
	if err != nil {
		return cropper.Export{}, err
	}
	exp, err := cropper.NewExport(result, f, e.config.Quality, e.now())
	if err != nil {
		return cropper.Export{}, err
	}
	if err := cropper.Deliver(ctx, exp, sinks...); err != nil {
		logging.Logger().Warn("export delivery failed", "name", exp.Name, "error", err)
		return exp, err
	}
	logging.Logger().Info("export delivered", "name", exp.Name, "format", exp.Format, "bytes", len(exp.Data), "sinks", len(sinks))
	return exp, nil
}

// SetRedraw registers the function that refreshes the display. The playback
// loop and every state change call the function registered at that moment.
// fn runs on the playback goroutine while a video plays and must not call
// SetPlaying, LoadMedia, RemoveMedia or Close.
func (e *Editor) SetRedraw(fn func()) {
	if fn == nil {
		e.redraw.Store(nil)
		return
	}
	e.redraw.Store(&fn)
}

func (e *Editor) requestRedraw() {
	if fn := e.redraw.Load(); fn != nil {
		(*fn)()
	}
}

// SetPlaying starts or stops continuous redraw. Only videos play.
func (e *Editor) SetPlaying(playing bool) {
	e.mu.Lock()
	m := e.media
	playing = playing && m != nil && m.Kind() == media.Video
	e.playing = playing
	e.mu.Unlock()

	if !playing {
		e.loop.Stop()
		return
	}
	interval := time.Second / time.Duration(e.config.FPS)
	if fps := m.FrameRate(); fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}
	e.loop.SetInterval(interval)
	e.loop.Start()
}

// Rewind returns a video to its first frame. Stills ignore it.
func (e *Editor) Rewind() {
	e.mu.RLock()
	m := e.media
	e.mu.RUnlock()
	if m == nil || m.Kind() != media.Video {
		return
	}
	if err := m.Rewind(); err != nil {
		logging.Logger().Warn("video rewind failed", "name", m.Name(), "error", err)
		return
	}
	e.requestRedraw()
}

// tick advances the video one frame and redraws. It must not stop the loop.
func (e *Editor) tick() {
	e.mu.RLock()
	m, playing := e.media, e.playing
	e.mu.RUnlock()
	if m == nil || !playing {
		return
	}
	if err := m.Advance(); err != nil {
		logging.Logger().Warn("video frame failed", "name", m.Name(), "error", err)
		return
	}
	e.requestRedraw()
}

// State is a consistent snapshot of the editor for status displays.
type State struct {
	HasMedia bool
	Media    media.Info
	Model    transform.Model
	// Crop is the committed frame. Preview is the frame being shown, which
	// differs while a resize is in progress.
	Crop        types.Size
	Preview     types.Size
	Surface     types.Size
	Interaction interaction.State
	Sensitivity float64
	Playing     bool
}

// ZoomPercent returns the scale as a whole percentage.
func (s State) ZoomPercent() int {
	return int(math.Round(s.Model.Scale * 100))
}

// State returns a snapshot of the editor.
func (e *Editor) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := State{
		HasMedia:    e.media != nil,
		Model:       e.model,
		Crop:        e.crop,
		Preview:     e.effectiveCropLocked(),
		Surface:     e.surface,
		Interaction: e.resolver.State(),
		Sensitivity: e.zoom.Sensitivity(),
		Playing:     e.playing,
	}
	if e.media != nil {
		s.Media = e.media.Info()
	}
	return s
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func clampCrop(s types.Size) types.Size {
	return types.Size{
		Width:  transform.ClampCropSide(math.Round(s.Width)),
		Height: transform.ClampCropSide(math.Round(s.Height)),
	}
}
