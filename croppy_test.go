package croppy

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/internal/config"
	"github.com/menta2k/croppy/pkg/cropper"
	"github.com/menta2k/croppy/pkg/media"
	"github.com/menta2k/croppy/pkg/types"
)

var mediaColor = color.RGBA{200, 40, 40, 255}

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// recorder captures callbacks.
type recorder struct {
	mu        sync.Mutex
	positions []r2.Vec
	scales    []float64
	rotations []float64
	crops     [][2]int
	ready     []media.Info
	errs      []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnPositionChange: func(x, y float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.positions = append(r.positions, r2.Vec{X: x, Y: y})
		},
		OnScaleChange: func(s float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.scales = append(r.scales, s)
		},
		OnRotationChange: func(d float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.rotations = append(r.rotations, d)
		},
		OnCropResize: func(w, h int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.crops = append(r.crops, [2]int{w, h})
		},
		OnMediaReady: func(info media.Info) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ready = append(r.ready, info)
		},
		OnMediaError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func newEditor(t *testing.T) (*Editor, *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.Callbacks = rec.callbacks()
	e := NewWithConfig(cfg)
	t.Cleanup(func() { e.Close() })
	return e, rec
}

func loaded(t *testing.T) (*Editor, *recorder, *media.Media) {
	t.Helper()
	e, rec := newEditor(t)
	m := media.NewImage(solidImage(1000, 1000, mediaColor), "test")
	e.LoadMedia(m)
	return e, rec, m
}

func TestNewDefaults(t *testing.T) {
	e := New()
	defer e.Close()

	s := e.State()
	if s.HasMedia {
		t.Error("Expected no media")
	}
	if s.Crop != types.NewSize(832, 1216) {
		t.Errorf("Expected 832x1216 frame, got %+v", s.Crop)
	}
	if s.Surface != types.NewSize(1200, 1200) {
		t.Errorf("Expected 1200x1200 surface, got %+v", s.Surface)
	}
	if s.Sensitivity != 10 {
		t.Errorf("Expected sensitivity 10, got %f", s.Sensitivity)
	}
}

func TestLoadMediaCentres(t *testing.T) {
	e, rec, _ := loaded(t)

	s := e.State()
	if s.Model.Position != (r2.Vec{X: 100, Y: 100}) || s.Model.Scale != 1 || s.Model.Rotation != 0 {
		t.Errorf("Expected centred at scale 1, got %+v", s.Model)
	}
	if len(rec.positions) != 1 || rec.positions[0] != (r2.Vec{X: 100, Y: 100}) {
		t.Errorf("Expected one position notification, got %v", rec.positions)
	}
	if len(rec.ready) != 1 || rec.ready[0].Width != 1000 {
		t.Errorf("Expected ready notification, got %v", rec.ready)
	}
}

func TestPlacementLatch(t *testing.T) {
	e, rec, m := loaded(t)

	e.PointerDown(600, 600)
	e.PointerMove(650, 620)
	e.PointerUp(650, 620)

	e.OnMediaReady(m)
	if got := e.State().Model.Position; got != (r2.Vec{X: 150, Y: 120}) {
		t.Errorf("A second ready event must not re-centre, got %v", got)
	}
	if len(rec.ready) != 1 {
		t.Errorf("Expected a single ready notification, got %d", len(rec.ready))
	}
}

func TestStaleReadyIgnored(t *testing.T) {
	e, _, old := loaded(t)
	fresh := media.NewImage(solidImage(400, 200, mediaColor), "fresh")
	e.LoadMedia(fresh)
	if !old.Released() {
		t.Error("Expected previous media to be released")
	}

	e.SetPosition(5, 5)
	e.OnMediaReady(old)
	if got := e.State().Model.Position; got != (r2.Vec{X: 5, Y: 5}) {
		t.Errorf("Ready for replaced media must be ignored, got %v", got)
	}
}

func TestDrag(t *testing.T) {
	e, rec, _ := loaded(t)

	e.PointerDown(600, 600)
	e.PointerMove(650, 620)
	if got := e.State().Model.Position; got != (r2.Vec{X: 150, Y: 120}) {
		t.Errorf("Expected position (150,120), got %v", got)
	}
	e.PointerUp(650, 620)

	if last := rec.positions[len(rec.positions)-1]; last != (r2.Vec{X: 150, Y: 120}) {
		t.Errorf("Expected position notification, got %v", last)
	}
}

func TestDragWithoutMedia(t *testing.T) {
	e, rec := newEditor(t)
	e.PointerDown(600, 600)
	e.PointerMove(700, 700)
	e.PointerUp(700, 700)
	if len(rec.positions) != 0 {
		t.Errorf("Expected no notifications, got %v", rec.positions)
	}
}

func TestResizeCommitsOnUp(t *testing.T) {
	e, rec, _ := loaded(t)

	// Crop box is (184,-8) to (1016,1208); the handle sits on its corner.
	e.PointerDown(1016, 1208)
	e.PointerMove(1036, 1238)

	s := e.State()
	if s.Preview != types.NewSize(852, 1246) {
		t.Errorf("Expected candidate 852x1246, got %+v", s.Preview)
	}
	if s.Crop != types.NewSize(832, 1216) {
		t.Errorf("Committed frame must not change mid-drag, got %+v", s.Crop)
	}
	if len(rec.crops) != 0 {
		t.Error("Expected no crop notification before release")
	}

	e.PointerLeave(1036, 1238)
	if w, h := e.CropSize(); w != 852 || h != 1246 {
		t.Errorf("Expected committed 852x1246, got %dx%d", w, h)
	}
	if len(rec.crops) != 1 || rec.crops[0] != [2]int{852, 1246} {
		t.Errorf("Expected one crop notification, got %v", rec.crops)
	}
}

func TestViewportScaling(t *testing.T) {
	e, _, _ := loaded(t)
	e.SetViewport(600, 600)

	// Display (508,604) is surface (1016,1208): the handle.
	e.PointerDown(508, 604)
	if got := e.State().Interaction.String(); got != "resizing" {
		t.Errorf("Expected resizing, got %s", got)
	}
	e.PointerUp(508, 604)
}

func TestOverHandle(t *testing.T) {
	e := New()
	defer e.Close()
	if !e.OverHandle(1016, 1208) {
		t.Error("Expected handle hit at the crop corner")
	}
	if !e.OverHandle(1030, 1208) {
		t.Error("Expected handle hit within the slop")
	}
	if e.OverHandle(600, 600) {
		t.Error("Expected no handle hit at the centre")
	}
	e.SetViewport(600, 600)
	if !e.OverHandle(508, 604) {
		t.Error("Expected display coordinates to be scaled")
	}
}

func TestWheel(t *testing.T) {
	e, rec, _ := loaded(t)

	e.Wheel(600, 600, 100)
	s := e.State()
	if math.Abs(s.Model.Scale-0.9) > 1e-9 {
		t.Errorf("Expected scale 0.9, got %f", s.Model.Scale)
	}
	if math.Abs(s.Model.Position.X-150) > 1e-9 || math.Abs(s.Model.Position.Y-150) > 1e-9 {
		t.Errorf("Expected position (150,150), got %v", s.Model.Position)
	}
	if s.ZoomPercent() != 90 {
		t.Errorf("Expected 90%%, got %d", s.ZoomPercent())
	}
	if rec.scales[len(rec.scales)-1] != s.Model.Scale {
		t.Error("Expected scale notification")
	}
}

func TestWheelNoOps(t *testing.T) {
	e, rec := newEditor(t)
	e.Wheel(600, 600, -100)
	if len(rec.scales) != 0 {
		t.Error("Wheel without media must not notify")
	}

	e2, rec2, _ := loaded(t)
	before := len(rec2.scales)
	e2.Wheel(600, 600, 0)
	if len(rec2.scales) != before {
		t.Error("Zero delta must not notify")
	}
}

func TestSetRotation(t *testing.T) {
	e, rec, _ := loaded(t)

	tests := []struct{ in, want float64 }{
		{370, 10},
		{-540, -180},
		{720, 0},
		{45, 45},
	}
	for _, tt := range tests {
		e.SetRotation(tt.in)
		if got := e.State().Model.Rotation; got != tt.want {
			t.Errorf("SetRotation(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if rec.rotations[len(rec.rotations)-1] != 45 {
		t.Errorf("Expected rotation notification, got %v", rec.rotations)
	}
}

func TestSetCropSizeClamps(t *testing.T) {
	e, rec := newEditor(t)
	e.SetCropSize(50, 2000)
	if w, h := e.CropSize(); w != 100 || h != 2000 {
		t.Errorf("Expected 100x2000, got %dx%d", w, h)
	}
	if len(rec.crops) != 1 || rec.crops[0] != [2]int{100, 2000} {
		t.Errorf("Expected crop notification, got %v", rec.crops)
	}
}

func TestSetSensitivity(t *testing.T) {
	e, _ := newEditor(t)
	e.SetSensitivity(50)
	if got := e.State().Sensitivity; got != 20 {
		t.Errorf("Expected sensitivity clamped to 20, got %f", got)
	}
}

func TestReset(t *testing.T) {
	e, _, _ := loaded(t)
	e.Wheel(600, 600, 100)
	e.SetPosition(-300, 40)

	e.Reset()
	s := e.State()
	if math.Abs(s.Model.Position.X-150) > 1e-9 || math.Abs(s.Model.Position.Y-150) > 1e-9 {
		t.Errorf("Expected re-centred at scale 0.9, got %v", s.Model.Position)
	}
	if math.Abs(s.Model.Scale-0.9) > 1e-9 {
		t.Errorf("Reset must keep the scale, got %f", s.Model.Scale)
	}
}

func TestGetCroppedCanvas(t *testing.T) {
	e, _ := newEditor(t)
	if e.GetCroppedCanvas() != nil {
		t.Error("Expected nil without media")
	}

	e, _, _ = loaded(t)
	out := e.GetCroppedCanvas()
	if out == nil {
		t.Fatal("Expected a crop")
	}
	if b := out.Bounds(); b.Dx() != 832 || b.Dy() != 1216 {
		t.Errorf("Expected 832x1216, got %dx%d", b.Dx(), b.Dy())
	}
	// Output (416,608) is canvas (600,600), inside the media.
	if got := out.RGBAAt(416, 608); got != mediaColor {
		t.Errorf("Expected media colour, got %v", got)
	}
	// Output (0,0) is canvas (184,-8), above the media.
	if got := out.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("Expected transparent, got %v", got)
	}
}

func TestExport(t *testing.T) {
	e, _, _ := loaded(t)
	e.now = func() time.Time { return time.Date(2026, 10, 17, 12, 34, 56, 789e6, time.UTC) }
	dir := t.TempDir()

	exp, err := e.Export(context.Background(), cropper.PNG, cropper.FileSink{Dir: dir})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exp.Name != "croppy-2026-10-17T12-34-56-.png" {
		t.Errorf("Unexpected name %q", exp.Name)
	}

	img, err := imaging.Open(filepath.Join(dir, exp.Name))
	if err != nil {
		t.Fatalf("Expected a readable file: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 832 || b.Dy() != 1216 {
		t.Errorf("Expected 832x1216, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestExportErrors(t *testing.T) {
	e, _ := newEditor(t)
	if _, err := e.Export(context.Background(), cropper.PNG); !errors.Is(err, types.ErrNoMedia) {
		t.Errorf("Expected ErrNoMedia, got %v", err)
	}

	e, _, _ = loaded(t)
	before := e.State()
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := e.Export(context.Background(), cropper.PNG, cropper.FileSink{Dir: blocker})
	if !errors.Is(err, cropper.ErrDownload) {
		t.Errorf("Expected ErrDownload, got %v", err)
	}
	if after := e.State(); after.Model != before.Model || after.Crop != before.Crop {
		t.Error("A failed export must not touch editor state")
	}
}

func TestRemoveMedia(t *testing.T) {
	e, _, m := loaded(t)
	e.RemoveMedia()
	if e.State().HasMedia {
		t.Error("Expected no media")
	}
	if !m.Released() {
		t.Error("Expected media released")
	}
	if e.GetCroppedCanvas() != nil {
		t.Error("Expected nil crop after removal")
	}
}

func TestOnMediaErrorKeepsMedia(t *testing.T) {
	e, rec, _ := loaded(t)
	e.OnMediaError(media.ErrDecode)
	if !e.State().HasMedia {
		t.Error("Expected prior media kept")
	}
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], media.ErrDecode) {
		t.Errorf("Expected error notification, got %v", rec.errs)
	}
}

func TestRender(t *testing.T) {
	e, _, _ := loaded(t)
	if err := e.Render(nil); err == nil {
		t.Error("Expected error for missing surface")
	}
	img := e.RenderImage()
	if img == nil {
		t.Fatal("Expected a rendered surface")
	}
	if b := img.Bounds(); b.Dx() != 1200 || b.Dy() != 1200 {
		t.Errorf("Expected 1200x1200, got %v", b)
	}
	if got := img.RGBAAt(600, 600); got != mediaColor {
		t.Errorf("Expected undimmed media inside the frame, got %v", got)
	}
}

func TestResize(t *testing.T) {
	e, _ := newEditor(t)
	e.Resize(800, 600)
	if w, h := e.Surface(); w != 800 || h != 600 {
		t.Errorf("Expected 800x600, got %dx%d", w, h)
	}
	e.Resize(0, 10)
	if w, _ := e.Surface(); w != 800 {
		t.Error("Non-positive sizes must be ignored")
	}
}

// fakeVideo is a thread-safe FrameSource cycling through two colours.
type fakeVideo struct {
	frames   [2]image.Image
	pos      atomic.Int32
	advanced atomic.Int32
	closed   atomic.Bool
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{frames: [2]image.Image{
		solidImage(100, 100, color.RGBA{255, 0, 0, 255}),
		solidImage(100, 100, color.RGBA{0, 0, 255, 255}),
	}}
}

func (f *fakeVideo) Frame() image.Image { return f.frames[f.pos.Load()%2] }
func (f *fakeVideo) Advance() error {
	f.pos.Add(1)
	f.advanced.Add(1)
	return nil
}
func (f *fakeVideo) Rewind() error           { f.pos.Store(0); return nil }
func (f *fakeVideo) FrameRate() float64      { return 500 }
func (f *fakeVideo) Duration() time.Duration { return time.Second }
func (f *fakeVideo) Size() types.Size        { return types.NewSize(100, 100) }
func (f *fakeVideo) Close() error            { f.closed.Store(true); return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRewind(t *testing.T) {
	e, _ := newEditor(t)
	src := newFakeVideo()
	e.LoadMedia(media.NewVideo(src, "clip"))

	var redraws atomic.Int32
	e.SetRedraw(func() { redraws.Add(1) })

	_ = src.Advance()
	e.Rewind()
	if src.pos.Load() != 0 {
		t.Errorf("Expected first frame after rewind, got %d", src.pos.Load())
	}
	if redraws.Load() != 1 {
		t.Errorf("Expected one redraw, got %d", redraws.Load())
	}
}

func TestPlayback(t *testing.T) {
	e, _ := newEditor(t)
	src := newFakeVideo()
	e.LoadMedia(media.NewVideo(src, "clip"))

	var redraws atomic.Int32
	e.SetRedraw(func() { redraws.Add(1) })

	e.SetPlaying(true)
	if !e.State().Playing {
		t.Fatal("Expected playing")
	}
	waitFor(t, func() bool { return src.advanced.Load() >= 3 && redraws.Load() >= 3 })

	e.SetPlaying(false)
	after := src.advanced.Load()
	time.Sleep(20 * time.Millisecond)
	if src.advanced.Load() != after {
		t.Error("Frames advanced after playback stopped")
	}

	// The loop always calls the redraw registered now.
	var second atomic.Int32
	e.SetRedraw(func() { second.Add(1) })
	e.SetPlaying(true)
	waitFor(t, func() bool { return second.Load() >= 2 })

	e.RemoveMedia()
	if e.State().Playing {
		t.Error("Removing media must stop playback")
	}
	if !src.closed.Load() {
		t.Error("Expected video source closed")
	}
}

func TestPlaybackStillImage(t *testing.T) {
	e, _, _ := loaded(t)
	e.SetPlaying(true)
	if e.State().Playing {
		t.Error("Still images do not play")
	}
}

func TestApplyFraming(t *testing.T) {
	e, rec, _ := loaded(t)
	e.ApplyFraming(50, r2.Vec{X: -10, Y: 20})

	s := e.State()
	if s.Model.Scale != 5 || s.Model.Position != (r2.Vec{X: -10, Y: 20}) {
		t.Errorf("Expected clamped scale and position, got %+v", s.Model)
	}
	if rec.scales[len(rec.scales)-1] != 5 {
		t.Error("Expected scale notification")
	}
}

type fixedFinder struct {
	box types.Box
	err error
}

func (f fixedFinder) FindSubject(context.Context, image.Image) (types.Box, error) {
	return f.box, f.err
}

func TestAutoFrame(t *testing.T) {
	e, _, _ := loaded(t)
	if err := e.AutoFrame(context.Background(), fixedFinder{box: types.Box{X: 0.6, Y: 0.1, W: 0.2, H: 0.2}}); err != nil {
		t.Fatalf("AutoFrame failed: %v", err)
	}

	s := e.State()
	centre := s.Model.SourceToCanvas().Apply(r2.Vec{X: 700, Y: 200})
	if math.Abs(centre.X-600) > 1e-6 || math.Abs(centre.Y-600) > 1e-6 {
		t.Errorf("Expected subject at surface centre, got %v", centre)
	}

	boom := errors.New("boom")
	if err := e.AutoFrame(context.Background(), fixedFinder{err: boom}); !errors.Is(err, boom) {
		t.Errorf("Expected finder error, got %v", err)
	}

	empty, _ := newEditor(t)
	if err := empty.AutoFrame(context.Background(), fixedFinder{}); !errors.Is(err, types.ErrNoMedia) {
		t.Errorf("Expected ErrNoMedia, got %v", err)
	}
}

func TestConfigFromApp(t *testing.T) {
	app := config.Default()
	app.Canvas.Width = 900
	app.Style.Background = "#ffffff"
	app.Zoom.Sensitivity = 5

	cfg, err := ConfigFromApp(app)
	if err != nil {
		t.Fatalf("ConfigFromApp failed: %v", err)
	}
	if cfg.Surface.Width != 900 || cfg.Style.Background != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Style.Mask.A != 102 {
		t.Errorf("Expected mask alpha 102, got %d", cfg.Style.Mask.A)
	}
	if cfg.Zoom.Sensitivity != 5 {
		t.Errorf("Expected sensitivity 5, got %f", cfg.Zoom.Sensitivity)
	}

	app.Sampling = "bogus"
	if _, err := ConfigFromApp(app); err == nil || !strings.Contains(err.Error(), "sampling") {
		t.Errorf("Expected validation error, got %v", err)
	}
}
