// Package surface shows a croppy editor in a fyne window and feeds it
// pointer and wheel input.
package surface

import (
	"image"
	"math"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/menta2k/croppy"
	"github.com/menta2k/croppy/pkg/interaction"
)

var (
	_ desktop.Mouseable   = (*Surface)(nil)
	_ desktop.Hoverable   = (*Surface)(nil)
	_ desktop.Cursorable  = (*Surface)(nil)
	_ fyne.Draggable      = (*Surface)(nil)
	_ fyne.Scrollable     = (*Surface)(nil)
	_ fyne.WidgetRenderer = (*surfaceRenderer)(nil)
)

// Surface is the editor's drawing area. The editor's pixel buffer follows
// the widget size times the canvas scale, so the preview is never stretched.
type Surface struct {
	widget.BaseWidget

	editor *croppy.Editor
	raster *fynecanvas.Raster

	// Event handlers all run on the fyne event goroutine.
	last        fyne.Position
	pressed     bool
	overHandle  bool
	lastPixelsW int
	lastPixelsH int
}

// New creates a surface for ed and registers it as the editor's redraw hook.
func New(ed *croppy.Editor) *Surface {
	s := &Surface{editor: ed}
	s.raster = fynecanvas.NewRaster(s.draw)
	s.ExtendBaseWidget(s)
	ed.SetRedraw(s.raster.Refresh)
	return s
}

// Editor returns the editor the surface drives.
func (s *Surface) Editor() *croppy.Editor {
	return s.editor
}

// CreateRenderer implements fyne.Widget.
func (s *Surface) CreateRenderer() fyne.WidgetRenderer {
	return &surfaceRenderer{surface: s}
}

// MinSize keeps the handle reachable in a tiny window.
func (s *Surface) MinSize() fyne.Size {
	return fyne.NewSize(240, 240)
}

func (s *Surface) draw(w, h int) image.Image {
	if img := s.editor.RenderImage(); img != nil {
		return img
	}
	return image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
}

// layout sizes the editor buffer to the widget in device pixels.
func (s *Surface) layout(size fyne.Size) {
	if size.Width <= 0 || size.Height <= 0 {
		return
	}
	scale := float32(1)
	if app := fyne.CurrentApp(); app != nil {
		if c := app.Driver().CanvasForObject(s); c != nil {
			scale = c.Scale()
		}
	}
	pw := int(math.Round(float64(size.Width * scale)))
	ph := int(math.Round(float64(size.Height * scale)))
	if pw != s.lastPixelsW || ph != s.lastPixelsH {
		s.lastPixelsW, s.lastPixelsH = pw, ph
		s.editor.Resize(pw, ph)
	}
	s.editor.SetViewport(float64(size.Width), float64(size.Height))
}

// MouseDown starts a drag or resize on the primary button.
func (s *Surface) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	s.pressed = true
	s.last = ev.Position
	s.editor.PointerDown(float64(ev.Position.X), float64(ev.Position.Y))
}

// MouseUp ends the gesture.
func (s *Surface) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	s.release(ev.Position)
}

// MouseIn implements desktop.Hoverable.
func (s *Surface) MouseIn(ev *desktop.MouseEvent) {
	s.hover(ev.Position)
}

// MouseMoved continues a gesture and tracks the handle hover state.
func (s *Surface) MouseMoved(ev *desktop.MouseEvent) {
	s.last = ev.Position
	if s.pressed {
		s.editor.PointerMove(float64(ev.Position.X), float64(ev.Position.Y))
		return
	}
	s.hover(ev.Position)
}

// MouseOut ends any gesture, committing a pending resize.
func (s *Surface) MouseOut() {
	if s.pressed {
		s.pressed = false
		s.editor.PointerLeave(float64(s.last.X), float64(s.last.Y))
	}
	s.overHandle = false
}

// Dragged is delivered instead of MouseMoved while the button is held.
func (s *Surface) Dragged(ev *fyne.DragEvent) {
	s.last = ev.Position
	if s.pressed {
		s.editor.PointerMove(float64(ev.Position.X), float64(ev.Position.Y))
	}
}

// DragEnd implements fyne.Draggable.
func (s *Surface) DragEnd() {
	s.release(s.last)
}

// Scrolled zooms around the pointer. Scrolling up zooms in.
func (s *Surface) Scrolled(ev *fyne.ScrollEvent) {
	s.editor.Wheel(float64(ev.Position.X), float64(ev.Position.Y), -float64(ev.Scrolled.DY))
}

// Cursor shows a crosshair over the resize handle and while resizing.
func (s *Surface) Cursor() desktop.Cursor {
	if s.overHandle || s.editor.State().Interaction == interaction.Resizing {
		return desktop.CrosshairCursor
	}
	return desktop.DefaultCursor
}

func (s *Surface) release(p fyne.Position) {
	if !s.pressed {
		return
	}
	s.pressed = false
	s.editor.PointerUp(float64(p.X), float64(p.Y))
	s.hover(p)
}

func (s *Surface) hover(p fyne.Position) {
	s.overHandle = s.editor.OverHandle(float64(p.X), float64(p.Y))
}

type surfaceRenderer struct {
	surface *Surface
}

func (r *surfaceRenderer) Layout(size fyne.Size) {
	r.surface.raster.Resize(size)
	r.surface.layout(size)
}

func (r *surfaceRenderer) MinSize() fyne.Size {
	return r.surface.MinSize()
}

func (r *surfaceRenderer) Refresh() {
	r.surface.raster.Refresh()
}

func (r *surfaceRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.surface.raster}
}

func (r *surfaceRenderer) Destroy() {}
