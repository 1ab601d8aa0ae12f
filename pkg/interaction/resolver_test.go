package interaction

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/pkg/types"
)

// 1200x1200 surface with a 832x1216 frame: the handle sits at (1016,1208).
func scenarioInput(hasMedia bool) Input {
	return Input{
		Surface:  types.NewSize(1200, 1200),
		Crop:     types.NewSize(832, 1216),
		Position: r2.Vec{X: 100, Y: 100},
		HasMedia: hasMedia,
	}
}

var handle = r2.Vec{X: 1016, Y: 1208}

func TestDownOnHandleStartsResize(t *testing.T) {
	r := New()
	u := r.Down(handle, scenarioInput(true))

	if r.State() != Resizing {
		t.Fatalf("Expected Resizing, got %v", r.State())
	}
	if u.Kind != PreviewCrop || u.Crop != types.NewSize(832, 1216) {
		t.Errorf("Expected preview of the committed frame, got %+v", u)
	}
}

func TestDownAwayFromHandleWithMediaStartsDrag(t *testing.T) {
	r := New()
	r.Down(r2.Vec{X: handle.X - 50, Y: handle.Y}, scenarioInput(true))

	if r.State() != Dragging {
		t.Errorf("Expected Dragging, got %v", r.State())
	}
}

func TestDownWithoutMediaStaysIdle(t *testing.T) {
	r := New()
	u := r.Down(r2.Vec{X: 600, Y: 600}, scenarioInput(false))

	if r.State() != Idle {
		t.Errorf("Expected Idle, got %v", r.State())
	}
	if u.Kind != None {
		t.Errorf("Expected no update, got %+v", u)
	}
}

func TestHitToleranceBoundary(t *testing.T) {
	r := New()
	in := scenarioInput(true)

	// Radius 8 plus slop 10: 17.9px grabs the handle, 18px does not.
	if !r.HitHandle(r2.Vec{X: handle.X + 17.9, Y: handle.Y}, in.Surface, in.Crop) {
		t.Error("Expected a hit at 17.9px")
	}
	if r.HitHandle(r2.Vec{X: handle.X + 18, Y: handle.Y}, in.Surface, in.Crop) {
		t.Error("Expected a miss at 18px")
	}
}

func TestHitUsesDrawnHandleOnHalfPixelBox(t *testing.T) {
	r := New()
	// The box starts at (100.5,-50.5) and is drawn from (101,-50), so the
	// handle is painted at (301,352).
	surface, crop := types.NewSize(401, 301), types.NewSize(200, 402)
	drawn := r2.Vec{X: 301, Y: 352}

	if !r.HitHandle(r2.Vec{X: drawn.X + 17.9, Y: drawn.Y}, surface, crop) {
		t.Error("Expected a hit 17.9px right of the drawn handle")
	}
	if r.HitHandle(r2.Vec{X: drawn.X - 18, Y: drawn.Y}, surface, crop) {
		t.Error("Expected a miss 18px left of the drawn handle")
	}
}

func TestResizeNeverBelowMinimum(t *testing.T) {
	r := New()
	r.Down(handle, scenarioInput(true))

	u := r.Move(r2.Vec{X: handle.X - 2000, Y: handle.Y - 50.4})
	if u.Kind != PreviewCrop {
		t.Fatalf("Expected PreviewCrop, got %v", u.Kind)
	}
	if u.Crop.Width != 100 {
		t.Errorf("Expected candidate width clamped to 100, got %v", u.Crop.Width)
	}
	if math.Abs(u.Crop.Height-1165.6) > 1e-9 {
		t.Errorf("Expected candidate height 1165.6, got %v", u.Crop.Height)
	}

	c := r.Up()
	if c.Kind != CommitCrop {
		t.Fatalf("Expected CommitCrop, got %v", c.Kind)
	}
	if c.Crop != types.NewSize(100, 1166) {
		t.Errorf("Expected committed 100x1166, got %+v", c.Crop)
	}
	if r.State() != Idle {
		t.Errorf("Expected Idle after commit, got %v", r.State())
	}
}

func TestLeaveCommitsLikeUp(t *testing.T) {
	r := New()
	r.Down(handle, scenarioInput(true))
	r.Move(r2.Vec{X: handle.X + 20, Y: handle.Y + 30})

	u := r.Leave()
	if u.Kind != CommitCrop || u.Crop != types.NewSize(852, 1246) {
		t.Errorf("Expected commit of 852x1246 on leave, got %+v", u)
	}
	if r.State() != Idle {
		t.Errorf("Expected Idle after leave, got %v", r.State())
	}
}

func TestDragUsesOffset(t *testing.T) {
	r := New()
	in := scenarioInput(true)
	r.Down(r2.Vec{X: 300, Y: 400}, in)

	u := r.Move(r2.Vec{X: 250, Y: 460})
	if u.Kind != MovePosition {
		t.Fatalf("Expected MovePosition, got %v", u.Kind)
	}
	want := r2.Vec{X: 50, Y: 160}
	if u.Position != want {
		t.Errorf("Expected position %v, got %v", want, u.Position)
	}

	if up := r.Leave(); up.Kind != None {
		t.Errorf("Expected drag to end without an update, got %+v", up)
	}
	if r.State() != Idle {
		t.Errorf("Expected Idle after leave, got %v", r.State())
	}
}

func TestMoveWhileIdle(t *testing.T) {
	r := New()
	if u := r.Move(r2.Vec{X: 10, Y: 10}); u.Kind != None {
		t.Errorf("Expected no update while idle, got %+v", u)
	}
}

func TestCancelDropsCandidate(t *testing.T) {
	r := New()
	r.Down(handle, scenarioInput(true))
	r.Move(r2.Vec{X: handle.X + 40, Y: handle.Y})
	r.Cancel()

	if _, ok := r.Candidate(); ok {
		t.Error("Expected no candidate after Cancel")
	}
	if u := r.Up(); u.Kind != None {
		t.Errorf("Expected no commit after Cancel, got %+v", u)
	}
}

func TestViewportScaling(t *testing.T) {
	v := Viewport{Buffer: types.NewSize(1200, 1200), Display: types.NewSize(600, 400)}
	got := v.ToSurface(r2.Vec{X: 300, Y: 100})
	if got != (r2.Vec{X: 600, Y: 300}) {
		t.Errorf("Expected (600,300), got %v", got)
	}

	if got := (Viewport{}).ToSurface(r2.Vec{X: 5, Y: 7}); got != (r2.Vec{X: 5, Y: 7}) {
		t.Errorf("Expected identity for unset viewport, got %v", got)
	}
}
