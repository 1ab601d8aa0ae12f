// Package interaction turns pointer input on the crop surface into drag,
// resize and commit updates.
package interaction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/menta2k/croppy/internal/logging"
	"github.com/menta2k/croppy/pkg/transform"
	"github.com/menta2k/croppy/pkg/types"
)

// State is the resolver's gesture state.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Kind says what an Update asks the state holder to do.
type Kind int

const (
	// None: nothing changed.
	None Kind = iota
	// MovePosition: set the media position to Update.Position.
	MovePosition
	// PreviewCrop: show Update.Crop as the transient frame and redraw.
	PreviewCrop
	// CommitCrop: store Update.Crop as the committed frame.
	CommitCrop
)

// Update is the outcome of one pointer event.
type Update struct {
	Kind     Kind
	Position r2.Vec
	Crop     types.Size
}

// Input is the state the resolver reads on pointer-down.
type Input struct {
	Surface  types.Size
	Crop     types.Size
	Position r2.Vec
	HasMedia bool
}

// Config holds resolver configuration
type Config struct {
	HandleRadius float64
	HitSlop      float64
}

// DefaultConfig returns an 8px handle with 10px of extra grab tolerance.
func DefaultConfig() Config {
	return Config{HandleRadius: 8, HitSlop: 10}
}

// Resolver is the pointer state machine. It never writes the transform
// model; callers apply the returned updates.
type Resolver struct {
	cfg   Config
	state State

	start     r2.Vec     // pointer at gesture start
	startCrop types.Size // committed frame at resize start
	offset    r2.Vec     // pointer minus position at drag start
	candidate types.Size
}

// New creates a resolver with the default configuration
func New() *Resolver {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a resolver with custom configuration
func NewWithConfig(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// State returns the current gesture state.
func (r *Resolver) State() State {
	return r.state
}

// Candidate returns the transient frame while resizing.
func (r *Resolver) Candidate() (types.Size, bool) {
	return r.candidate, r.state == Resizing
}

// HitHandle reports whether p is close enough to grab the resize handle.
func (r *Resolver) HitHandle(p r2.Vec, surface, crop types.Size) bool {
	h := transform.HandleCenter(surface, crop)
	return r2.Norm(r2.Sub(p, h)) < r.cfg.HandleRadius+r.cfg.HitSlop
}

// Down starts a gesture. p is in surface pixels.
func (r *Resolver) Down(p r2.Vec, in Input) Update {
	switch {
	case r.HitHandle(p, in.Surface, in.Crop):
		r.state = Resizing
		r.start = p
		r.startCrop = in.Crop
		r.candidate = in.Crop
		logging.Logger().Debug("resize started", "width", in.Crop.Width, "height", in.Crop.Height)
		return Update{Kind: PreviewCrop, Crop: r.candidate}
	case in.HasMedia:
		r.state = Dragging
		r.start = p
		r.offset = r2.Sub(p, in.Position)
		logging.Logger().Debug("drag started", "x", p.X, "y", p.Y)
		return Update{}
	default:
		r.state = Idle
		return Update{}
	}
}

// Move continues the active gesture.
func (r *Resolver) Move(p r2.Vec) Update {
	switch r.state {
	case Resizing:
		d := r2.Sub(p, r.start)
		r.candidate = types.Size{
			Width:  transform.ClampCropSide(r.startCrop.Width + d.X),
			Height: transform.ClampCropSide(r.startCrop.Height + d.Y),
		}
		return Update{Kind: PreviewCrop, Crop: r.candidate}
	case Dragging:
		return Update{Kind: MovePosition, Position: r2.Sub(p, r.offset)}
	default:
		return Update{}
	}
}

// Up ends the active gesture. A resize commits its candidate rounded to
// whole pixels.
func (r *Resolver) Up() Update {
	prev := r.state
	r.state = Idle
	if prev != Resizing {
		return Update{}
	}
	committed := types.Size{
		Width:  math.Round(r.candidate.Width),
		Height: math.Round(r.candidate.Height),
	}
	logging.Logger().Debug("resize committed", "width", committed.Width, "height", committed.Height)
	return Update{Kind: CommitCrop, Crop: committed}
}

// Leave handles the pointer leaving the surface exactly like Up.
func (r *Resolver) Leave() Update {
	return r.Up()
}

// Cancel drops any gesture without committing it.
func (r *Resolver) Cancel() {
	r.state = Idle
}
