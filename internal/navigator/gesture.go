package navigator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/models"
)

// GestureState is the phase of a touch gesture.
type GestureState int

const (
	GestureIdle GestureState = iota
	GesturePending
	GesturePressing
	GestureDragging
)

func (s GestureState) String() string {
	switch s {
	case GestureIdle:
		return "idle"
	case GesturePending:
		return "pending"
	case GesturePressing:
		return "pressing"
	case GestureDragging:
		return "dragging"
	}
	return "unknown"
}

// Point is a position in screen pixels.
type Point struct {
	X, Y float64
}

// HitTester returns the node under a point, or nil.
type HitTester interface {
	HitTest(pt Point) models.Node
}

// HitTestFunc adapts a function to HitTester.
type HitTestFunc func(pt Point) models.Node

func (f HitTestFunc) HitTest(pt Point) models.Node { return f(pt) }

// GestureTarget receives the outcome of a gesture. *Navigator implements it.
type GestureTarget interface {
	ToggleSelection(node models.Node) bool
	Move(ctx context.Context, node models.Node, target *int64) error
}

// GestureConfig holds the gesture timings.
type GestureConfig struct {
	PressDelay    time.Duration
	SelectHold    time.Duration
	DragThreshold float64
}

// DefaultGestureConfig returns the standard touch timings.
func DefaultGestureConfig() GestureConfig {
	return GestureConfig{
		PressDelay:    constants.TouchPressDelay,
		SelectHold:    constants.TouchSelectHold,
		DragThreshold: constants.TouchDragThreshold,
	}
}

// Gesture turns touch input into selection toggles and drag-and-drop moves.
//
//	idle -> pending -> pressing -> dragging -> (drop | cancel) -> idle
//
// Every input carries its own timestamp so the machine can be driven by a
// real clock (GestureTimer) or replayed in tests. Hold durations are measured
// from the initial touch.
type Gesture struct {
	target GestureTarget
	cfg    GestureConfig

	mu      sync.Mutex
	state   GestureState
	node    models.Node
	origin  Point
	startAt time.Time
	preview Point
}

// NewGesture creates an idle gesture machine.
func NewGesture(target GestureTarget, cfg GestureConfig) *Gesture {
	return &Gesture{target: target, cfg: cfg}
}

// State returns the current phase.
func (g *Gesture) State() GestureState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Preview returns the drag preview position and whether a drag is active.
func (g *Gesture) Preview() (Point, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.preview, g.state == GestureDragging
}

// Touch starts a gesture on node.
func (g *Gesture) Touch(node models.Node, pt Point, t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GesturePending
	g.node = node
	g.origin = pt
	g.preview = pt
	g.startAt = t
}

// Motion feeds a pointer move. Mostly horizontal movement past the threshold
// starts a drag; mostly vertical movement is a scroll and cancels.
func (g *Gesture) Motion(pt Point, t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case GestureDragging:
		g.preview = pt
		return
	case GesturePending, GesturePressing:
	default:
		return
	}

	g.advanceLocked(t)
	if g.state == GestureIdle {
		return
	}

	dx := pt.X - g.origin.X
	dy := pt.Y - g.origin.Y
	if math.Hypot(dx, dy) < g.cfg.DragThreshold {
		return
	}
	if math.Abs(dx) > math.Abs(dy) {
		g.state = GestureDragging
		g.preview = pt
		return
	}
	g.resetLocked()
}

// Tick advances time-driven transitions. It returns true when the hold
// toggled the selection.
func (g *Gesture) Tick(t time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.advanceLocked(t)
}

func (g *Gesture) advanceLocked(t time.Time) bool {
	held := t.Sub(g.startAt)
	if g.state == GesturePending && held >= g.cfg.PressDelay {
		g.state = GesturePressing
	}
	if g.state == GesturePressing && held >= g.cfg.SelectHold {
		node := g.node
		g.resetLocked()
		if node != nil {
			g.target.ToggleSelection(node)
		}
		return true
	}
	return false
}

// Release ends the gesture at pt. A drag released over a folder moves the
// dragged node there; anything else cancels.
func (g *Gesture) Release(ctx context.Context, pt Point, t time.Time, hit HitTester) error {
	g.mu.Lock()
	if g.state != GestureDragging {
		g.advanceLocked(t)
		g.resetLocked()
		g.mu.Unlock()
		return nil
	}
	node := g.node
	g.resetLocked()
	g.mu.Unlock()

	if hit == nil {
		return nil
	}
	dest := hit.HitTest(pt)
	if dest == nil || dest.Kind() != models.KindFolder || (dest.Kind() == node.Kind() && dest.NodeID() == node.NodeID()) {
		return nil
	}
	return g.target.Move(ctx, node, models.ID(dest.NodeID()))
}

// Cancel abandons the gesture.
func (g *Gesture) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

func (g *Gesture) resetLocked() {
	g.state = GestureIdle
	g.node = nil
	g.preview = Point{}
}

// GestureTimer drives Tick from the wall clock while a touch is held.
type GestureTimer struct {
	gesture *Gesture

	mu     sync.Mutex
	timers []*time.Timer
}

// NewGestureTimer wraps g.
func NewGestureTimer(g *Gesture) *GestureTimer {
	return &GestureTimer{gesture: g}
}

// Touch starts the gesture now and arms the press and hold timers.
func (gt *GestureTimer) Touch(node models.Node, pt Point) {
	gt.Stop()
	gt.gesture.Touch(node, pt, time.Now())

	cfg := gt.gesture.cfg
	gt.mu.Lock()
	defer gt.mu.Unlock()
	for _, d := range []time.Duration{cfg.PressDelay, cfg.SelectHold} {
		gt.timers = append(gt.timers, time.AfterFunc(d, func() {
			gt.gesture.Tick(time.Now())
		}))
	}
}

// Stop disarms pending timers.
func (gt *GestureTimer) Stop() {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	for _, t := range gt.timers {
		t.Stop()
	}
	gt.timers = nil
}
