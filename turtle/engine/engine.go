package engine

import (
	"errors"
	"math"
)

var ErrSegmentLimit = errors.New("segment limit exceeded")

// Engine provides the turtle command vocabulary
type Engine interface {
	// State management
	Reset()
	State() State

	// Heading
	TurnLeft(angle float64)
	TurnRight(angle float64)
	TurnTo(angle float64)

	// Pen and color
	PenUp()
	PenDown()
	Color(color string)

	// Movement
	Forward(distance float64) error
	GoTo(x, y float64) error
	MoveTo(x, y float64) error
	MoveBy(x, y float64) error
	LineTo(x, y float64) error
	LineBy(x, y float64) error

	// Output
	Tracks() []*Track
	Canvas() Canvas
	Stats() Stats
	Documents() map[Face]string
}

// Option configures a Turtle
type Option func(*Turtle)

// WithMaxSegments caps the number of combined-path segments a run may emit.
// Zero means unlimited.
func WithMaxSegments(n int) Option {
	return func(t *Turtle) {
		if n > 0 {
			t.maxSegments = n
		}
	}
}

// Turtle implements the Engine interface
type Turtle struct {
	position  Point
	angle     float64
	vector    Vector
	pen       bool
	moveCount int
	max       Point
	active    bool

	tracks  []*Track
	current *Track

	segments    int
	maxSegments int
}

// NewTurtle creates a turtle in its reset state
func NewTurtle(opts ...Option) *Turtle {
	t := &Turtle{}
	for _, opt := range opts {
		opt(t)
	}
	t.Reset()
	return t
}

// Reset restores the initial state and starts the implicit default track.
// Nothing from a previous run survives.
func (t *Turtle) Reset() {
	t.position = Point{X: StartX, Y: StartY}
	t.angle = 0
	t.vector = Vector{X: 0, Y: Accuracy}
	t.pen = true
	t.moveCount = 0
	t.max = Point{X: MinCanvas, Y: MinCanvas}
	t.tracks = nil
	t.current = nil
	t.segments = 0

	t.Color(DefaultColor)
	t.active = false
}

// State returns a snapshot of the turtle's scalar state
func (t *Turtle) State() State {
	return State{
		Position:  t.position,
		Angle:     t.angle,
		Vector:    t.vector,
		Pen:       t.pen,
		MoveCount: t.moveCount,
		Bounds:    t.max,
		Active:    t.active,
	}
}

// TurnLeft adds angle (a turn fraction) to the heading
func (t *Turtle) TurnLeft(angle float64) {
	if !finite(angle) {
		return
	}
	t.setAngle(t.angle + angle)
}

// TurnRight subtracts angle (a turn fraction) from the heading
func (t *Turtle) TurnRight(angle float64) {
	if !finite(angle) {
		return
	}
	t.TurnLeft(-angle)
}

// TurnTo sets the heading directly
func (t *Turtle) TurnTo(angle float64) {
	if !finite(angle) {
		return
	}
	t.setAngle(angle)
}

// setAngle normalizes the heading into [0,1) and recomputes the vector
func (t *Turtle) setAngle(angle float64) {
	angle = math.Mod(angle, 1)
	if angle < 0 {
		angle++
	}
	if angle >= 1 {
		angle = 0
	}
	t.angle = angle
	t.vector = HeadingVector(angle)
}

// PenUp stops drawing; moves become repositioning only
func (t *Turtle) PenUp() {
	t.pen = false
}

// PenDown resumes drawing
func (t *Turtle) PenDown() {
	t.pen = true
}

// Color starts a new track. Before any movement it replaces every track
// created so far, including the implicit default one.
func (t *Turtle) Color(color string) {
	if !t.active {
		t.tracks = nil
	}
	track := newTrack(color, t.position)
	t.tracks = append(t.tracks, track)
	t.current = track
}

// Tracks returns the tracks in creation order
func (t *Turtle) Tracks() []*Track {
	return t.tracks
}

// Canvas returns the document size: ceil(bounds) plus the margin, capped
// at MaxCanvas
func (t *Turtle) Canvas() Canvas {
	return Canvas{
		Width:  canvasSize(t.max.X),
		Height: canvasSize(t.max.Y),
	}
}

func canvasSize(bound float64) int {
	return int(math.Min(math.Ceil(bound+CanvasMargin), MaxCanvas))
}

// Stats counts tracks, combined segments and drawn segments
func (t *Turtle) Stats() Stats {
	stats := Stats{Tracks: len(t.tracks)}
	for _, track := range t.tracks {
		stats.Segments += track.Combined.Len()
		stats.Drawn += track.Combined.Drawn()
	}
	return stats
}
