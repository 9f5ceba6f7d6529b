package engine

import (
	"fmt"
	"math"
)

// Forward moves distance along the heading, drawing when the pen is down
func (t *Turtle) Forward(distance float64) error {
	if !finite(distance) {
		return nil
	}
	x := distance * t.vector.X / Accuracy
	y := distance * t.vector.Y / Accuracy
	return t.relative(x, y, t.pen)
}

// GoTo moves to an absolute point, drawing when the pen is down
func (t *Turtle) GoTo(x, y float64) error {
	if !finite(x) || !finite(y) {
		return nil
	}
	return t.absolute(x, y, t.pen)
}

// MoveTo repositions to an absolute point without drawing
func (t *Turtle) MoveTo(x, y float64) error {
	if !finite(x) || !finite(y) {
		return nil
	}
	return t.absolute(x, y, false)
}

// MoveBy repositions by an offset without drawing
func (t *Turtle) MoveBy(x, y float64) error {
	if !finite(x) || !finite(y) {
		return nil
	}
	return t.relative(x, y, false)
}

// LineTo draws to an absolute point regardless of the pen state
func (t *Turtle) LineTo(x, y float64) error {
	if !finite(x) || !finite(y) {
		return nil
	}
	return t.absolute(x, y, true)
}

// LineBy draws by an offset regardless of the pen state
func (t *Turtle) LineBy(x, y float64) error {
	if !finite(x) || !finite(y) {
		return nil
	}
	return t.relative(x, y, true)
}

func (t *Turtle) absolute(x, y float64, pen bool) error {
	if err := t.checkLimit(); err != nil {
		return err
	}
	t.positionTo(x, y)
	t.record(x, y, pen, (*Path).abs)
	return nil
}

// relative moves by an offset. A move whose offset or target overflows to
// infinity is a no-op.
func (t *Turtle) relative(x, y float64, pen bool) error {
	nx, ny := t.position.X+x, t.position.Y+y
	if !finite(x) || !finite(y) || !finite(nx) || !finite(ny) {
		return nil
	}
	if err := t.checkLimit(); err != nil {
		return err
	}
	t.positionTo(nx, ny)
	t.record(x, y, pen, (*Path).rel)
	return nil
}

// record appends the segment to all three buffers of the current track.
// Exactly one of front/back draws a pen-down segment, chosen by move
// counter parity; the other moves to the same point.
func (t *Turtle) record(x, y float64, pen bool, add func(*Path, float64, float64, bool)) {
	front := t.moveCount%2 == 0
	add(t.current.Combined, x, y, pen)
	add(t.current.Front, x, y, pen && front)
	add(t.current.Back, x, y, pen && !front)
	if pen {
		t.moveCount++
	}
	t.segments++
}

// positionTo updates the position and grows the canvas bounds
func (t *Turtle) positionTo(x, y float64) {
	t.position.X = x
	t.position.Y = y
	t.max.X = math.Max(t.max.X, x)
	t.max.Y = math.Max(t.max.Y, y)
	t.active = true
}

func (t *Turtle) checkLimit() error {
	if t.maxSegments > 0 && t.segments >= t.maxSegments {
		return fmt.Errorf("%w: more than %d segments", ErrSegmentLimit, t.maxSegments)
	}
	return nil
}
