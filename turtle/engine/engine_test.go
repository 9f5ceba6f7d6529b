package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurtle(t *testing.T) {
	turtle := NewTurtle()

	state := turtle.State()
	assert.Equal(t, Point{X: 250, Y: 250}, state.Position)
	assert.Equal(t, 0.0, state.Angle)
	assert.Equal(t, Vector{X: 0, Y: Accuracy}, state.Vector)
	assert.True(t, state.Pen)
	assert.Equal(t, 0, state.MoveCount)
	assert.Equal(t, Point{X: 480, Y: 480}, state.Bounds)
	assert.False(t, state.Active)

	tracks := turtle.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, DefaultColor, tracks[0].Color)
	assert.Equal(t, "M 250 250", tracks[0].Combined.String())
}

func TestTurtle_ResetClearsPreviousRun(t *testing.T) {
	turtle := NewTurtle()
	turtle.Color("red")
	require.NoError(t, turtle.Forward(300))
	turtle.TurnLeft(0.3)
	turtle.PenUp()
	turtle.Color("blue")

	turtle.Reset()

	fresh := NewTurtle()
	assert.Equal(t, fresh.State(), turtle.State())
	require.Len(t, turtle.Tracks(), 1)
	assert.Equal(t, DefaultColor, turtle.Tracks()[0].Color)
	assert.Equal(t, Stats{Tracks: 1, Segments: 1}, turtle.Stats())
}

func TestTurtle_NaNArgumentsAreIgnored(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	commands := map[string]func(*Turtle) error{
		"turnLeft":  func(t *Turtle) error { t.TurnLeft(nan); return nil },
		"turnRight": func(t *Turtle) error { t.TurnRight(nan); return nil },
		"turnTo":    func(t *Turtle) error { t.TurnTo(nan); return nil },
		"turnInf":   func(t *Turtle) error { t.TurnLeft(inf); return nil },
		"forward":   func(t *Turtle) error { return t.Forward(nan) },
		"goTo x":    func(t *Turtle) error { return t.GoTo(nan, 10) },
		"goTo y":    func(t *Turtle) error { return t.GoTo(10, nan) },
		"moveTo":    func(t *Turtle) error { return t.MoveTo(nan, nan) },
		"moveBy":    func(t *Turtle) error { return t.MoveBy(1, nan) },
		"lineTo":    func(t *Turtle) error { return t.LineTo(nan, 1) },
		"lineBy":    func(t *Turtle) error { return t.LineBy(1, nan) },
	}

	for name, cmd := range commands {
		t.Run(name, func(t *testing.T) {
			turtle := NewTurtle()
			require.NoError(t, turtle.Forward(10))
			turtle.TurnLeft(0.125)

			before := turtle.State()
			beforeStats := turtle.Stats()

			for i := 0; i < 5; i++ {
				require.NoError(t, cmd(turtle))
			}

			assert.Equal(t, before, turtle.State())
			assert.Equal(t, beforeStats, turtle.Stats())
		})
	}
}

func TestTurtle_TurnLeftThenRightRestoresHeading(t *testing.T) {
	amounts := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.999, 1, 1.5, 7.3, -0.2, -3.75, 1e-9, 123456.789}
	starts := []float64{0, 0.3, 0.5, 0.9}

	for _, start := range starts {
		for _, a := range amounts {
			turtle := NewTurtle()
			turtle.TurnTo(start)
			before := turtle.State()

			turtle.TurnLeft(a)
			turtle.TurnRight(a)

			after := turtle.State()
			assert.InDelta(t, 0, circularDistance(before.Angle, after.Angle), 1e-9, "start=%v a=%v", start, a)
			assert.InDelta(t, before.Vector.X, after.Vector.X, 10, "start=%v a=%v", start, a)
			assert.InDelta(t, before.Vector.Y, after.Vector.Y, 10, "start=%v a=%v", start, a)
		}
	}
}

func TestTurtle_HeadingIsNormalized(t *testing.T) {
	turtle := NewTurtle()

	turtle.TurnLeft(1.25)
	assert.InDelta(t, 0.25, turtle.State().Angle, 1e-12)

	turtle.TurnRight(0.5)
	assert.InDelta(t, 0.75, turtle.State().Angle, 1e-12)

	turtle.TurnTo(-0.25)
	assert.InDelta(t, 0.75, turtle.State().Angle, 1e-12)

	turtle.TurnTo(3)
	assert.Equal(t, 0.0, turtle.State().Angle)

	for _, a := range []float64{-10.1, -1, 0, 0.5, 2.999, 1e6 + 0.5} {
		turtle.TurnLeft(a)
		angle := turtle.State().Angle
		assert.GreaterOrEqual(t, angle, 0.0)
		assert.Less(t, angle, 1.0)
	}
}

func TestTurtle_HeadingVector(t *testing.T) {
	tests := []struct {
		angle float64
		want  Vector
	}{
		{0, Vector{X: 0, Y: Accuracy}},
		{0.25, Vector{X: Accuracy, Y: 0}},
		{0.5, Vector{X: 0, Y: -Accuracy}},
		{0.75, Vector{X: -Accuracy, Y: 0}},
	}

	for _, tt := range tests {
		turtle := NewTurtle()
		turtle.TurnTo(tt.angle)
		assert.Equal(t, tt.want, turtle.State().Vector, "angle %v", tt.angle)
	}
}

func TestTurtle_PenToggles(t *testing.T) {
	turtle := NewTurtle()
	turtle.PenUp()
	assert.False(t, turtle.State().Pen)
	turtle.PenUp()
	assert.False(t, turtle.State().Pen)
	turtle.PenDown()
	assert.True(t, turtle.State().Pen)
}

func TestTurtle_ColorBeforeDrawingReplacesDefault(t *testing.T) {
	turtle := NewTurtle()
	turtle.Color("red")
	require.NoError(t, turtle.Forward(10))

	tracks := turtle.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "red", tracks[0].Color)
	assert.Equal(t, 1, tracks[0].Combined.Drawn())
}

func TestTurtle_RepeatedColorBeforeDrawingKeepsOnlyLast(t *testing.T) {
	turtle := NewTurtle()
	turtle.Color("red")
	turtle.TurnLeft(0.25)
	turtle.PenUp()
	turtle.Color("blue")

	tracks := turtle.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "blue", tracks[0].Color)
}

func TestTurtle_ColorAfterDrawingAppendsTrack(t *testing.T) {
	turtle := NewTurtle()
	require.NoError(t, turtle.Forward(10))
	turtle.Color("red")
	require.NoError(t, turtle.Forward(5))

	tracks := turtle.Tracks()
	require.Len(t, tracks, 2)

	assert.Equal(t, DefaultColor, tracks[0].Color)
	assert.Equal(t, 1, tracks[0].Combined.Drawn())
	assert.Equal(t, "M 250 250 l 0 10", tracks[0].Combined.String())

	assert.Equal(t, "red", tracks[1].Color)
	assert.Equal(t, 1, tracks[1].Combined.Drawn())
	assert.Equal(t, "M 250 260 l 0 5", tracks[1].Combined.String())
}

func TestTurtle_ColorIsSanitized(t *testing.T) {
	turtle := NewTurtle()
	turtle.Color(`"><script>'`)

	assert.Equal(t, "   script  ", turtle.Tracks()[0].Color)
}

func TestTurtle_Canvas(t *testing.T) {
	turtle := NewTurtle()
	assert.Equal(t, Canvas{Width: 500, Height: 500}, turtle.Canvas())

	require.NoError(t, turtle.GoTo(600.2, 10))
	assert.Equal(t, Canvas{Width: 621, Height: 500}, turtle.Canvas())

	require.NoError(t, turtle.GoTo(-50, -50))
	assert.Equal(t, Canvas{Width: 621, Height: 500}, turtle.Canvas())
}

func TestTurtle_CanvasWithHugeCoordinates(t *testing.T) {
	turtle := NewTurtle()
	require.NoError(t, turtle.GoTo(1e20, 1e6))

	canvas := turtle.Canvas()
	assert.Equal(t, MaxCanvas, canvas.Width)
	assert.Equal(t, 1000020, canvas.Height)

	svg := turtle.SVG(FaceCombined)
	assert.Contains(t, svg, `width="9007199254740992" height="1000020"`)
	assert.Contains(t, svg, "L 100000000000000000000 1000000")
}

func TestTurtle_SegmentLimit(t *testing.T) {
	turtle := NewTurtle(WithMaxSegments(3))

	require.NoError(t, turtle.Forward(1))
	require.NoError(t, turtle.Forward(1))
	require.NoError(t, turtle.MoveBy(1, 1))

	err := turtle.Forward(1)
	require.ErrorIs(t, err, ErrSegmentLimit)
	assert.Equal(t, 4, turtle.Stats().Segments) // 3 moves plus the initial M

	// Reset clears the counter
	turtle.Reset()
	assert.NoError(t, turtle.Forward(1))
}

func circularDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 1-d)
}
