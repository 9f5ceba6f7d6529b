// Package engine provides the turtle execution and path-synthesis core.
//
// The engine package implements:
//   - Turtle state (position, heading, pen, move counter, canvas bounds)
//   - The drawing vocabulary (turns, pen toggles, color, relative and absolute moves)
//   - Per-color tracks holding three parallel path buffers
//   - Serialization of path buffers to SVG path data and full SVG documents
//
// Core Types:
//
// The Engine interface defines the command vocabulary, implemented by Turtle.
// A Track groups the combined, front and back Paths drawn in one color. The
// front and back paths simulate a stitched thread: every drawn segment shows up
// on exactly one face, alternating, while the other face moves to the same point
// without drawing.
//
// Usage:
//
//	t := engine.NewTurtle()
//	t.Color("red")
//	for i := 0; i < 4; i++ {
//		t.Forward(100)
//		t.TurnLeft(0.25)
//	}
//
//	docs := t.Documents()
//	fmt.Println(docs[engine.FaceFront])
//
// Angles:
//
// Headings are turn fractions in [0,1), where 1.0 is a full turn. The unit
// heading vector is kept as integers scaled by Accuracy so repeated relative
// turns do not accumulate floating point error.
//
// A Turtle is not safe for concurrent use. Each script run owns one instance.
package engine
