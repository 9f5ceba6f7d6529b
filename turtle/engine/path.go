package engine

import (
	"math"
	"strconv"
	"strings"
)

// Segment is one path-data command with its two coordinates
type Segment struct {
	Kind OpKind  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Pen reports whether the segment draws a line
func (s Segment) Pen() bool {
	return s.Kind == LineAbs || s.Kind == LineRel
}

// Relative reports whether the coordinates are offsets from the previous point
func (s Segment) Relative() bool {
	return s.Kind == MoveRel || s.Kind == LineRel
}

func (s Segment) String() string {
	return string(s.Kind) + " " + FormatNumber(s.X) + " " + FormatNumber(s.Y)
}

// Path is an ordered list of segments. The first segment is always an
// absolute move to the position the path was started at.
type Path struct {
	Segments []Segment `json:"segments"`
}

// newPath starts a path at the given point
func newPath(start Point) *Path {
	p := &Path{}
	p.add(MoveAbs, start.X, start.Y)
	return p
}

func (p *Path) add(kind OpKind, x, y float64) {
	p.Segments = append(p.Segments, Segment{Kind: kind, X: x, Y: y})
}

// abs appends an absolute segment, a line when pen is true
func (p *Path) abs(x, y float64, pen bool) {
	if pen {
		p.add(LineAbs, x, y)
		return
	}
	p.add(MoveAbs, x, y)
}

// rel appends a relative segment, a line when pen is true
func (p *Path) rel(x, y float64, pen bool) {
	if pen {
		p.add(LineRel, x, y)
		return
	}
	p.add(MoveRel, x, y)
}

// Len returns the number of segments
func (p *Path) Len() int {
	return len(p.Segments)
}

// Drawn returns the number of line segments
func (p *Path) Drawn() int {
	n := 0
	for _, s := range p.Segments {
		if s.Pen() {
			n++
		}
	}
	return n
}

// String serializes the path to SVG path data, e.g. "M 250 250 l 0 100"
func (p *Path) String() string {
	var b strings.Builder
	for i, s := range p.Segments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Track is one color's drawing: a combined path plus its front and back faces
type Track struct {
	Color    string `json:"color"`
	Combined *Path  `json:"combined"`
	Front    *Path  `json:"front"`
	Back     *Path  `json:"back"`
}

func newTrack(color string, start Point) *Track {
	return &Track{
		Color:    SanitizeColor(color),
		Combined: newPath(start),
		Front:    newPath(start),
		Back:     newPath(start),
	}
}

// Path returns the buffer for a face, or nil for an unknown face
func (t *Track) Path(face Face) *Path {
	switch face {
	case FaceCombined:
		return t.Combined
	case FaceFront:
		return t.Front
	case FaceBack:
		return t.Back
	default:
		return nil
	}
}

var colorReplacer = strings.NewReplacer(`"`, " ", `'`, " ", "<", " ", ">", " ")

// SanitizeColor replaces quote and angle-bracket characters with spaces so the
// value is safe inside an SVG attribute
func SanitizeColor(color string) string {
	return colorReplacer.Replace(color)
}

// FormatNumber renders a coordinate with the shortest decimal that round-trips.
// Negative zero prints as "0".
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		// Exponents carry no leading zeros: 1e-7, not 1e-07
		s := strconv.FormatFloat(v, 'e', -1, 64)
		i := strings.IndexByte(s, 'e') + 2
		return s[:i] + strings.TrimLeft(s[i:], "0")
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
