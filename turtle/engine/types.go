package engine

// OpKind identifies a single path-data command.
type OpKind string

const (
	MoveAbs OpKind = "M"
	MoveRel OpKind = "m"
	LineAbs OpKind = "L"
	LineRel OpKind = "l"
)

// Face selects one of the three parallel path buffers of a track.
type Face string

const (
	FaceCombined Face = "combined"
	FaceFront    Face = "front"
	FaceBack     Face = "back"
)

// Faces lists every face in output order.
var Faces = []Face{FaceCombined, FaceFront, FaceBack}

const (
	// Turtle defaults
	StartX       = 250.0
	StartY       = 250.0
	MinCanvas    = 480.0
	CanvasMargin = 20.0
	MaxCanvas    = 1 << 53 // largest size with an exact integer value
	Accuracy     = 1000000000
	DefaultColor = "rgba(0,0,0,0.75)"
)

// Point represents x,y coordinates on the canvas (origin top-left)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is the heading direction scaled by Accuracy
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is a snapshot of the turtle's scalar state
type State struct {
	Position  Point   `json:"position"`
	Angle     float64 `json:"angle"`
	Vector    Vector  `json:"vector"`
	Pen       bool    `json:"pen"`
	MoveCount int     `json:"move_count"`
	Bounds    Point   `json:"bounds"`
	Active    bool    `json:"active"` // any movement since reset
}

// Canvas is the output document size
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Stats summarizes what a run produced
type Stats struct {
	Tracks   int `json:"tracks"`
	Segments int `json:"segments"`
	Drawn    int `json:"drawn"`
}
