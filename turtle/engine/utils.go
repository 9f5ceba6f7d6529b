package engine

import "math"

// Tau is one full turn in radians
const Tau = 2 * math.Pi

// HeadingVector returns the heading for a turn fraction, scaled by Accuracy
// and rounded to integers
func HeadingVector(angle float64) Vector {
	return Vector{
		X: math.Round(math.Sin(Tau*angle) * Accuracy),
		Y: math.Round(math.Cos(Tau*angle) * Accuracy),
	}
}

// finite reports whether v is usable as a command argument
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
