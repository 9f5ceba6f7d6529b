package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{250, "250"},
		{-10, "-10"},
		{0.1 + 0.2, "0.30000000000000004"},
		{12.5, "12.5"},
		{1e-7, "1e-7"},
		{-2.5e-8, "-2.5e-8"},
		{1e21, "1e+21"},
		{1.5e300, "1.5e+300"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in), "FormatNumber(%v)", tt.in)
	}
}

func TestPath_String(t *testing.T) {
	p := newPath(Point{X: 1, Y: 2})
	p.rel(3, 4, true)
	p.rel(5, 6, false)
	p.abs(7, 8, true)
	p.abs(9, 10, false)

	assert.Equal(t, "M 1 2 l 3 4 m 5 6 L 7 8 M 9 10", p.String())
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, 2, p.Drawn())
}

func TestTrack_Path(t *testing.T) {
	track := newTrack("red", Point{X: 0, Y: 0})

	assert.Same(t, track.Combined, track.Path(FaceCombined))
	assert.Same(t, track.Front, track.Path(FaceFront))
	assert.Same(t, track.Back, track.Path(FaceBack))
	assert.Nil(t, track.Path(Face("sideways")))
}

func TestSanitizeColor(t *testing.T) {
	assert.Equal(t, "red", SanitizeColor("red"))
	assert.Equal(t, "rgba(0,0,0,0.75)", SanitizeColor("rgba(0,0,0,0.75)"))
	assert.Equal(t, " red ", SanitizeColor(`"red'`))
	assert.Equal(t, " b ", SanitizeColor("<b>"))
}
