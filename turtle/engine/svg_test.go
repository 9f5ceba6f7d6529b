package engine

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type svgDoc struct {
	Width  int `xml:"width,attr"`
	Height int `xml:"height,attr"`
	Paths  []struct {
		ID           string `xml:"id,attr"`
		Stroke       string `xml:"stroke,attr"`
		D            string `xml:"d,attr"`
		Fill         string `xml:"fill,attr"`
		VectorEffect string `xml:"vector-effect,attr"`
	} `xml:"path"`
}

func TestTurtle_Documents(t *testing.T) {
	turtle := NewTurtle()
	require.NoError(t, turtle.Forward(10))
	turtle.Color("red")
	require.NoError(t, turtle.Forward(5))
	require.NoError(t, turtle.GoTo(700, 10))

	docs := turtle.Documents()
	require.Len(t, docs, 3)

	for _, face := range Faces {
		var doc svgDoc
		require.NoError(t, xml.Unmarshal([]byte(docs[face]), &doc), "face %s", face)

		assert.Equal(t, 720, doc.Width)
		assert.Equal(t, 500, doc.Height)
		require.Len(t, doc.Paths, 2)

		assert.Equal(t, "turtle-path-0", doc.Paths[0].ID)
		assert.Equal(t, DefaultColor, doc.Paths[0].Stroke)
		assert.Equal(t, "turtle-path-1", doc.Paths[1].ID)
		assert.Equal(t, "red", doc.Paths[1].Stroke)

		for _, p := range doc.Paths {
			assert.Equal(t, "none", p.Fill)
			assert.Equal(t, "non-scaling-stroke", p.VectorEffect)
			assert.True(t, strings.HasPrefix(p.D, "M "))
		}
	}

	var front, back svgDoc
	require.NoError(t, xml.Unmarshal([]byte(docs[FaceFront]), &front))
	require.NoError(t, xml.Unmarshal([]byte(docs[FaceBack]), &back))
	assert.Equal(t, "M 250 250 l 0 10", front.Paths[0].D)
	assert.Equal(t, "M 250 250 m 0 10", back.Paths[0].D)
	assert.Equal(t, "M 250 260 m 0 5 L 700 10", front.Paths[1].D)
	assert.Equal(t, "M 250 260 l 0 5 M 700 10", back.Paths[1].D)
}

func TestBuildSVG_Empty(t *testing.T) {
	svg := BuildSVG(nil, FaceCombined, Canvas{Width: 500, Height: 500})
	assert.Equal(t, `<svg id="turtle-svg" xmlns="http://www.w3.org/2000/svg" version="1.1" width="500" height="500">`+"\n</svg>", svg)
}

func TestEmbedSource(t *testing.T) {
	out := EmbedSource("<svg></svg>", "i--;\nforward(10);")

	assert.True(t, strings.HasPrefix(out, "<!--"))
	assert.True(t, strings.HasSuffix(out, "-->\n<svg></svg>"))
	assert.Contains(t, out, "i- - ;")

	body := strings.TrimSuffix(strings.TrimPrefix(out, "<!--"), "-->\n<svg></svg>")
	assert.NotContains(t, body, "--")
}
