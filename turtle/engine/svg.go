package engine

import (
	"fmt"
	"strings"
)

// SVG builds a complete SVG document for one face, one <path> per track
func (t *Turtle) SVG(face Face) string {
	return BuildSVG(t.tracks, face, t.Canvas())
}

// Documents builds the documents for every face
func (t *Turtle) Documents() map[Face]string {
	docs := make(map[Face]string, len(Faces))
	for _, face := range Faces {
		docs[face] = t.SVG(face)
	}
	return docs
}

// BuildSVG renders tracks for a face into an SVG document of the given size
func BuildSVG(tracks []*Track, face Face, canvas Canvas) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg id="turtle-svg" xmlns="http://www.w3.org/2000/svg" version="1.1" width="%d" height="%d">`+"\n",
		canvas.Width, canvas.Height)
	for i, track := range tracks {
		path := track.Path(face)
		if path == nil {
			continue
		}
		fmt.Fprintf(&b, `  <path id="turtle-path-%d" stroke="%s" d="%s" fill="none" vector-effect="non-scaling-stroke" />`+"\n",
			i, track.Color, path.String())
	}
	b.WriteString("</svg>")
	return b.String()
}

// EmbedSource prepends the script that produced a document as an XML comment.
// "--" is not allowed inside comments, so it is spaced out.
func EmbedSource(svg, code string) string {
	code = strings.ReplaceAll(code, "--", "- - ")
	return "<!--\n\nMade with stitch-turtle; source:\n\n" + code + "\n\n-->\n" + svg
}
