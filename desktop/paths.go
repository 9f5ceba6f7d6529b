package main

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Line is one drawn stroke in document coordinates
type Line struct {
	X0, Y0, X1, Y1 float64
}

// ParsePathData turns "M x y l dx dy ..." into the strokes it draws.
// Only the four commands the renderer emits are understood.
func ParsePathData(d string) ([]Line, error) {
	fields := strings.Fields(d)
	if len(fields)%3 != 0 {
		return nil, fmt.Errorf("path data has %d tokens, want triples", len(fields))
	}

	var lines []Line
	var x, y float64
	for i := 0; i < len(fields); i += 3 {
		a, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", fields[i+1], err)
		}
		b, err := strconv.ParseFloat(fields[i+2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", fields[i+2], err)
		}

		nx, ny := a, b
		switch fields[i] {
		case "m", "l":
			nx, ny = x+a, y+b
		case "M", "L":
		default:
			return nil, fmt.Errorf("unknown command %q", fields[i])
		}

		if fields[i] == "l" || fields[i] == "L" {
			lines = append(lines, Line{X0: x, Y0: y, X1: nx, Y1: ny})
		}
		x, y = nx, ny
	}
	return lines, nil
}

// namedColors covers the names the bundled presets use
var namedColors = map[string]color.RGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"magenta": {255, 0, 255, 255},
	"cyan":    {0, 255, 255, 255},
	"gray":    {128, 128, 128, 255},
	"pink":    {255, 192, 203, 255},
	"brown":   {165, 42, 42, 255},
	"teal":    {0, 128, 128, 255},
	"navy":    {0, 0, 128, 255},
	"gold":    {255, 215, 0, 255},
}

// ParseColor understands hex colors and a few CSS names. Anything else
// falls back to fallback.
func ParseColor(s string, fallback color.RGBA) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if !strings.HasPrefix(s, "#") {
		return fallback
	}

	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}

// Stroke is a parsed track: its color and lines
type Stroke struct {
	Color color.RGBA
	Lines []Line
}

var attrStart = map[string]string{"stroke": ` stroke="`, "d": ` d="`}

// ParseDocument extracts the strokes of every <path> in an SVG document
// produced by the renderer
func ParseDocument(doc string, fallback color.RGBA) ([]Stroke, error) {
	var strokes []Stroke
	for _, chunk := range strings.Split(strings.ReplaceAll(doc, "\n", " "), "<path ")[1:] {
		end := strings.Index(chunk, "/>")
		if end < 0 {
			return nil, fmt.Errorf("unterminated path element")
		}
		tag := " " + chunk[:end]

		lines, err := ParsePathData(attr(tag, "d"))
		if err != nil {
			return nil, err
		}
		strokes = append(strokes, Stroke{
			Color: ParseColor(attr(tag, "stroke"), fallback),
			Lines: lines,
		})
	}
	return strokes, nil
}

func attr(tag, name string) string {
	start := strings.Index(tag, attrStart[name])
	if start < 0 {
		return ""
	}
	rest := tag[start+len(attrStart[name]):]
	if end := strings.IndexByte(rest, '"'); end >= 0 {
		return rest[:end]
	}
	return ""
}
