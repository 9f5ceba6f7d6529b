package main

import (
	"image/color"
	"testing"
)

func TestParsePathData(t *testing.T) {
	lines, err := ParsePathData("M 250 250 l 0 10 m 0 10 l 0 10 L 0 0")
	if err != nil {
		t.Fatalf("ParsePathData() error = %v", err)
	}

	want := []Line{
		{250, 250, 250, 260},
		{250, 270, 250, 280},
		{250, 280, 0, 0},
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestParsePathDataErrors(t *testing.T) {
	for _, d := range []string{"M 1", "Q 1 2", "M x 2"} {
		if _, err := ParsePathData(d); err == nil {
			t.Errorf("ParsePathData(%q) expected error", d)
		}
	}
}

func TestParseColor(t *testing.T) {
	fallback := color.RGBA{1, 2, 3, 255}

	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"red", color.RGBA{255, 0, 0, 255}},
		{" Blue ", color.RGBA{0, 0, 255, 255}},
		{"#ff8000", color.RGBA{255, 128, 0, 255}},
		{"#0f0", color.RGBA{0, 255, 0, 255}},
		{"#12345", fallback},
		{"rgb(1,2,3)", fallback},
	}
	for _, tt := range tests {
		if got := ParseColor(tt.in, fallback); got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDocument(t *testing.T) {
	doc := `<svg id="turtle-svg" xmlns="http://www.w3.org/2000/svg" version="1.1" width="500" height="500">
  <path id="turtle-path-0" stroke="black" d="M 250 250 l 0 10" fill="none" vector-effect="non-scaling-stroke" />
  <path id="turtle-path-1" stroke="#00ff00" d="M 250 260 m 10 0" fill="none" vector-effect="non-scaling-stroke" />
</svg>`

	strokes, err := ParseDocument(doc, color.RGBA{})
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if len(strokes) != 2 {
		t.Fatalf("Expected 2 strokes, got %d", len(strokes))
	}
	if len(strokes[0].Lines) != 1 || len(strokes[1].Lines) != 0 {
		t.Errorf("Unexpected line counts: %d, %d", len(strokes[0].Lines), len(strokes[1].Lines))
	}
	if strokes[1].Color != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("Unexpected color %v", strokes[1].Color)
	}
}
