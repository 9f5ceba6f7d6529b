package main

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// Probe is one script with the outcome the server must report for it
type Probe struct {
	Name      string
	Script    string
	Expect    string // "ok", "script", "cancelled" or "runner"
	Supersede bool   // run behind an endless script that it must replace
	Drawn     int    // expected drawn segments when >= 0
	Tracks    int    // expected tracks when > 0
}

// SystematicStrategy replays a fixed catalogue of edge cases, then
// generates random command sequences whose stroke counts are known
type SystematicStrategy struct {
	fixed []Probe
	next  int
	rng   *rand.Rand
}

func NewSystematicStrategy(seed int64) *SystematicStrategy {
	return &SystematicStrategy{
		fixed: fixedProbes(),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Fixed returns the size of the catalogue
func (s *SystematicStrategy) Fixed() int {
	return len(s.fixed)
}

// Next returns the next probe, cycling through the catalogue first
func (s *SystematicStrategy) Next() Probe {
	if s.next < len(s.fixed) {
		p := s.fixed[s.next]
		s.next++
		return p
	}
	s.next++
	return s.generate()
}

func fixedProbes() []Probe {
	return []Probe{
		{Name: "comment only", Script: "// nothing to draw", Expect: "ok", Drawn: 0, Tracks: 1},
		{Name: "square", Script: "for (var i = 0; i < 4; i++) { forward(100); turnRight(0.25); }", Expect: "ok", Drawn: 4, Tracks: 1},
		{Name: "aliases", Script: "f(10); moveForward(10); left(0.1); right(0.1); u(); f(5); d(); f(5); g(10, 10);", Expect: "ok", Drawn: 4, Tracks: 1},
		{Name: "pen up", Script: "penUp(); forward(50); penDown(); forward(50);", Expect: "ok", Drawn: 1, Tracks: 1},
		{Name: "colors", Script: "forward(10); color('red'); forward(10); color('blue'); forward(10);", Expect: "ok", Drawn: 3, Tracks: 3},
		{Name: "absolute", Script: "penUp(); lineTo(0, 0); goTo(100, 100); lineTo(200, 0);", Expect: "ok", Drawn: 2, Tracks: 1},
		{Name: "leading color", Script: "color('green'); color('blue'); forward(10);", Expect: "ok", Drawn: 1, Tracks: 1},
		{Name: "non-finite", Script: "forward(NaN); forward(Infinity); turnLeft(NaN); forward(10);", Expect: "ok", Drawn: 1, Tracks: 1},
		{Name: "seeded", Script: "Math.seedrandom('abc'); for (var i = 0; i < 10; i++) { forward(Math.random() * 50); }", Expect: "ok", Drawn: 10, Tracks: 1},
		{Name: "syntax error", Script: "forward(10", Expect: "script", Drawn: -1},
		{Name: "reference error", Script: "undefinedFunction();", Expect: "script", Drawn: -1},
		{Name: "thrown", Script: "throw new Error('boom');", Expect: "script", Drawn: -1},
		{Name: "null color", Script: "color(null);", Expect: "script", Drawn: -1},
		{Name: "numeric color", Script: "color(42);", Expect: "script", Drawn: -1},
		{Name: "overflowing forward", Script: "forward(1e300); forward(10);", Expect: "ok", Drawn: 1, Tracks: 1},
		{Name: "segment flood", Script: "while (true) { forward(1); }", Expect: "script", Drawn: -1},
		{Name: "endless", Script: "while (true) {}", Expect: "cancelled", Drawn: -1},
		{Name: "supersede", Script: "forward(1);", Expect: "ok", Supersede: true, Drawn: 1, Tracks: 1},
	}
}

// generate builds a random straight-line program. Every forward with the
// pen down and every lineTo is one drawn segment. A color before the first
// move replaces the default track instead of adding one.
func (s *SystematicStrategy) generate() Probe {
	var b strings.Builder
	drawn, tracks := 0, 1
	pen, moved := true, false
	steps := 1 + s.rng.Intn(40)

	for i := 0; i < steps; i++ {
		switch s.rng.Intn(7) {
		case 0, 1:
			fmt.Fprintf(&b, "forward(%d);\n", 1+s.rng.Intn(100))
			moved = true
			if pen {
				drawn++
			}
		case 2:
			fmt.Fprintf(&b, "turnLeft(%.3f);\n", s.rng.Float64())
		case 3:
			fmt.Fprintf(&b, "turnRight(%.3f);\n", s.rng.Float64())
		case 4:
			if pen {
				b.WriteString("penUp();\n")
			} else {
				b.WriteString("penDown();\n")
			}
			pen = !pen
		case 5:
			fmt.Fprintf(&b, "lineTo(%d, %d);\n", s.rng.Intn(600)-50, s.rng.Intn(600)-50)
			moved = true
			drawn++
		case 6:
			fmt.Fprintf(&b, "color('#%06x');\n", s.rng.Intn(0x1000000))
			if moved {
				tracks++
			}
		}
	}

	return Probe{
		Name:   fmt.Sprintf("generated %d steps", steps),
		Script: b.String(),
		Expect: "ok",
		Drawn:  drawn,
		Tracks: tracks,
	}
}

// Check compares a run answer with the probe's expectations
func (p Probe) Check(run *RunResponse, err error) []string {
	var problems []string
	if got := outcome(err); got != p.Expect {
		problems = append(problems, fmt.Sprintf("outcome %q, want %q (%v)", got, p.Expect, err))
		return problems
	}
	if err != nil {
		return nil
	}
	if run == nil || run.Result == nil {
		return []string{"successful run without a result"}
	}

	res := run.Result
	if p.Drawn >= 0 && res.Drawn != p.Drawn {
		problems = append(problems, fmt.Sprintf("drawn %d, want %d", res.Drawn, p.Drawn))
	}
	if p.Tracks > 0 && res.Tracks != p.Tracks {
		problems = append(problems, fmt.Sprintf("tracks %d, want %d", res.Tracks, p.Tracks))
	}
	if res.Width < 500 || res.Height < 500 {
		problems = append(problems, fmt.Sprintf("canvas %dx%d below 500x500", res.Width, res.Height))
	}
	return append(problems, checkFaces(res.SVG)...)
}

var pathData = regexp.MustCompile(`<path [^>]*\bd="([^"]*)"`)

// checkFaces verifies that front and back split the combined strokes
// between them, each face keeping every position change. Strokes alternate
// across the whole run, so balance is checked on the totals.
func checkFaces(svg map[string]string) []string {
	combined := paths(svg["combined"])
	front := paths(svg["front"])
	back := paths(svg["back"])

	if len(front) != len(combined) || len(back) != len(combined) {
		return []string{fmt.Sprintf("path counts differ: combined %d, front %d, back %d", len(combined), len(front), len(back))}
	}

	var problems []string
	var frontLines, backLines int
	for i := range combined {
		c, f, k := countOps(combined[i]), countOps(front[i]), countOps(back[i])
		if f.total != c.total || k.total != c.total {
			problems = append(problems, fmt.Sprintf("track %d: segment counts differ: %d/%d/%d", i, c.total, f.total, k.total))
		}
		if f.lines+k.lines != c.lines {
			problems = append(problems, fmt.Sprintf("track %d: front %d + back %d lines != combined %d", i, f.lines, k.lines, c.lines))
		}
		frontLines += f.lines
		backLines += k.lines
	}
	if frontLines < backLines || frontLines > backLines+1 {
		problems = append(problems, fmt.Sprintf("faces unbalanced: front %d, back %d", frontLines, backLines))
	}
	return problems
}

func paths(doc string) []string {
	var out []string
	for _, m := range pathData.FindAllStringSubmatch(doc, -1) {
		out = append(out, m[1])
	}
	return out
}

type opCount struct {
	total int
	lines int
}

// countOps counts commands in path data where every command has two numbers
func countOps(d string) opCount {
	var c opCount
	for _, tok := range strings.Fields(d) {
		switch tok {
		case "l", "L":
			c.lines++
			c.total++
		case "m", "M":
			c.total++
		}
	}
	return c
}
