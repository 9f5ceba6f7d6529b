// Command analyze prints quick, human-readable statistics about turtle
// scripts. It accepts preset YAML files and plain .js scripts; with no
// arguments it analyzes every preset in the configs directory. For each file
// it summarizes canvas size, tracks, and the stitches on each face, and
// highlights stitches longer than --max-stitch.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/stitch-turtle/turtle/config"
	"github.com/wricardo/stitch-turtle/turtle/engine"
	"github.com/wricardo/stitch-turtle/turtle/script"
)

// TrackAnalysis summarizes one colored track
type TrackAnalysis struct {
	Color       string
	Segments    int
	Stitches    int // drawn segments in the combined path
	Front       int
	Back        int
	Thread      float64 // total drawn length
	Shortest    float64
	Longest     float64
	LongCount   int
	FirstPoint  engine.Point
	FinalPoint  engine.Point
	JumpCount   int
	JumpLength  float64
	ZeroLengths int
}

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "Print stitch statistics for turtle scripts",
		ArgsUsage: "[file ...]",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:  "max-stitch",
				Usage: "Flag stitches longer than this (0 disables)",
			},
			&cli.StringFlag{
				Name:  "preset-dir",
				Value: "configs",
				Usage: "Directory scanned when no files are given",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				for _, pattern := range []string{"*.yaml", "*.yml"} {
					matches, _ := filepath.Glob(filepath.Join(cmd.String("preset-dir"), pattern))
					files = append(files, matches...)
				}
			}

			for _, file := range files {
				fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
				if err := analyzeFile(ctx, os.Stdout, file, cmd.Float("max-stitch")); err != nil {
					fmt.Printf("Error: %v\n", err)
				}
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadScript returns the code and seed of a preset file or a plain script
func loadScript(path string) (code, seed string, err error) {
	ext := filepath.Ext(path)
	if ext == ".yaml" || ext == ".yml" {
		preset, err := config.ReadPreset(path)
		if err != nil {
			return "", "", err
		}
		return preset.Script, preset.Seed, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), "", nil
}

func analyzeFile(ctx context.Context, w io.Writer, path string, maxStitch float64) error {
	code, seed, err := loadScript(path)
	if err != nil {
		return err
	}

	start := time.Now()
	turtle, err := script.Trace(ctx, code, script.Options{Timeout: 10 * time.Second, Seed: seed})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	canvas := turtle.Canvas()
	stats := turtle.Stats()
	fmt.Fprintf(w, "Canvas: %d x %d\n", canvas.Width, canvas.Height)
	fmt.Fprintf(w, "Run Time: %s\n", elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "Tracks: %d, Segments: %d, Stitches: %d\n", stats.Tracks, stats.Segments, stats.Drawn)

	for i, track := range analyzeTracks(turtle.Tracks(), maxStitch) {
		fmt.Fprintf(w, "\nTrack %d (%s)\n", i, track.Color)
		fmt.Fprintf(w, "  Stitches: %d (front %d, back %d), Jumps: %d\n", track.Stitches, track.Front, track.Back, track.JumpCount)
		if track.Stitches == 0 {
			fmt.Fprintf(w, "  (draws nothing)\n")
			continue
		}
		fmt.Fprintf(w, "  Thread: %s, Jumped: %s\n", engine.FormatNumber(round(track.Thread)), engine.FormatNumber(round(track.JumpLength)))
		fmt.Fprintf(w, "  Stitch Length: %s to %s\n", engine.FormatNumber(round(track.Shortest)), engine.FormatNumber(round(track.Longest)))
		fmt.Fprintf(w, "  From (%s, %s) to (%s, %s)\n",
			engine.FormatNumber(track.FirstPoint.X), engine.FormatNumber(track.FirstPoint.Y),
			engine.FormatNumber(track.FinalPoint.X), engine.FormatNumber(track.FinalPoint.Y))

		if track.ZeroLengths > 0 {
			fmt.Fprintf(w, "  ⚠️  %d zero-length stitches\n", track.ZeroLengths)
		}
		if track.LongCount > 0 {
			fmt.Fprintf(w, "  ⚠️  %d stitches longer than %s\n", track.LongCount, engine.FormatNumber(maxStitch))
		}
		if track.Front+track.Back != track.Stitches {
			fmt.Fprintf(w, "  ⚠️  faces do not add up: %d + %d != %d\n", track.Front, track.Back, track.Stitches)
		}
	}

	if stats.Drawn > 0 {
		fmt.Fprintf(w, "\n✅ %d stitches across %d tracks\n", stats.Drawn, stats.Tracks)
	} else {
		fmt.Fprintf(w, "\n⚠️  Script draws nothing\n")
	}
	return nil
}

// analyzeTracks measures every segment of each track's combined path
func analyzeTracks(tracks []*engine.Track, maxStitch float64) []TrackAnalysis {
	result := make([]TrackAnalysis, 0, len(tracks))
	for _, track := range tracks {
		a := TrackAnalysis{
			Color:    track.Color,
			Segments: track.Combined.Len(),
			Front:    track.Front.Drawn(),
			Back:     track.Back.Drawn(),
			Shortest: math.Inf(1),
		}

		var pos engine.Point
		for i, seg := range track.Combined.Segments {
			next := engine.Point{X: seg.X, Y: seg.Y}
			if seg.Relative() {
				next = engine.Point{X: pos.X + seg.X, Y: pos.Y + seg.Y}
			}
			length := math.Hypot(next.X-pos.X, next.Y-pos.Y)

			switch {
			case i == 0:
				a.FirstPoint = next
			case seg.Pen():
				a.Stitches++
				a.Thread += length
				a.Shortest = math.Min(a.Shortest, length)
				a.Longest = math.Max(a.Longest, length)
				if length == 0 {
					a.ZeroLengths++
				}
				if maxStitch > 0 && length > maxStitch {
					a.LongCount++
				}
			default:
				a.JumpCount++
				a.JumpLength += length
			}
			pos = next
		}

		a.FinalPoint = pos
		if a.Stitches == 0 {
			a.Shortest = 0
		}
		result = append(result, a)
	}
	return result
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
