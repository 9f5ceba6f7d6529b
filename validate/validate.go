// Command validate provides a small CLI that validates preset YAML files in
// the ../configs directory (or the directory given as the first argument).
// It checks:
//   - YAML structure and required fields (name, script)
//   - Script size limit
//   - The script actually runs to completion within the time limit
//   - The script draws at least one visible segment
//   - A declared seed makes the output reproducible
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/stitch-turtle/turtle/config"
	"github.com/wricardo/stitch-turtle/turtle/script"
)

// runTimeout bounds each preset's test run
const runTimeout = 5 * time.Second

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validatePreset loads a preset file and performs a real run of its script.
func validatePreset(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	preset, err := config.ReadPreset(filePath)
	if err != nil {
		result.fail("Invalid preset: %v", err)
		return result
	}

	opts := script.Options{Timeout: runTimeout, Seed: preset.Seed}
	res, err := script.Execute(context.Background(), preset.Script, opts)
	if err != nil {
		result.fail("Run failed (%s): %v", script.Kind(err), err)
		return result
	}

	if res.Drawn == 0 {
		result.fail("Script draws nothing")
	} else {
		result.info("Run: %d tracks, %d segments (%d drawn), canvas %dx%d in %s",
			res.Tracks, res.Segments, res.Drawn, res.Width, res.Height, res.Duration.Round(time.Millisecond))
	}

	if preset.Seed != "" {
		again, err := script.Execute(context.Background(), preset.Script, opts)
		if err != nil {
			result.fail("Second run failed: %v", err)
		} else if again.SVG[script.VariantCombined] != res.SVG[script.VariantCombined] {
			result.fail("Seed %q does not make the output reproducible", preset.Seed)
		} else {
			result.info("Seeded output is reproducible")
		}
	}

	return result
}

// presetFiles lists the preset files of a directory
func presetFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// main validates each preset, printing a concise report and exiting with
// non-zero status if any are invalid.
func main() {
	presetDir := "../configs"
	if len(os.Args) > 1 {
		presetDir = os.Args[1]
	}

	files, err := presetFiles(presetDir)
	if err != nil {
		fmt.Printf("Error finding preset files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validatePreset(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All presets are valid!")
	} else {
		fmt.Println("❌ Some presets have errors")
		os.Exit(1)
	}
}
