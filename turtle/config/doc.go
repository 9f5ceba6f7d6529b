// Package config provides preset and runtime settings management for stitch-turtle.
//
// The config package handles:
//   - Loading preset scripts from YAML files
//   - Preset validation
//   - Default preset management
//   - Runtime settings (limits, persistence backend, rate limits)
//
// Preset Format:
//
// Presets are stored as YAML files in the configs directory. The file name
// (without extension) is the preset ID used for session creation:
//
//	name: Spiral
//	description: An outward square spiral
//	seed: spiral
//	script: |
//	  for (var i = 0; i < 200; i++) {
//	    forward(i * 2);
//	    turnLeft(0.25);
//	  }
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	preset, err := manager.LoadPreset("spiral")
//	presets, err := manager.ListPresets()
//
//	settings, err := config.LoadSettings("turtle.yaml")
package config
