// Package service provides the business logic layer for stitch-turtle.
//
// The service package implements:
//   - Stateless one-shot renders
//   - Multi-session script execution
//   - Preset loading and saving
//   - Run history tracking
//
// Core Interfaces:
//
// RenderService is the main service interface used by the HTTP, WebSocket and
// MCP transports. SessionManager stores sessions and their runners.
// PresetManager loads the example scripts a session can start from.
//
// Architecture:
//
// Every session owns one script.Runner, so a session runs one script at a
// time and a new submission aborts the one in flight. Runs across all
// sessions share a bounded pool of execution slots (MaxConcurrentRuns).
// Each run is recorded in the session history and in the turtle_* Prometheus
// metrics.
//
// Usage:
//
//	sessionMgr := session.NewManager(runnerOpts)
//	presetMgr, _ := config.NewManager("configs")
//	svc := service.NewRenderService(sessionMgr, presetMgr, service.Options{})
//
//	info, err := svc.CreateSession(ctx, "spiral")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := svc.Run(ctx, info.ID, "forward(100);")
package service
