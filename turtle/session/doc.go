// Package session provides session management for stitch-turtle.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - One script runner per session
//   - Session cleanup and expiration
//   - File (JSON) and SQLite persistence
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. IDs are case
// insensitive and generated with cryptographic randomness.
//
// Persistence:
//
// Only SessionData is persisted: the current script, seed, run history and
// the last successful result. Runners are never persisted; a restored session
// gets a fresh one.
//
// Usage:
//
//	store, err := session.NewFilePersistence("sessions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(store, runnerOpts)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Warn("load failed", "error", err)
//	}
//
//	sess, err := manager.Create("", "spiral", preset)
package session
