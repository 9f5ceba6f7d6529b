// Package api provides HTTP REST API handlers for stitch-turtle.
//
// The api package implements:
//   - Stateless script rendering
//   - Session management endpoints
//   - Script execution, cancellation and runner restart
//   - SVG download for each variant
//   - Preset listing and creation
//   - Prometheus metrics and WebSocket upgrade
//
// Endpoints:
//
// Rendering:
//   - POST /api/render - Run a script once; ?variant=front returns the SVG itself
//
// Session Management:
//   - POST /api/sessions - Create new session from a preset
//   - GET /api/sessions - List all sessions (sort, order, limit)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Scripts:
//   - POST /api/sessions/{id}/run - Run a script (empty body reruns the current one)
//   - POST /api/sessions/{id}/cancel - Abort the run in flight
//   - POST /api/sessions/{id}/restart - Recreate a crashed runner
//   - GET /api/sessions/{id}/svg/{variant} - combined, front or back; ?source=1 embeds the script
//   - GET /api/sessions/{id}/history - Paginated run history
//
// Presets:
//   - GET /api/presets, POST /api/presets, GET /api/presets/{id}
//
// Errors:
//
// Errors are returned as JSON. Run failures also carry a kind:
//
//	{"error": "script failed: ReferenceError: nope is not defined", "kind": "script"}
//
// script maps to 422, cancelled to 409 and runner to 503. Run endpoints are
// rate limited per client and answer 429 when the budget is spent.
package api
