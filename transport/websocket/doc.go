// Package websocket provides WebSocket transport for stitch-turtle.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - Script submission from the browser
//   - Run result broadcasting to every viewer of a session
//   - Connection lifecycle management
//
// Message Protocol:
//
// Clients connect with ?session=<id> and send JSON requests:
//   - {"type": "run", "script": "forward(100);"}  (type may be omitted)
//   - {"type": "cancel"}
//
// The hub answers with events:
//   - run_result: {"run_id", "session_id", "result": {"code", "svg": {...}}}
//   - run_failed: {"error", "kind"} where kind is script, cancelled or runner
//   - run_cancel: {"cancelled": bool}, sent only to the requesting client
//   - error: malformed requests
//
// A run submitted while another is in flight for the same session aborts the
// earlier one, which then reports run_failed with kind cancelled.
//
// Usage:
//
//	hub := websocket.NewHub(renderService, logger)
//	go hub.Run()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
