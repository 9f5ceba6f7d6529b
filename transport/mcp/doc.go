// Package mcp exposes the turtle renderer to AI agents over the Model Context
// Protocol.
//
// The server is a thin client: every tool call is proxied to the REST API,
// so stdio agents and the HTTP /mcp endpoint share sessions with browsers.
//
// MCP Tools:
//   - render_turtle: one-shot render of a script
//   - create_session: create a session from an optional preset
//   - run_script: run or rerun a script in a session
//   - get_session: session details and last run summary
//   - list_sessions: list active sessions
//   - cancel_run: abort the in-flight run
//   - restart_runner: replace a crashed runner
//   - session_svg: one SVG variant of the last result
//   - run_history: paginated run outcomes
//   - list_presets: available preset scripts
//   - turtle_instructions: command reference
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
