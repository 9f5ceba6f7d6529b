// Package script runs user-authored turtle scripts in an isolated
// ECMAScript context.
//
// Each run gets a fresh goja runtime with only the turtle vocabulary (and the
// ECMAScript built-ins) in scope, plus a freshly reset engine. Nothing is shared
// between runs. A Runner models one execution context: it runs one script at a
// time, can be aborted from another goroutine, and after a crash must be
// restarted before it accepts more work.
//
// Errors:
//
//   - ErrScriptFailed: the script threw or did not compile
//   - ErrRunCancelled: the run was aborted, superseded or timed out
//   - ErrRunnerCrashed: the execution context itself failed; call Restart
//   - ErrRunnerBroken: the runner was used after a crash without Restart
//
// A failed run never returns a partial Result.
package script
