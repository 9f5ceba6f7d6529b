package script

import "errors"

var (
	ErrScriptFailed  = errors.New("script failed")
	ErrRunCancelled  = errors.New("run cancelled")
	ErrRunnerCrashed = errors.New("runner crashed")
	ErrRunnerBroken  = errors.New("runner needs restart")
)

// Kind classifies a run error for callers that report it over a transport
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrScriptFailed):
		return "script"
	case errors.Is(err, ErrRunCancelled):
		return "cancelled"
	case errors.Is(err, ErrRunnerCrashed), errors.Is(err, ErrRunnerBroken):
		return "runner"
	default:
		return "internal"
	}
}
