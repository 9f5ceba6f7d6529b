package service

import (
	"time"

	"github.com/wricardo/stitch-turtle/turtle/script"
)

// Run outcomes as reported in history and metrics
const (
	OutcomeOK        = "ok"
	OutcomeScript    = "script"
	OutcomeCancelled = "cancelled"
	OutcomeRunner    = "runner"
	OutcomeInternal  = "internal"
)

// Preset is a named example script
type Preset struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Script      string `json:"script" yaml:"script"`
	Seed        string `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// PresetInfo provides information about a preset file
type PresetInfo struct {
	Filename    string `json:"filename"`
	PresetID    string `json:"preset_id"` // The identifier to use for session creation
	Name        string `json:"name"`
	Description string `json:"description"`
	Lines       int    `json:"lines"`
}

// RenderRequest is a stateless one-shot render
type RenderRequest struct {
	Script string `json:"script"`
	Seed   string `json:"seed,omitempty"`
}

// RunResult wraps the output of a successful run
type RunResult struct {
	RunID     string         `json:"run_id"`
	SessionID string         `json:"session_id,omitempty"`
	Result    *script.Result `json:"result"`
}

// RunRecord is one entry of a session's run history
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	ScriptSize int       `json:"script_size"`
	Tracks     int       `json:"tracks"`
	Segments   int       `json:"segments"`
	Drawn      int       `json:"drawn"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// SessionInfo provides information about a drawing session
type SessionInfo struct {
	ID             string         `json:"id"`
	PresetID       string         `json:"preset_id"`
	Script         string         `json:"script"`
	Seed           string         `json:"seed,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	Busy           bool           `json:"busy"`
	Crashed        bool           `json:"crashed"`
	Runs           int            `json:"runs"`
	LastResult     *script.Result `json:"last_result,omitempty"`
}

// HistoryOptions configures run history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated run history
type HistoryResponse struct {
	Runs        []RunRecord `json:"runs"`
	TotalRuns   int         `json:"total_runs"`
	Page        int         `json:"page"`
	PageSize    int         `json:"page_size"`
	TotalPages  int         `json:"total_pages"`
	HasNext     bool        `json:"has_next"`
	HasPrevious bool        `json:"has_previous"`
}
