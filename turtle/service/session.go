package service

import (
	"sync"
	"time"

	"github.com/wricardo/stitch-turtle/turtle/script"
)

// SessionData is the persisted state of a session
type SessionData struct {
	ID             string         `json:"id"`
	PresetID       string         `json:"preset_id"`
	Script         string         `json:"script"`
	Seed           string         `json:"seed,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	History        []RunRecord    `json:"history"`
	LastResult     *script.Result `json:"last_result,omitempty"`
}

// Session is an active drawing session. It owns one Runner.
type Session struct {
	Runner *script.Runner

	mu   sync.RWMutex
	data SessionData
}

// NewSession wraps persisted data and the runner that executes its scripts
func NewSession(data SessionData, runner *script.Runner) *Session {
	return &Session{Runner: runner, data: data}
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ID
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := s.data
	data.History = append([]RunRecord(nil), s.data.History...)
	return data
}

func (s *Session) LastAccessedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.LastAccessedAt
}

// Touch marks the session as accessed now
func (s *Session) Touch() {
	s.mu.Lock()
	s.data.LastAccessedAt = time.Now()
	s.mu.Unlock()
}

// SetScript replaces the session's current script
func (s *Session) SetScript(code string) {
	s.mu.Lock()
	s.data.Script = code
	s.mu.Unlock()
}

// Record appends a run to the history, keeping at most limit entries.
// A non-nil result becomes the session's last result.
func (s *Session) Record(rec RunRecord, res *script.Result, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.History = append(s.data.History, rec)
	if limit > 0 && len(s.data.History) > limit {
		s.data.History = append([]RunRecord(nil), s.data.History[len(s.data.History)-limit:]...)
	}
	if res != nil {
		s.data.LastResult = res
	}
}
