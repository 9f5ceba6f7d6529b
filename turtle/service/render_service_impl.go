package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/wricardo/stitch-turtle/turtle/engine"
	"github.com/wricardo/stitch-turtle/turtle/script"
)

var ErrNoResult = errors.New("session has no successful run yet")

// Options configures the render service
type Options struct {
	MaxConcurrentRuns int64          // runs executing at once across all sessions
	HistoryLimit      int            // run records kept per session
	Runner            script.Options // used for stateless renders
}

// renderServiceImpl implements the RenderService interface
type renderServiceImpl struct {
	sessions SessionManager
	presets  PresetManager
	opts     Options
	slots    *semaphore.Weighted
	mu       sync.RWMutex
}

// NewRenderService creates a new render service instance
func NewRenderService(sessions SessionManager, presets PresetManager, opts Options) RenderService {
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = int64(runtime.NumCPU())
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	return &renderServiceImpl{
		sessions: sessions,
		presets:  presets,
		opts:     opts,
		slots:    semaphore.NewWeighted(opts.MaxConcurrentRuns),
	}
}

// Render runs a script once in a fresh context, outside of any session
func (s *renderServiceImpl) Render(ctx context.Context, req RenderRequest) (*RunResult, error) {
	opts := s.opts.Runner
	if req.Seed != "" {
		opts.Seed = req.Seed
	}

	res, rec, err := s.execute(ctx, req.Script, func(ctx context.Context) (*script.Result, error) {
		return script.Execute(ctx, req.Script, opts)
	})
	if err != nil {
		return nil, err
	}

	return &RunResult{RunID: rec.RunID, Result: res}, nil
}

// CreateSession creates a new drawing session seeded with a preset script
func (s *renderServiceImpl) CreateSession(ctx context.Context, presetID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var preset *Preset
	var err error
	if presetID != "" {
		preset, err = s.presets.LoadPreset(presetID)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "preset not found") {
				available, listErr := s.presets.ListPresets()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, p := range available {
						ids = append(ids, p.PresetID)
					}
					return nil, fmt.Errorf("preset '%s' not found. Available presets: %v", presetID, ids)
				}
				return nil, fmt.Errorf("preset '%s' not found. Use /api/presets to list available presets", presetID)
			}
			return nil, fmt.Errorf("failed to load preset %s: %w", presetID, err)
		}
	} else {
		preset = s.presets.GetDefault()
		presetID = "default"
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", presetID, preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	RecordSessionCount(s.sessions.Count())

	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *renderServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.sessions.UpdateLastAccessed(sessionID)

	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *renderServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}

	return result, nil
}

// DeleteSession aborts any in-flight run and removes the session
func (s *renderServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.Runner.Cancel()
	}
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	RecordSessionCount(s.sessions.Count())
	return nil
}

// Run executes code in the session's runner. An empty code reruns the
// session's current script. A busy runner has its in-flight run aborted.
func (s *renderServiceImpl) Run(ctx context.Context, sessionID, code string) (*RunResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	if code == "" {
		code = sess.Snapshot().Script
	} else {
		sess.SetScript(code)
	}

	// Supersede before queueing for a slot, which the in-flight run may hold
	sess.Runner.Cancel()

	res, rec, err := s.execute(ctx, code, func(ctx context.Context) (*script.Result, error) {
		return sess.Runner.Run(ctx, code)
	})
	sess.Record(rec, res, s.opts.HistoryLimit)
	sess.Touch()
	s.sessions.Save(sess.ID())

	if err != nil {
		return nil, err
	}

	return &RunResult{RunID: rec.RunID, SessionID: sess.ID(), Result: res}, nil
}

// Cancel aborts the session's in-flight run, reporting whether one was running
func (s *renderServiceImpl) Cancel(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return false, err
	}
	return sess.Runner.Cancel(), nil
}

// Restart recreates the session's execution context after a crash
func (s *renderServiceImpl) Restart(ctx context.Context, sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.Runner.Restart()
	return nil
}

// GetSVG returns one variant of the session's last successful run
func (s *renderServiceImpl) GetSVG(ctx context.Context, sessionID string, variant script.Variant, embedSource bool) (string, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return "", err
	}

	res := sess.Snapshot().LastResult
	if res == nil {
		return "", ErrNoResult
	}

	doc, ok := res.SVG[variant]
	if !ok {
		return "", fmt.Errorf("unknown variant %q", variant)
	}
	if embedSource {
		doc = engine.EmbedSource(doc, res.Code)
	}
	return doc, nil
}

// GetRunHistory returns paginated run history
func (s *renderServiceImpl) GetRunHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Snapshot().History
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var runs []RunRecord
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			runs = append(runs, history[i])
		}
	} else if start < total {
		runs = history[start:end]
	}

	if runs == nil {
		runs = []RunRecord{}
	}

	return &HistoryResponse{
		Runs:        runs,
		TotalRuns:   total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListPresets returns available presets
func (s *renderServiceImpl) ListPresets(ctx context.Context) ([]*PresetInfo, error) {
	return s.presets.ListPresets()
}

// LoadPreset loads a specific preset
func (s *renderServiceImpl) LoadPreset(ctx context.Context, presetID string) (*Preset, error) {
	return s.presets.LoadPreset(presetID)
}

// SavePreset saves a preset to disk
func (s *renderServiceImpl) SavePreset(ctx context.Context, presetID string, preset *Preset) error {
	return s.presets.SavePreset(presetID, preset)
}

// session looks up a session without touching it
func (s *renderServiceImpl) session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	return sess, nil
}

// execute runs fn inside a concurrency slot and records the outcome
func (s *renderServiceImpl) execute(ctx context.Context, code string, fn func(context.Context) (*script.Result, error)) (*script.Result, RunRecord, error) {
	rec := RunRecord{
		RunID:      uuid.NewString(),
		ScriptSize: len(code),
		StartedAt:  time.Now(),
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		err = fmt.Errorf("%w: waiting for a run slot: %v", script.ErrRunCancelled, err)
		rec.Outcome = OutcomeCancelled
		rec.Error = err.Error()
		recordRun(rec.Outcome, 0)
		return nil, rec, err
	}
	defer s.slots.Release(1)

	res, err := fn(ctx)
	elapsed := time.Since(rec.StartedAt)
	rec.DurationMS = elapsed.Milliseconds()
	rec.Outcome = outcome(err)
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Tracks = res.Tracks
		rec.Segments = res.Segments
		rec.Drawn = res.Drawn
	}
	recordRun(rec.Outcome, elapsed)

	return res, rec, err
}

// outcome maps a run error to its history/metrics label
func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return script.Kind(err)
}

func sessionInfo(sess *Session) *SessionInfo {
	data := sess.Snapshot()
	return &SessionInfo{
		ID:             data.ID,
		PresetID:       data.PresetID,
		Script:         data.Script,
		Seed:           data.Seed,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		Busy:           sess.Runner.Busy(),
		Crashed:        sess.Runner.Crashed() != nil,
		Runs:           len(data.History),
		LastResult:     data.LastResult,
	}
}
