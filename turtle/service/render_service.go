package service

import (
	"context"

	"github.com/wricardo/stitch-turtle/turtle/script"
)

// RenderService defines all drawing operations
type RenderService interface {
	// Stateless rendering
	Render(ctx context.Context, req RenderRequest) (*RunResult, error)

	// Session Management
	CreateSession(ctx context.Context, presetID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Script execution
	Run(ctx context.Context, sessionID, code string) (*RunResult, error)
	Cancel(ctx context.Context, sessionID string) (bool, error)
	Restart(ctx context.Context, sessionID string) error

	// Output
	GetSVG(ctx context.Context, sessionID string, variant script.Variant, embedSource bool) (string, error)
	GetRunHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Presets
	ListPresets(ctx context.Context) ([]*PresetInfo, error)
	LoadPreset(ctx context.Context, presetID string) (*Preset, error)
	SavePreset(ctx context.Context, presetID string, preset *Preset) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, presetID string, preset *Preset) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	Count() int
}

// PresetManager handles preset loading
type PresetManager interface {
	LoadPreset(id string) (*Preset, error)
	ListPresets() ([]*PresetInfo, error)
	GetDefault() *Preset
	SavePreset(id string, preset *Preset) error
}
