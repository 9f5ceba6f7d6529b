package config

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
)

// Persistence backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Settings holds runtime limits and storage options
type Settings struct {
	RunTimeout        time.Duration `yaml:"run_timeout"`
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs"`
	MaxSegments       int           `yaml:"max_segments"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	HistoryLimit      int           `yaml:"history_limit"`
	Persistence       string        `yaml:"persistence"`
	SessionsDir       string        `yaml:"sessions_dir"`
	DBPath            string        `yaml:"db_path"`
	RateLimit         float64       `yaml:"rate_limit"` // runs per second per client
	RateBurst         int           `yaml:"rate_burst"`
}

// DefaultSettings returns the settings used when no file is given
func DefaultSettings() Settings {
	return Settings{
		RunTimeout:        10 * time.Second,
		MaxConcurrentRuns: 4,
		MaxSegments:       1000000,
		SessionTTL:        24 * time.Hour,
		HistoryLimit:      100,
		Persistence:       BackendFile,
		SessionsDir:       "sessions",
		DBPath:            "~/.stitch-turtle/sessions.db",
		RateLimit:         5,
		RateBurst:         10,
	}
}

// LoadSettings reads settings from a YAML file. An empty path or a missing
// file yields the defaults. Fields left zero in the file take their default.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	var fromFile Settings
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return settings, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	settings.merge(fromFile)
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// merge overlays the non-zero fields of other
func (s *Settings) merge(other Settings) {
	if other.RunTimeout > 0 {
		s.RunTimeout = other.RunTimeout
	}
	if other.MaxConcurrentRuns > 0 {
		s.MaxConcurrentRuns = other.MaxConcurrentRuns
	}
	if other.MaxSegments > 0 {
		s.MaxSegments = other.MaxSegments
	}
	if other.SessionTTL > 0 {
		s.SessionTTL = other.SessionTTL
	}
	if other.HistoryLimit > 0 {
		s.HistoryLimit = other.HistoryLimit
	}
	if other.Persistence != "" {
		s.Persistence = other.Persistence
	}
	if other.SessionsDir != "" {
		s.SessionsDir = other.SessionsDir
	}
	if other.DBPath != "" {
		s.DBPath = other.DBPath
	}
	if other.RateLimit > 0 {
		s.RateLimit = other.RateLimit
	}
	if other.RateBurst > 0 {
		s.RateBurst = other.RateBurst
	}
}

// Validate checks settings for values the server cannot run with
func (s Settings) Validate() error {
	switch s.Persistence {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown persistence backend %q (want %s or %s)", s.Persistence, BackendFile, BackendSQLite)
	}
	if s.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1")
	}
	return nil
}

// RunnerOptions converts settings into script runner options
func (s Settings) RunnerOptions(logger *log.Logger) script.Options {
	return script.Options{
		Timeout:     s.RunTimeout,
		MaxSegments: s.MaxSegments,
		Logger:      logger,
	}
}

// ServiceOptions converts settings into render service options
func (s Settings) ServiceOptions(logger *log.Logger) service.Options {
	return service.Options{
		MaxConcurrentRuns: int64(s.MaxConcurrentRuns),
		HistoryLimit:      s.HistoryLimit,
		Runner:            s.RunnerOptions(logger),
	}
}
