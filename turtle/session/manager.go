package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Manager handles drawing session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	runnerOpts  script.Options
	log         *log.Logger
	mu          sync.RWMutex
}

// NewManager creates a new in-memory session manager
func NewManager(runnerOpts script.Options) *Manager {
	return NewManagerWithPersistence(nil, runnerOpts)
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence, runnerOpts script.Options) *Manager {
	logger := runnerOpts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		sessions:    make(map[string]*service.Session),
		persistence: persistence,
		runnerOpts:  runnerOpts,
		log:         logger.WithPrefix("session"),
	}
}

// Create creates a new session running the given preset's script.
// An empty id gets a generated one.
func (m *Manager) Create(id, presetID string, preset *service.Preset) (*service.Session, error) {
	if preset == nil {
		return nil, errors.New("preset cannot be nil")
	}

	generated := id == ""
	id = strings.ToLower(id)
	if !generated && !validID(id) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if generated {
		for attempt := 0; attempt < 16; attempt++ {
			id = m.generateSessionID()
			if !m.sessionExists(id) {
				break
			}
		}
	}

	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	now := time.Now()
	session := m.restore(&service.SessionData{
		ID:             id,
		PresetID:       presetID,
		Script:         preset.Script,
		Seed:           preset.Seed,
		CreatedAt:      now,
		LastAccessedAt: now,
	})
	m.sessions[id] = session

	// Auto-save if persistence is enabled
	if m.persistence != nil {
		data := session.Snapshot()
		if err := m.persistence.Save(&data); err != nil {
			// Log error but don't fail the creation
			m.log.Warn("failed to persist session", "id", id, "error", err)
		}
	}

	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	id = strings.ToLower(id)

	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	// Try loading from persistence if not in memory
	if m.persistence != nil && validID(id) && m.persistence.Exists(id) {
		data, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// Another caller may have restored it meanwhile
		if session, exists := m.sessions[id]; exists {
			return session, nil
		}
		session = m.restore(data)
		m.sessions[id] = session
		return session, nil
	}

	return nil, ErrSessionNotFound
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, presetID string, preset *service.Preset) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, presetID, preset)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	id = strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	session, inMemory := m.sessions[id]
	if inMemory {
		session.Runner.Cancel()
		delete(m.sessions, id)
	}

	if m.persistence != nil && validID(id) && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	id = strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return ErrSessionNotFound
	}
	session.Runner.Cancel()
	delete(m.sessions, id)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	id = strings.ToLower(id)

	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	session.Touch()

	if m.persistence != nil {
		data := session.Snapshot()
		if err := m.persistence.Save(&data); err != nil {
			m.log.Warn("failed to persist session after access update", "id", id, "error", err)
		}
	}

	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	id = strings.ToLower(id)

	m.mu.RLock()
	session, exists := m.sessions[id]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	data := session.Snapshot()
	return m.persistence.Save(&data)
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the
// given duration from memory. Busy sessions are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, session := range m.sessions {
		if session.LastAccessedAt().Before(cutoff) && !session.Runner.Busy() {
			delete(m.sessions, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		id = strings.ToLower(id)
		if _, exists := m.sessions[id]; exists {
			continue
		}

		data, err := m.persistence.Load(id)
		if err != nil {
			m.log.Warn("failed to load persisted session", "id", id, "error", err)
			continue
		}

		m.sessions[id] = m.restore(data)
		loaded++
	}

	if loaded > 0 {
		m.log.Info("loaded persisted sessions", "count", loaded)
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	sessions := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mu.RUnlock()

	errorCount := 0
	for _, session := range sessions {
		data := session.Snapshot()
		if err := m.persistence.Save(&data); err != nil {
			m.log.Warn("failed to save session", "id", data.ID, "error", err)
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}

// restore wraps persisted data with a fresh runner seeded for the session
func (m *Manager) restore(data *service.SessionData) *service.Session {
	opts := m.runnerOpts
	opts.Seed = data.Seed
	return service.NewSession(*data, script.NewRunner(opts))
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	// Generate 2 random bytes (4 hex characters)
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks if a session exists in memory
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[id]
	return exists
}
