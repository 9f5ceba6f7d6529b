package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/stitch-turtle/turtle/service"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
)

// DefaultPresetID is loaded as the default preset when present
const DefaultPresetID = "spiral"

// MaxScriptSize bounds the size of a preset script in bytes
const MaxScriptSize = 64 * 1024

// Manager handles preset loading and caching
type Manager struct {
	presetDir     string
	defaultPreset *service.Preset
	presets       map[string]*service.Preset
	mu            sync.RWMutex
}

// NewManager creates a new preset manager
func NewManager(presetDir string) (*Manager, error) {
	if _, err := os.Stat(presetDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("preset directory does not exist: %s", presetDir)
	}

	m := &Manager{
		presetDir: presetDir,
		presets:   make(map[string]*service.Preset),
	}

	m.defaultPreset = m.findDefault()
	return m, nil
}

// LoadPreset loads a preset by ID
func (m *Manager) LoadPreset(id string) (*service.Preset, error) {
	id = presetID(id)

	m.mu.RLock()
	if preset, exists := m.presets[id]; exists {
		m.mu.RUnlock()
		return preset, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if preset, exists := m.presets[id]; exists {
		return preset, nil
	}

	path, err := m.presetPath(id)
	if err != nil {
		return nil, err
	}

	preset, err := ReadPreset(path)
	if err != nil {
		return nil, err
	}

	m.presets[id] = preset
	return preset, nil
}

// ReadPreset parses and validates a single preset file
func ReadPreset(path string) (*service.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var preset service.Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset: %w", err)
	}

	if err := ValidatePreset(&preset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}

	return &preset, nil
}

// ListPresets returns information about all available presets
func (m *Manager) ListPresets() ([]*service.PresetInfo, error) {
	entries, err := os.ReadDir(m.presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	var presets []*service.PresetInfo
	for _, entry := range entries {
		if entry.IsDir() || !isPresetFile(entry.Name()) {
			continue
		}

		id := presetID(entry.Name())
		preset, err := m.LoadPreset(id)
		if err != nil {
			// Skip invalid presets
			continue
		}

		presets = append(presets, &service.PresetInfo{
			Filename:    entry.Name(),
			PresetID:    id,
			Name:        preset.Name,
			Description: preset.Description,
			Lines:       strings.Count(strings.TrimRight(preset.Script, "\n"), "\n") + 1,
		})
	}

	return presets, nil
}

// GetDefault returns the default preset
func (m *Manager) GetDefault() *service.Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPreset
}

// SetDefault sets the default preset by ID
func (m *Manager) SetDefault(id string) error {
	preset, err := m.LoadPreset(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPreset = preset
	return nil
}

// RefreshCache drops cached presets and re-resolves the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.presets = make(map[string]*service.Preset)
	m.mu.Unlock()

	def := m.findDefault()

	m.mu.Lock()
	m.defaultPreset = def
	m.mu.Unlock()
}

// SavePreset writes a preset to disk as YAML
func (m *Manager) SavePreset(id string, preset *service.Preset) error {
	if err := ValidatePreset(preset); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}

	id = presetID(id)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: bad preset id %q", ErrInvalidPreset, id)
	}

	data, err := yaml.Marshal(preset)
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}

	path := filepath.Join(m.presetDir, id+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}

	m.mu.Lock()
	m.presets[id] = preset
	m.mu.Unlock()

	return nil
}

// findDefault resolves the default preset: spiral, else the first valid
// preset on disk, else a built-in one
func (m *Manager) findDefault() *service.Preset {
	if preset, err := m.LoadPreset(DefaultPresetID); err == nil {
		return preset
	}

	presets, err := m.ListPresets()
	if err == nil && len(presets) > 0 {
		if preset, err := m.LoadPreset(presets[0].PresetID); err == nil {
			return preset
		}
	}

	return createMinimalPreset()
}

// presetPath finds the file backing a preset ID
func (m *Manager) presetPath(id string) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(m.presetDir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrPresetNotFound
}

// createMinimalPreset creates a minimal valid preset
func createMinimalPreset() *service.Preset {
	return &service.Preset{
		Name:        "default",
		Description: "Default minimal preset",
		Script:      "for (var i = 0; i < 4; i++) {\n  forward(100);\n  turnRight(0.25);\n}\n",
	}
}

func isPresetFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func presetID(name string) string {
	return strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
}

// ValidatePreset checks that a preset can be offered to users
func ValidatePreset(preset *service.Preset) error {
	if preset == nil {
		return errors.New("preset is nil")
	}
	if strings.TrimSpace(preset.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(preset.Script) == "" {
		return errors.New("script is required")
	}
	if len(preset.Script) > MaxScriptSize {
		return fmt.Errorf("script is %d bytes, limit is %d", len(preset.Script), MaxScriptSize)
	}
	return nil
}
