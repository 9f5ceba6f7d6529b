package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		s, err := LoadSettings("")
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)
	})

	t.Run("missing file", func(t *testing.T) {
		s, err := LoadSettings(filepath.Join(t.TempDir(), "turtle.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "turtle.yaml")
		require.NoError(t, os.WriteFile(path, []byte("run_timeout: 3s\npersistence: sqlite\nmax_segments: 500\n"), 0644))

		s, err := LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, s.RunTimeout)
		assert.Equal(t, BackendSQLite, s.Persistence)
		assert.Equal(t, 500, s.MaxSegments)
		assert.Equal(t, DefaultSettings().HistoryLimit, s.HistoryLimit)
		assert.Equal(t, DefaultSettings().SessionTTL, s.SessionTTL)
	})

	t.Run("unknown backend", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "turtle.yaml")
		require.NoError(t, os.WriteFile(path, []byte("persistence: redis\n"), 0644))

		_, err := LoadSettings(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "turtle.yaml")
		require.NoError(t, os.WriteFile(path, []byte("run_timeout: [\n"), 0644))

		_, err := LoadSettings(path)
		assert.Error(t, err)
	})
}

func TestSettingsOptions(t *testing.T) {
	s := DefaultSettings()
	s.RunTimeout = time.Second
	s.MaxSegments = 42
	s.MaxConcurrentRuns = 3
	s.HistoryLimit = 7

	svc := s.ServiceOptions(nil)
	assert.Equal(t, int64(3), svc.MaxConcurrentRuns)
	assert.Equal(t, 7, svc.HistoryLimit)
	assert.Equal(t, time.Second, svc.Runner.Timeout)
	assert.Equal(t, 42, svc.Runner.MaxSegments)
}
