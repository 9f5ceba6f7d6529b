package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/wricardo/stitch-turtle/turtle/service"
)

// SQLitePersistence implements SessionPersistence on a SQLite database
type SQLitePersistence struct {
	db *sql.DB
}

// OpenSQLite creates or opens the session database at dbPath.
// A leading ~ expands to the home directory.
func OpenSQLite(dbPath string) (*SQLitePersistence, error) {
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("session store: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session store: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session store: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: cannot connect to database: %w", err)
	}

	store := &SQLitePersistence{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist
func (s *SQLitePersistence) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			preset_id TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL,
			last_accessed_at DATETIME NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_last_accessed ON sessions(last_accessed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLitePersistence) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save upserts a session row
func (s *SQLitePersistence) Save(data *service.SessionData) error {
	if data == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if !validID(data.ID) {
		return ErrInvalidSessionID
	}

	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, preset_id, data, last_accessed_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			preset_id = excluded.preset_id,
			data = excluded.data,
			last_accessed_at = excluded.last_accessed_at,
			updated_at = CURRENT_TIMESTAMP`,
		data.ID, data.PresetID, string(blob), data.LastAccessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("session store: cannot save session %s: %w", data.ID, err)
	}
	return nil
}

// Load reads a session row
func (s *SQLitePersistence) Load(id string) (*service.SessionData, error) {
	var blob string
	err := s.db.QueryRow("SELECT data FROM sessions WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session store: cannot load session %s: %w", id, err)
	}

	var data service.SessionData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &data, nil
}

// Delete removes a session row
func (s *SQLitePersistence) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("session store: cannot delete session %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session store: cannot delete session %s: %w", id, err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all persisted session IDs, least recently used first
func (s *SQLitePersistence) ListAll() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM sessions ORDER BY last_accessed_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("session store: cannot list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("session store: cannot scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks if a session row exists
func (s *SQLitePersistence) Exists(id string) bool {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM sessions WHERE id = ?", id).Scan(&one)
	return err == nil
}
