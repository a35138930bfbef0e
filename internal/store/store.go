package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trendscope/internal/core"
)

const (
	// DatabaseFile is the SQLite file created inside the data directory.
	DatabaseFile = "trendscope.db"

	settingMembitAPIKey = "membit_api_key"
)

// Store represents the SQLite-backed persistence for bookmarks and the saved credential
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	// Bookmarked posts, in insertion order, unique by post uuid
	bookmarksTable := `
	CREATE TABLE IF NOT EXISTS bookmarks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL,
		date_added DATETIME
	);`

	// Single-value settings such as the saved Membit API key
	settingsTable := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		date_updated DATETIME
	);`

	tables := []string{bookmarksTable, settingsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// AddBookmark stores item unless a bookmark with the same uuid exists.
// It reports whether the item was added.
func (s *Store) AddBookmark(item core.ResultItem) (bool, error) {
	if strings.TrimSpace(item.UUID) == "" {
		return false, core.NewValidationError("Only posts with a uuid can be bookmarked")
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("failed to encode bookmark: %w", err)
	}

	result, err := s.db.Exec(`INSERT OR IGNORE INTO bookmarks (uuid, payload, date_added) VALUES (?, ?, ?)`,
		item.UUID, string(payload), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add bookmark: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListBookmarks returns all bookmarks in the order they were added
func (s *Store) ListBookmarks() ([]core.ResultItem, error) {
	rows, err := s.db.Query(`SELECT payload FROM bookmarks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []core.ResultItem{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var item core.ResultItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("failed to decode bookmark: %w", err)
		}
		bookmarks = append(bookmarks, item)
	}
	return bookmarks, rows.Err()
}

// RemoveBookmarkAt deletes the bookmark at position index (0-based) and returns it.
func (s *Store) RemoveBookmarkAt(index int) (core.ResultItem, error) {
	var removed core.ResultItem
	if index < 0 {
		return removed, core.NewValidationError(fmt.Sprintf("bookmark %d does not exist", index))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return removed, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var payload string
	err = tx.QueryRow(`SELECT id, payload FROM bookmarks ORDER BY id LIMIT 1 OFFSET ?`, index).Scan(&id, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return removed, core.NewValidationError(fmt.Sprintf("bookmark %d does not exist", index))
	}
	if err != nil {
		return removed, fmt.Errorf("failed to find bookmark: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM bookmarks WHERE id = ?`, id); err != nil {
		return removed, fmt.Errorf("failed to remove bookmark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return removed, err
	}

	if err := json.Unmarshal([]byte(payload), &removed); err != nil {
		return removed, fmt.Errorf("failed to decode bookmark: %w", err)
	}
	return removed, nil
}

// ClearBookmarks removes every bookmark
func (s *Store) ClearBookmarks() error {
	_, err := s.db.Exec(`DELETE FROM bookmarks`)
	return err
}

// SaveAPIKey persists the Membit credential; an empty key removes it.
func (s *Store) SaveAPIKey(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, settingMembitAPIKey)
		return err
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value, date_updated) VALUES (?, ?, ?)`,
		settingMembitAPIKey, apiKey, time.Now().UTC())
	return err
}

// LoadAPIKey returns the saved Membit credential, or "" when none was saved.
func (s *Store) LoadAPIKey() (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, settingMembitAPIKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load API key: %w", err)
	}
	return value, nil
}
