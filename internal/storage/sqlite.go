package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite is a Storage backed by a single key/value table
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the SQLite database at path
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// one writer keeps every Set atomic with respect to the others
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS localstorage (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Get returns the value stored under key
func (s *SQLite) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM localstorage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

const upsertQuery = `
		INSERT INTO localstorage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`

// Set writes value under key
func (s *SQLite) Set(key, value string) error {
	if _, err := s.db.Exec(upsertQuery, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// SetMany writes all values in a single transaction
func (s *SQLite) SetMany(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for key, value := range values {
		if _, err := tx.Exec(upsertQuery, key, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// Remove deletes keys in a single transaction
func (s *SQLite) Remove(keys ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, key := range keys {
		if _, err := tx.Exec(`DELETE FROM localstorage WHERE key = ?`, key); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}
