// Package storage provides the local key-value store that mirrors the
// repository list between runs. Values are opaque strings; every Set is a
// single atomic write.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Storage is a string key-value store
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set writes value under key, replacing any previous value.
	Set(key, value string) error
	// SetMany writes every entry in one atomic write: either all of them
	// are stored or none is.
	SetMany(values map[string]string) error
	// Remove deletes the given keys. Missing keys are ignored.
	Remove(keys ...string) error
	// Close releases the underlying resources.
	Close() error
}

// Backend names accepted by Open
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown storage backend")

// Open creates the storage backend named kind at path
func Open(kind, path string) (Storage, error) {
	switch kind {
	case BackendMemory:
		return NewMemory(), nil
	case BackendBolt, "":
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		return NewBolt(path)
	case BackendSQLite:
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}
