package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/swfz/gh-repos/internal/models"
	"github.com/swfz/gh-repos/internal/storage"
)

// Local storage keys of the persisted snapshot
const (
	KeyRepos     = "repos"
	KeySortField = "sortField"
	KeySortOrder = "sortOrder"
)

// snapshot is the persisted part of the store state
type snapshot struct {
	repos []models.Repository
	sort  models.Sort
}

// loadSnapshot reads each key independently. Absent, unreadable or malformed
// values fall back to the defaults.
func loadSnapshot(s storage.Storage, logger *slog.Logger) snapshot {
	snap := snapshot{repos: []models.Repository{}, sort: models.DefaultSort()}

	if raw, ok := readKey(s, KeyRepos, logger); ok {
		var repos []models.Repository
		if err := json.Unmarshal([]byte(raw), &repos); err != nil {
			logger.Warn("ignoring malformed persisted repository list", "error", err)
		} else if repos != nil {
			snap.repos = repos
		}
	}

	if raw, ok := readKey(s, KeySortField, logger); ok {
		if field := models.SortField(raw); field.Valid() {
			snap.sort.Field = field
		} else {
			logger.Warn("ignoring malformed persisted sort field", "value", raw)
		}
	}

	if raw, ok := readKey(s, KeySortOrder, logger); ok {
		if order := models.SortOrder(raw); order.Valid() {
			snap.sort.Order = order
		} else {
			logger.Warn("ignoring malformed persisted sort order", "value", raw)
		}
	}

	return snap
}

func readKey(s storage.Storage, key string, logger *slog.Logger) (string, bool) {
	raw, ok, err := s.Get(key)
	if err != nil {
		logger.Warn("failed to read local storage", "key", key, "error", err)
		return "", false
	}
	return raw, ok
}

// saveSnapshot writes the three keys in one atomic write
func saveSnapshot(s storage.Storage, snap snapshot) error {
	repos := snap.repos
	if repos == nil {
		repos = []models.Repository{}
	}

	data, err := json.Marshal(repos)
	if err != nil {
		return fmt.Errorf("failed to marshal repositories: %w", err)
	}

	if err := s.SetMany(map[string]string{
		KeyRepos:     string(data),
		KeySortField: string(snap.sort.Field),
		KeySortOrder: string(snap.sort.Order),
	}); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	return nil
}

// clearSnapshot removes every snapshot key rather than writing defaults
func clearSnapshot(s storage.Storage) error {
	if err := s.Remove(KeyRepos, KeySortField, KeySortOrder); err != nil {
		return fmt.Errorf("failed to clear local storage: %w", err)
	}
	return nil
}
