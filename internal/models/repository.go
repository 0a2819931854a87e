package models

import (
	"strings"
	"time"
)

// Repository represents a GitHub repository as currently known to the client.
// Name may differ from the remote value once edited locally.
type Repository struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StarCount   int       `json:"stargazers_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FormattedDate returns the last update date in YYYY-MM-DD format
func (r *Repository) FormattedDate() string {
	if r.UpdatedAt.IsZero() {
		return "-"
	}
	return r.UpdatedAt.Format("2006-01-02")
}

// Matches reports whether the repository name or description contains query
// (case-insensitive)
func (r *Repository) Matches(query string) bool {
	if query == "" {
		return true
	}
	query = strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.Name), query) ||
		strings.Contains(strings.ToLower(r.Description), query)
}
