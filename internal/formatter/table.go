package formatter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/swfz/gh-repos/internal/api"
	"github.com/swfz/gh-repos/internal/models"
)

// RenderTable writes repositories in list order. The order is whatever the
// remote returned for the active sort; it is never re-sorted here.
func RenderTable(w io.Writer, repos []models.Repository) error {
	table := tablewriter.NewWriter(w)

	table.Header("#", "ID", "NAME", "STARS", "UPDATED", "DESCRIPTION")

	for i, repo := range repos {
		row := []interface{}{
			strconv.Itoa(i + 1),
			strconv.FormatInt(repo.ID, 10),
			TruncateWithEllipsis(repo.Name, 30),
			FormatStars(repo.StarCount),
			repo.FormattedDate(),
			TruncateWithEllipsis(OrDash(repo.Description), 60),
		}
		if err := table.Append(row...); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	return table.Render()
}

// RenderRateLimits writes API quota information
func RenderRateLimits(w io.Writer, infos []api.RateLimitInfo, now time.Time) error {
	table := tablewriter.NewWriter(w)

	table.Header("RESOURCE", "REMAINING", "LIMIT", "RESETS")

	for _, info := range infos {
		row := []interface{}{
			info.Resource,
			strconv.Itoa(info.Remaining),
			strconv.Itoa(info.Limit),
			FormatRelative(info.ResetAt, now),
		}
		if err := table.Append(row...); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	return table.Render()
}
