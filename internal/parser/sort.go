package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/swfz/gh-repos/internal/models"
)

// Sort spec format: "field", "field:order" or "field order"
var sortSpecRegex = regexp.MustCompile(`^([a-z]+)(?:[:\s]+([a-z]+))?$`)

// orderAliases accepts the spellings users tend to type
var orderAliases = map[string]models.SortOrder{
	"asc":        models.OrderAsc,
	"ascending":  models.OrderAsc,
	"desc":       models.OrderDesc,
	"descending": models.OrderDesc,
}

// fieldAliases maps accepted field spellings, including the search API's own
var fieldAliases = map[string]models.SortField{
	"stars":      models.SortStars,
	"star":       models.SortStars,
	"stargazers": models.SortStars,
	"name":       models.SortName,
	"updated":    models.SortUpdated,
	"update":     models.SortUpdated,
}

// ParseSortField parses a sort field name (case-insensitive)
func ParseSortField(s string) (models.SortField, error) {
	field, ok := fieldAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid sort field: %q (expected stars, name or updated)", s)
	}
	return field, nil
}

// ParseSortOrder parses a sort order (case-insensitive)
func ParseSortOrder(s string) (models.SortOrder, error) {
	order, ok := orderAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid sort order: %q (expected asc or desc)", s)
	}
	return order, nil
}

// ParseSort parses a sort spec such as "name:asc". A missing order keeps the
// order of base.
func ParseSort(spec string, base models.Sort) (models.Sort, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))

	matches := sortSpecRegex.FindStringSubmatch(spec)
	if matches == nil {
		return models.Sort{}, fmt.Errorf("invalid sort spec: %q (expected field[:order])", spec)
	}

	field, err := ParseSortField(matches[1])
	if err != nil {
		return models.Sort{}, err
	}

	result := models.Sort{Field: field, Order: base.Order}
	if matches[2] != "" {
		order, err := ParseSortOrder(matches[2])
		if err != nil {
			return models.Sort{}, err
		}
		result.Order = order
	}

	return result, nil
}
