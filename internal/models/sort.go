package models

import "fmt"

// SortField is the repository attribute the remote search orders by
type SortField string

const (
	SortStars   SortField = "stars"
	SortName    SortField = "name"
	SortUpdated SortField = "updated"
)

// SortOrder is the direction of the remote ordering
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SortFields lists the accepted fields in display order
var SortFields = []SortField{SortStars, SortName, SortUpdated}

// Sort is the (field, order) pair driving the remote query
type Sort struct {
	Field SortField
	Order SortOrder
}

// DefaultSort returns stars/desc
func DefaultSort() Sort {
	return Sort{Field: SortStars, Order: OrderDesc}
}

// String renders the sort as "field:order"
func (s Sort) String() string {
	return fmt.Sprintf("%s:%s", s.Field, s.Order)
}

// Valid reports whether f is one of the enumerated fields
func (f SortField) Valid() bool {
	switch f {
	case SortStars, SortName, SortUpdated:
		return true
	}
	return false
}

// Next returns the field following f in SortFields, wrapping around
func (f SortField) Next() SortField {
	for i, field := range SortFields {
		if field == f {
			return SortFields[(i+1)%len(SortFields)]
		}
	}
	return SortStars
}

// APIParam maps the field to the search API's sort parameter.
// The search API cannot order by name; an empty value means best match.
func (f SortField) APIParam() string {
	switch f {
	case SortStars:
		return "stars"
	case SortUpdated:
		return "updated"
	default:
		return ""
	}
}

// Valid reports whether o is asc or desc
func (o SortOrder) Valid() bool {
	return o == OrderAsc || o == OrderDesc
}

// Toggle returns the opposite order
func (o SortOrder) Toggle() SortOrder {
	if o == OrderAsc {
		return OrderDesc
	}
	return OrderAsc
}

// DisplayName returns a human-readable order label
func (o SortOrder) DisplayName() string {
	switch o {
	case OrderAsc:
		return "ascending"
	case OrderDesc:
		return "descending"
	default:
		return string(o)
	}
}
