package review

import (
	"sort"
	"strings"
)

// SortField the sortable item attributes
type SortField string

const (
	SortByName     SortField = "product_name"
	SortByQuantity SortField = "quantity"
	SortByCategory SortField = "category"
)

// SortDirection sort order
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Valid reports whether the field is sortable
func (f SortField) Valid() bool {
	switch f {
	case SortByName, SortByQuantity, SortByCategory:
		return true
	}
	return false
}

// Valid reports whether the direction is recognized
func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// CategoryGroup a run of items sharing one category
type CategoryGroup struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Items        []Item `json:"items"`
}

// Sort orders a snapshot for display. Excluded items always sink
// below included ones regardless of direction; within each partition
// items are ordered by the requested field, with the ingest order as
// the final tie-break so equal keys never shuffle between calls.
func (e *Engine) Sort(items []Item, field SortField, dir SortDirection) []Item {
	next := cloneItems(items)
	sort.SliceStable(next, func(i, j int) bool {
		a, b := next[i], next[j]
		if a.Excluded != b.Excluded {
			return !a.Excluded
		}
		if c := e.compareField(a, b, field); c != 0 {
			if dir == SortDesc {
				return c > 0
			}
			return c < 0
		}
		return a.ordinal < b.ordinal
	})
	return next
}

// GroupByCategory sorts the snapshot, then buckets included items
// into per-category groups ordered by category name. Excluded items
// are collected into a trailing group with an empty category id.
func (e *Engine) GroupByCategory(items []Item, field SortField, dir SortDirection) []CategoryGroup {
	sorted := e.Sort(items, field, dir)

	var groups []CategoryGroup
	index := make(map[string]int)
	var excluded []Item

	for _, it := range sorted {
		if it.Excluded {
			excluded = append(excluded, it)
			continue
		}
		pos, ok := index[it.CategoryID]
		if !ok {
			pos = len(groups)
			index[it.CategoryID] = pos
			groups = append(groups, CategoryGroup{
				CategoryID:   it.CategoryID,
				CategoryName: e.CategoryName(it.CategoryID),
			})
		}
		groups[pos].Items = append(groups[pos].Items, it)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].CategoryName) < strings.ToLower(groups[j].CategoryName)
	})

	if len(excluded) > 0 {
		groups = append(groups, CategoryGroup{CategoryName: "Excluded", Items: excluded})
	}
	return groups
}

func (e *Engine) compareField(a, b Item, field SortField) int {
	switch field {
	case SortByQuantity:
		switch {
		case a.Quantity < b.Quantity:
			return -1
		case a.Quantity > b.Quantity:
			return 1
		}
		return 0
	case SortByCategory:
		return strings.Compare(
			strings.ToLower(e.CategoryName(a.CategoryID)),
			strings.ToLower(e.CategoryName(b.CategoryID)),
		)
	default:
		return strings.Compare(
			strings.ToLower(a.ProductName),
			strings.ToLower(b.ProductName),
		)
	}
}
