package review

import (
	"fmt"
	"strings"

	"meal2list/internal/pkg/common"

	"go.uber.org/zap"
)

// EditDraft the editable fields of an item while an edit is open
type EditDraft struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	CategoryID  string  `json:"category_id"`
}

// Item a candidate item with its review-session state. Draft is only
// set while the item is mid-edit; committed values live on the
// embedded CandidateItem until a successful CommitEdit copies the
// draft over them.
type Item struct {
	common.CandidateItem
	Editing bool       `json:"editing"`
	Draft   *EditDraft `json:"draft,omitempty"`

	// ordinal fixes the ingest position for stable tie-breaking
	ordinal int
}

// Engine reconciles candidate items against the live category set.
// All operations are copy-on-write: they return a fresh slice and
// never mutate their input, so an abandoned operation is undone by
// simply not adopting the returned snapshot.
type Engine struct {
	categories    []common.Category
	categoryNames map[string]string
	fallback      common.Category
}

// NewEngine creates a review engine over the category ground truth.
// The fallback sentinel category must be present.
func NewEngine(categories []common.Category) (*Engine, error) {
	fallback, ok := common.FindFallbackCategory(categories)
	if !ok {
		return nil, common.ErrMisconfiguration.WithMessage("default category is missing from the category set")
	}

	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	return &Engine{
		categories:    categories,
		categoryNames: names,
		fallback:      fallback,
	}, nil
}

// Fallback returns the sentinel category
func (e *Engine) Fallback() common.Category {
	return e.fallback
}

// CategoryName resolves a category id, empty when unknown
func (e *Engine) CategoryName(id string) string {
	return e.categoryNames[id]
}

// Ingest adopts generated candidates into the review session. Items
// whose category does not resolve are rewritten to the fallback
// category; nothing is ever dropped. The identifier set is fixed
// here and no later operation may change it.
func (e *Engine) Ingest(candidates []common.CandidateItem) []Item {
	items := make([]Item, len(candidates))
	repaired := 0
	for i, c := range candidates {
		if _, ok := e.categoryNames[c.CategoryID]; !ok {
			common.LogDebug("rewrote stale category reference",
				zap.String("item_id", c.ID),
				zap.String("stale_category_id", c.CategoryID),
				zap.String("fallback_id", e.fallback.ID),
			)
			c.CategoryID = e.fallback.ID
			repaired++
		}
		items[i] = Item{CandidateItem: c, ordinal: i}
	}

	if repaired > 0 {
		common.LogInfo("category references repaired during ingest",
			zap.Int("repaired", repaired),
			zap.Int("total", len(items)),
		)
	}
	return items
}

// ToggleInclusion flips the excluded flag of one item
func (e *Engine) ToggleInclusion(items []Item, id string) []Item {
	next := cloneItems(items)
	for i := range next {
		if next[i].ID == id {
			next[i].Excluded = !next[i].Excluded
			break
		}
	}
	return next
}

// ToggleAll acts as a tri-state select-all: when every item is
// included it excludes all, otherwise it includes all. It never
// produces a partial result.
func (e *Engine) ToggleAll(items []Item) []Item {
	allIncluded := true
	for i := range items {
		if items[i].Excluded {
			allIncluded = false
			break
		}
	}

	next := cloneItems(items)
	for i := range next {
		next[i].Excluded = allIncluded
	}
	return next
}

// BeginEdit opens an edit scope on one item, seeding the draft from
// the committed values. Opening an already-open edit is a no-op.
func (e *Engine) BeginEdit(items []Item, id string) []Item {
	next := cloneItems(items)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		if next[i].Editing {
			break
		}
		next[i].Editing = true
		next[i].Draft = &EditDraft{
			ProductName: next[i].ProductName,
			Quantity:    next[i].Quantity,
			Unit:        next[i].Unit,
			CategoryID:  next[i].CategoryID,
		}
		break
	}
	return next
}

// UpdateDraft replaces the open draft of a mid-edit item. Items not
// in edit mode are left untouched.
func (e *Engine) UpdateDraft(items []Item, id string, draft EditDraft) []Item {
	next := cloneItems(items)
	for i := range next {
		if next[i].ID == id && next[i].Editing {
			d := draft
			next[i].Draft = &d
			break
		}
	}
	return next
}

// CommitEdit validates the draft and, when valid, copies it over the
// committed values, marks the item modified, and closes the edit.
// An invalid draft leaves the snapshot untouched and reports false.
func (e *Engine) CommitEdit(items []Item, id string) ([]Item, bool) {
	idx := -1
	for i := range items {
		if items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || !items[idx].Editing || items[idx].Draft == nil {
		return items, false
	}

	draft := *items[idx].Draft
	if strings.TrimSpace(draft.ProductName) == "" ||
		draft.Quantity <= 0 ||
		strings.TrimSpace(draft.Unit) == "" ||
		draft.CategoryID == "" {
		return items, false
	}

	next := cloneItems(items)
	next[idx].ProductName = strings.TrimSpace(draft.ProductName)
	next[idx].Quantity = draft.Quantity
	next[idx].Unit = strings.TrimSpace(draft.Unit)
	next[idx].CategoryID = draft.CategoryID
	next[idx].IsModified = true
	next[idx].Editing = false
	next[idx].Draft = nil
	return next, true
}

// CancelEdit discards the draft and closes the edit scope; the
// committed values are untouched, so the item is byte-identical to
// its pre-edit state.
func (e *Engine) CancelEdit(items []Item, id string) []Item {
	next := cloneItems(items)
	for i := range next {
		if next[i].ID == id {
			next[i].Editing = false
			next[i].Draft = nil
			break
		}
	}
	return next
}

// Validate returns human-readable errors blocking a commit. An empty
// result together with at least one included item is exactly the
// commit precondition.
func (e *Engine) Validate(items []Item) []string {
	var errs []string

	included := 0
	for i := range items {
		if items[i].Excluded {
			continue
		}
		included++

		label := strings.TrimSpace(items[i].ProductName)
		if label == "" {
			label = fmt.Sprintf("item %d", i+1)
		}
		if strings.TrimSpace(items[i].ProductName) == "" {
			errs = append(errs, fmt.Sprintf("%s: product name is required", label))
		}
		if items[i].Quantity <= 0 {
			errs = append(errs, fmt.Sprintf("%s: quantity must be greater than zero", label))
		}
		if strings.TrimSpace(items[i].Unit) == "" {
			errs = append(errs, fmt.Sprintf("%s: unit is required", label))
		}
		if items[i].CategoryID == "" {
			errs = append(errs, fmt.Sprintf("%s: category is required", label))
		}
	}

	if included == 0 {
		errs = append(errs, "select at least one item to add")
	}

	return errs
}

// IncludedItems extracts the confirmed set for the commit pipeline
func (e *Engine) IncludedItems(items []Item) []common.CandidateItem {
	var out []common.CandidateItem
	for i := range items {
		if !items[i].Excluded {
			out = append(out, items[i].CandidateItem)
		}
	}
	return out
}

func cloneItems(items []Item) []Item {
	next := make([]Item, len(items))
	copy(next, items)
	for i := range next {
		if next[i].Draft != nil {
			d := *next[i].Draft
			next[i].Draft = &d
		}
	}
	return next
}
