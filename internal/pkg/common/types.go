package common

import "time"

// Item source tags
const (
	SourceAuto     = "auto"
	SourceManual   = "manual"
	SourceModified = "modified"
)

// Fallback category names, checked in order when repairing stale ids
var FallbackCategoryNames = []string{"Other", "Others"}

// Recipe text bounds. OCR output is additionally capped at the
// sanitized maximum before it enters the generation pipeline.
const (
	MaxRecipeTextLength    = 10000
	MaxSanitizedTextLength = 5000
)

// Category read-only category record
type Category struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// ShoppingList a user-owned shopping list
type ShoppingList struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ShoppingListItem a persisted shopping list row
type ShoppingListItem struct {
	ID             string    `json:"id" db:"id"`
	ShoppingListID string    `json:"shopping_list_id" db:"shopping_list_id"`
	ProductName    string    `json:"product_name" db:"product_name"`
	Quantity       float64   `json:"quantity" db:"quantity"`
	Unit           string    `json:"unit" db:"unit"`
	CategoryID     string    `json:"category_id" db:"category_id"`
	Source         string    `json:"source" db:"source"`
	GenerationID   *string   `json:"generation_id,omitempty" db:"generation_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CandidateItem a model-proposed shopping list entry awaiting review.
// The identifier is assigned at generation time and stays stable for
// the whole review session.
type CandidateItem struct {
	ID          string  `json:"id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	CategoryID  string  `json:"category_id"`
	Excluded    bool    `json:"excluded"`
	Source      string  `json:"source"`
	IsModified  bool    `json:"is_modified"`
}

// FindFallbackCategory locates the sentinel category by name
func FindFallbackCategory(categories []Category) (Category, bool) {
	for _, name := range FallbackCategoryNames {
		for _, c := range categories {
			if c.Name == name {
				return c, true
			}
		}
	}
	return Category{}, false
}
