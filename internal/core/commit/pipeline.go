package commit

import (
	"context"
	"fmt"
	"strings"

	"meal2list/internal/pkg/common"

	"go.uber.org/zap"
)

// Batch size bounds for one commit
const (
	MinBatchSize = 1
	MaxBatchSize = 100
)

// Store the persistence surface the pipeline needs
type Store interface {
	VerifyListOwnership(ctx context.Context, listID, userID string) error
	GetCategories(ctx context.Context) ([]common.Category, error)
	InsertItems(ctx context.Context, items []common.ShoppingListItem) error
}

// Pipeline turns a confirmed review selection into persisted shopping
// list rows. Each stage can stop the commit: ownership, category
// verification, batch validation, then the atomic insert.
type Pipeline struct {
	store Store
}

// NewPipeline creates a commit pipeline
func NewPipeline(store Store) *Pipeline {
	return &Pipeline{store: store}
}

// Commit validates and persists the confirmed items onto the list.
// Category references are re-verified against the live category set
// right before the write; stale ones are substituted with the
// fallback category rather than failing the whole batch.
func (p *Pipeline) Commit(ctx context.Context, userID, listID, generationID string, items []common.CandidateItem) ([]common.ShoppingListItem, error) {
	if len(items) < MinBatchSize {
		return nil, common.NewValidationError("at least one item is required")
	}
	if len(items) > MaxBatchSize {
		return nil, common.NewValidationError(fmt.Sprintf("cannot add more than %d items at once", MaxBatchSize))
	}

	if err := p.store.VerifyListOwnership(ctx, listID, userID); err != nil {
		return nil, err
	}

	categories, err := p.store.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	fallback, hasFallback := common.FindFallbackCategory(categories)

	rows := make([]common.ShoppingListItem, 0, len(items))
	substituted := 0
	for i, it := range items {
		name := strings.TrimSpace(it.ProductName)
		if name == "" {
			return nil, common.NewValidationError(fmt.Sprintf("item %d: product name is required", i+1))
		}
		if it.Quantity <= 0 {
			return nil, common.NewValidationError(fmt.Sprintf("item %d: quantity must be greater than zero", i+1))
		}
		unit := strings.TrimSpace(it.Unit)
		if unit == "" {
			return nil, common.NewValidationError(fmt.Sprintf("item %d: unit is required", i+1))
		}

		categoryID := it.CategoryID
		if !known[categoryID] {
			if !hasFallback {
				return nil, common.ErrMisconfiguration.WithMessage("default category is missing from the category set")
			}
			categoryID = fallback.ID
			substituted++
		}

		source := it.Source
		if it.IsModified {
			source = common.SourceModified
		}
		if source == "" {
			source = common.SourceManual
		}

		row := common.ShoppingListItem{
			ShoppingListID: listID,
			ProductName:    name,
			Quantity:       it.Quantity,
			Unit:           unit,
			CategoryID:     categoryID,
			Source:         source,
		}
		if generationID != "" {
			genID := generationID
			row.GenerationID = &genID
		}
		rows = append(rows, row)
	}

	if substituted > 0 {
		common.LogInfo("stale category references substituted at commit",
			zap.String("list_id", listID),
			zap.Int("substituted", substituted),
		)
	}

	if err := p.store.InsertItems(ctx, rows); err != nil {
		return nil, err
	}

	common.LogInfo("items committed",
		zap.String("list_id", listID),
		zap.String("user_id", userID),
		zap.Int("count", len(rows)),
	)
	return rows, nil
}
