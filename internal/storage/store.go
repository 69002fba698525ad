package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"meal2list/internal/core/generate"
	"meal2list/internal/pkg/common"

	"github.com/jmoiron/sqlx"
)

// Store the sqlx-backed persistence layer
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureUser provisions a user row on first sight of an identity
func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, userID)
	return err
}

// GetCategories returns the category set ordered by name
func (s *Store) GetCategories(ctx context.Context) ([]common.Category, error) {
	var categories []common.Category
	err := s.db.SelectContext(ctx, &categories,
		`SELECT id, name FROM categories ORDER BY name`)
	return categories, err
}

// GetShoppingLists returns the user's lists, newest first
func (s *Store) GetShoppingLists(ctx context.Context, userID string) ([]common.ShoppingList, error) {
	var lists []common.ShoppingList
	err := s.db.SelectContext(ctx, &lists,
		`SELECT id, name, user_id, created_at, updated_at
		 FROM shopping_lists WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	return lists, err
}

// CreateShoppingList creates an empty list for the user
func (s *Store) CreateShoppingList(ctx context.Context, userID, name string) (*common.ShoppingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("list name is required")
	}

	now := time.Now().UTC()
	list := &common.ShoppingList{
		ID:        common.GenerateUUID(),
		Name:      name,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shopping_lists (id, user_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		list.ID, list.UserID, list.Name, list.CreatedAt, list.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// VerifyListOwnership distinguishes an unknown list from someone
// else's list
func (s *Store) VerifyListOwnership(ctx context.Context, listID, userID string) error {
	var ownerID string
	err := s.db.GetContext(ctx, &ownerID,
		`SELECT user_id FROM shopping_lists WHERE id = ?`, listID)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound.WithMessage("shopping list not found")
	}
	if err != nil {
		return err
	}
	if ownerID != userID {
		return common.ErrForbidden.WithMessage("shopping list belongs to another user")
	}
	return nil
}

// DeleteShoppingList removes a user's list and its items
func (s *Store) DeleteShoppingList(ctx context.Context, listID, userID string) error {
	if err := s.VerifyListOwnership(ctx, listID, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM shopping_lists WHERE id = ? AND user_id = ?`, listID, userID)
	return err
}

// GetListItems returns a list's items in insertion order
func (s *Store) GetListItems(ctx context.Context, listID string) ([]common.ShoppingListItem, error) {
	var items []common.ShoppingListItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, shopping_list_id, product_name, quantity, unit, category_id,
		        source, generation_id, created_at, updated_at
		 FROM shopping_list_items WHERE shopping_list_id = ? ORDER BY created_at, id`, listID)
	return items, err
}

// InsertItems writes a batch of items in one transaction. The whole
// batch is rolled back when any row collides with an existing product
// name on the list.
func (s *Store) InsertItems(ctx context.Context, items []common.ShoppingListItem) error {
	if len(items) == 0 {
		return common.NewValidationError("no items to insert")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = common.GenerateUUID()
		}
		it.CreatedAt = now
		it.UpdatedAt = now

		_, err := tx.ExecContext(ctx,
			`INSERT INTO shopping_list_items
			 (id, shopping_list_id, product_name, quantity, unit, category_id,
			  source, generation_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.ShoppingListID, it.ProductName, it.Quantity, it.Unit,
			it.CategoryID, it.Source, it.GenerationID, it.CreatedAt, it.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return common.ErrConflict.WithMessage("an item with this product name already exists on the list").WithCause(err)
			}
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE shopping_lists SET updated_at = ? WHERE id = ?`,
		now, items[0].ShoppingListID); err != nil {
		return err
	}

	return tx.Commit()
}

// RecordGeneration persists a generation audit row
func (s *Store) RecordGeneration(ctx context.Context, rec generate.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations
		 (id, user_id, model, generated_count, source_text_hash, source_text_length, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Model, rec.GeneratedCount,
		rec.SourceTextHash, rec.SourceTextLength, rec.Duration.Milliseconds())
	return err
}

// RecordGenerationError persists a failed-generation audit row
func (s *Store) RecordGenerationError(ctx context.Context, rec generate.ErrorRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_error_logs
		 (id, user_id, model, source_text_hash, source_text_length, error_code, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Model, rec.SourceTextHash,
		rec.SourceTextLength, rec.ErrorCode, rec.ErrorMessage)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
