package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"meal2list/internal/core/generate"
	"meal2list/internal/pkg/common"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func mustEnsureUser(t *testing.T, s *Store, userID string) {
	t.Helper()
	if err := s.EnsureUser(context.Background(), userID); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
}

func mustCreateList(t *testing.T, s *Store, userID, name string) *common.ShoppingList {
	t.Helper()
	list, err := s.CreateShoppingList(context.Background(), userID, name)
	if err != nil {
		t.Fatalf("CreateShoppingList: %v", err)
	}
	return list
}

func testItem(listID, name string, qty float64, categoryID string) common.ShoppingListItem {
	return common.ShoppingListItem{
		ShoppingListID: listID,
		ProductName:    name,
		Quantity:       qty,
		Unit:           "pcs",
		CategoryID:     categoryID,
		Source:         common.SourceAuto,
	}
}

func fallbackCategoryID(t *testing.T, s *Store) string {
	t.Helper()
	categories, err := s.GetCategories(context.Background())
	if err != nil {
		t.Fatalf("GetCategories: %v", err)
	}
	c, ok := common.FindFallbackCategory(categories)
	if !ok {
		t.Fatal("seeded schema is missing the default category")
	}
	return c.ID
}

func TestMigrationsSeedDefaultCategory(t *testing.T) {
	s := openTestStore(t)
	fallbackCategoryID(t, s)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	mustEnsureUser(t, s, "user-1")
	mustEnsureUser(t, s, "user-1")
}

func TestCreateAndListShoppingLists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustEnsureUser(t, s, "user-1")
	mustEnsureUser(t, s, "user-2")

	mustCreateList(t, s, "user-1", "Groceries")
	mustCreateList(t, s, "user-2", "Party")

	lists, err := s.GetShoppingLists(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 || lists[0].Name != "Groceries" {
		t.Errorf("lists = %+v", lists)
	}
}

func TestCreateShoppingListRequiresName(t *testing.T) {
	s := openTestStore(t)
	mustEnsureUser(t, s, "user-1")

	if _, err := s.CreateShoppingList(context.Background(), "user-1", "   "); !common.IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestVerifyListOwnership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustEnsureUser(t, s, "user-1")
	mustEnsureUser(t, s, "user-2")
	list := mustCreateList(t, s, "user-1", "Groceries")

	if err := s.VerifyListOwnership(ctx, list.ID, "user-1"); err != nil {
		t.Errorf("owner check failed: %v", err)
	}
	if err := s.VerifyListOwnership(ctx, list.ID, "user-2"); common.CodeOf(err) != common.ErrCodeForbidden {
		t.Errorf("foreign list: code = %q, want forbidden", common.CodeOf(err))
	}
	if err := s.VerifyListOwnership(ctx, "no-such-list", "user-1"); common.CodeOf(err) != common.ErrCodeNotFound {
		t.Errorf("unknown list: code = %q, want not found", common.CodeOf(err))
	}
}

func TestInsertItemsAndReadBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustEnsureUser(t, s, "user-1")
	list := mustCreateList(t, s, "user-1", "Groceries")
	catID := fallbackCategoryID(t, s)

	genID := "gen-1"
	items := []common.ShoppingListItem{
		testItem(list.ID, "Milk", 1, catID),
		testItem(list.ID, "Eggs", 12, catID),
	}
	items[0].GenerationID = &genID

	if err := s.InsertItems(ctx, items); err != nil {
		t.Fatalf("InsertItems: %v", err)
	}

	got, err := s.GetListItems(ctx, list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("items = %d, want 2", len(got))
	}
	byName := map[string]common.ShoppingListItem{}
	for _, it := range got {
		byName[it.ProductName] = it
	}
	milk := byName["Milk"]
	if milk.GenerationID == nil || *milk.GenerationID != "gen-1" {
		t.Errorf("generation id = %v", milk.GenerationID)
	}
	if byName["Eggs"].GenerationID != nil {
		t.Error("eggs should have no generation id")
	}
}

func TestInsertItemsCaseInsensitiveConflictRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustEnsureUser(t, s, "user-1")
	list := mustCreateList(t, s, "user-1", "Groceries")
	catID := fallbackCategoryID(t, s)

	if err := s.InsertItems(ctx, []common.ShoppingListItem{testItem(list.ID, "Milk", 1, catID)}); err != nil {
		t.Fatal(err)
	}

	err := s.InsertItems(ctx, []common.ShoppingListItem{
		testItem(list.ID, "Butter", 1, catID),
		testItem(list.ID, "MILK", 2, catID), // collides with existing row
	})
	if common.CodeOf(err) != common.ErrCodeConflict {
		t.Fatalf("code = %q, want conflict", common.CodeOf(err))
	}

	got, err := s.GetListItems(ctx, list.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("items = %d, want 1 after rolled back batch", len(got))
	}
}

func TestInsertItemsTouchesListTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustEnsureUser(t, s, "user-1")
	list := mustCreateList(t, s, "user-1", "Groceries")
	catID := fallbackCategoryID(t, s)

	time.Sleep(5 * time.Millisecond)
	if err := s.InsertItems(ctx, []common.ShoppingListItem{testItem(list.ID, "Milk", 1, catID)}); err != nil {
		t.Fatal(err)
	}

	lists, err := s.GetShoppingLists(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if !lists[0].UpdatedAt.After(list.UpdatedAt) {
		t.Errorf("updated_at not advanced: %v vs %v", lists[0].UpdatedAt, list.UpdatedAt)
	}
}

func TestDeleteShoppingListCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mustEnsureUser(t, s, "user-1")
	list := mustCreateList(t, s, "user-1", "Groceries")
	catID := fallbackCategoryID(t, s)
	if err := s.InsertItems(ctx, []common.ShoppingListItem{testItem(list.ID, "Milk", 1, catID)}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteShoppingList(ctx, list.ID, "user-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.VerifyListOwnership(ctx, list.ID, "user-1"); common.CodeOf(err) != common.ErrCodeNotFound {
		t.Errorf("list still present after delete")
	}

	var count int
	if err := s.db.Get(&count, `SELECT COUNT(*) FROM shopping_list_items WHERE shopping_list_id = ?`, list.ID); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("orphaned items = %d", count)
	}
}

func TestGenerationAuditRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RecordGeneration(ctx, generate.Record{
		ID:               "gen-1",
		UserID:           "user-1",
		Model:            "test/text",
		GeneratedCount:   5,
		SourceTextHash:   "abc",
		SourceTextLength: 120,
		Duration:         1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordGeneration: %v", err)
	}

	var durationMS int64
	if err := s.db.Get(&durationMS, `SELECT duration_ms FROM generations WHERE id = ?`, "gen-1"); err != nil {
		t.Fatal(err)
	}
	if durationMS != 1500 {
		t.Errorf("duration_ms = %d", durationMS)
	}

	err = s.RecordGenerationError(ctx, generate.ErrorRecord{
		ID:               "err-1",
		UserID:           "user-1",
		Model:            "test/text",
		SourceTextHash:   "abc",
		SourceTextLength: 120,
		ErrorCode:        common.ErrCodeParsing,
		ErrorMessage:     "model returned no usable items",
	})
	if err != nil {
		t.Fatalf("RecordGenerationError: %v", err)
	}

	var code string
	if err := s.db.Get(&code, `SELECT error_code FROM generation_error_logs WHERE id = ?`, "err-1"); err != nil {
		t.Fatal(err)
	}
	if code != common.ErrCodeParsing {
		t.Errorf("error_code = %q", code)
	}
}
