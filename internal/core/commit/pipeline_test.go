package commit

import (
	"context"
	"path/filepath"
	"testing"

	"meal2list/internal/pkg/common"
	"meal2list/internal/storage"
)

type fixture struct {
	pipeline *Pipeline
	store    *storage.Store
	listID   string
	catID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := storage.NewStore(db)
	if err := store.EnsureUser(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.EnsureUser(ctx, "user-2"); err != nil {
		t.Fatal(err)
	}
	list, err := store.CreateShoppingList(ctx, "user-1", "Groceries")
	if err != nil {
		t.Fatal(err)
	}

	categories, err := store.GetCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	fallback, ok := common.FindFallbackCategory(categories)
	if !ok {
		t.Fatal("no fallback category in seeded schema")
	}

	return &fixture{
		pipeline: NewPipeline(store),
		store:    store,
		listID:   list.ID,
		catID:    fallback.ID,
	}
}

func confirmed(name string, qty float64, categoryID string) common.CandidateItem {
	return common.CandidateItem{
		ID:          common.GenerateUUID(),
		ProductName: name,
		Quantity:    qty,
		Unit:        "pcs",
		CategoryID:  categoryID,
		Source:      common.SourceAuto,
	}
}

func TestCommitPersistsConfirmedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows, err := f.pipeline.Commit(ctx, "user-1", f.listID, "gen-1", []common.CandidateItem{
		confirmed("Milk", 1, f.catID),
		confirmed("Eggs", 12, f.catID),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if r.GenerationID == nil || *r.GenerationID != "gen-1" {
			t.Errorf("row %q generation id = %v", r.ProductName, r.GenerationID)
		}
		if r.Source != common.SourceAuto {
			t.Errorf("row %q source = %q", r.ProductName, r.Source)
		}
	}

	persisted, err := f.store.GetListItems(ctx, f.listID)
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 2 {
		t.Errorf("persisted = %d, want 2", len(persisted))
	}
}

func TestCommitMarksModifiedItems(t *testing.T) {
	f := newFixture(t)

	item := confirmed("Oat milk", 2, f.catID)
	item.IsModified = true

	rows, err := f.pipeline.Commit(context.Background(), "user-1", f.listID, "gen-1", []common.CandidateItem{item})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Source != common.SourceModified {
		t.Errorf("source = %q, want modified", rows[0].Source)
	}
}

func TestCommitRejectsForeignList(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Commit(context.Background(), "user-2", f.listID, "", []common.CandidateItem{
		confirmed("Milk", 1, f.catID),
	})
	if common.CodeOf(err) != common.ErrCodeForbidden {
		t.Fatalf("code = %q, want forbidden", common.CodeOf(err))
	}
}

func TestCommitBatchSizeBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.pipeline.Commit(ctx, "user-1", f.listID, "", nil); !common.IsValidationError(err) {
		t.Fatalf("empty batch: err = %v, want validation error", err)
	}

	big := make([]common.CandidateItem, MaxBatchSize+1)
	for i := range big {
		big[i] = confirmed(common.GenerateUUID(), 1, f.catID)
	}
	if _, err := f.pipeline.Commit(ctx, "user-1", f.listID, "", big); !common.IsValidationError(err) {
		t.Fatalf("oversized batch: err = %v, want validation error", err)
	}
}

func TestCommitSubstitutesStaleCategory(t *testing.T) {
	f := newFixture(t)

	rows, err := f.pipeline.Commit(context.Background(), "user-1", f.listID, "", []common.CandidateItem{
		confirmed("Milk", 1, "deleted-category-id"),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rows[0].CategoryID != f.catID {
		t.Errorf("category = %q, want fallback %q", rows[0].CategoryID, f.catID)
	}
}

func TestCommitDefensiveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []common.CandidateItem{
		confirmed("", 1, f.catID),
		confirmed("Milk", 0, f.catID),
		confirmed("Milk", -1, f.catID),
		{ID: "x", ProductName: "Milk", Quantity: 1, Unit: "  ", CategoryID: f.catID},
	}
	for i, c := range cases {
		if _, err := f.pipeline.Commit(ctx, "user-1", f.listID, "", []common.CandidateItem{c}); !common.IsValidationError(err) {
			t.Errorf("case %d: err = %v, want validation error", i, err)
		}
	}
}

func TestCommitConflictOnDuplicateName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.pipeline.Commit(ctx, "user-1", f.listID, "", []common.CandidateItem{
		confirmed("Milk", 1, f.catID),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := f.pipeline.Commit(ctx, "user-1", f.listID, "", []common.CandidateItem{
		confirmed("milk", 2, f.catID),
	})
	if common.CodeOf(err) != common.ErrCodeConflict {
		t.Fatalf("code = %q, want conflict", common.CodeOf(err))
	}
}
