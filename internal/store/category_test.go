package store

import (
	"database/sql"
	"testing"

	"github.com/finchley/pocketmoney/internal/database"
)

func setupCategoryTest(t *testing.T) *CategoryStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCategoryStore(db)
}

func TestCategoryCreateAndGet(t *testing.T) {
	cs := setupCategoryTest(t)

	created, err := cs.Create("Kitchen", 1)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected non-zero ID")
	}

	got, err := cs.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if got.Name != "Kitchen" || got.SortOrder != 1 {
		t.Errorf("got = %+v", got)
	}
}

func TestCategoryListSeededDefaults(t *testing.T) {
	cs := setupCategoryTest(t)

	cats, err := cs.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Kitchen", "Bathroom", "Bedroom", "Yard", "General"}
	if len(cats) != len(want) {
		t.Fatalf("len = %d, want %d seeded categories", len(cats), len(want))
	}
	for i := range cats {
		if cats[i].Name != want[i] {
			t.Errorf("cats[%d] = %q, want %q", i, cats[i].Name, want[i])
		}
	}
}

func TestCategoryListOrder(t *testing.T) {
	cs := setupCategoryTest(t)

	// Sort order 0 sorts ahead of every seeded default.
	if _, err := cs.Create("Laundry", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := cs.Create("Pets", 9); err != nil {
		t.Fatalf("create: %v", err)
	}

	cats, err := cs.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 7 {
		t.Fatalf("len = %d, want 5 seeded + 2 created", len(cats))
	}
	if cats[0].Name != "Laundry" {
		t.Errorf("cats[0] = %q, want Laundry first by sort order", cats[0].Name)
	}
	if cats[len(cats)-1].Name != "Pets" {
		t.Errorf("cats[last] = %q, want Pets last by sort order", cats[len(cats)-1].Name)
	}
	for i := 1; i < len(cats); i++ {
		if cats[i].SortOrder < cats[i-1].SortOrder {
			t.Errorf("sort order not ascending at %d: %d after %d", i, cats[i].SortOrder, cats[i-1].SortOrder)
		}
	}
}

func TestCategoryUpdate(t *testing.T) {
	cs := setupCategoryTest(t)

	created, err := cs.Create("Kitchen", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := cs.Update(created.ID, "Indoor chores", 5)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Indoor chores" || updated.SortOrder != 5 {
		t.Errorf("updated = %+v", updated)
	}
}

func TestCategoryDeleteMissing(t *testing.T) {
	cs := setupCategoryTest(t)

	if err := cs.Delete(999); err != sql.ErrNoRows {
		t.Errorf("delete missing = %v, want sql.ErrNoRows", err)
	}
}
