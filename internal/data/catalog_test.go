package data

import (
	"strconv"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	entries := map[int64]any{}
	for i := int64(1); i <= 10; i++ {
		entries[i] = &CreatureTemplate{ID: i, RaceID: i % 3, Name: "c" + strconv.FormatInt(i, 10)}
	}
	if err := c.AddTable(TableCreatures, entries); err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	if err := c.AddIndex(IndexCreaturesByRace, TableCreatures, func(e any) (string, bool) {
		tm := e.(*CreatureTemplate)
		if tm.RaceID == 0 {
			return "", false
		}
		return strconv.FormatInt(tm.RaceID, 10), true
	}); err != nil {
		t.Fatalf("AddIndex: %v", err)
	}
	c.Freeze()
	return c
}

func TestCatalog_Get(t *testing.T) {
	c := testCatalog(t)

	e, ok := c.Get(TableCreatures, 7)
	if !ok {
		t.Fatal("Get(7) not found")
	}
	if e.(*CreatureTemplate).Name != "c7" {
		t.Errorf("Name = %q, want c7", e.(*CreatureTemplate).Name)
	}

	if _, ok := c.Get(TableCreatures, 99); ok {
		t.Error("Get(99) should be not found")
	}
	if _, ok := c.Get("no_such_table", 1); ok {
		t.Error("Get on missing table should be not found")
	}
}

func TestCatalog_ListOrdered(t *testing.T) {
	c := testCatalog(t)

	var ids []int64
	c.List(TableCreatures)(func(id int64, _ any) bool {
		ids = append(ids, id)
		return true
	})
	if len(ids) != 10 {
		t.Fatalf("listed %d entries, want 10", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
}

func TestCatalog_Pagination(t *testing.T) {
	c := testCatalog(t)

	batch, cont := c.ListPaginated(TableCreatures, 4)
	if len(batch) != 4 || cont == nil {
		t.Fatalf("first page: %d entries, cont=%v", len(batch), cont)
	}
	batch, cont = c.ListContinue(cont)
	if len(batch) != 4 || cont == nil {
		t.Fatalf("second page: %d entries, cont=%v", len(batch), cont)
	}
	batch, cont = c.ListContinue(cont)
	if len(batch) != 2 {
		t.Fatalf("last page: %d entries, want 2", len(batch))
	}
	if cont != nil {
		t.Error("continuation after last page should be nil")
	}
	if batch, cont = c.ListContinue(nil); batch != nil || cont != nil {
		t.Error("ListContinue(nil) should be empty")
	}
}

func TestCatalog_IndexLookup(t *testing.T) {
	c := testCatalog(t)

	// RaceID = id%3; race 1 → ids 1,4,7,10.
	ids := c.IndexLookup(IndexCreaturesByRace, "1")
	want := []int64{1, 4, 7, 10}
	if len(ids) != len(want) {
		t.Fatalf("IndexLookup = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IndexLookup = %v, want %v", ids, want)
		}
	}

	// RaceID 0 entries (3, 6, 9) are excluded as missing key values.
	if got := c.IndexLookup(IndexCreaturesByRace, "0"); len(got) != 0 {
		t.Errorf("zero-key entries must be excluded from index, got %v", got)
	}

	entries := c.FetchByIDs(TableCreatures, append(ids, 999))
	if len(entries) != len(want) {
		t.Errorf("FetchByIDs skipped missing ids wrong: %d entries", len(entries))
	}
}

func TestCompositeKey(t *testing.T) {
	if CompositeKey("2", "5") == CompositeKey("25") {
		t.Error("composite key must not collide with concatenation")
	}
}
