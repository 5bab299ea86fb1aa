package world

import "testing"

func TestSpatialGridInsertUpdateRemove(t *testing.T) {
	g := NewSpatialGrid(50)
	a := MakeGUID(TypePlayer, 1)

	g.Insert(a, Vec3{10, 10, 10})
	if got := g.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	if p, ok := g.Position(a); !ok || p != (Vec3{10, 10, 10}) {
		t.Fatalf("Position(a) = %v, %v", p, ok)
	}

	// Update into a different cell.
	g.Update(a, Vec3{120, 10, 10})
	if p, _ := g.Position(a); p != (Vec3{120, 10, 10}) {
		t.Fatalf("after update Position(a) = %v", p)
	}
	if !g.CheckConsistency() {
		t.Fatal("grid inconsistent after cross-cell update")
	}

	g.Remove(a)
	if got := g.Len(); got != 0 {
		t.Fatalf("Len() after remove = %d, want 0", got)
	}
	if !g.CheckConsistency() {
		t.Fatal("grid inconsistent after remove")
	}
}

func TestSpatialGridInsertExistingMoves(t *testing.T) {
	g := NewSpatialGrid(50)
	a := MakeGUID(TypeCreature, 7)
	g.Insert(a, Vec3{0, 0, 0})
	g.Insert(a, Vec3{200, 0, 0})
	if got := g.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	if !g.CheckConsistency() {
		t.Fatal("grid inconsistent after re-insert")
	}
}

func TestSpatialGridEntitiesInRange(t *testing.T) {
	g := NewSpatialGrid(50)
	near := MakeGUID(TypePlayer, 1)
	edge := MakeGUID(TypePlayer, 2)
	far := MakeGUID(TypePlayer, 3)
	g.Insert(near, Vec3{5, 0, 0})
	g.Insert(edge, Vec3{30, 0, 0})
	g.Insert(far, Vec3{31, 0, 0})

	got := g.EntitiesInRange(Vec3{0, 0, 0}, 30)
	if len(got) != 2 {
		t.Fatalf("EntitiesInRange = %v, want 2 hits", got)
	}
	for _, guid := range got {
		if guid == far {
			t.Fatal("range query returned GUID outside radius")
		}
	}
}

func TestSpatialGridZeroRadius(t *testing.T) {
	g := NewSpatialGrid(50)
	at := MakeGUID(TypeTrigger, 1)
	off := MakeGUID(TypeTrigger, 2)
	g.Insert(at, Vec3{1, 2, 3})
	g.Insert(off, Vec3{1, 2, 4})

	got := g.EntitiesInRange(Vec3{1, 2, 3}, 0)
	if len(got) != 1 || got[0] != at {
		t.Fatalf("zero-radius query = %v, want exactly the co-located GUID", got)
	}
	if g.EntitiesInRange(Vec3{1, 2, 3}, -1) != nil {
		t.Fatal("negative radius should return nothing")
	}
}

func TestSpatialGridNegativeCoordinates(t *testing.T) {
	g := NewSpatialGrid(50)
	a := MakeGUID(TypeCreature, 1)
	g.Insert(a, Vec3{-10, -10, -10})
	got := g.EntitiesInRange(Vec3{-12, -10, -10}, 5)
	if len(got) != 1 || got[0] != a {
		t.Fatalf("range query across negative cells = %v", got)
	}
}
