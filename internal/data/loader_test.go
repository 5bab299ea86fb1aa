package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeContent(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadStore_BuildsCatalogAndCache(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, "creatures.json",
		`[{"id": 1, "name": "Skug", "max_health": 500, "race_id": 3, "respawn_time_ms": 5000},
		  {"id": 2, "name": "Ravenok", "max_health": 900}]`)
	writeContent(t, dir, "creature_spawns.json",
		`[{"id": 1, "zone_id": 22, "creature_id": 1, "x": 10, "y": 20, "z": 0}]`)
	writeContent(t, dir, "loot_rules.json", rulesJSON)

	store, err := LoadStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	if tmpl := store.Creature(1); tmpl == nil || tmpl.Name != "Skug" {
		t.Fatalf("Creature(1) = %+v", tmpl)
	}
	if spawns := store.SpawnsForZone(22); len(spawns) != 1 || spawns[0].CreatureID != 1 {
		t.Errorf("SpawnsForZone(22) = %+v", spawns)
	}
	if spawns := store.SpawnsForZone(99); len(spawns) != 0 {
		t.Errorf("SpawnsForZone(99) = %+v, want empty", spawns)
	}
	if store.Loot == nil {
		t.Fatal("loot rules not loaded")
	}

	// The loader writes a binary cache beside the JSON.
	if _, err := os.Stat(filepath.Join(dir, "creatures.json.bin")); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
}

func TestLoadStore_UsesFreshCache(t *testing.T) {
	dir := t.TempDir()
	path := writeContent(t, dir, "creatures.json", `[{"id": 1, "name": "Skug"}]`)

	if _, err := LoadStore(dir, zap.NewNop()); err != nil {
		t.Fatalf("first LoadStore: %v", err)
	}

	// Make the cache strictly newer than the JSON, then corrupt the JSON:
	// the loader must keep reading the cache and never touch the JSON body.
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	store, err := LoadStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("cached LoadStore: %v", err)
	}
	if tmpl := store.Creature(1); tmpl == nil || tmpl.Name != "Skug" {
		t.Errorf("cached Creature(1) = %+v", tmpl)
	}
}

func TestLoadStore_EmptyRootIsValid(t *testing.T) {
	store, err := LoadStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("LoadStore on empty root: %v", err)
	}
	if store.Creature(1) != nil {
		t.Error("empty catalog should hold no creatures")
	}
	if got := store.Loot.Resolve(1, nil); got != DefaultLootResolution {
		t.Errorf("empty rules Resolve = %+v, want default", got)
	}
}
