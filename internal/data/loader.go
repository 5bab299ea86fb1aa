package data

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// The content root holds one JSON file per table. A compiled gob cache
// lives beside each file ("<name>.json.bin") and is used when its mtime is
// at least the JSON's.

const cacheSuffix = ".bin"

// loadList decodes one content file into a typed slice, preferring the
// binary cache when fresh. A missing JSON file is a content error: logged,
// and an empty list is returned so the zone can run empty.
func loadList[T any](path string, log *zap.Logger) ([]*T, error) {
	jsonInfo, err := os.Stat(path)
	if err != nil {
		log.Warn("內容檔案缺失，使用空表",
			zap.String("path", path), zap.Error(err))
		return nil, nil
	}

	cachePath := path + cacheSuffix
	if cacheInfo, err := os.Stat(cachePath); err == nil &&
		!cacheInfo.ModTime().Before(jsonInfo.ModTime()) {
		if list, err := readCache[T](cachePath); err == nil {
			return list, nil
		}
		// Corrupt cache: fall through to the JSON and rebuild.
		log.Warn("二進位快取損毀，改讀 JSON", zap.String("path", cachePath))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var list []*T
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Best effort: a failed cache write never fails the load.
	if err := writeCache(cachePath, list); err != nil {
		log.Debug("寫入快取失敗", zap.String("path", cachePath), zap.Error(err))
	}
	return list, nil
}

func readCache[T any](path string) ([]*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var list []*T
	if err := gob.NewDecoder(f).Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

func writeCache[T any](path string, list []*T) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(list); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// addListTable keys a decoded list by id and registers it as a table.
func addListTable[T any](c *Catalog, name string, list []*T, id func(*T) int64) error {
	entries := make(map[int64]any, len(list))
	for _, e := range list {
		entries[id(e)] = e
	}
	return c.AddTable(name, entries)
}

// LoadStore builds the content catalog from a content root directory.
// Tables load in parallel; the catalog is frozen before return.
func LoadStore(root string, log *zap.Logger) (*Store, error) {
	var (
		creatures  []*CreatureTemplate
		items      []*ItemTemplate
		spells     []*SpellEffectDef
		telegraphs []*TelegraphDef
		lootTables []*LootTableDef
		splines    []*SplineDef
		bindings   []*SplineBinding
		spawns     []*CreatureSpawn
		harvest    []*HarvestSpawn
		bosses     []*WorldBossDef
	)

	var g errgroup.Group
	g.Go(func() (err error) {
		creatures, err = loadList[CreatureTemplate](filepath.Join(root, "creatures.json"), log)
		return
	})
	g.Go(func() (err error) {
		items, err = loadList[ItemTemplate](filepath.Join(root, "items.json"), log)
		return
	})
	g.Go(func() (err error) {
		spells, err = loadList[SpellEffectDef](filepath.Join(root, "spells.json"), log)
		return
	})
	g.Go(func() (err error) {
		telegraphs, err = loadList[TelegraphDef](filepath.Join(root, "telegraphs.json"), log)
		return
	})
	g.Go(func() (err error) {
		lootTables, err = loadList[LootTableDef](filepath.Join(root, "loot_tables.json"), log)
		return
	})
	g.Go(func() (err error) {
		splines, err = loadList[SplineDef](filepath.Join(root, "splines.json"), log)
		return
	})
	g.Go(func() (err error) {
		bindings, err = loadList[SplineBinding](filepath.Join(root, "spline_bindings.json"), log)
		return
	})
	g.Go(func() (err error) {
		spawns, err = loadList[CreatureSpawn](filepath.Join(root, "creature_spawns.json"), log)
		return
	})
	g.Go(func() (err error) {
		harvest, err = loadList[HarvestSpawn](filepath.Join(root, "harvest_spawns.json"), log)
		return
	})
	g.Go(func() (err error) {
		bosses, err = loadList[WorldBossDef](filepath.Join(root, "world_bosses.json"), log)
		return
	})

	var rules *LootRules
	g.Go(func() error {
		raw, err := os.ReadFile(filepath.Join(root, "loot_rules.json"))
		if err != nil {
			log.Warn("無戰利品規則，使用預設值", zap.Error(err))
			return nil
		}
		rules, err = ParseLootRules(raw)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := NewCatalog()
	if err := addListTable(c, TableCreatures, creatures, func(t *CreatureTemplate) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableItems, items, func(t *ItemTemplate) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableSpells, spells, func(t *SpellEffectDef) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableTelegraphs, telegraphs, func(t *TelegraphDef) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableLootTables, lootTables, func(t *LootTableDef) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableSplines, splines, func(t *SplineDef) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableSplineBindings, bindings, func(t *SplineBinding) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableCreatureSpawns, spawns, func(t *CreatureSpawn) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableHarvestSpawns, harvest, func(t *HarvestSpawn) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := addListTable(c, TableWorldBosses, bosses, func(t *WorldBossDef) int64 { return t.ID }); err != nil {
		return nil, err
	}
	if err := RegisterIndexes(c); err != nil {
		return nil, err
	}
	c.Freeze()

	// Cross-reference validation: dangling references are content errors,
	// logged here; consumers fall back to safe defaults at use time.
	validateReferences(c, rules, log)

	return &Store{Catalog: c, Loot: rules}, nil
}

func validateReferences(c *Catalog, rules *LootRules, log *zap.Logger) {
	c.List(TableCreatureSpawns)(func(id int64, e any) bool {
		sp := e.(*CreatureSpawn)
		if _, ok := c.Get(TableCreatures, sp.CreatureID); !ok {
			log.Warn("生成點引用不存在的生物模板",
				zap.Int64("spawn", id), zap.Int64("creature", sp.CreatureID))
		}
		return true
	})
	c.List(TableSplineBindings)(func(id int64, e any) bool {
		b := e.(*SplineBinding)
		if _, ok := c.Get(TableSplines, b.SplineID); !ok {
			log.Warn("樣條綁定引用不存在的路徑",
				zap.Int64("binding", id), zap.Int64("spline", b.SplineID))
		}
		return true
	})
	if rules != nil {
		for id, race := range rules.Races.byID {
			if _, ok := c.Get(TableLootTables, race.BaseTable); !ok {
				log.Warn("種族規則引用不存在的戰利品表",
					zap.Int64("race", id), zap.Int64("table", race.BaseTable))
			}
		}
	}
}
