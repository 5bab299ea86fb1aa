package data

import "strconv"

// Table names.
const (
	TableCreatures      = "creatures"
	TableItems          = "items"
	TableSpells         = "spells"
	TableTelegraphs     = "telegraphs"
	TableLootTables     = "loot_tables"
	TableSplines        = "splines"
	TableSplineBindings = "spline_bindings"
	TableCreatureSpawns = "creature_spawns"
	TableHarvestSpawns  = "harvest_spawns"
	TableWorldBosses    = "world_bosses"
)

// Index names.
const (
	IndexCreaturesByRace      = "creatures_by_race"
	IndexSpawnsByZone         = "creature_spawns_by_zone"
	IndexHarvestByZone        = "harvest_spawns_by_zone"
	IndexBindingsByCreature   = "spline_bindings_by_creature"
	IndexWorldBossesByZone    = "world_bosses_by_zone"
	IndexItemsByDisplaySource = "items_by_display_source"
)

// CreatureTemplate is the immutable template for one creature type.
type CreatureTemplate struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Level         int32   `json:"level"`
	MaxHealth     int32   `json:"max_health"`
	Faction       int32   `json:"faction"`
	DisplayInfo   int32   `json:"display_info"`
	DamageMin     int32   `json:"damage_min"`
	DamageMax     int32   `json:"damage_max"`
	AttackRange   float32 `json:"attack_range"`
	AggroRadius   float32 `json:"aggro_radius"`
	LeashRadius   float32 `json:"leash_radius"`
	MoveSpeed     float32 `json:"move_speed"`
	AttackSpeedMs int32   `json:"attack_speed_ms"`
	RespawnTimeMs int32   `json:"respawn_time_ms"` // 0 = no respawn
	XPReward      int32   `json:"xp_reward"`
	RaceID        int64   `json:"race_id"`
	TierID        int64   `json:"tier_id"`
	DifficultyID  int64   `json:"difficulty_id"`
}

// ItemTemplate describes one item type, including its visual resolution.
type ItemTemplate struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Quality         int32  `json:"quality"`
	DisplaySourceID int64  `json:"display_source_id"`
	DisplayID       int32  `json:"display_id"`
	VisualSlot      int32  `json:"visual_slot"` // -1 = no visual
	ColourSet       int32  `json:"colour_set"`
	StackMax        int32  `json:"stack_max"`
	Value           int32  `json:"value"`
}

// SpellEffectDef describes one spell's visual/effect reference.
type SpellEffectDef struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	VisualID   int32  `json:"visual_id"`
	CastTimeMs int32  `json:"cast_time_ms"`
	School     string `json:"school"`
}

// TelegraphDef describes one telegraph damage shape.
type TelegraphDef struct {
	ID     int64     `json:"id"`
	Shape  string    `json:"shape"` // circle, cone, line, donut, cross, room_wide, wave
	Params []float32 `json:"params"`
}

// LootItem is one possible drop within a loot table.
type LootItem struct {
	ItemID   int64 `json:"item_id"`
	MinCount int32 `json:"min"`
	MaxCount int32 `json:"max"`
	Chance   int32 `json:"chance"` // out of 1,000,000
}

// LootTableDef holds the drops and gold range for one loot table id.
type LootTableDef struct {
	ID      int64      `json:"id"`
	Items   []LootItem `json:"items"`
	GoldMin int32      `json:"gold_min"`
	GoldMax int32      `json:"gold_max"`
}

// SplineNode is one waypoint of a spline path.
type SplineNode struct {
	X       float32 `json:"x"`
	Y       float32 `json:"y"`
	Z       float32 `json:"z"`
	DelayMs int32   `json:"delay_ms"`
}

// SplineDef is a content-defined waypoint sequence.
type SplineDef struct {
	ID    int64        `json:"id"`
	Nodes []SplineNode `json:"nodes"`
	Cycle bool         `json:"cycle"`
}

// SplineBinding attaches a creature spawn to a spline for patrol motion.
type SplineBinding struct {
	ID         int64 `json:"id"`
	CreatureID int64 `json:"creature_id"`
	SplineID   int64 `json:"spline_id"`
}

// CreatureSpawn places one creature into a zone at startup.
type CreatureSpawn struct {
	ID         int64   `json:"id"`
	ZoneID     int32   `json:"zone_id"`
	CreatureID int64   `json:"creature_id"`
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Z          float32 `json:"z"`
}

// HarvestSpawn places one harvest node (inert trigger entity) into a zone.
type HarvestSpawn struct {
	ID       int64   `json:"id"`
	ZoneID   int32   `json:"zone_id"`
	NodeType int32   `json:"node_type"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Z        float32 `json:"z"`
}

// WorldBossDef links a zone to a compiled encounter definition.
type WorldBossDef struct {
	ID         int64   `json:"id"`
	ZoneID     int32   `json:"zone_id"`
	CreatureID int64   `json:"creature_id"`
	Encounter  string  `json:"encounter"` // compiled encounter file name
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Z          float32 `json:"z"`
}

// RegisterIndexes builds the standard secondary indexes over a populated
// catalog. Missing (zero) key values are excluded per index contract.
func RegisterIndexes(c *Catalog) error {
	if err := c.AddIndex(IndexCreaturesByRace, TableCreatures, func(e any) (string, bool) {
		t := e.(*CreatureTemplate)
		if t.RaceID == 0 {
			return "", false
		}
		return strconv.FormatInt(t.RaceID, 10), true
	}); err != nil {
		return err
	}
	if err := c.AddIndex(IndexSpawnsByZone, TableCreatureSpawns, func(e any) (string, bool) {
		return strconv.FormatInt(int64(e.(*CreatureSpawn).ZoneID), 10), true
	}); err != nil {
		return err
	}
	if err := c.AddIndex(IndexHarvestByZone, TableHarvestSpawns, func(e any) (string, bool) {
		return strconv.FormatInt(int64(e.(*HarvestSpawn).ZoneID), 10), true
	}); err != nil {
		return err
	}
	if err := c.AddIndex(IndexBindingsByCreature, TableSplineBindings, func(e any) (string, bool) {
		b := e.(*SplineBinding)
		if b.CreatureID == 0 {
			return "", false
		}
		return strconv.FormatInt(b.CreatureID, 10), true
	}); err != nil {
		return err
	}
	if err := c.AddIndex(IndexWorldBossesByZone, TableWorldBosses, func(e any) (string, bool) {
		return strconv.FormatInt(int64(e.(*WorldBossDef).ZoneID), 10), true
	}); err != nil {
		return err
	}
	return c.AddIndex(IndexItemsByDisplaySource, TableItems, func(e any) (string, bool) {
		t := e.(*ItemTemplate)
		if t.DisplaySourceID == 0 {
			return "", false
		}
		return strconv.FormatInt(t.DisplaySourceID, 10), true
	})
}

// Store is the typed facade over the generic catalog plus the loot rules.
type Store struct {
	Catalog *Catalog
	Loot    *LootRules
}

// Creature returns a creature template by id, or nil.
func (s *Store) Creature(id int64) *CreatureTemplate {
	e, ok := s.Catalog.Get(TableCreatures, id)
	if !ok {
		return nil
	}
	return e.(*CreatureTemplate)
}

// Item returns an item template by id, or nil.
func (s *Store) Item(id int64) *ItemTemplate {
	e, ok := s.Catalog.Get(TableItems, id)
	if !ok {
		return nil
	}
	return e.(*ItemTemplate)
}

// LootTable returns a loot table definition by id, or nil.
func (s *Store) LootTable(id int64) *LootTableDef {
	e, ok := s.Catalog.Get(TableLootTables, id)
	if !ok {
		return nil
	}
	return e.(*LootTableDef)
}

// Spline returns a spline path by id, or nil.
func (s *Store) Spline(id int64) *SplineDef {
	e, ok := s.Catalog.Get(TableSplines, id)
	if !ok {
		return nil
	}
	return e.(*SplineDef)
}

// SplineFor returns the spline bound to a creature template, or nil.
func (s *Store) SplineFor(creatureID int64) *SplineDef {
	ids := s.Catalog.IndexLookup(IndexBindingsByCreature, strconv.FormatInt(creatureID, 10))
	if len(ids) == 0 {
		return nil
	}
	e, ok := s.Catalog.Get(TableSplineBindings, ids[0])
	if !ok {
		return nil
	}
	return s.Spline(e.(*SplineBinding).SplineID)
}

// SpawnsForZone returns the creature spawns for a zone.
func (s *Store) SpawnsForZone(zoneID int32) []*CreatureSpawn {
	ids := s.Catalog.IndexLookup(IndexSpawnsByZone, strconv.FormatInt(int64(zoneID), 10))
	entries := s.Catalog.FetchByIDs(TableCreatureSpawns, ids)
	out := make([]*CreatureSpawn, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.(*CreatureSpawn))
	}
	return out
}

// BossesForZone returns the world boss bindings for a zone.
func (s *Store) BossesForZone(zoneID int32) []*WorldBossDef {
	ids := s.Catalog.IndexLookup(IndexWorldBossesByZone, strconv.FormatInt(int64(zoneID), 10))
	entries := s.Catalog.FetchByIDs(TableWorldBosses, ids)
	out := make([]*WorldBossDef, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.(*WorldBossDef))
	}
	return out
}

// HarvestForZone returns the harvest node spawns for a zone.
func (s *Store) HarvestForZone(zoneID int32) []*HarvestSpawn {
	ids := s.Catalog.IndexLookup(IndexHarvestByZone, strconv.FormatInt(int64(zoneID), 10))
	entries := s.Catalog.FetchByIDs(TableHarvestSpawns, ids)
	out := make([]*HarvestSpawn, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.(*HarvestSpawn))
	}
	return out
}
