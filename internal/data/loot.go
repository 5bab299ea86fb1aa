package data

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LootResolution is the final loot parameter set for one creature.
type LootResolution struct {
	LootTableID    int64
	GoldMultiplier float64
	DropBonus      int32
	ExtraTable     int64 // 0 = none
}

// DefaultLootResolution is the hard fallback when a creature has no
// template or no rules exist.
var DefaultLootResolution = LootResolution{LootTableID: 1, GoldMultiplier: 1.0, DropBonus: 0}

// LootOverride replaces the rule-derived result for one creature.
type LootOverride struct {
	LootTableID    int64    `json:"loot_table_id"`
	GoldMultiplier *float64 `json:"gold_multiplier"` // default 1.0
	DropBonus      *int32   `json:"drop_bonus"`      // default 0
}

// RaceMapping maps a race to its base loot table.
type RaceMapping struct {
	BaseTable int64 `json:"base_table"`
}

// TierModifier adjusts the base table and reward rates per creature tier.
type TierModifier struct {
	TableOffset    int64    `json:"table_offset"`
	GoldMultiplier *float64 `json:"gold_multiplier"` // default 1.0
	DropBonus      int32    `json:"drop_bonus"`
	ExtraTable     int64    `json:"extra_table"` // 0 = none
}

// DifficultyModifier adjusts reward rates per creature difficulty.
type DifficultyModifier struct {
	GoldMultiplier *float64 `json:"gold_multiplier"` // default 1.0
	DropBonus      int32    `json:"drop_bonus"`
}

// LootRules is the compiled loot rule tree: race → base table, tier and
// difficulty modifiers, per-creature overrides.
type LootRules struct {
	Races        ruleMap[RaceMapping]
	Tiers        ruleMap[TierModifier]
	Difficulties ruleMap[DifficultyModifier]
	Overrides    map[int64]*LootOverride
}

// ruleMap is an id-keyed rule group with an optional default entry. The
// source content tolerates integer keys, numeric strings, and the named
// "default" tag; everything is normalized at load time.
type ruleMap[T any] struct {
	byID     map[int64]*T
	fallback *T
}

// get resolves an id, falling back to the group's default entry.
func (m ruleMap[T]) get(id int64) *T {
	if e, ok := m.byID[id]; ok {
		return e
	}
	return m.fallback
}

// ruleKeyWhitelist is the closed set of named tags allowed as rule-map
// keys. JSON keys create no identifiers outside this set.
var ruleKeyWhitelist = map[string]bool{
	"default": true,
}

// parseRuleMap normalizes a raw JSON object into a ruleMap. Keys must be a
// non-negative integer (numeric or numeric string), a whitelisted named
// tag, or a "_"-prefixed metadata key (ignored).
func parseRuleMap[T any](raw map[string]json.RawMessage, what string) (ruleMap[T], error) {
	m := ruleMap[T]{byID: make(map[int64]*T, len(raw))}
	for key, val := range raw {
		if strings.HasPrefix(key, "_") {
			continue // metadata entry
		}
		if id, err := strconv.ParseInt(key, 10, 64); err == nil {
			if id < 0 {
				return m, fmt.Errorf("%s: negative key %q", what, key)
			}
			e := new(T)
			if err := json.Unmarshal(val, e); err != nil {
				return m, fmt.Errorf("%s[%s]: %w", what, key, err)
			}
			m.byID[id] = e
			continue
		}
		if !ruleKeyWhitelist[key] {
			return m, fmt.Errorf("%s: key %q is not numeric and not whitelisted", what, key)
		}
		e := new(T)
		if err := json.Unmarshal(val, e); err != nil {
			return m, fmt.Errorf("%s[%s]: %w", what, key, err)
		}
		m.fallback = e
	}
	return m, nil
}

// lootRulesFile is the on-disk shape of the loot rule tree.
type lootRulesFile struct {
	RaceMappings        map[string]json.RawMessage `json:"race_mappings"`
	TierModifiers       map[string]json.RawMessage `json:"tier_modifiers"`
	DifficultyModifiers map[string]json.RawMessage `json:"difficulty_modifiers"`
	Overrides           map[string]json.RawMessage `json:"overrides"`
}

// ParseLootRules normalizes the raw loot rule JSON into a LootRules tree.
func ParseLootRules(raw []byte) (*LootRules, error) {
	var f lootRulesFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse loot rules: %w", err)
	}

	rules := &LootRules{Overrides: make(map[int64]*LootOverride)}
	var err error
	if rules.Races, err = parseRuleMap[RaceMapping](f.RaceMappings, "race_mappings"); err != nil {
		return nil, err
	}
	if rules.Tiers, err = parseRuleMap[TierModifier](f.TierModifiers, "tier_modifiers"); err != nil {
		return nil, err
	}
	if rules.Difficulties, err = parseRuleMap[DifficultyModifier](f.DifficultyModifiers, "difficulty_modifiers"); err != nil {
		return nil, err
	}

	for key, val := range f.Overrides {
		if strings.HasPrefix(key, "_") {
			continue
		}
		id, perr := strconv.ParseInt(key, 10, 64)
		if perr != nil || id < 0 {
			return nil, fmt.Errorf("overrides: invalid creature id %q", key)
		}
		o := new(LootOverride)
		if err := json.Unmarshal(val, o); err != nil {
			return nil, fmt.Errorf("overrides[%s]: %w", key, err)
		}
		rules.Overrides[id] = o
	}
	return rules, nil
}

func orFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func orInt32(v *int32, def int32) int32 {
	if v == nil {
		return def
	}
	return *v
}

// Resolve computes the loot parameters for one creature. It is a pure
// function of (creatureID, template, rules): calling it twice yields
// identical results.
//
// Resolution order:
//  1. Per-creature override, if present.
//  2. Race base table + tier and difficulty modifiers from the template.
//  3. Hard default {1, 1.0, 0} when the template or the rules are absent.
func (r *LootRules) Resolve(creatureID int64, tmpl *CreatureTemplate) LootResolution {
	if r == nil {
		return DefaultLootResolution
	}
	if o, ok := r.Overrides[creatureID]; ok {
		return LootResolution{
			LootTableID:    o.LootTableID,
			GoldMultiplier: orFloat(o.GoldMultiplier, 1.0),
			DropBonus:      orInt32(o.DropBonus, 0),
		}
	}
	if tmpl == nil {
		return DefaultLootResolution
	}

	baseTable := int64(1)
	if race := r.Races.get(tmpl.RaceID); race != nil {
		baseTable = race.BaseTable
	}

	tableOffset := int64(0)
	tierGold := 1.0
	tierDrop := int32(0)
	extraTable := int64(0)
	if tier := r.Tiers.get(tmpl.TierID); tier != nil {
		tableOffset = tier.TableOffset
		tierGold = orFloat(tier.GoldMultiplier, 1.0)
		tierDrop = tier.DropBonus
		extraTable = tier.ExtraTable
	}

	diffGold := 1.0
	diffDrop := int32(0)
	if diff := r.Difficulties.get(tmpl.DifficultyID); diff != nil {
		diffGold = orFloat(diff.GoldMultiplier, 1.0)
		diffDrop = diff.DropBonus
	}

	return LootResolution{
		LootTableID:    baseTable + tableOffset,
		GoldMultiplier: tierGold * diffGold,
		DropBonus:      tierDrop + diffDrop,
		ExtraTable:     extraTable,
	}
}
