package world

import (
	"math/rand"

	"github.com/nexusgo/server/internal/data"
)

// LootDrop is one rolled item stack.
type LootDrop struct {
	ItemID int64
	Count  int32
}

// chanceDenominator: drop chances are expressed out of 1,000,000.
const chanceDenominator = 1_000_000

// dropBonusScale converts a drop_bonus point into chance units
// (1 point = +1 percentage point of drop chance).
const dropBonusScale = 10_000

// RollLoot rolls gold and item drops for a resolved loot result. The rng
// is owned by the calling zone goroutine.
func RollLoot(store *data.Store, res data.LootResolution, rng *rand.Rand) (gold int64, drops []LootDrop) {
	gold, drops = rollTable(store, res.LootTableID, res, rng)
	if res.ExtraTable != 0 {
		extraGold, extraDrops := rollTable(store, res.ExtraTable, res, rng)
		gold += extraGold
		drops = append(drops, extraDrops...)
	}
	return gold, drops
}

func rollTable(store *data.Store, tableID int64, res data.LootResolution, rng *rand.Rand) (int64, []LootDrop) {
	table := store.LootTable(tableID)
	if table == nil {
		return 0, nil
	}

	var gold int64
	if table.GoldMax > 0 {
		span := table.GoldMax - table.GoldMin
		base := table.GoldMin
		if span > 0 {
			base += rng.Int31n(span + 1)
		}
		gold = int64(float64(base) * res.GoldMultiplier)
	}

	var drops []LootDrop
	for _, item := range table.Items {
		chance := int64(item.Chance) + int64(res.DropBonus)*dropBonusScale
		if chance <= 0 {
			continue
		}
		if int64(rng.Intn(chanceDenominator)) >= chance {
			continue
		}
		count := item.MinCount
		if item.MaxCount > item.MinCount {
			count += rng.Int31n(item.MaxCount - item.MinCount + 1)
		}
		if count <= 0 {
			count = 1
		}
		drops = append(drops, LootDrop{ItemID: item.ItemID, Count: count})
	}
	return gold, drops
}
