package world

import (
	"errors"
	"math/rand"
	"time"

	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/net/packet"
	"go.uber.org/zap"
)

// CombatCalc computes combat numbers. The scripting engine provides the
// production implementation; a plain fallback is used when none is wired.
type CombatCalc interface {
	MeleeDamage(min, max int32, rng *rand.Rand) int32
	XPReward(level, baseXP int32) int32
}

type basicCalc struct{}

func (basicCalc) MeleeDamage(min, max int32, rng *rand.Rand) int32 {
	if max <= min {
		return min
	}
	return min + rng.Int31n(max-min+1)
}

func (basicCalc) XPReward(_, baseXP int32) int32 { return baseXP }

// ReputationReward is one faction reputation grant from a kill.
type ReputationReward struct {
	FactionID int32
	Amount    int32
}

// KillResult is the payload returned when damage kills a creature.
type KillResult struct {
	GUID       GUID
	XP         int32
	Gold       int64
	Items      []LootDrop
	Killer     GUID
	Reputation []ReputationReward
}

// DamageResult is the outcome of one damage_creature call.
type DamageResult struct {
	Killed    bool
	Remaining int32
	Max       int32
	Kill      *KillResult
}

var (
	ErrNoSuchCreature = errors.New("no such creature in zone")
	ErrCreatureDead   = errors.New("creature is dead")
)

// evadeArriveDist: evade completes within this distance of spawn.
const evadeArriveDist = 1.0

// CreatureManager drives creature AI for one zone instance. It lives on the
// zone goroutine; all methods below assume that context.
type CreatureManager struct {
	zone *ZoneInstance
	calc CombatCalc

	// FIFO of creatures awaiting processing. Creatures deferred by the
	// batch cap stay at the front so later arrivals cannot starve them.
	pending []GUID
	queued  map[GUID]bool

	respawnCancels map[GUID]func()
}

func newCreatureManager(z *ZoneInstance, calc CombatCalc) *CreatureManager {
	if calc == nil {
		calc = basicCalc{}
	}
	return &CreatureManager{
		zone:           z,
		calc:           calc,
		queued:         make(map[GUID]bool),
		respawnCancels: make(map[GUID]func()),
	}
}

func (m *CreatureManager) reset() {
	m.pending = nil
	m.queued = make(map[GUID]bool)
	m.respawnCancels = make(map[GUID]func())
}

// populateSpawns instantiates the zone's creature spawn table. Unknown
// template references are logged and skipped.
func (m *CreatureManager) populateSpawns(alloc *GUIDAllocator) error {
	z := m.zone
	spawns := z.store.SpawnsForZone(z.Ref.ZoneID)
	placed := 0
	for _, sp := range spawns {
		tmpl := z.store.Creature(sp.CreatureID)
		if tmpl == nil {
			z.log.Warn("生成點引用不存在的生物模板",
				zap.Int64("spawn_id", sp.ID),
				zap.Int64("creature_id", sp.CreatureID))
			continue
		}
		guid := alloc.Next(TypeCreature)
		z.addEntityLocked(Entity{
			GUID:        guid,
			Type:        TypeCreature,
			Position:    Vec3{sp.X, sp.Y, sp.Z},
			Faction:     tmpl.Faction,
			Level:       tmpl.Level,
			Health:      tmpl.MaxHealth,
			MaxHealth:   tmpl.MaxHealth,
			Name:        tmpl.Name,
			DisplayInfo: tmpl.DisplayInfo,
			CreatureID:  tmpl.ID,
		}, nil)
		placed++
	}
	if placed > 0 {
		z.log.Info("生物生成完成", zap.Int("count", placed))
	}
	return nil
}

// Tick runs one AI pass: queue every creature that needs processing, then
// work the FIFO up to the batch cap. A single creature's failure is logged
// and skipped without taking down the zone.
func (m *CreatureManager) Tick(now time.Time) {
	z := m.zone
	for guid, cs := range z.creatures {
		if cs.NeedsTick() && !m.queued[guid] {
			m.pending = append(m.pending, guid)
			m.queued[guid] = true
		}
	}

	n := len(m.pending)
	if n > z.opts.MaxCreaturesPerTick {
		n = z.opts.MaxCreaturesPerTick
	}
	batch := m.pending[:n]
	m.pending = append([]GUID(nil), m.pending[n:]...)
	for _, guid := range batch {
		delete(m.queued, guid)
		m.safeTick(guid, now)
	}

	m.patrolTick(now)
}

func (m *CreatureManager) safeTick(guid GUID, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			m.zone.log.Error("生物 AI 處理失敗，本回合跳過",
				zap.Uint64("guid", uint64(guid)),
				zap.Any("panic", rec))
		}
	}()
	m.tickCreature(guid, now)
}

func (m *CreatureManager) tickCreature(guid GUID, now time.Time) {
	z := m.zone
	cs, ok := z.creatures[guid]
	if !ok {
		return
	}
	ent, ok := z.entities[guid]
	if !ok {
		delete(z.creatures, guid)
		return
	}
	tmpl := z.store.Creature(ent.CreatureID)
	if tmpl == nil {
		return
	}

	switch cs.State {
	case AIDead:
		return
	case AIEvade:
		m.tickEvade(ent, cs, tmpl)
		return
	}

	m.pruneThreat(cs)

	if cs.State == AICombat {
		if len(cs.Threat) == 0 && now.Sub(cs.CombatStartTime) > z.opts.CombatTimeout {
			cs.State = AIIdle
			return
		}
		if ent.Position.Dist(cs.SpawnPosition) > float64(tmpl.LeashRadius) {
			m.startEvade(cs)
			return
		}
	}

	target := cs.TopThreat()
	if target.IsZero() {
		return
	}
	tgt, ok := z.entities[target]
	if !ok {
		cs.RemoveThreat(target)
		return
	}

	dist := ent.Position.Dist(tgt.Position)
	switch {
	case dist <= float64(tmpl.AttackRange):
		if now.Sub(cs.LastAttackTime) >= time.Duration(tmpl.AttackSpeedMs)*time.Millisecond {
			m.attack(ent, cs, tmpl, tgt, now)
		}
	default:
		m.moveToward(ent, tgt.Position, tmpl.MoveSpeed)
	}
}

// pruneThreat drops threat entries whose targets left the zone or died.
func (m *CreatureManager) pruneThreat(cs *CreatureState) {
	for guid := range cs.Threat {
		tgt, ok := m.zone.entities[guid]
		if !ok || !tgt.Alive() {
			cs.RemoveThreat(guid)
		}
	}
}

func (m *CreatureManager) startEvade(cs *CreatureState) {
	cs.State = AIEvade
	cs.ClearThreat()
}

// tickEvade walks the creature back toward spawn; arrival restores it to
// full health at the spawn position.
func (m *CreatureManager) tickEvade(ent *Entity, cs *CreatureState, tmpl *data.CreatureTemplate) {
	z := m.zone
	if ent.Position.Dist(cs.SpawnPosition) <= evadeArriveDist {
		cs.State = AIIdle
		ent.Health = ent.MaxHealth
		ent.Position = cs.SpawnPosition
		z.grid.Update(ent.GUID, ent.Position)
		z.broadcastLocked(packet.ServerEntityHealth{
			GUID:      uint64(ent.GUID),
			Health:    uint32(ent.Health),
			MaxHealth: uint32(ent.MaxHealth),
		}.Encode())
		return
	}
	m.moveToward(ent, cs.SpawnPosition, tmpl.MoveSpeed)
}

// moveToward advances one tick's worth of movement and broadcasts the
// heading so clients can interpolate.
func (m *CreatureManager) moveToward(ent *Entity, dest Vec3, speed float32) {
	z := m.zone
	step := float64(speed) * z.opts.AITickInterval.Seconds()
	dist := ent.Position.Dist(dest)
	if dist <= step || dist == 0 {
		ent.Position = dest
	} else {
		f := float32(step / dist)
		ent.Position = Vec3{
			X: ent.Position.X + (dest.X-ent.Position.X)*f,
			Y: ent.Position.Y + (dest.Y-ent.Position.Y)*f,
			Z: ent.Position.Z + (dest.Z-ent.Position.Z)*f,
		}
	}
	z.grid.Update(ent.GUID, ent.Position)
	z.broadcastLocked(packet.ServerEntityMove{
		GUID:  uint64(ent.GUID),
		X:     dest.X,
		Y:     dest.Y,
		Z:     dest.Z,
		Speed: speed,
	}.Encode())
}

func (m *CreatureManager) attack(ent *Entity, cs *CreatureState, tmpl *data.CreatureTemplate, tgt *Entity, now time.Time) {
	z := m.zone
	cs.LastAttackTime = now
	if tgt.Type != TypePlayer {
		return
	}
	dmg := m.calc.MeleeDamage(tmpl.DamageMin, tmpl.DamageMax, z.rng)
	tgt.Health -= dmg
	tgt.ClampHealth()

	z.broadcastLocked(packet.ServerSpellEffect{
		CasterGUID: uint64(ent.GUID),
		TargetGUID: uint64(tgt.GUID),
		Amount:     dmg,
	}.Encode())
	z.broadcastLocked(packet.ServerEntityHealth{
		GUID:      uint64(tgt.GUID),
		Health:    uint32(tgt.Health),
		MaxHealth: uint32(tgt.MaxHealth),
	}.Encode())

	if !tgt.Alive() {
		cs.RemoveThreat(tgt.GUID)
		z.broadcastPlayerDeath(tgt.GUID, ent.GUID, packet.DeathCombat)
	}
}

// damageCreatureLocked applies player damage to a creature and drives the
// death pipeline when health hits zero.
// Zone goroutine only.
func (m *CreatureManager) damageCreatureLocked(creature, attacker GUID, amount int32, now time.Time) (DamageResult, error) {
	z := m.zone
	ent, ok := z.entities[creature]
	if !ok || ent.Type != TypeCreature {
		return DamageResult{}, ErrNoSuchCreature
	}
	cs, ok := z.creatures[creature]
	if !ok {
		return DamageResult{}, ErrNoSuchCreature
	}
	if cs.State == AIDead {
		return DamageResult{}, ErrCreatureDead
	}

	ent.Health -= amount
	ent.ClampHealth()
	cs.AddThreat(attacker, int64(amount))
	cs.EnterCombat(now)

	z.broadcastLocked(packet.ServerEntityHealth{
		GUID:      uint64(creature),
		Health:    uint32(ent.Health),
		MaxHealth: uint32(ent.MaxHealth),
	}.Encode())

	if ent.Alive() {
		return DamageResult{Remaining: ent.Health, Max: ent.MaxHealth}, nil
	}

	kill := m.killLocked(ent, cs, attacker)
	return DamageResult{Killed: true, Max: ent.MaxHealth, Kill: kill}, nil
}

// killLocked transitions a creature to dead, rolls its loot, and arms the
// respawn timer (respawn_time_ms of zero means the creature stays down).
// Zone goroutine only.
func (m *CreatureManager) killLocked(ent *Entity, cs *CreatureState, killer GUID) *KillResult {
	z := m.zone
	cs.State = AIDead
	cs.ClearThreat()

	tmpl := z.store.Creature(ent.CreatureID)
	kill := &KillResult{GUID: ent.GUID, Killer: killer}
	if tmpl != nil {
		kill.XP = m.calc.XPReward(tmpl.Level, tmpl.XPReward)
		res := z.store.Loot.Resolve(ent.CreatureID, tmpl)
		kill.Gold, kill.Items = RollLoot(z.store, res, z.rng)
		if tmpl.Faction != 0 {
			kill.Reputation = []ReputationReward{{FactionID: tmpl.Faction, Amount: tmpl.Level}}
		}
	}

	z.broadcastLocked(packet.ServerEntityDespawn{GUID: uint64(ent.GUID)}.Encode())

	if tmpl != nil && tmpl.RespawnTimeMs > 0 {
		guid := ent.GUID
		cancel := z.schedule(time.Duration(tmpl.RespawnTimeMs)*time.Millisecond, func() {
			delete(m.respawnCancels, guid)
			m.respawn(guid)
		})
		m.respawnCancels[guid] = cancel
	}

	z.log.Info("生物死亡",
		zap.Uint64("guid", uint64(ent.GUID)),
		zap.Uint64("killer", uint64(killer)),
		zap.Int32("xp", kill.XP),
		zap.Int64("gold", kill.Gold))
	return kill
}

// respawn restores a dead creature at its spawn position with full health.
// Zone goroutine only.
func (m *CreatureManager) respawn(guid GUID) {
	z := m.zone
	ent, ok := z.entities[guid]
	if !ok {
		return
	}
	cs, ok := z.creatures[guid]
	if !ok || cs.State != AIDead {
		return
	}
	cs.State = AIIdle
	cs.ClearThreat()
	cs.SplineNode = 0
	ent.Health = ent.MaxHealth
	ent.Position = cs.SpawnPosition
	z.grid.Update(guid, ent.Position)

	z.broadcastLocked(packet.ServerEntitySpawn{
		GUID:        uint64(ent.GUID),
		Kind:        packet.SpawnKindCreature,
		Name:        ent.Name,
		X:           ent.Position.X,
		Y:           ent.Position.Y,
		Z:           ent.Position.Z,
		Level:       uint32(ent.Level),
		Health:      uint32(ent.Health),
		MaxHealth:   uint32(ent.MaxHealth),
		DisplayInfo: uint32(ent.DisplayInfo),
		Faction:     uint32(ent.Faction),
	}.Encode())
}

// patrolTick advances idle creatures along their bound spline paths.
func (m *CreatureManager) patrolTick(_ time.Time) {
	z := m.zone
	for guid, cs := range z.creatures {
		if cs.State != AIIdle || cs.SplineID == 0 {
			continue
		}
		ent, ok := z.entities[guid]
		if !ok {
			continue
		}
		sp := z.store.Spline(cs.SplineID)
		if sp == nil || len(sp.Nodes) == 0 {
			continue
		}
		tmpl := z.store.Creature(ent.CreatureID)
		if tmpl == nil || tmpl.MoveSpeed <= 0 {
			continue
		}
		node := sp.Nodes[cs.SplineNode%len(sp.Nodes)]
		dest := Vec3{node.X, node.Y, node.Z}
		if ent.Position.Dist(dest) <= evadeArriveDist {
			next := cs.SplineNode + 1
			if next >= len(sp.Nodes) {
				if !sp.Cycle {
					continue
				}
				next = 0
			}
			cs.SplineNode = next
			continue
		}
		m.moveToward(ent, dest, tmpl.MoveSpeed)
	}
}
