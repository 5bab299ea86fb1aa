package encounter

import (
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
)

var (
	ErrUnknownEncounter = errors.New("unknown encounter definition")
	ErrAlreadyEngaged   = errors.New("encounter already running in zone")
)

const (
	hostTickInterval = 500 * time.Millisecond

	// Players farther from the boss than this are out of the fight.
	encounterRange = 120.0
)

// DamageScaler applies distance falloff to telegraph damage. The scripting
// engine provides the production implementation; nil means no falloff.
type DamageScaler interface {
	TelegraphDamage(base int32, distFrac float64) int32
}

// Host binds live encounter engines to zone instances. Each run gets its
// own tick goroutine; engine access is serialized with a per-run mutex so
// interrupts arriving from session goroutines never race a tick.
type Host struct {
	defs   map[string]*Definition
	scaler DamageScaler
	log    *zap.Logger

	mu   sync.Mutex
	runs map[world.ZoneRef]*run
}

type run struct {
	mu     sync.Mutex
	engine *Engine
	sink   *zoneSink
	stop   chan struct{}
}

func NewHost(defs map[string]*Definition, scaler DamageScaler, log *zap.Logger) *Host {
	return &Host{
		defs:   defs,
		scaler: scaler,
		log:    log,
		runs:   make(map[world.ZoneRef]*run),
	}
}

// Engage starts the named encounter in a zone. The boss entity must
// already be placed; the run ends when the boss dies or the host releases
// the zone.
func (h *Host) Engage(zone *world.ZoneInstance, name string, bossGUID world.GUID, seed int64) error {
	def, ok := h.defs[name]
	if !ok {
		return ErrUnknownEncounter
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.runs[zone.Ref]; live {
		return ErrAlreadyEngaged
	}

	sink := &zoneSink{
		zone:     zone,
		bossGUID: bossGUID,
		scaler:   h.scaler,
		log:      h.log.With(zap.String("boss", def.Boss.Name)),
	}
	r := &run{
		engine: NewEngine(def, sink, seed, h.log),
		sink:   sink,
		stop:   make(chan struct{}),
	}
	r.engine.Engage(time.Now())
	h.runs[zone.Ref] = r

	go h.tickLoop(zone, r)
	return nil
}

// Interrupt feeds one interrupt-armor hit into the zone's running
// encounter. Reports whether a stack was consumed.
func (h *Host) Interrupt(ref world.ZoneRef, now time.Time) bool {
	r := h.run(ref)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Interrupt(now)
}

// Damage applies player damage to the boss and returns remaining health.
// Damage landed during a Moment of Opportunity is amplified. The killing
// blow routes the boss entity through the zone kill pipeline and returns
// its kill result.
func (h *Host) Damage(ref world.ZoneRef, attacker world.GUID, amount int32, now time.Time) (int32, *world.KillResult, bool) {
	r := h.run(ref)
	if r == nil {
		return 0, nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Before(r.engine.mooUntil) {
		amount = amount * mooDamageBonusPct / 100
	}
	remaining := r.engine.ApplyDamage(amount, now)
	if remaining == 0 && r.engine.State() == Defeated {
		return 0, r.sink.killBoss(attacker), true
	}
	return remaining, nil, true
}

// mooDamageBonusPct amplifies damage landed inside a Moment of Opportunity.
const mooDamageBonusPct = 150

// State reports the running encounter's state, if any.
func (h *Host) State(ref world.ZoneRef) (State, bool) {
	r := h.run(ref)
	if r == nil {
		return NotEngaged, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.State(), true
}

// Boss reports the entity GUID of the boss engaged in a zone, if any.
func (h *Host) Boss(ref world.ZoneRef) (world.GUID, bool) {
	r := h.run(ref)
	if r == nil {
		return 0, false
	}
	return r.sink.bossGUID, true
}

// Release ends the zone's run and stops its tick goroutine.
func (h *Host) Release(ref world.ZoneRef) {
	h.mu.Lock()
	r, ok := h.runs[ref]
	if ok {
		delete(h.runs, ref)
	}
	h.mu.Unlock()
	if ok {
		close(r.stop)
	}
}

// Shutdown releases every running encounter.
func (h *Host) Shutdown() {
	h.mu.Lock()
	runs := h.runs
	h.runs = make(map[world.ZoneRef]*run)
	h.mu.Unlock()
	for _, r := range runs {
		close(r.stop)
	}
}

func (h *Host) run(ref world.ZoneRef) *run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs[ref]
}

func (h *Host) tickLoop(zone *world.ZoneInstance, r *run) {
	ticker := time.NewTicker(hostTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			boss, ok := zone.GetEntity(r.sink.bossGUID)
			if !ok {
				// Boss entity despawned out from under the run.
				h.Release(zone.Ref)
				return
			}
			cands := encounterCandidates(zone, boss.Position)

			r.mu.Lock()
			r.sink.bossPos = boss.Position
			switch {
			case r.engine.State() == NotEngaged:
				// A wiped run re-pulls when players return in range.
				if len(cands) > 0 {
					r.engine.Engage(now)
				}
			case len(cands) == 0:
				r.engine.Wipe(now)
			default:
				r.engine.Tick(now, boss.Position, cands)
			}
			state := r.engine.State()
			r.mu.Unlock()

			if state == Defeated {
				h.Release(zone.Ref)
				return
			}
		}
	}
}

// encounterCandidates snapshots the living players near the boss.
func encounterCandidates(zone *world.ZoneInstance, center world.Vec3) []Candidate {
	var out []Candidate
	for _, e := range zone.EntitiesInRange(center, encounterRange) {
		if e.Type != world.TypePlayer || !e.Alive() {
			continue
		}
		out = append(out, Candidate{
			GUID:      e.GUID,
			Pos:       e.Position,
			Health:    e.Health,
			MaxHealth: e.MaxHealth,
		})
	}
	return out
}

// ───────────────────────── zone-side sink ─────────────────────────

// Synthetic buff IDs for mechanics that have no authored aura.
const (
	buffIDMoO        uint32 = 90001
	buffIDStun       uint32 = 90002
	buffIDKnockdown  uint32 = 90003
	buffIDVulnerable uint32 = 90004
)

// zoneSink translates engine emissions into zone broadcasts and entity
// damage. Callbacks run under the owning run's mutex; bossPos is refreshed
// by the tick loop before every Tick.
type zoneSink struct {
	zone     *world.ZoneInstance
	bossGUID world.GUID
	bossPos  world.Vec3
	scaler   DamageScaler
	log      *zap.Logger
}

func (s *zoneSink) OnPhaseEnter(phase string, effects []Effect) {
	s.apply(effects, nil)
}

func (s *zoneSink) OnAbilityCast(a *Ability, targets []Candidate) {
	s.apply(a.Effects, targets)
}

func (s *zoneSink) OnInterrupted(a *Ability, effects []Effect) {
	// MoO and phase skips are resolved by the engine; the remaining
	// on_interrupt effects land here.
	s.apply(effects, nil)
}

func (s *zoneSink) OnMomentOfOpportunity(until time.Time) {
	dur := time.Until(until)
	if dur < 0 {
		dur = 0
	}
	s.zone.Broadcast(packet.ServerBuffApply{
		TargetGUID: uint64(s.bossGUID),
		CasterGUID: uint64(s.bossGUID),
		BuffID:     buffIDMoO,
		Duration:   uint32(dur / time.Millisecond),
		IsDebuff:   1,
	}.Encode())
}

func (s *zoneSink) OnDefeated(effects []Effect) {
	s.apply(effects, nil)
	s.zone.Broadcast(packet.ServerChat{
		Channel:    packet.ChatSystem,
		SenderGUID: uint64(s.bossGUID),
		Message:    "encounter complete",
	}.Encode())
}

// killBoss routes engine defeat into the zone kill pipeline so the boss
// entity dies, despawns, and drops its template loot exactly once.
func (s *zoneSink) killBoss(killer world.GUID) *world.KillResult {
	ent, ok := s.zone.GetEntity(s.bossGUID)
	if !ok || !ent.Alive() {
		return nil
	}
	res, err := s.zone.DamageCreature(s.bossGUID, killer, ent.Health)
	if err != nil {
		s.log.Warn("首領死亡處理失敗", zap.Error(err))
		return nil
	}
	return res.Kill
}

func (s *zoneSink) OnWiped(effects []Effect) {
	s.apply(effects, nil)
}

func (s *zoneSink) apply(effects []Effect, targets []Candidate) {
	// A telegraph preceding a damage effect in the same emission attenuates
	// that damage by distance from the telegraph anchor.
	var tele *TelegraphEffect
	for i := range effects {
		eff := &effects[i]
		switch eff.Kind {
		case EffectTelegraph:
			s.applyTelegraph(eff.Telegraph, targets)
			tele = eff.Telegraph
		case EffectDamage:
			if eff.Damage != nil {
				for _, t := range targets {
					s.damagePlayer(t.GUID, s.falloffDamage(eff.Damage.Amount, tele, t.Pos, targets))
				}
			}
		case EffectDebuff, EffectBuff:
			s.applyAura(eff.Aura, targets)
		case EffectStun, EffectKnockdown, EffectVulnerable:
			s.applyControl(eff, targets)
		case EffectEmote:
			s.zone.Broadcast(packet.ServerChat{
				Channel:    packet.ChatEmote,
				SenderGUID: uint64(s.bossGUID),
				Message:    eff.Emote,
			}.Encode())
		case EffectCoordination:
			s.applyCoordination(eff.Coordination, targets)
		case EffectMoO, EffectPhaseSkip:
			// Engine-owned; nothing to emit here.
		default:
			s.log.Debug("未處理的遭遇戰效果", zap.String("kind", eff.Kind))
		}
	}
}

// telegraphAnchor picks the placement of a telegraph. Directional shapes
// emanate from the boss toward the primary target; everything else lands
// on the primary target when one exists.
func (s *zoneSink) telegraphAnchor(t *TelegraphEffect, targets []Candidate) (world.Vec3, float32) {
	anchor := s.bossPos
	var rotation float32
	if len(targets) > 0 {
		anchor = targets[0].Pos
		rotation = float32(math.Atan2(
			float64(anchor.Y-s.bossPos.Y),
			float64(anchor.X-s.bossPos.X)))
	}
	if t.Shape == ShapeCone || t.Shape == ShapeLine || t.Shape == ShapeWave {
		anchor = s.bossPos
	}
	return anchor, rotation
}

// falloffDamage attenuates telegraph damage by the target's distance from
// the telegraph anchor, using the scripted falloff curve. Damage with no
// preceding telegraph, or with no radius to measure against, lands in full.
func (s *zoneSink) falloffDamage(base int32, tele *TelegraphEffect, pos world.Vec3, targets []Candidate) int32 {
	if s.scaler == nil || tele == nil || len(tele.Params) == 0 || tele.Params[0] <= 0 {
		return base
	}
	anchor, _ := s.telegraphAnchor(tele, targets)
	frac := pos.Dist(anchor) / float64(tele.Params[0])
	return s.scaler.TelegraphDamage(base, frac)
}

func (s *zoneSink) applyTelegraph(t *TelegraphEffect, targets []Candidate) {
	if t == nil {
		return
	}
	anchor, rotation := s.telegraphAnchor(t, targets)
	s.zone.Broadcast(packet.ServerTelegraph{
		CasterGUID: uint64(s.bossGUID),
		Shape:      wireShape(t.Shape),
		X:          anchor.X,
		Y:          anchor.Y,
		Z:          anchor.Z,
		Rotation:   rotation,
		DurationMs: uint32(t.DurationMs),
		Color:      t.Color,
		Params:     t.Params,
	}.Encode())
}

func (s *zoneSink) applyAura(a *AuraEffect, targets []Candidate) {
	if a == nil {
		return
	}
	var debuff byte
	if a.Debuff {
		debuff = 1
	}
	for _, t := range targets {
		s.zone.Broadcast(packet.ServerBuffApply{
			TargetGUID: uint64(t.GUID),
			CasterGUID: uint64(s.bossGUID),
			BuffID:     a.BuffID,
			SpellID:    a.SpellID,
			Amount:     a.Amount,
			Duration:   uint32(a.DurationMs),
			IsDebuff:   debuff,
		}.Encode())
	}
}

func (s *zoneSink) applyControl(eff *Effect, targets []Candidate) {
	var id uint32
	switch eff.Kind {
	case EffectStun:
		id = buffIDStun
	case EffectKnockdown:
		id = buffIDKnockdown
	case EffectVulnerable:
		id = buffIDVulnerable
	}
	for _, t := range targets {
		s.zone.Broadcast(packet.ServerBuffApply{
			TargetGUID: uint64(t.GUID),
			CasterGUID: uint64(s.bossGUID),
			BuffID:     id,
			Duration:   uint32(eff.DurationMs),
			IsDebuff:   1,
		}.Encode())
	}
}

// applyCoordination resolves the instant coordination checks at impact.
// Tether and pass are stateful mechanics driven over multiple ticks and
// are not resolved from a single cast emission.
func (s *zoneSink) applyCoordination(c *CoordinationEffect, targets []Candidate) {
	if c == nil || len(targets) == 0 {
		return
	}
	var hits []Hit
	switch c.Kind {
	case CoordStack:
		hits = ResolveStack(c, targets[0].Pos, targets)
	case CoordSpread:
		hits = ResolveSpread(c, targets)
	case CoordSoak:
		hits = ResolveSoak(c, targets)
	case CoordChain:
		hits = ResolveChain(c, targets)
	default:
		s.log.Debug("未解析的協調機制", zap.String("kind", c.Kind))
		return
	}
	for _, h := range hits {
		s.damagePlayer(h.GUID, h.Amount)
	}
}

func (s *zoneSink) damagePlayer(guid world.GUID, amount int32) {
	if amount <= 0 {
		return
	}
	var died bool
	ok := s.zone.UpdateEntity(guid, func(e *world.Entity) {
		e.Health -= amount
		died = e.Health <= 0
	})
	if !ok {
		return
	}
	if died {
		s.zone.Broadcast(packet.ServerPlayerDeath{
			PlayerGUID: uint64(guid),
			KillerGUID: uint64(s.bossGUID),
		}.Encode())
	}
}

func wireShape(shape string) byte {
	switch shape {
	case ShapeCircle:
		return packet.ShapeCircle
	case ShapeCone:
		return packet.ShapeCone
	case ShapeLine:
		return packet.ShapeLine
	case ShapeDonut:
		return packet.ShapeDonut
	case ShapeCross:
		return packet.ShapeCross
	case ShapeRoomWide:
		return packet.ShapeRoomWide
	case ShapeWave:
		return packet.ShapeWave
	default:
		return packet.ShapeCircle
	}
}
