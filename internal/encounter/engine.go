package encounter

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/world"
)

// State of one encounter run.
type State int

const (
	NotEngaged State = iota
	Engaged
	Defeated
	Wiped
)

func (s State) String() string {
	switch s {
	case NotEngaged:
		return "NotEngaged"
	case Engaged:
		return "Engaged"
	case Defeated:
		return "Defeated"
	case Wiped:
		return "Wiped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Sink receives the engine's emissions. The zone-side boss adapter
// implements it; tests use a recording sink.
type Sink interface {
	OnPhaseEnter(phase string, effects []Effect)
	OnAbilityCast(a *Ability, targets []Candidate)
	OnInterrupted(a *Ability, effects []Effect)
	OnMomentOfOpportunity(until time.Time)
	OnDefeated(effects []Effect)
	OnWiped(effects []Effect)
}

// defaultMoODuration applies when an interrupt carries no typed duration.
const defaultMoODuration = 3 * time.Second

type castState struct {
	ability  Ability
	armor    int32
	finishAt time.Time
}

// Engine executes a compiled encounter definition. It is not goroutine
// safe; the Host serializes ticks, damage, and interrupts onto one
// timeline. All randomness flows through a per-encounter seeded PRNG for
// reproducible replays.
type Engine struct {
	def  *Definition
	sink Sink
	log  *zap.Logger
	rng  *rand.Rand

	state     State
	health    int32
	phaseName string
	cooldowns map[string]time.Time
	casting   *castState

	mooUntil          time.Time
	intermissionUntil time.Time
	intermissionDone  map[string]bool
}

func NewEngine(def *Definition, sink Sink, seed int64, log *zap.Logger) *Engine {
	return &Engine{
		def:              def,
		sink:             sink,
		log:              log.With(zap.String("boss", def.Boss.Name)),
		rng:              rand.New(rand.NewSource(seed)),
		state:            NotEngaged,
		health:           def.Boss.MaxHealth,
		cooldowns:        make(map[string]time.Time),
		intermissionDone: make(map[string]bool),
	}
}

func (e *Engine) State() State      { return e.state }
func (e *Engine) Phase() string     { return e.phaseName }
func (e *Engine) Health() int32     { return e.health }
func (e *Engine) Casting() bool     { return e.casting != nil }
func (e *Engine) HealthPct() float64 {
	return float64(e.health) / float64(e.def.Boss.MaxHealth) * 100
}

// Immune reports whether boss damage is currently ignored (intermission
// phases may declare immunity).
func (e *Engine) Immune(now time.Time) bool {
	if e.phaseName == "" || now.After(e.intermissionUntil) {
		return false
	}
	p := e.def.phase(e.phaseName)
	return p != nil && p.Condition.Kind == CondIntermissionAt && p.Immune
}

// Engage starts the fight from NotEngaged.
func (e *Engine) Engage(now time.Time) {
	if e.state != NotEngaged {
		return
	}
	e.state = Engaged
	e.health = e.def.Boss.MaxHealth
	e.selectPhase(now)
	e.log.Info("遭遇戰開始", zap.String("phase", e.phaseName))
}

// ApplyDamage feeds one damage event to the boss. Phase selection reruns
// after every hit. Returns the remaining health.
func (e *Engine) ApplyDamage(amount int32, now time.Time) int32 {
	if e.state != Engaged || e.Immune(now) {
		return e.health
	}
	e.health -= amount
	if e.health <= 0 {
		e.health = 0
		e.state = Defeated
		e.casting = nil
		e.sink.OnDefeated(e.def.OnDeath)
		e.log.Info("首領被擊敗")
		return 0
	}
	e.selectPhase(now)
	return e.health
}

// Wipe ends the run with all players dead: on_wipe effects fire and the
// boss resets to full health, not engaged.
func (e *Engine) Wipe(now time.Time) {
	if e.state != Engaged {
		return
	}
	e.state = Wiped
	e.casting = nil
	e.sink.OnWiped(e.def.OnWipe)
	e.log.Info("團滅，遭遇戰重置")
	e.Reset()
}

// Reset returns the engine to the not-engaged baseline. Intermission
// history clears: a fresh pull sees every intermission again.
func (e *Engine) Reset() {
	e.state = NotEngaged
	e.health = e.def.Boss.MaxHealth
	e.phaseName = ""
	e.casting = nil
	e.cooldowns = make(map[string]time.Time)
	e.intermissionDone = make(map[string]bool)
	e.intermissionUntil = time.Time{}
	e.mooUntil = time.Time{}
}

// selectPhase picks the first matching phase for the current health and
// performs the transition if it differs from the active one. While an
// intermission runs, health-based selection is suspended.
func (e *Engine) selectPhase(now time.Time) {
	if now.Before(e.intermissionUntil) {
		return
	}
	pct := e.HealthPct()

	// Intermissions trigger once per run, at or below their threshold.
	for i := range e.def.Phases {
		p := &e.def.Phases[i]
		if p.Condition.Kind != CondIntermissionAt || e.intermissionDone[p.Name] {
			continue
		}
		if pct <= p.Condition.Value {
			e.intermissionDone[p.Name] = true
			e.intermissionUntil = now.Add(time.Duration(p.DurationMs) * time.Millisecond)
			e.transitionTo(p)
			return
		}
	}

	for i := range e.def.Phases {
		p := &e.def.Phases[i]
		if p.Condition.Kind == CondIntermissionAt {
			continue
		}
		if p.Condition.Matches(pct) {
			if p.Name != e.phaseName {
				e.transitionTo(p)
			}
			return
		}
	}
}

func (e *Engine) transitionTo(p *Phase) {
	e.phaseName = p.Name

	// Cancel an in-flight cast when its ability leaves the effective set.
	if e.casting != nil {
		kept := false
		for _, a := range e.def.EffectiveAbilities(p.Name) {
			if a.Name == e.casting.ability.Name {
				kept = true
				break
			}
		}
		if !kept {
			e.casting = nil
		}
	}

	e.cooldowns = make(map[string]time.Time)
	e.sink.OnPhaseEnter(p.Name, p.OnEnter)
	e.log.Info("階段轉換", zap.String("phase", p.Name))
}

// Tick drives the ability scheduler: finish a completed cast, or start the
// first ready ability in declared order. Candidates are this tick's live
// players in the encounter area.
func (e *Engine) Tick(now time.Time, bossPos world.Vec3, candidates []Candidate) {
	if e.state != Engaged {
		return
	}
	if now.Before(e.intermissionUntil) {
		return
	}
	if !e.intermissionUntil.IsZero() {
		// The intermission window just closed: control returns to
		// health-based selection even when no damage is landing.
		e.intermissionUntil = time.Time{}
		e.selectPhase(now)
		if now.Before(e.intermissionUntil) {
			// Selection opened the next intermission straight away.
			return
		}
	}

	if e.casting != nil {
		if now.Before(e.casting.finishAt) {
			return
		}
		cast := e.casting
		e.casting = nil
		e.fire(&cast.ability, bossPos, candidates)
		return
	}

	if now.Before(e.mooUntil) {
		return
	}

	for _, a := range e.def.EffectiveAbilities(e.phaseName) {
		if now.Before(e.cooldowns[a.Name]) {
			continue
		}
		e.cooldowns[a.Name] = now.Add(time.Duration(a.CooldownMs) * time.Millisecond)
		if a.CastTimeMs > 0 {
			armor := e.def.Boss.InterruptArmor
			if a.InterruptArmor != nil {
				armor = *a.InterruptArmor
			}
			e.casting = &castState{
				ability:  a,
				armor:    armor,
				finishAt: now.Add(time.Duration(a.CastTimeMs) * time.Millisecond),
			}
			return
		}
		e.fire(&a, bossPos, candidates)
		return
	}
}

func (e *Engine) fire(a *Ability, bossPos world.Vec3, candidates []Candidate) {
	targets := SelectTargets(a.Target, bossPos, candidates, e.rng)
	e.sink.OnAbilityCast(a, targets)
}

// Interrupt consumes one interrupt-armor stack from the current cast.
// Returns true when the stack was consumed. Reaching zero interrupts the
// cast: on_interrupt effects fire and a Moment of Opportunity opens.
func (e *Engine) Interrupt(now time.Time) bool {
	if e.casting == nil || !e.casting.ability.Interruptible {
		return false
	}
	e.casting.armor--
	if e.casting.armor > 0 {
		return true
	}

	cast := e.casting
	e.casting = nil
	moo := defaultMoODuration
	for _, eff := range cast.ability.OnInterrupt {
		if eff.Kind == EffectMoO && eff.DurationMs > 0 {
			moo = time.Duration(eff.DurationMs) * time.Millisecond
		}
		if eff.Kind == EffectPhaseSkip && eff.TargetPhase != "" {
			if p := e.def.phase(eff.TargetPhase); p != nil {
				e.transitionTo(p)
			}
		}
	}
	e.mooUntil = now.Add(moo)
	e.sink.OnInterrupted(&cast.ability, cast.ability.OnInterrupt)
	e.sink.OnMomentOfOpportunity(e.mooUntil)
	e.log.Info("施法被打斷", zap.String("ability", cast.ability.Name))
	return true
}
