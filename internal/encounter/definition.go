package encounter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Definition is the compiled form of one boss encounter. The runtime only
// ever sees this structure; authoring happens upstream.
type Definition struct {
	Boss    Boss     `yaml:"boss"`
	Phases  []Phase  `yaml:"phases"`
	OnDeath []Effect `yaml:"on_death"`
	OnWipe  []Effect `yaml:"on_wipe"`
}

type Boss struct {
	ID             int64  `yaml:"id"`
	Name           string `yaml:"name"`
	Level          int32  `yaml:"level"`
	MaxHealth      int32  `yaml:"max_health"`
	EnrageTimerMs  int32  `yaml:"enrage_timer_ms"`
	InterruptArmor int32  `yaml:"interrupt_armor"`
}

// Condition kinds.
const (
	CondHealthAbove    = "health_above"
	CondHealthBelow    = "health_below"
	CondHealthBetween  = "health_between"
	CondAlways         = "always"
	CondIntermissionAt = "intermission_at"
)

// Condition activates a phase. Values are health percentages (0..100).
type Condition struct {
	Kind  string  `yaml:"kind"`
	Value float64 `yaml:"value"`
	Low   float64 `yaml:"low"`
	High  float64 `yaml:"high"`
}

// Matches reports whether the condition holds at the given health percent.
// Intermission conditions are handled by the engine, not here.
func (c Condition) Matches(healthPct float64) bool {
	switch c.Kind {
	case CondHealthAbove:
		return healthPct > c.Value
	case CondHealthBelow:
		return healthPct < c.Value
	case CondHealthBetween:
		return healthPct >= c.Low && healthPct <= c.High
	case CondAlways:
		return true
	default:
		return false
	}
}

// Modifiers adjust the boss for the duration of a phase.
type Modifiers struct {
	DamageReduction float64 `yaml:"damage_reduction"`
	AttackSpeed     float64 `yaml:"attack_speed"`
	MovementSpeed   float64 `yaml:"movement_speed"`
	Enrage          bool    `yaml:"enrage"`
}

type Phase struct {
	Name        string    `yaml:"name"`
	Condition   Condition `yaml:"condition"`
	InheritFrom string    `yaml:"inherit_from"`
	Modifiers   Modifiers `yaml:"modifiers"`
	OnEnter     []Effect  `yaml:"on_enter"`
	Abilities   []Ability `yaml:"abilities"`

	// Intermission phases only.
	DurationMs int32 `yaml:"duration_ms"`
	Immune     bool  `yaml:"immune"`
}

// Target selector kinds.
const (
	TargetTank         = "tank"
	TargetSecondThreat = "second_threat"
	TargetFarthest     = "farthest"
	TargetNearest      = "nearest"
	TargetLowestHealth = "lowest_health"
	TargetRandom       = "random"
	TargetRandomN      = "random_n"
	TargetMarked       = "marked"
	TargetChain        = "chain"
)

type TargetSelector struct {
	Kind          string  `yaml:"kind"`
	Count         int     `yaml:"count"`
	Range         float64 `yaml:"range"`
	Debuff        string  `yaml:"debuff"`
	DamageFalloff float64 `yaml:"damage_falloff"`
}

type Ability struct {
	Name           string         `yaml:"name"`
	CooldownMs     int32          `yaml:"cooldown_ms"`
	CastTimeMs     int32          `yaml:"cast_time_ms"`
	Target         TargetSelector `yaml:"target"`
	Interruptible  bool           `yaml:"interruptible"`
	InterruptArmor *int32         `yaml:"interrupt_armor"` // nil = encounter default
	OnInterrupt    []Effect       `yaml:"on_interrupt"`
	Effects        []Effect       `yaml:"effects"`
}

// Effect kinds — a closed set; unknown kinds fail validation.
const (
	EffectTelegraph     = "telegraph"
	EffectDamage        = "damage"
	EffectDebuff        = "debuff"
	EffectBuff          = "buff"
	EffectHeal          = "heal"
	EffectMovement      = "movement"
	EffectSpawn         = "spawn"
	EffectEnvironmental = "environmental"
	EffectCoordination  = "coordination"
	EffectEmote         = "emote"
	EffectStun          = "stun"
	EffectVulnerable    = "vulnerable"
	EffectMoO           = "moo"
	EffectKnockdown     = "knockdown"
	EffectPhaseSkip     = "phase_skip"
)

var effectKinds = map[string]bool{
	EffectTelegraph: true, EffectDamage: true, EffectDebuff: true,
	EffectBuff: true, EffectHeal: true, EffectMovement: true,
	EffectSpawn: true, EffectEnvironmental: true, EffectCoordination: true,
	EffectEmote: true, EffectStun: true, EffectVulnerable: true,
	EffectMoO: true, EffectKnockdown: true, EffectPhaseSkip: true,
}

// Effect is a tagged variant; exactly the record matching Kind is set.
type Effect struct {
	Kind string `yaml:"kind"`

	Telegraph    *TelegraphEffect    `yaml:"telegraph,omitempty"`
	Damage       *DamageEffect       `yaml:"damage,omitempty"`
	Aura         *AuraEffect         `yaml:"aura,omitempty"` // debuff / buff
	Heal         *HealEffect         `yaml:"heal,omitempty"`
	Spawn        *SpawnEffect        `yaml:"spawn,omitempty"`
	Coordination *CoordinationEffect `yaml:"coordination,omitempty"`
	Emote        string              `yaml:"emote,omitempty"`
	DurationMs   int32               `yaml:"duration_ms,omitempty"`
	TargetPhase  string              `yaml:"target_phase,omitempty"` // phase_skip
}

// Telegraph shapes.
const (
	ShapeCircle   = "circle"
	ShapeCone     = "cone"
	ShapeLine     = "line"
	ShapeDonut    = "donut"
	ShapeCross    = "cross"
	ShapeRoomWide = "room_wide"
	ShapeWave     = "wave"
)

type TelegraphEffect struct {
	Shape      string    `yaml:"shape"`
	Params     []float32 `yaml:"params"`
	DurationMs int32     `yaml:"duration_ms"`
	DelayMs    int32     `yaml:"delay_ms"`
	Color      uint8     `yaml:"color"`
}

type DamageEffect struct {
	Amount  int32  `yaml:"amount"`
	School  string `yaml:"school"`
	SpellID uint32 `yaml:"spell_id"`
}

type AuraEffect struct {
	BuffID     uint32 `yaml:"buff_id"`
	SpellID    uint32 `yaml:"spell_id"`
	Amount     int32  `yaml:"amount"`
	DurationMs int32  `yaml:"duration_ms"`
	Debuff     bool   `yaml:"debuff"`
}

type HealEffect struct {
	Amount int32 `yaml:"amount"`
	Pct    bool  `yaml:"pct"`
}

type SpawnEffect struct {
	CreatureID int64 `yaml:"creature_id"`
	Count      int32 `yaml:"count"`
}

// Coordination mechanic kinds.
const (
	CoordStack  = "stack"
	CoordSpread = "spread"
	CoordSoak   = "soak"
	CoordTether = "tether"
	CoordPass   = "pass"
	CoordChain  = "chain"
)

type CoordinationEffect struct {
	Kind string `yaml:"kind"`

	// stack
	Radius        float64 `yaml:"radius"`
	MinPlayers    int     `yaml:"min_players"`
	Damage        int32   `yaml:"damage"`
	Split         bool    `yaml:"split"`
	FailureDamage int32   `yaml:"failure_damage"`

	// spread
	RequiredDistance float64 `yaml:"required_distance"`

	// soak
	RequiredPlayers  int   `yaml:"required_players"`
	BaseDamage       int32 `yaml:"base_damage"`
	DamagePerMissing int32 `yaml:"damage_per_missing"`

	// tether
	MaxDistance    float64 `yaml:"max_distance"`
	MinDistance    float64 `yaml:"min_distance"`
	TooCloseDamage int32   `yaml:"too_close_damage"`
	BreakDamage    int32   `yaml:"break_damage"`

	// pass
	TimeoutMs      int32 `yaml:"timeout_ms"`
	DamageOnExpire int32 `yaml:"damage_on_expire"`
	StackOnSame    bool  `yaml:"stack_on_same"`

	// chain
	DamagePerBreak int32 `yaml:"damage_per_break"`
}

// Validate checks the compiled definition: unique phase names, resolvable
// and acyclic inherit_from chains, known condition / effect / target kinds,
// and consistent interrupt armor values.
func (d *Definition) Validate() error {
	if d.Boss.MaxHealth <= 0 {
		return fmt.Errorf("boss %q: max_health must be positive", d.Boss.Name)
	}
	if d.Boss.InterruptArmor < 0 {
		return fmt.Errorf("boss %q: negative interrupt_armor", d.Boss.Name)
	}
	if len(d.Phases) == 0 {
		return fmt.Errorf("boss %q: no phases", d.Boss.Name)
	}

	byName := make(map[string]*Phase, len(d.Phases))
	for i := range d.Phases {
		p := &d.Phases[i]
		if p.Name == "" {
			return fmt.Errorf("phase %d: empty name", i)
		}
		if _, dup := byName[p.Name]; dup {
			return fmt.Errorf("phase %q: duplicate name", p.Name)
		}
		byName[p.Name] = p
	}

	for i := range d.Phases {
		p := &d.Phases[i]
		switch p.Condition.Kind {
		case CondHealthAbove, CondHealthBelow, CondAlways:
		case CondHealthBetween:
			if p.Condition.Low > p.Condition.High {
				return fmt.Errorf("phase %q: between condition low > high", p.Name)
			}
		case CondIntermissionAt:
			if p.DurationMs <= 0 {
				return fmt.Errorf("phase %q: intermission requires duration_ms", p.Name)
			}
		default:
			return fmt.Errorf("phase %q: unknown condition kind %q", p.Name, p.Condition.Kind)
		}

		if p.InheritFrom != "" {
			if _, ok := byName[p.InheritFrom]; !ok {
				return fmt.Errorf("phase %q: inherit_from %q not found", p.Name, p.InheritFrom)
			}
			if err := checkInheritCycle(p.Name, byName); err != nil {
				return err
			}
		}

		for j := range p.Abilities {
			if err := validateAbility(&p.Abilities[j], p.Name); err != nil {
				return err
			}
		}
		if err := validateEffects(p.OnEnter, p.Name); err != nil {
			return err
		}
	}
	if err := validateEffects(d.OnDeath, "on_death"); err != nil {
		return err
	}
	return validateEffects(d.OnWipe, "on_wipe")
}

func checkInheritCycle(start string, byName map[string]*Phase) error {
	seen := map[string]bool{}
	cur := start
	for cur != "" {
		if seen[cur] {
			return fmt.Errorf("phase %q: inherit_from cycle", start)
		}
		seen[cur] = true
		cur = byName[cur].InheritFrom
	}
	return nil
}

func validateAbility(a *Ability, phase string) error {
	if a.Name == "" {
		return fmt.Errorf("phase %q: ability with empty name", phase)
	}
	switch a.Target.Kind {
	case TargetTank, TargetSecondThreat, TargetFarthest, TargetNearest,
		TargetLowestHealth, TargetRandom, TargetRandomN, TargetMarked, TargetChain:
	case "":
		return fmt.Errorf("ability %q: missing target kind", a.Name)
	default:
		return fmt.Errorf("ability %q: unknown target kind %q", a.Name, a.Target.Kind)
	}
	if a.Target.Kind == TargetMarked && a.Target.Debuff == "" {
		return fmt.Errorf("ability %q: marked target requires debuff name", a.Name)
	}
	if a.InterruptArmor != nil {
		if *a.InterruptArmor < 0 {
			return fmt.Errorf("ability %q: negative interrupt_armor", a.Name)
		}
		if !a.Interruptible {
			return fmt.Errorf("ability %q: interrupt_armor set on uninterruptible ability", a.Name)
		}
	}
	if err := validateEffects(a.Effects, a.Name); err != nil {
		return err
	}
	return validateEffects(a.OnInterrupt, a.Name)
}

func validateEffects(effects []Effect, owner string) error {
	for _, e := range effects {
		if !effectKinds[e.Kind] {
			return fmt.Errorf("%s: unknown effect kind %q", owner, e.Kind)
		}
		if e.Kind == EffectTelegraph {
			if e.Telegraph == nil {
				return fmt.Errorf("%s: telegraph effect without record", owner)
			}
			switch e.Telegraph.Shape {
			case ShapeCircle, ShapeCone, ShapeLine, ShapeDonut, ShapeCross, ShapeRoomWide, ShapeWave:
			default:
				return fmt.Errorf("%s: unknown telegraph shape %q", owner, e.Telegraph.Shape)
			}
		}
		if e.Kind == EffectCoordination {
			if e.Coordination == nil {
				return fmt.Errorf("%s: coordination effect without record", owner)
			}
			switch e.Coordination.Kind {
			case CoordStack, CoordSpread, CoordSoak, CoordTether, CoordPass, CoordChain:
			default:
				return fmt.Errorf("%s: unknown coordination kind %q", owner, e.Coordination.Kind)
			}
		}
	}
	return nil
}

// phase returns a phase by name; validated definitions never miss.
func (d *Definition) phase(name string) *Phase {
	for i := range d.Phases {
		if d.Phases[i].Name == name {
			return &d.Phases[i]
		}
	}
	return nil
}

// EffectiveAbilities returns the union of a phase's own abilities with its
// inherited chain, own abilities first. Names shadow: an inherited ability
// with the same name as an own ability is dropped.
func (d *Definition) EffectiveAbilities(phaseName string) []Ability {
	var out []Ability
	seen := map[string]bool{}
	for name := phaseName; name != ""; {
		p := d.phase(name)
		if p == nil {
			break
		}
		for _, a := range p.Abilities {
			if !seen[a.Name] {
				seen[a.Name] = true
				out = append(out, a)
			}
		}
		name = p.InheritFrom
	}
	return out
}

// LoadDir parses and validates every *.yaml encounter under dir, keyed by
// file base name. A missing directory yields an empty map.
func LoadDir(dir string, log *zap.Logger) (map[string]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("遭遇戰目錄不存在", zap.String("dir", dir))
			return map[string]*Definition{}, nil
		}
		return nil, fmt.Errorf("read encounter dir: %w", err)
	}

	defs := make(map[string]*Definition)
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read encounter %s: %w", name, err)
		}
		var def Definition
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parse encounter %s: %w", name, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validate encounter %s: %w", name, err)
		}
		key := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		defs[key] = &def
	}
	log.Info("遭遇戰定義載入完成", zap.Int("count", len(defs)))
	return defs, nil
}
