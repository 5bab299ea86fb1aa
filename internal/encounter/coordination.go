package encounter

import (
	"time"

	"github.com/nexusgo/server/internal/world"
)

// Hit is one resolved damage assignment from a coordination check.
type Hit struct {
	GUID   world.GUID
	Amount int32
}

// ResolveStack checks a stack mechanic at impact: enough players inside
// the radius splits (or shares) the damage, too few takes failure damage.
func ResolveStack(c *CoordinationEffect, center world.Vec3, players []Candidate) []Hit {
	inside := EntitiesInShape(ShapeCircle, []float32{float32(c.Radius)}, center, 0, players, 0)
	var out []Hit
	if len(inside) >= c.MinPlayers {
		per := c.Damage
		if c.Split && len(inside) > 0 {
			per = c.Damage / int32(len(inside))
		}
		for _, p := range inside {
			out = append(out, Hit{GUID: p.GUID, Amount: per})
		}
		return out
	}
	for _, p := range inside {
		out = append(out, Hit{GUID: p.GUID, Amount: c.FailureDamage})
	}
	return out
}

// ResolveSpread checks a spread mechanic: marked targets standing within
// required_distance of another marked target both take the damage.
func ResolveSpread(c *CoordinationEffect, marked []Candidate) []Hit {
	distSq := c.RequiredDistance * c.RequiredDistance
	failed := make(map[world.GUID]bool)
	for i := 0; i < len(marked); i++ {
		for j := i + 1; j < len(marked); j++ {
			if marked[i].Pos.DistSq(marked[j].Pos) <= distSq {
				failed[marked[i].GUID] = true
				failed[marked[j].GUID] = true
			}
		}
	}
	var out []Hit
	for _, m := range sortedByGUID(marked) {
		if failed[m.GUID] {
			out = append(out, Hit{GUID: m.GUID, Amount: c.Damage})
		}
	}
	return out
}

// ResolveSoak checks a soak circle: with enough soakers the base damage
// splits among them; each missing soaker adds damage_per_missing on top.
func ResolveSoak(c *CoordinationEffect, inside []Candidate) []Hit {
	if len(inside) == 0 {
		return nil
	}
	total := c.BaseDamage
	if missing := c.RequiredPlayers - len(inside); missing > 0 {
		total += c.DamagePerMissing * int32(missing)
	}
	per := total / int32(len(inside))
	var out []Hit
	for _, p := range sortedByGUID(inside) {
		out = append(out, Hit{GUID: p.GUID, Amount: per})
	}
	return out
}

// ResolveChain checks a player chain: consecutive links farther apart than
// max_distance break, damaging both endpoints of each broken link.
func ResolveChain(c *CoordinationEffect, ordered []Candidate) []Hit {
	distSq := c.MaxDistance * c.MaxDistance
	var out []Hit
	for i := 0; i+1 < len(ordered); i++ {
		if ordered[i].Pos.DistSq(ordered[i+1].Pos) > distSq {
			out = append(out,
				Hit{GUID: ordered[i].GUID, Amount: c.DamagePerBreak},
				Hit{GUID: ordered[i+1].GUID, Amount: c.DamagePerBreak})
		}
	}
	return out
}

// TetherTick enforces one tick of a tether between two players. Too close
// deals too_close_damage to both; beyond max distance breaks the tether
// and deals break_damage to both.
func TetherTick(c *CoordinationEffect, a, b Candidate) (hits []Hit, broken bool) {
	d := a.Pos.Dist(b.Pos)
	switch {
	case c.MaxDistance > 0 && d > c.MaxDistance:
		return []Hit{
			{GUID: a.GUID, Amount: c.BreakDamage},
			{GUID: b.GUID, Amount: c.BreakDamage},
		}, true
	case c.MinDistance > 0 && d < c.MinDistance:
		return []Hit{
			{GUID: a.GUID, Amount: c.TooCloseDamage},
			{GUID: b.GUID, Amount: c.TooCloseDamage},
		}, false
	default:
		return nil, false
	}
}

// PassState tracks a carried pass debuff: holder, deadline, and whether a
// same-target pass stacks or transfers per the mechanic's definition.
type PassState struct {
	def      *CoordinationEffect
	Holder   world.GUID
	Deadline time.Time
	Stacks   int32
}

func NewPassState(def *CoordinationEffect, holder world.GUID, now time.Time) *PassState {
	return &PassState{
		def:      def,
		Holder:   holder,
		Deadline: now.Add(time.Duration(def.TimeoutMs) * time.Millisecond),
		Stacks:   1,
	}
}

// Pass hands the debuff to a new holder, resetting the timeout. Passing to
// the current holder stacks when stack_on_same is set, otherwise no-ops.
func (p *PassState) Pass(to world.GUID, now time.Time) {
	if to == p.Holder {
		if p.def.StackOnSame {
			p.Stacks++
			p.Deadline = now.Add(time.Duration(p.def.TimeoutMs) * time.Millisecond)
		}
		return
	}
	p.Holder = to
	p.Deadline = now.Add(time.Duration(p.def.TimeoutMs) * time.Millisecond)
}

// Expire checks the timeout: the holder eats damage_on_expire scaled by
// accumulated stacks.
func (p *PassState) Expire(now time.Time) (Hit, bool) {
	if now.Before(p.Deadline) {
		return Hit{}, false
	}
	return Hit{GUID: p.Holder, Amount: p.def.DamageOnExpire * p.Stacks}, true
}
