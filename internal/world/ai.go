package world

import (
	"fmt"
	"time"
)

// AIState is a creature's behaviour state.
type AIState int

const (
	AIIdle AIState = iota
	AICombat
	AIEvade
	AIDead
)

func (s AIState) String() string {
	switch s {
	case AIIdle:
		return "Idle"
	case AICombat:
		return "Combat"
	case AIEvade:
		return "Evade"
	case AIDead:
		return "Dead"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// CreatureState couples 1:1 with a creature entity. Owned by the zone
// goroutine — no locks.
//
// Invariants: health == 0 ⇔ state == Dead; in Combat the threat table is
// non-empty or the combat start time is within the combat timeout window;
// from Dead the only transition is respawn.
type CreatureState struct {
	GUID            GUID
	State           AIState
	Threat          map[GUID]int64 // attacker → cumulative threat
	SpawnPosition   Vec3
	CombatStartTime time.Time
	LastAttackTime  time.Time

	// Spline patrol (idle motion), nil when the template has no binding.
	SplineID   int64
	SplineNode int
}

func NewCreatureState(guid GUID, spawnPos Vec3) *CreatureState {
	return &CreatureState{
		GUID:          guid,
		State:         AIIdle,
		Threat:        make(map[GUID]int64),
		SpawnPosition: spawnPos,
	}
}

// AddThreat accumulates threat from an attacker. Non-positive amounts and
// zero GUIDs are ignored.
// 遊戲迴圈單線程呼叫，無需鎖。
func (c *CreatureState) AddThreat(attacker GUID, amount int64) {
	if amount <= 0 || attacker.IsZero() {
		return
	}
	if c.Threat == nil {
		c.Threat = make(map[GUID]int64)
	}
	c.Threat[attacker] += amount
}

// TopThreat returns the attacker with the highest cumulative threat.
// Ties break toward the lower GUID for deterministic target selection.
// Returns zero when the table is empty.
func (c *CreatureState) TopThreat() GUID {
	var best GUID
	var bestThreat int64 = -1
	for guid, threat := range c.Threat {
		if threat > bestThreat || (threat == bestThreat && guid < best) {
			bestThreat = threat
			best = guid
		}
	}
	return best
}

// SecondThreat returns the second-highest threat entry, falling back to
// the top entry when fewer than two exist.
func (c *CreatureState) SecondThreat() GUID {
	top := c.TopThreat()
	if top.IsZero() {
		return 0
	}
	var best GUID
	var bestThreat int64 = -1
	for guid, threat := range c.Threat {
		if guid == top {
			continue
		}
		if threat > bestThreat || (threat == bestThreat && guid < best) {
			bestThreat = threat
			best = guid
		}
	}
	if best.IsZero() {
		return top
	}
	return best
}

// RemoveThreat drops one attacker (disconnect / out of range).
func (c *CreatureState) RemoveThreat(attacker GUID) {
	delete(c.Threat, attacker)
}

// ClearThreat empties the threat table (death or evade completion).
func (c *CreatureState) ClearThreat() {
	clear(c.Threat)
}

// EnterCombat transitions to Combat and stamps the combat start time.
// No-op when already in combat or dead.
func (c *CreatureState) EnterCombat(now time.Time) {
	if c.State == AICombat || c.State == AIDead {
		return
	}
	c.State = AICombat
	c.CombatStartTime = now
}

// NeedsTick reports whether the AI tick must process this creature:
// combat, evading, or carrying residual threat.
func (c *CreatureState) NeedsTick() bool {
	return c.State == AICombat || c.State == AIEvade || len(c.Threat) > 0
}
