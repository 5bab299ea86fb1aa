package encounter

import (
	"math/rand"
	"sort"

	"github.com/nexusgo/server/internal/world"
)

// Candidate is one live player eligible for targeting this tick.
type Candidate struct {
	GUID      world.GUID
	Pos       world.Vec3
	Health    int32
	MaxHealth int32
	Threat    int64
	Debuffs   map[string]bool
}

func (c Candidate) healthRatio() float64 {
	if c.MaxHealth <= 0 {
		return 0
	}
	return float64(c.Health) / float64(c.MaxHealth)
}

// SelectTargets resolves a target selector against the candidate set.
// Every ordering uses a documented deterministic tie-break (lower GUID)
// so encounter replays with the same seed reproduce exactly.
func SelectTargets(sel TargetSelector, bossPos world.Vec3, cands []Candidate, rng *rand.Rand) []Candidate {
	if len(cands) == 0 {
		return nil
	}
	switch sel.Kind {
	case TargetTank:
		return []Candidate{byThreat(cands, 0)}
	case TargetSecondThreat:
		return []Candidate{byThreat(cands, 1)}
	case TargetFarthest:
		return []Candidate{byDistance(cands, bossPos, false)}
	case TargetNearest:
		return []Candidate{byDistance(cands, bossPos, true)}
	case TargetLowestHealth:
		return []Candidate{lowestHealth(cands)}
	case TargetRandom:
		return pickRandom(cands, 1, rng)
	case TargetRandomN:
		n := sel.Count
		if n <= 0 {
			n = 1
		}
		return pickRandom(cands, n, rng)
	case TargetMarked:
		var out []Candidate
		for _, c := range sortedByGUID(cands) {
			if c.Debuffs[sel.Debuff] {
				out = append(out, c)
			}
		}
		return out
	case TargetChain:
		return chainTargets(sel, bossPos, cands)
	default:
		return nil
	}
}

func sortedByGUID(cands []Candidate) []Candidate {
	out := append([]Candidate(nil), cands...)
	sort.Slice(out, func(i, j int) bool { return out[i].GUID < out[j].GUID })
	return out
}

// byThreat returns the rank-th highest threat candidate (0 = top). With
// fewer candidates than rank+1 it falls back to the top entry.
func byThreat(cands []Candidate, rank int) Candidate {
	out := sortedByGUID(cands)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threat > out[j].Threat })
	if rank >= len(out) {
		rank = 0
	}
	return out[rank]
}

func byDistance(cands []Candidate, from world.Vec3, nearest bool) Candidate {
	out := sortedByGUID(cands)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Pos.DistSq(from), out[j].Pos.DistSq(from)
		if nearest {
			return di < dj
		}
		return di > dj
	})
	return out[0]
}

func lowestHealth(cands []Candidate) Candidate {
	out := sortedByGUID(cands)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].healthRatio() < out[j].healthRatio()
	})
	return out[0]
}

// pickRandom draws n distinct candidates through the seeded PRNG. The
// candidate set is GUID-sorted first so the draw depends only on the seed
// and the set membership, not on map iteration order upstream.
func pickRandom(cands []Candidate, n int, rng *rand.Rand) []Candidate {
	sorted := sortedByGUID(cands)
	if n > len(sorted) {
		n = len(sorted)
	}
	perm := rng.Perm(len(sorted))
	out := make([]Candidate, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, sorted[idx])
	}
	return out
}

// chainTargets walks a damage chain: the initial target is the nearest to
// the boss, each jump picks the nearest un-hit candidate within range.
// Damage falloff per jump is applied by the caller via sel.DamageFalloff.
func chainTargets(sel TargetSelector, bossPos world.Vec3, cands []Candidate) []Candidate {
	remaining := sortedByGUID(cands)
	cur := byDistance(remaining, bossPos, true)
	out := []Candidate{cur}
	remaining = without(remaining, cur.GUID)

	maxJumps := sel.Count
	if maxJumps <= 0 {
		maxJumps = len(cands)
	}
	rangeSq := sel.Range * sel.Range

	for len(out) < maxJumps && len(remaining) > 0 {
		next := byDistance(remaining, cur.Pos, true)
		if sel.Range > 0 && next.Pos.DistSq(cur.Pos) > rangeSq {
			break
		}
		out = append(out, next)
		remaining = without(remaining, next.GUID)
		cur = next
	}
	return out
}

func without(cands []Candidate, guid world.GUID) []Candidate {
	out := cands[:0]
	for _, c := range cands {
		if c.GUID != guid {
			out = append(out, c)
		}
	}
	return out
}
