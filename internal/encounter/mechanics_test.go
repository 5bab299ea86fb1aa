package encounter

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusgo/server/internal/world"
)

func cand(seq uint64, pos world.Vec3, threat int64, health, max int32) Candidate {
	return Candidate{
		GUID: world.MakeGUID(world.TypePlayer, seq), Pos: pos,
		Threat: threat, Health: health, MaxHealth: max,
	}
}

func TestSelectTargetsThreat(t *testing.T) {
	a := cand(1, world.Vec3{}, 50, 100, 100)
	b := cand(2, world.Vec3{}, 50, 100, 100)
	c := cand(3, world.Vec3{}, 20, 100, 100)
	cands := []Candidate{c, b, a}

	// Threat tie breaks toward the lower GUID.
	got := SelectTargets(TargetSelector{Kind: TargetTank}, world.Vec3{}, cands, nil)
	require.Len(t, got, 1)
	assert.Equal(t, a.GUID, got[0].GUID)

	got = SelectTargets(TargetSelector{Kind: TargetSecondThreat}, world.Vec3{}, cands, nil)
	assert.Equal(t, b.GUID, got[0].GUID)

	// With a single candidate, second_threat falls back to tank.
	got = SelectTargets(TargetSelector{Kind: TargetSecondThreat}, world.Vec3{}, []Candidate{c}, nil)
	assert.Equal(t, c.GUID, got[0].GUID)
}

func TestSelectTargetsDistanceAndHealth(t *testing.T) {
	near := cand(1, world.Vec3{X: 5}, 0, 100, 100)
	far := cand(2, world.Vec3{X: 50}, 0, 40, 100)
	cands := []Candidate{far, near}

	got := SelectTargets(TargetSelector{Kind: TargetNearest}, world.Vec3{}, cands, nil)
	assert.Equal(t, near.GUID, got[0].GUID)
	got = SelectTargets(TargetSelector{Kind: TargetFarthest}, world.Vec3{}, cands, nil)
	assert.Equal(t, far.GUID, got[0].GUID)
	got = SelectTargets(TargetSelector{Kind: TargetLowestHealth}, world.Vec3{}, cands, nil)
	assert.Equal(t, far.GUID, got[0].GUID)
}

func TestSelectTargetsRandomDeterministic(t *testing.T) {
	cands := []Candidate{
		cand(3, world.Vec3{}, 0, 1, 1),
		cand(1, world.Vec3{}, 0, 1, 1),
		cand(2, world.Vec3{}, 0, 1, 1),
	}
	sel := TargetSelector{Kind: TargetRandomN, Count: 2}

	first := SelectTargets(sel, world.Vec3{}, cands, rand.New(rand.NewSource(42)))
	second := SelectTargets(sel, world.Vec3{}, cands, rand.New(rand.NewSource(42)))
	require.Len(t, first, 2)
	assert.Equal(t, first, second, "same seed must reproduce the draw")
}

func TestSelectTargetsMarked(t *testing.T) {
	marked := cand(2, world.Vec3{}, 0, 1, 1)
	marked.Debuffs = map[string]bool{"static_charge": true}
	clean := cand(1, world.Vec3{}, 0, 1, 1)

	got := SelectTargets(TargetSelector{Kind: TargetMarked, Debuff: "static_charge"},
		world.Vec3{}, []Candidate{clean, marked}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, marked.GUID, got[0].GUID)
}

func TestChainTargetsOrderAndRange(t *testing.T) {
	a := cand(1, world.Vec3{X: 1}, 0, 1, 1)
	b := cand(2, world.Vec3{X: 5}, 0, 1, 1)
	c := cand(3, world.Vec3{X: 8}, 0, 1, 1)
	d := cand(4, world.Vec3{X: 100}, 0, 1, 1)

	got := SelectTargets(TargetSelector{Kind: TargetChain, Range: 10},
		world.Vec3{}, []Candidate{d, c, b, a}, nil)
	require.Len(t, got, 3, "chain must stop at the out-of-range jump")
	assert.Equal(t, []world.GUID{a.GUID, b.GUID, c.GUID},
		[]world.GUID{got[0].GUID, got[1].GUID, got[2].GUID})
}

func TestInShapeGeometry(t *testing.T) {
	origin := world.Vec3{}

	assert.True(t, InShape(ShapeCircle, []float32{10}, origin, 0, world.Vec3{X: 10}, 0))
	assert.False(t, InShape(ShapeCircle, []float32{10}, origin, 0, world.Vec3{X: 10.01}, 0))

	// 90° cone facing +X.
	assert.True(t, InShape(ShapeCone, []float32{90, 20}, origin, 0, world.Vec3{X: 10, Y: 5}, 0))
	assert.False(t, InShape(ShapeCone, []float32{90, 20}, origin, 0, world.Vec3{Y: 10}, 0))
	assert.False(t, InShape(ShapeCone, []float32{90, 20}, origin, 0, world.Vec3{X: 25}, 0))

	// Line width 4, length 20, facing +Y.
	rot := float32(math.Pi / 2)
	assert.True(t, InShape(ShapeLine, []float32{4, 20}, origin, rot, world.Vec3{X: 1, Y: 15}, 0))
	assert.False(t, InShape(ShapeLine, []float32{4, 20}, origin, rot, world.Vec3{X: 3, Y: 15}, 0))
	assert.False(t, InShape(ShapeLine, []float32{4, 20}, origin, rot, world.Vec3{Y: -1}, 0))

	assert.True(t, InShape(ShapeDonut, []float32{5, 15}, origin, 0, world.Vec3{X: 10}, 0))
	assert.False(t, InShape(ShapeDonut, []float32{5, 15}, origin, 0, world.Vec3{X: 3}, 0))

	assert.True(t, InShape(ShapeRoomWide, nil, origin, 0, world.Vec3{X: 9999}, 0))

	// Wave: width 4, speed 10 — at t=2s the ring sits at radius 20.
	assert.True(t, InShape(ShapeWave, []float32{4, 10}, origin, 0, world.Vec3{X: 21}, 2))
	assert.False(t, InShape(ShapeWave, []float32{4, 10}, origin, 0, world.Vec3{X: 25}, 2))
}

func TestResolveStack(t *testing.T) {
	def := &CoordinationEffect{Kind: CoordStack, Radius: 5, MinPlayers: 2, Damage: 100, Split: true, FailureDamage: 500}
	in1 := cand(1, world.Vec3{X: 1}, 0, 1, 1)
	in2 := cand(2, world.Vec3{X: 2}, 0, 1, 1)
	out := cand(3, world.Vec3{X: 50}, 0, 1, 1)

	hits := ResolveStack(def, world.Vec3{}, []Candidate{in1, in2, out})
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, int32(50), h.Amount)
	}

	// Only one inside: failure damage.
	hits = ResolveStack(def, world.Vec3{}, []Candidate{in1, out})
	require.Len(t, hits, 1)
	assert.Equal(t, int32(500), hits[0].Amount)
}

func TestResolveSpreadAndSoak(t *testing.T) {
	spread := &CoordinationEffect{Kind: CoordSpread, RequiredDistance: 8, Damage: 200}
	a := cand(1, world.Vec3{}, 0, 1, 1)
	b := cand(2, world.Vec3{X: 5}, 0, 1, 1)
	c := cand(3, world.Vec3{X: 100}, 0, 1, 1)

	hits := ResolveSpread(spread, []Candidate{a, b, c})
	require.Len(t, hits, 2, "only the clumped pair takes damage")

	soak := &CoordinationEffect{Kind: CoordSoak, RequiredPlayers: 3, BaseDamage: 300, DamagePerMissing: 150}
	hits = ResolveSoak(soak, []Candidate{a, b})
	require.Len(t, hits, 2)
	// 300 base + 150 for the missing soaker, split across two.
	assert.Equal(t, int32(225), hits[0].Amount)
}

func TestResolveChainBreaks(t *testing.T) {
	def := &CoordinationEffect{Kind: CoordChain, MaxDistance: 10, DamagePerBreak: 75}
	a := cand(1, world.Vec3{}, 0, 1, 1)
	b := cand(2, world.Vec3{X: 5}, 0, 1, 1)
	c := cand(3, world.Vec3{X: 40}, 0, 1, 1)

	hits := ResolveChain(def, []Candidate{a, b, c})
	require.Len(t, hits, 2, "one broken link damages both endpoints")
	assert.Equal(t, b.GUID, hits[0].GUID)
	assert.Equal(t, c.GUID, hits[1].GUID)
}

func TestTetherAndPass(t *testing.T) {
	tether := &CoordinationEffect{Kind: CoordTether, MaxDistance: 20, MinDistance: 5, TooCloseDamage: 50, BreakDamage: 400}
	a := cand(1, world.Vec3{}, 0, 1, 1)
	b := cand(2, world.Vec3{X: 3}, 0, 1, 1)

	hits, broken := TetherTick(tether, a, b)
	assert.False(t, broken)
	require.Len(t, hits, 2)
	assert.Equal(t, int32(50), hits[0].Amount)

	b.Pos = world.Vec3{X: 30}
	hits, broken = TetherTick(tether, a, b)
	assert.True(t, broken)
	assert.Equal(t, int32(400), hits[0].Amount)

	now := time.Now()
	pass := &CoordinationEffect{Kind: CoordPass, TimeoutMs: 1000, DamageOnExpire: 100, StackOnSame: true}
	ps := NewPassState(pass, a.GUID, now)
	ps.Pass(a.GUID, now) // same holder: stacks
	ps.Pass(b.GUID, now)
	assert.Equal(t, b.GUID, ps.Holder)

	_, expired := ps.Expire(now)
	assert.False(t, expired)
	hit, expired := ps.Expire(now.Add(2 * time.Second))
	require.True(t, expired)
	assert.Equal(t, int32(200), hit.Amount, "expire damage scales by stacks")
	assert.Equal(t, b.GUID, hit.GUID)
}
