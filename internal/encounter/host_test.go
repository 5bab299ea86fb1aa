package encounter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
)

type captureSender struct {
	mu   sync.Mutex
	pkts [][]byte
}

func (c *captureSender) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pkts = append(c.pkts, data)
}

func (c *captureSender) sawOpcode(op uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pkts {
		if packet.NewReader(p).Opcode() == op {
			return true
		}
	}
	return false
}

func newHostZone(t *testing.T) (*world.ZoneInstance, *world.GUIDAllocator) {
	t.Helper()
	c := data.NewCatalog()
	for _, table := range []string{
		data.TableCreatures, data.TableItems, data.TableLootTables,
		data.TableCreatureSpawns, data.TableHarvestSpawns, data.TableSplines,
		data.TableSplineBindings, data.TableWorldBosses,
	} {
		require.NoError(t, c.AddTable(table, map[int64]any{}))
	}
	require.NoError(t, data.RegisterIndexes(c))
	c.Freeze()

	alloc := world.NewGUIDAllocator()
	z := world.NewZoneInstance(world.ZoneRef{ZoneID: 9, InstanceID: 1},
		&data.Store{Catalog: c}, nil,
		world.ZoneOptions{AITickInterval: time.Hour, Seed: 1}, zap.NewNop())
	z.Start(alloc)
	t.Cleanup(z.Stop)
	return z, alloc
}

func hostDef() *Definition {
	return &Definition{
		Boss: Boss{
			ID: 500, Name: "Gravewalker", Level: 50,
			MaxHealth: 1000, InterruptArmor: 2,
		},
		Phases: []Phase{{
			Name:      "main",
			Condition: Condition{Kind: CondAlways},
			OnEnter: []Effect{{
				Kind: EffectTelegraph,
				Telegraph: &TelegraphEffect{
					Shape: ShapeCircle, Params: []float32{10}, DurationMs: 1500,
				},
			}},
			Abilities: []Ability{{
				Name:       "Shatter",
				CooldownMs: 60_000,
				Target:     TargetSelector{Kind: TargetRandom},
				Effects:    []Effect{{Kind: EffectDamage, Damage: &DamageEffect{Amount: 40}}},
			}},
		}},
	}
}

// engageHost spins up a zone with one boss and one nearby player, then
// starts the encounter. The player keeps the run from wiping between
// assertions.
func engageHost(t *testing.T) (*Host, *world.ZoneInstance, *captureSender, world.GUID, world.GUID) {
	t.Helper()
	zone, alloc := newHostZone(t)
	h := NewHost(map[string]*Definition{"gravewalker": hostDef()}, nil, zap.NewNop())
	t.Cleanup(h.Shutdown)

	sender := &captureSender{}
	player := alloc.Next(world.TypePlayer)
	require.NoError(t, zone.AddPlayer(world.Entity{
		GUID: player, Type: world.TypePlayer, Health: 100, MaxHealth: 100,
		Position: world.Vec3{X: 5},
	}, sender))

	boss := alloc.Next(world.TypeCreature)
	require.NoError(t, zone.AddEntity(world.Entity{
		GUID: boss, Type: world.TypeCreature, Health: 1000, MaxHealth: 1000,
	}))
	require.NoError(t, h.Engage(zone, "gravewalker", boss, 1))
	return h, zone, sender, player, boss
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestHostEngageUnknownDefinition(t *testing.T) {
	zone, alloc := newHostZone(t)
	h := NewHost(map[string]*Definition{}, nil, zap.NewNop())
	defer h.Shutdown()

	err := h.Engage(zone, "gravewalker", alloc.Next(world.TypeCreature), 1)
	assert.ErrorIs(t, err, ErrUnknownEncounter)
}

func TestHostSingleRunPerZone(t *testing.T) {
	h, zone, _, _, _ := engageHost(t)

	assert.ErrorIs(t, h.Engage(zone, "gravewalker", 0, 1), ErrAlreadyEngaged)

	state, ok := h.State(zone.Ref)
	require.True(t, ok)
	assert.Equal(t, Engaged, state)
}

func TestHostPhaseEnterBroadcastsTelegraph(t *testing.T) {
	_, _, sender, _, _ := engageHost(t)

	waitFor(t, func() bool {
		return sender.sawOpcode(packet.SOpcodeTelegraph)
	})
}

func TestHostDamageAndDefeat(t *testing.T) {
	h, zone, _, player, boss := engageHost(t)

	now := time.Now()
	remaining, kill, ok := h.Damage(zone.Ref, player, 400, now)
	require.True(t, ok)
	require.Nil(t, kill)
	assert.Equal(t, int32(600), remaining)

	remaining, kill, ok = h.Damage(zone.Ref, player, 600, now)
	require.True(t, ok)
	assert.Equal(t, int32(0), remaining)

	// The killing blow runs the boss entity through the zone kill
	// pipeline: the entity is dead, and the killer is credited.
	require.NotNil(t, kill)
	assert.Equal(t, player, kill.Killer)
	ent, found := zone.GetEntity(boss)
	require.True(t, found)
	assert.False(t, ent.Alive())

	// A dead boss cannot be pulled again through the creature pipeline.
	_, err := zone.DamageCreature(boss, player, 10)
	assert.ErrorIs(t, err, world.ErrCreatureDead)

	// The tick loop releases a defeated run; until then the state reads
	// Defeated.
	waitFor(t, func() bool {
		state, live := h.State(zone.Ref)
		return !live || state == Defeated
	})
}

func TestHostWipeThenRePull(t *testing.T) {
	h, zone, _, player, _ := engageHost(t)

	// Everyone leaves the encounter area: the run wipes and resets.
	_, removed := zone.RemoveEntity(player)
	require.True(t, removed)
	waitFor(t, func() bool {
		state, live := h.State(zone.Ref)
		return live && state == NotEngaged
	})

	// The reset boss ignores damage until it is pulled again.
	remaining, kill, ok := h.Damage(zone.Ref, player, 400, time.Now())
	require.True(t, ok)
	require.Nil(t, kill)
	assert.Equal(t, int32(1000), remaining)

	// Players return in range: the same run re-pulls on its own.
	sender := &captureSender{}
	require.NoError(t, zone.AddPlayer(world.Entity{
		GUID: player, Type: world.TypePlayer, Health: 100, MaxHealth: 100,
		Position: world.Vec3{X: 5},
	}, sender))
	waitFor(t, func() bool {
		state, live := h.State(zone.Ref)
		return live && state == Engaged
	})

	remaining, _, ok = h.Damage(zone.Ref, player, 400, time.Now())
	require.True(t, ok)
	assert.Equal(t, int32(600), remaining)
}

func TestHostMomentOfOpportunityAmplifiesDamage(t *testing.T) {
	h, zone, _, player, _ := engageHost(t)

	now := time.Now()
	r := h.run(zone.Ref)
	require.NotNil(t, r)
	r.mu.Lock()
	r.engine.mooUntil = now.Add(3 * time.Second)
	r.mu.Unlock()

	// 100 damage inside the window lands as 150.
	remaining, _, ok := h.Damage(zone.Ref, player, 100, now)
	require.True(t, ok)
	assert.Equal(t, int32(850), remaining)
}

type halvingScaler struct{}

func (halvingScaler) TelegraphDamage(base int32, distFrac float64) int32 {
	if distFrac >= 1 {
		return 0
	}
	return base / 2
}

func TestHostTelegraphDamageFalloff(t *testing.T) {
	sink := &zoneSink{scaler: halvingScaler{}}
	tele := &TelegraphEffect{Shape: ShapeCircle, Params: []float32{10}}
	target := Candidate{Pos: world.Vec3{X: 4}}

	got := sink.falloffDamage(100, tele, target.Pos, []Candidate{target})
	assert.Equal(t, int32(50), got)

	// No telegraph context, no radius: damage lands in full.
	assert.Equal(t, int32(100), sink.falloffDamage(100, nil, target.Pos, nil))
	bare := &TelegraphEffect{Shape: ShapeRoomWide}
	assert.Equal(t, int32(100), sink.falloffDamage(100, bare, target.Pos, nil))
}

func TestHostInterruptWithoutCast(t *testing.T) {
	h, zone, _, _, _ := engageHost(t)

	assert.False(t, h.Interrupt(zone.Ref, time.Now()))
	assert.False(t, h.Interrupt(world.ZoneRef{ZoneID: 99}, time.Now()))
}

func TestHostReleaseStopsRun(t *testing.T) {
	h, zone, _, _, _ := engageHost(t)

	h.Release(zone.Ref)
	_, ok := h.State(zone.Ref)
	assert.False(t, ok)
}
