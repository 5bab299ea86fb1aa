package pvp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/world"
)

func guids(seqs ...uint64) []world.GUID {
	out := make([]world.GUID, len(seqs))
	for i, s := range seqs {
		out[i] = world.MakeGUID(world.TypePlayer, s)
	}
	return out
}

func activeMatch(t *testing.T, base time.Time) *Match {
	t.Helper()
	m := NewMatch(1, Bracket2v2,
		Team{TeamID: 10, Rating: 1500, Players: guids(1, 2)},
		Team{TeamID: 20, Rating: 1500, Players: guids(3, 4)},
		DefaultArenaConfig(), base)
	m.Tick(base.Add(30 * time.Second))
	require.Equal(t, ArenaActive, m.State())
	return m
}

func TestEloDeltaSymmetric(t *testing.T) {
	delta := EloDelta(1500, 1500)
	assert.Greater(t, delta, 0)
	assert.Equal(t, 16, delta, "even ratings transfer half the K-factor")

	// Upsets transfer more than expected wins.
	assert.Greater(t, EloDelta(1400, 1600), EloDelta(1600, 1400))
	assert.GreaterOrEqual(t, EloDelta(2400, 1000), 1, "delta is never zero")
}

func TestArenaLifecycleAndElo(t *testing.T) {
	base := time.Unix(1000, 0)
	m := activeMatch(t, base)
	now := base.Add(time.Minute)

	m.ReportDeath(world.MakeGUID(world.TypePlayer, 3), now)
	assert.Equal(t, ArenaActive, m.State())
	assert.Equal(t, 1, m.AliveCount(1))

	m.ReportDeath(world.MakeGUID(world.TypePlayer, 4), now)
	assert.Equal(t, ArenaEnding, m.State())

	m.Tick(now.Add(10 * time.Second))
	require.Equal(t, ArenaComplete, m.State())
	res := m.Result()
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Winner)
	assert.Equal(t, 16, res.RatingDelta)

	rec := m.Record(base, now.Add(10*time.Second))
	require.NotNil(t, rec)
	assert.Equal(t, int64(10), rec.WinnerTeam)
	assert.Equal(t, int64(20), rec.LoserTeam)
	require.Len(t, rec.Players, 4)
	for _, p := range rec.Players {
		if p.Won {
			assert.Equal(t, 16, p.RatingDelta)
		} else {
			assert.Equal(t, -16, p.RatingDelta)
		}
	}
}

func TestArenaDampeningProgression(t *testing.T) {
	base := time.Unix(1000, 0)
	m := activeMatch(t, base)
	activeStart := base.Add(30 * time.Second)

	m.Tick(activeStart.Add(4 * time.Minute))
	assert.Equal(t, 0, m.Dampening(), "no dampening before the start delay")

	m.Tick(activeStart.Add(5 * time.Minute))
	assert.Equal(t, 1, m.Dampening())

	m.Tick(activeStart.Add(5*time.Minute + 30*time.Second))
	assert.Equal(t, 4, m.Dampening())

	// Dampening is non-decreasing.
	m.Tick(activeStart.Add(5*time.Minute + 30*time.Second))
	assert.Equal(t, 4, m.Dampening())
}

func TestArenaDampeningCapsAt100(t *testing.T) {
	base := time.Unix(1000, 0)
	cfg := DefaultArenaConfig()
	cfg.RoundCap = time.Hour // keep the match running past the cap point
	m := NewMatch(1, Bracket2v2,
		Team{Players: guids(1, 2)}, Team{Players: guids(3, 4)}, cfg, base)
	m.Tick(base.Add(30 * time.Second))
	require.Equal(t, ArenaActive, m.State())

	m.Tick(base.Add(40 * time.Minute))
	assert.Equal(t, 100, m.Dampening())

	// Capped: later ticks schedule nothing further.
	m.Tick(base.Add(50 * time.Minute))
	assert.Equal(t, 100, m.Dampening())
	assert.Equal(t, ArenaActive, m.State())
}

func TestArenaRoundCapTiebreak(t *testing.T) {
	base := time.Unix(1000, 0)
	m := activeMatch(t, base)

	m.ReportHealth(world.MakeGUID(world.TypePlayer, 1), 80)
	m.ReportHealth(world.MakeGUID(world.TypePlayer, 3), 20)

	m.Tick(base.Add(30*time.Second + 10*time.Minute))
	require.Equal(t, ArenaEnding, m.State())
	m.Tick(base.Add(30*time.Second + 10*time.Minute + 10*time.Second))
	res := m.Result()
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Winner, "higher mean health percent wins the cap")
}

func TestArenaRoundCapEqualHealthDraw(t *testing.T) {
	base := time.Unix(1000, 0)
	m := activeMatch(t, base)
	m.Tick(base.Add(30*time.Second + 10*time.Minute))
	m.Tick(base.Add(30*time.Second + 10*time.Minute + 10*time.Second))
	res := m.Result()
	require.NotNil(t, res)
	assert.True(t, res.Draw)
	assert.Equal(t, -1, res.Winner)
}

func TestArenaQueueMatchmaking(t *testing.T) {
	q := NewArenaQueue(DefaultArenaConfig(), nil, zap.NewNop())
	t.Cleanup(q.Stop)

	require.NoError(t, q.Queue(Bracket2v2, Team{Players: guids(1, 2)}))
	assert.ErrorIs(t, q.Queue(Bracket2v2, Team{Players: guids(2, 5)}), ErrAlreadyQueued)
	assert.Error(t, q.Queue(Bracket2v2, Team{Players: guids(9)}), "wrong team size")

	require.NoError(t, q.Queue(Bracket2v2, Team{Players: guids(3, 4)}))
	_, ok := q.Match(world.MakeGUID(world.TypePlayer, 1))
	assert.True(t, ok, "two full teams should have been matched")
}

func TestBattlegroundSupervisorBatching(t *testing.T) {
	s := NewBattlegroundSupervisor(BattlegroundDef{MapID: 5, TeamSize: 2, ScoreCap: 100}, zap.NewNop())

	bg, err := s.Enqueue(world.MakeGUID(world.TypePlayer, 1), FactionExile)
	require.NoError(t, err)
	assert.Nil(t, bg)

	_, err = s.Enqueue(world.MakeGUID(world.TypePlayer, 1), FactionExile)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	_, err = s.Enqueue(world.MakeGUID(world.TypePlayer, 2), FactionExile)
	require.NoError(t, err)
	_, err = s.Enqueue(world.MakeGUID(world.TypePlayer, 3), FactionDominion)
	require.NoError(t, err)

	bg, err = s.Enqueue(world.MakeGUID(world.TypePlayer, 4), FactionDominion)
	require.NoError(t, err)
	require.NotNil(t, bg, "both sides full: instance spawns")
	assert.Len(t, bg.Teams[FactionExile], 2)

	assert.False(t, bg.AddScore(FactionExile, 60))
	assert.True(t, bg.AddScore(FactionExile, 40))
	winner, done := bg.Finished()
	assert.True(t, done)
	assert.Equal(t, FactionExile, winner)
}
