package pvp

import (
	"fmt"
	"math"
	"time"

	"github.com/nexusgo/server/internal/world"
)

// Bracket is an arena team-size bracket.
type Bracket int

const (
	Bracket2v2 Bracket = 2
	Bracket3v3 Bracket = 3
	Bracket5v5 Bracket = 5
)

func (b Bracket) String() string { return fmt.Sprintf("%dv%d", int(b), int(b)) }

// TeamSize returns the players per side for the bracket.
func (b Bracket) TeamSize() int { return int(b) }

// ArenaState is the match lifecycle.
type ArenaState int

const (
	ArenaPreparation ArenaState = iota
	ArenaActive
	ArenaEnding
	ArenaComplete
)

func (s ArenaState) String() string {
	switch s {
	case ArenaPreparation:
		return "Preparation"
	case ArenaActive:
		return "Active"
	case ArenaEnding:
		return "Ending"
	case ArenaComplete:
		return "Complete"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ArenaConfig carries arena tuning knobs.
type ArenaConfig struct {
	Preparation      time.Duration
	RoundCap         time.Duration
	DampeningStart   time.Duration
	DampeningTick    time.Duration
	DampeningPerTick int
	EndingDuration   time.Duration
}

func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		Preparation:      30 * time.Second,
		RoundCap:         10 * time.Minute,
		DampeningStart:   5 * time.Minute,
		DampeningTick:    10 * time.Second,
		DampeningPerTick: 1,
		EndingDuration:   10 * time.Second,
	}
}

// Team is one arena side. TeamID > 0 marks a registered team whose rating
// persists; ad-hoc teams carry TeamID 0 and only player records update.
type Team struct {
	TeamID  int64
	Rating  int
	Players []world.GUID
}

// eloK is the rating K-factor.
const eloK = 32.0

// EloDelta computes the rating points transferred from loser to winner.
// The delta is symmetric: winner gains what the loser loses, and it is
// strictly positive even between equal ratings.
func EloDelta(winnerRating, loserRating int) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(loserRating-winnerRating)/400.0))
	delta := int(math.Round(eloK * (1.0 - expected)))
	if delta < 1 {
		delta = 1
	}
	return delta
}

// ArenaResult is the final match outcome. Winner is -1 for a draw.
type ArenaResult struct {
	Winner      int // team index 0 or 1, -1 on draw
	RatingDelta int
	Draw        bool
}

// Match is one arena match state machine, owned by its worker. Methods
// take explicit time for deterministic tests.
type Match struct {
	ID      int64
	Bracket Bracket
	Teams   [2]Team

	cfg   ArenaConfig
	state ArenaState

	prepEnd     time.Time
	activeStart time.Time
	endingUntil time.Time

	dampening     int
	nextDampenAt  time.Time
	alive         [2]map[world.GUID]bool
	healthPct     map[world.GUID]float64
	pendingWinner int

	result *ArenaResult
}

func NewMatch(id int64, bracket Bracket, a, b Team, cfg ArenaConfig, now time.Time) *Match {
	m := &Match{
		ID:            id,
		Bracket:       bracket,
		Teams:         [2]Team{a, b},
		cfg:           cfg,
		state:         ArenaPreparation,
		prepEnd:       now.Add(cfg.Preparation),
		healthPct:     make(map[world.GUID]float64),
		pendingWinner: -1,
	}
	for i, team := range m.Teams {
		m.alive[i] = make(map[world.GUID]bool, len(team.Players))
		for _, p := range team.Players {
			m.alive[i][p] = true
			m.healthPct[p] = 100
		}
	}
	return m
}

func (m *Match) State() ArenaState    { return m.state }
func (m *Match) Dampening() int       { return m.dampening }
func (m *Match) Result() *ArenaResult { return m.result }

// AliveCount returns the living players on one team.
func (m *Match) AliveCount(team int) int {
	n := 0
	for _, up := range m.alive[team] {
		if up {
			n++
		}
	}
	return n
}

// Tick advances time-driven transitions: preparation end, dampening
// increments, the round cap, and the ending grace period.
func (m *Match) Tick(now time.Time) {
	switch m.state {
	case ArenaPreparation:
		if !now.Before(m.prepEnd) {
			m.state = ArenaActive
			m.activeStart = now
			m.nextDampenAt = now.Add(m.cfg.DampeningStart)
		}
	case ArenaActive:
		// Dampening is non-decreasing and capped at 100; once capped no
		// further tick is scheduled.
		for m.dampening < 100 && !now.Before(m.nextDampenAt) {
			m.dampening += m.cfg.DampeningPerTick
			if m.dampening >= 100 {
				m.dampening = 100
				break
			}
			m.nextDampenAt = m.nextDampenAt.Add(m.cfg.DampeningTick)
		}
		if now.Sub(m.activeStart) >= m.cfg.RoundCap {
			m.roundCapTiebreak(now)
		}
	case ArenaEnding:
		if !now.Before(m.endingUntil) {
			m.complete()
		}
	}
}

// ReportDeath removes a player from the alive count; a team hitting zero
// hands the win to the other side.
func (m *Match) ReportDeath(guid world.GUID, now time.Time) {
	if m.state != ArenaActive {
		return
	}
	for i := range m.alive {
		if m.alive[i][guid] {
			m.alive[i][guid] = false
			m.healthPct[guid] = 0
			if m.AliveCount(i) == 0 {
				m.beginEnding(1-i, now)
			}
			return
		}
	}
}

// ReportHealth records a participant's health percent for the round-cap
// tiebreak.
func (m *Match) ReportHealth(guid world.GUID, pct float64) {
	if _, ok := m.healthPct[guid]; ok {
		m.healthPct[guid] = pct
	}
}

// roundCapTiebreak ends a capped match by comparing each team's mean
// remaining health percent; equal means a draw.
func (m *Match) roundCapTiebreak(now time.Time) {
	avg := func(team int) float64 {
		var sum float64
		for _, p := range m.Teams[team].Players {
			sum += m.healthPct[p]
		}
		return sum / float64(len(m.Teams[team].Players))
	}
	a, b := avg(0), avg(1)
	switch {
	case a > b:
		m.beginEnding(0, now)
	case b > a:
		m.beginEnding(1, now)
	default:
		m.beginEnding(-1, now)
	}
}

func (m *Match) beginEnding(winner int, now time.Time) {
	m.state = ArenaEnding
	m.endingUntil = now.Add(m.cfg.EndingDuration)
	m.pendingWinner = winner
}

func (m *Match) complete() {
	m.state = ArenaComplete
	if m.pendingWinner < 0 {
		m.result = &ArenaResult{Winner: -1, Draw: true}
		return
	}
	w, l := m.pendingWinner, 1-m.pendingWinner
	m.result = &ArenaResult{
		Winner:      w,
		RatingDelta: EloDelta(m.Teams[w].Rating, m.Teams[l].Rating),
	}
}

// Record builds the persistence record for a completed match.
func (m *Match) Record(startedAt, endedAt time.Time) *ArenaMatchRecord {
	if m.result == nil {
		return nil
	}
	rec := &ArenaMatchRecord{
		MatchID:  m.ID,
		Bracket:  m.Bracket.String(),
		Duration: endedAt.Sub(startedAt),
		EndedAt:  endedAt,
	}
	if m.result.Draw {
		for i := range m.Teams {
			for _, p := range m.Teams[i].Players {
				rec.Players = append(rec.Players, ArenaPlayerRecord{
					PlayerGUID: uint64(p), TeamID: m.Teams[i].TeamID,
				})
			}
		}
		return rec
	}
	w, l := m.result.Winner, 1-m.result.Winner
	rec.WinnerTeam = m.Teams[w].TeamID
	rec.LoserTeam = m.Teams[l].TeamID
	rec.RatingDelta = m.result.RatingDelta
	for _, p := range m.Teams[w].Players {
		rec.Players = append(rec.Players, ArenaPlayerRecord{
			PlayerGUID: uint64(p), TeamID: m.Teams[w].TeamID,
			RatingDelta: m.result.RatingDelta, Won: true,
		})
	}
	for _, p := range m.Teams[l].Players {
		rec.Players = append(rec.Players, ArenaPlayerRecord{
			PlayerGUID: uint64(p), TeamID: m.Teams[l].TeamID,
			RatingDelta: -m.result.RatingDelta,
		})
	}
	return rec
}
