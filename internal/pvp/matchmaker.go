package pvp

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/world"
)

// ErrAlreadyQueued is the typed refusal for double queueing.
var ErrAlreadyQueued = errors.New("already queued")

const matchTickInterval = 500 * time.Millisecond

// ArenaQueue matches teams per bracket and runs the resulting matches.
type ArenaQueue struct {
	mu      sync.Mutex
	queues  map[Bracket][]Team
	queued  map[world.GUID]bool
	matches map[int64]*runningMatch
	nextID  int64

	cfg  ArenaConfig
	rec  Recorder
	log  *zap.Logger
	stop chan struct{}
	once sync.Once
}

type runningMatch struct {
	match     *Match
	startedAt time.Time
}

func NewArenaQueue(cfg ArenaConfig, rec Recorder, log *zap.Logger) *ArenaQueue {
	if rec == nil {
		rec = NopRecorder{}
	}
	q := &ArenaQueue{
		queues:  make(map[Bracket][]Team),
		queued:  make(map[world.GUID]bool),
		matches: make(map[int64]*runningMatch),
		cfg:     cfg,
		rec:     rec,
		log:     log,
		stop:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *ArenaQueue) run() {
	ticker := time.NewTicker(matchTickInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			q.tickAll(now)
		case <-q.stop:
			return
		}
	}
}

func (q *ArenaQueue) Stop() { q.once.Do(func() { close(q.stop) }) }

// Queue enters a team into a bracket. Any member already queued or in a
// match is a typed refusal.
func (q *ArenaQueue) Queue(bracket Bracket, team Team) error {
	if len(team.Players) != bracket.TeamSize() {
		return errors.New("team size does not match bracket")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range team.Players {
		if q.queued[p] {
			return ErrAlreadyQueued
		}
	}
	for _, p := range team.Players {
		q.queued[p] = true
	}
	q.queues[bracket] = append(q.queues[bracket], team)
	q.matchmakeLocked(bracket, time.Now())
	return nil
}

// Leave withdraws a player's team from the queue.
func (q *ArenaQueue) Leave(guid world.GUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for bracket, teams := range q.queues {
		for i, team := range teams {
			for _, p := range team.Players {
				if p != guid {
					continue
				}
				q.queues[bracket] = append(teams[:i], teams[i+1:]...)
				for _, member := range team.Players {
					delete(q.queued, member)
				}
				return true
			}
		}
	}
	return false
}

// Match returns the live match a player is fighting in.
func (q *ArenaQueue) Match(guid world.GUID) (*Match, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, rm := range q.matches {
		for _, team := range rm.match.Teams {
			for _, p := range team.Players {
				if p == guid {
					return rm.match, true
				}
			}
		}
	}
	return nil, false
}

func (q *ArenaQueue) matchmakeLocked(bracket Bracket, now time.Time) {
	for len(q.queues[bracket]) >= 2 {
		a, b := q.queues[bracket][0], q.queues[bracket][1]
		q.queues[bracket] = q.queues[bracket][2:]
		q.nextID++
		m := NewMatch(q.nextID, bracket, a, b, q.cfg, now)
		q.matches[m.ID] = &runningMatch{match: m, startedAt: now}
		q.log.Info("競技場配對成功",
			zap.Int64("match_id", m.ID),
			zap.String("bracket", bracket.String()))
	}
}

func (q *ArenaQueue) tickAll(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, rm := range q.matches {
		rm.match.Tick(now)
		if rm.match.State() != ArenaComplete {
			continue
		}
		delete(q.matches, id)
		for _, team := range rm.match.Teams {
			for _, p := range team.Players {
				delete(q.queued, p)
			}
		}
		rec := rm.match.Record(rm.startedAt, now)
		if rec == nil {
			continue
		}
		go func(rec *ArenaMatchRecord) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := q.rec.RecordArenaMatch(ctx, rec); err != nil {
				q.log.Warn("競技場紀錄寫入失敗", zap.Int64("match_id", rec.MatchID), zap.Error(err))
			}
		}(rec)
	}
}

// Factions.
const (
	FactionExile    int32 = 166
	FactionDominion int32 = 167
)

// BattlegroundDef sizes one battleground map.
type BattlegroundDef struct {
	MapID    int32
	TeamSize int
	ScoreCap int32
}

// Battleground is one long-running objective match between an exile and a
// dominion team. Scoring is objective-driven; first faction to the cap
// wins.
type Battleground struct {
	ID    int64
	Def   BattlegroundDef
	Teams map[int32][]world.GUID // faction → players
	Score map[int32]int32

	started  time.Time
	finished bool
	winner   int32
}

// AddScore credits objective points to a faction; returns true once the
// score cap is reached and the match finishes.
func (b *Battleground) AddScore(faction int32, points int32) bool {
	if b.finished {
		return true
	}
	b.Score[faction] += points
	if b.Score[faction] >= b.Def.ScoreCap {
		b.finished = true
		b.winner = faction
	}
	return b.finished
}

func (b *Battleground) Finished() (int32, bool) { return b.winner, b.finished }

// BattlegroundSupervisor batches exile and dominion queues and spawns
// instances once both sides can field a full team.
type BattlegroundSupervisor struct {
	mu     sync.Mutex
	def    BattlegroundDef
	queues map[int32][]world.GUID
	live   map[int64]*Battleground
	nextID int64
	log    *zap.Logger
}

func NewBattlegroundSupervisor(def BattlegroundDef, log *zap.Logger) *BattlegroundSupervisor {
	return &BattlegroundSupervisor{
		def:    def,
		queues: map[int32][]world.GUID{FactionExile: nil, FactionDominion: nil},
		live:   make(map[int64]*Battleground),
		log:    log,
	}
}

// Enqueue adds a player to their faction queue and spawns an instance when
// both factions can field a team.
func (s *BattlegroundSupervisor) Enqueue(guid world.GUID, faction int32) (*Battleground, error) {
	if faction != FactionExile && faction != FactionDominion {
		return nil, errors.New("unknown faction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queues {
		for _, p := range q {
			if p == guid {
				return nil, ErrAlreadyQueued
			}
		}
	}
	s.queues[faction] = append(s.queues[faction], guid)

	if len(s.queues[FactionExile]) < s.def.TeamSize || len(s.queues[FactionDominion]) < s.def.TeamSize {
		return nil, nil
	}
	s.nextID++
	bg := &Battleground{
		ID:  s.nextID,
		Def: s.def,
		Teams: map[int32][]world.GUID{
			FactionExile:    append([]world.GUID(nil), s.queues[FactionExile][:s.def.TeamSize]...),
			FactionDominion: append([]world.GUID(nil), s.queues[FactionDominion][:s.def.TeamSize]...),
		},
		Score:   map[int32]int32{FactionExile: 0, FactionDominion: 0},
		started: time.Now(),
	}
	s.queues[FactionExile] = append([]world.GUID(nil), s.queues[FactionExile][s.def.TeamSize:]...)
	s.queues[FactionDominion] = append([]world.GUID(nil), s.queues[FactionDominion][s.def.TeamSize:]...)
	s.live[bg.ID] = bg
	s.log.Info("戰場實例開啟", zap.Int64("bg_id", bg.ID), zap.Int32("map", s.def.MapID))
	return bg, nil
}
