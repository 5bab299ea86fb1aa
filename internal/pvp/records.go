package pvp

import (
	"context"
	"time"
)

// DuelRecord is the persisted outcome of one duel.
type DuelRecord struct {
	DuelID     int64
	Challenger uint64
	Target     uint64
	Winner     uint64 // 0 on draw
	Reason     string
	Duration   time.Duration
	EndedAt    time.Time
}

// ArenaPlayerRecord is one player's slice of an arena match outcome.
type ArenaPlayerRecord struct {
	PlayerGUID  uint64
	TeamID      int64 // 0 for ad-hoc teams
	RatingDelta int
	Won         bool
}

// ArenaMatchRecord is the persisted outcome of one arena match.
type ArenaMatchRecord struct {
	MatchID     int64
	Bracket     string
	WinnerTeam  int64
	LoserTeam   int64
	RatingDelta int
	Duration    time.Duration
	EndedAt     time.Time
	Players     []ArenaPlayerRecord
}

// Recorder is the persistence contract for PvP outcomes. The database
// repository implements it; matches treat calls as potentially blocking
// and invoke them off the match timeline.
type Recorder interface {
	RecordDuel(ctx context.Context, rec *DuelRecord) error
	RecordArenaMatch(ctx context.Context, rec *ArenaMatchRecord) error
}

// NopRecorder discards records; used in tests and content-only setups.
type NopRecorder struct{}

func (NopRecorder) RecordDuel(context.Context, *DuelRecord) error        { return nil }
func (NopRecorder) RecordArenaMatch(context.Context, *ArenaMatchRecord) error { return nil }
