package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nexusgo/server/internal/pvp"
)

// PvPRepo persists duel and arena outcomes. It implements pvp.Recorder;
// the managers call it off the match timeline with a bounded context.
type PvPRepo struct {
	db *DB
}

func NewPvPRepo(db *DB) *PvPRepo {
	return &PvPRepo{db: db}
}

var _ pvp.Recorder = (*PvPRepo)(nil)

func (r *PvPRepo) RecordDuel(ctx context.Context, rec *pvp.DuelRecord) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO duel_history (duel_id, challenger, target, winner, reason, duration_ms, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.DuelID, int64(rec.Challenger), int64(rec.Target), int64(rec.Winner),
		rec.Reason, rec.Duration.Milliseconds(), rec.EndedAt,
	)
	return err
}

// RecordArenaMatch writes the match, its player rows, and the registered
// team rating updates in one transaction.
func (r *PvPRepo) RecordArenaMatch(ctx context.Context, rec *pvp.ArenaMatchRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var rowID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO arena_matches (match_id, bracket, winner_team, loser_team, rating_delta, duration_ms, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.MatchID, rec.Bracket, rec.WinnerTeam, rec.LoserTeam,
		rec.RatingDelta, rec.Duration.Milliseconds(), rec.EndedAt,
	).Scan(&rowID)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	for _, p := range rec.Players {
		if _, err := tx.Exec(ctx,
			`INSERT INTO arena_match_players (match_row_id, player_guid, team_id, rating_delta, won)
			 VALUES ($1, $2, $3, $4, $5)`,
			rowID, int64(p.PlayerGUID), p.TeamID, p.RatingDelta, p.Won,
		); err != nil {
			return fmt.Errorf("insert player row: %w", err)
		}
	}

	// Ad-hoc teams carry ID 0 and have no persistent rating.
	if rec.WinnerTeam != 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE arena_teams SET rating = rating + $2, wins = wins + 1 WHERE id = $1`,
			rec.WinnerTeam, rec.RatingDelta,
		); err != nil {
			return fmt.Errorf("update winner rating: %w", err)
		}
	}
	if rec.LoserTeam != 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE arena_teams SET rating = GREATEST(0, rating - $2), losses = losses + 1 WHERE id = $1`,
			rec.LoserTeam, rec.RatingDelta,
		); err != nil {
			return fmt.Errorf("update loser rating: %w", err)
		}
	}

	return tx.Commit(ctx)
}

type ArenaTeamRow struct {
	ID      int64
	Name    string
	Bracket string
	Rating  int32
	Wins    int32
	Losses  int32
}

func (r *PvPRepo) LoadTeam(ctx context.Context, id int64) (*ArenaTeamRow, error) {
	t := &ArenaTeamRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, bracket, rating, wins, losses FROM arena_teams WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Bracket, &t.Rating, &t.Wins, &t.Losses)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *PvPRepo) CreateTeam(ctx context.Context, name, bracket string) (*ArenaTeamRow, error) {
	t := &ArenaTeamRow{Name: name, Bracket: bracket, Rating: 1500}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO arena_teams (name, bracket) VALUES ($1, $2) RETURNING id`,
		name, bracket,
	).Scan(&t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}
