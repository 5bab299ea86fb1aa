package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type CharacterRow struct {
	ID          int32
	AccountName string
	RealmID     int32
	Name        string
	ClassID     int16
	Faction     int32
	Level       int16
	XP          int64
	Gold        int64
	Health      int32
	MaxHealth   int32
	ZoneID      int32
	X, Y, Z     float64
	DisplayInfo int32
	CreatedAt   time.Time
	LastLogin   *time.Time
	DeletedAt   *time.Time
}

type CharacterRepo struct {
	db *DB
}

func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

const characterCols = `id, account_name, realm_id, name, class_id, faction,
	level, xp, gold, health, max_health,
	zone_id, x, y, z, display_info, created_at, last_login, deleted_at`

func scanCharacter(row pgx.Row, c *CharacterRow) error {
	return row.Scan(
		&c.ID, &c.AccountName, &c.RealmID, &c.Name, &c.ClassID, &c.Faction,
		&c.Level, &c.XP, &c.Gold, &c.Health, &c.MaxHealth,
		&c.ZoneID, &c.X, &c.Y, &c.Z, &c.DisplayInfo, &c.CreatedAt, &c.LastLogin, &c.DeletedAt,
	)
}

func (r *CharacterRepo) LoadByAccount(ctx context.Context, accountName string, realmID int32) ([]CharacterRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+characterCols+`
		 FROM characters
		 WHERE account_name = $1 AND realm_id = $2 AND deleted_at IS NULL
		 ORDER BY id`, accountName, realmID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CharacterRow
	for rows.Next() {
		var c CharacterRow
		if err := scanCharacter(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *CharacterRepo) Load(ctx context.Context, id int32) (*CharacterRow, error) {
	c := &CharacterRow{}
	err := scanCharacter(r.db.Pool.QueryRow(ctx,
		`SELECT `+characterCols+`
		 FROM characters WHERE id = $1 AND deleted_at IS NULL`, id), c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CharacterRepo) Create(ctx context.Context, c *CharacterRow) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (
			account_name, realm_id, name, class_id, faction,
			level, xp, gold, health, max_health,
			zone_id, x, y, z, display_info
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
		) RETURNING id`,
		c.AccountName, c.RealmID, c.Name, c.ClassID, c.Faction,
		c.Level, c.XP, c.Gold, c.Health, c.MaxHealth,
		c.ZoneID, c.X, c.Y, c.Z, c.DisplayInfo,
	).Scan(&c.ID)
}

// SavePosition persists the mobile state written at logout and zone
// transfer. Progression columns go through SaveProgress.
func (r *CharacterRepo) SavePosition(ctx context.Context, id int32, zoneID int32, x, y, z float64, health int32) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET zone_id = $2, x = $3, y = $4, z = $5, health = $6
		 WHERE id = $1`,
		id, zoneID, x, y, z, health,
	)
	return err
}

func (r *CharacterRepo) SaveProgress(ctx context.Context, id int32, level int16, xp, gold int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET level = $2, xp = $3, gold = $4 WHERE id = $1`,
		id, level, xp, gold,
	)
	return err
}

func (r *CharacterRepo) TouchLogin(ctx context.Context, id int32) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// Delete soft-deletes; the name stays reserved until a purge job clears it.
func (r *CharacterRepo) Delete(ctx context.Context, id int32) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	return err
}
