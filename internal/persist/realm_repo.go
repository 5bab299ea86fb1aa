package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type RealmRow struct {
	ID         int32
	Name       string
	Address    string
	Population int32
	Locked     bool
}

type RealmRepo struct {
	db *DB
}

func NewRealmRepo(db *DB) *RealmRepo {
	return &RealmRepo{db: db}
}

func (r *RealmRepo) List(ctx context.Context) ([]RealmRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, address, population, locked FROM realms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RealmRow
	for rows.Next() {
		var rm RealmRow
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.Address, &rm.Population, &rm.Locked); err != nil {
			return nil, err
		}
		result = append(result, rm)
	}
	return result, rows.Err()
}

func (r *RealmRepo) Load(ctx context.Context, id int32) (*RealmRow, error) {
	rm := &RealmRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, address, population, locked FROM realms WHERE id = $1`, id,
	).Scan(&rm.ID, &rm.Name, &rm.Address, &rm.Population, &rm.Locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rm, nil
}

func (r *RealmRepo) SetPopulation(ctx context.Context, id int32, population int32) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE realms SET population = $2 WHERE id = $1`, id, population)
	return err
}
