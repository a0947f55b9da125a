package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dirtio/soilmap/internal/core/domain"
)

// MapUnitRepo implements ports.MapUnitRepository on a PostGIS table.
type MapUnitRepo struct {
	db *DB
}

// NewMapUnitRepo creates a new MapUnitRepo.
func NewMapUnitRepo(db *DB) *MapUnitRepo {
	return &MapUnitRepo{db: db}
}

const upsertMapUnitSQL = `
	INSERT INTO map_units (mupolygonkey, mukey, geom, fetched_at)
	VALUES ($1, $2, ST_GeomFromText($3, 4326), now())
	ON CONFLICT (mupolygonkey) DO UPDATE
	SET mukey = EXCLUDED.mukey, geom = EXCLUDED.geom, fetched_at = EXCLUDED.fetched_at
`

// UpsertBatch inserts or refreshes many map units using pgx.Batch.
func (r *MapUnitRepo) UpsertBatch(ctx context.Context, units []domain.MapUnit) error {
	if len(units) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range units {
		batch.Queue(upsertMapUnitSQL, u.MuPolygonKey, u.MuKey, u.WKT)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, u := range units {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert map unit %s: %w", u.MuPolygonKey, err)
		}
	}
	return nil
}

// FindContaining returns the stored map units whose geometry contains (lon, lat).
func (r *MapUnitRepo) FindContaining(ctx context.Context, lon, lat float64) ([]domain.MapUnit, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT mupolygonkey, mukey, ST_AsText(geom)
		FROM map_units
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY mupolygonkey
	`, lon, lat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []domain.MapUnit
	for rows.Next() {
		var u domain.MapUnit
		if err := rows.Scan(&u.MuPolygonKey, &u.MuKey, &u.WKT); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// Count returns the number of stored map units.
func (r *MapUnitRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM map_units`).Scan(&n)
	return n, err
}
