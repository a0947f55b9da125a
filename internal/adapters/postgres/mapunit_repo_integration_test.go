//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtio/soilmap/internal/adapters/postgres"
	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/pkg/config"
)

func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("soilmap-test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestMapUnitRepo_UpsertAndFindContaining(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewMapUnitRepo(db)
	ctx := context.Background()

	unit := domain.MapUnit{
		MuPolygonKey: "it-399359807",
		MuKey:        "456385",
		WKT:          "POLYGON((-122.46 37.48,-122.44 37.48,-122.44 37.5,-122.46 37.5,-122.46 37.48))",
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM map_units WHERE mupolygonkey = $1`, unit.MuPolygonKey)
	})

	require.NoError(t, repo.UpsertBatch(ctx, []domain.MapUnit{unit}))
	// Upserting twice must not fail.
	require.NoError(t, repo.UpsertBatch(ctx, []domain.MapUnit{unit}))

	found, err := repo.FindContaining(ctx, -122.449871, 37.492633)
	require.NoError(t, err)

	var keys []string
	for _, u := range found {
		keys = append(keys, u.MuPolygonKey)
	}
	assert.Contains(t, keys, unit.MuPolygonKey)

	outside, err := repo.FindContaining(ctx, -100, 30)
	require.NoError(t, err)
	for _, u := range outside {
		assert.NotEqual(t, unit.MuPolygonKey, u.MuPolygonKey)
	}
}
