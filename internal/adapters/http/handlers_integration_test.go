//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dirtio/soilmap/internal/adapters/http"
	"github.com/dirtio/soilmap/internal/adapters/postgres"
	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/usecases"
	"github.com/dirtio/soilmap/internal/pkg/config"
)

// setupTestDB connects to the test database described by SOILMAP_DATABASE_*.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("soilmap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestIntegration_SoilServedFromStore(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewMapUnitRepo(db)

	unit := domain.MapUnit{
		MuPolygonKey: "it-http-1",
		MuKey:        "it-mukey",
		WKT:          "POLYGON((10 10,11 10,11 11,10 11,10 10))",
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM map_units WHERE mupolygonkey = $1`, unit.MuPolygonKey)
	})
	if err := repo.UpsertBatch(context.Background(), []domain.MapUnit{unit}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// The upstream must not be consulted when the store already has the unit.
	src := &mockSoilSource{}
	app := fiber.New()
	http.SetupRoutes(app, &http.Dependencies{
		Resolver: usecases.NewClickResolver(&mockLookup{}, usecases.ResolverOptions{}),
		Soil:     usecases.NewSoilService(src, repo, nil, 0),
		DB:       db,
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/soil?lon=10.5&lat=10.5", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data [][]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) == 0 || body.Data[0][0] != unit.MuPolygonKey {
		t.Errorf("expected stored unit, got %v", body.Data)
	}
	if src.calls != 0 {
		t.Errorf("expected no upstream calls, got %d", src.calls)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected ready with live database, got %d", resp.StatusCode)
	}
}
