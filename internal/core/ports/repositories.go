package ports

import (
	"context"

	"github.com/dirtio/soilmap/internal/core/domain"
)

// MapUnitRepository persists soil map unit polygons fetched from upstream.
type MapUnitRepository interface {
	UpsertBatch(ctx context.Context, units []domain.MapUnit) error
	// FindContaining returns map units whose geometry contains the point.
	FindContaining(ctx context.Context, lon, lat float64) ([]domain.MapUnit, error)
}
