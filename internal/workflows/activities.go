package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/usecases"
	"github.com/dirtio/soilmap/internal/pkg/metrics"
)

// PrefetchActivities holds the activity implementations for the prefetch workflow.
type PrefetchActivities struct {
	Soil *usecases.SoilService
}

// FetchMapUnits warms the soil cache and store for one point and returns the
// number of map units containing it.
func (a *PrefetchActivities) FetchMapUnits(ctx context.Context, lon, lat float64) (int, error) {
	res, err := a.Soil.MapUnitsAt(ctx, lon, lat)
	if errors.Is(err, domain.ErrInvalidCoordinate) {
		return 0, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid point %g,%g", lon, lat), "InvalidCoordinate", err)
	}
	if err != nil {
		return 0, fmt.Errorf("map units at %g,%g: %w", lon, lat, err)
	}

	activity.GetLogger(ctx).Info("prefetched map units", "lon", lon, "lat", lat, "count", len(res.Units))
	metrics.MapUnitsPrefetched.Add(float64(len(res.Units)))
	return len(res.Units), nil
}
