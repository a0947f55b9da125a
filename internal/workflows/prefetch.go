package workflows

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/dirtio/soilmap/internal/core/domain"
)

// PrefetchInput lists the points whose map units should be warmed.
type PrefetchInput struct {
	Points []domain.Coordinate
}

// PrefetchResult summarises a prefetch run.
type PrefetchResult struct {
	Points   int
	Warmed   int
	Failed   int
	MapUnits int
}

// PrefetchWorkflow fetches the map units for every point in parallel.
// A point that still fails after retries is counted, not fatal.
func PrefetchWorkflow(ctx workflow.Context, input PrefetchInput) (PrefetchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting prefetch workflow", "points", len(input.Points))

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	futures := make([]workflow.Future, len(input.Points))
	for i, p := range input.Points {
		futures[i] = workflow.ExecuteActivity(ctx, "FetchMapUnits", p.Lng, p.Lat)
	}

	res := PrefetchResult{Points: len(input.Points)}
	for i, f := range futures {
		var n int
		if err := f.Get(ctx, &n); err != nil {
			logger.Warn("prefetch point failed", "lat", input.Points[i].Lat, "lng", input.Points[i].Lng, "error", err)
			res.Failed++
			continue
		}
		res.Warmed++
		res.MapUnits += n
	}

	logger.Info("Prefetch finished", "warmed", res.Warmed, "failed", res.Failed, "mapUnits", res.MapUnits)
	return res, nil
}

// ParsePoints parses "lon lat" pairs. "lon,lat" is accepted too, but lists
// coming from the environment are comma-split, so there the pair must use a space.
func ParsePoints(raw []string) ([]domain.Coordinate, error) {
	points := make([]domain.Coordinate, 0, len(raw))
	for _, s := range raw {
		fields := strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
		if len(fields) != 2 {
			return nil, fmt.Errorf("point %q: want \"lon lat\"", s)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: lon: %w", s, err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: lat: %w", s, err)
		}
		p := domain.Coordinate{Lat: lat, Lng: lon}
		if !p.Valid() {
			return nil, fmt.Errorf("point %q: %w", s, domain.ErrInvalidCoordinate)
		}
		points = append(points, p)
	}
	return points, nil
}
