package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/ports"
	"github.com/dirtio/soilmap/internal/pkg/logging"
	"github.com/dirtio/soilmap/internal/pkg/metrics"
)

// SoilLookup is the outcome of a map unit query.
type SoilLookup struct {
	// Found is false when the survey has no map units at the point at all.
	Found bool             `json:"found"`
	Units []domain.MapUnit `json:"units"`
}

// SoilService finds the soil map unit polygons containing a point.
type SoilService struct {
	source   ports.SoilDataSource
	store    ports.MapUnitRepository
	cache    ports.CacheService
	cacheTTL int
}

// NewSoilService creates a new SoilService. store and cache may be nil.
func NewSoilService(source ports.SoilDataSource, store ports.MapUnitRepository, cache ports.CacheService, cacheTTLSeconds int) *SoilService {
	if cacheTTLSeconds <= 0 {
		cacheTTLSeconds = 3600
	}
	return &SoilService{source: source, store: store, cache: cache, cacheTTL: cacheTTLSeconds}
}

// MapUnitsAt returns the map units whose geometry contains (lon, lat).
func (s *SoilService) MapUnitsAt(ctx context.Context, lon, lat float64) (*SoilLookup, error) {
	if !(domain.Coordinate{Lat: lat, Lng: lon}).Valid() {
		return nil, domain.ErrInvalidCoordinate
	}

	ctx, span := tracer.Start(ctx, "SoilService.MapUnitsAt")
	defer span.End()
	span.SetAttributes(attribute.Float64("soil.lon", lon), attribute.Float64("soil.lat", lat))

	// Try cache
	cacheKey := fmt.Sprintf("soil:mapunits:%.6f:%.6f", lon, lat)
	if s.cache != nil {
		data, err := s.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			var res SoilLookup
			if err := json.Unmarshal(data, &res); err == nil {
				metrics.CacheHits.WithLabelValues("soil").Inc()
				return &res, nil
			}
			logging.FromContext(ctx).Warn("discarding undecodable cache entry", "key", cacheKey, "error", err)
		case !errors.Is(err, ports.ErrCacheMiss):
			logging.FromContext(ctx).Warn("soil cache read failed", "key", cacheKey, "error", err)
		}
		metrics.CacheMisses.WithLabelValues("soil").Inc()
	}

	res, err := s.lookup(ctx, lon, lat)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return res, nil
}

func (s *SoilService) lookup(ctx context.Context, lon, lat float64) (*SoilLookup, error) {
	log := logging.FromContext(ctx)

	if s.store != nil {
		units, err := s.store.FindContaining(ctx, lon, lat)
		if err != nil {
			log.Warn("map unit store lookup failed", "error", err)
		} else if len(units) > 0 {
			return &SoilLookup{Found: true, Units: units}, nil
		}
	}

	units, err := s.source.MapUnitsAt(ctx, lon, lat)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return &SoilLookup{Found: false, Units: []domain.MapUnit{}}, nil
	}

	matches := containing(log, units, lon, lat)

	if s.store != nil && len(matches) > 0 {
		if err := s.store.UpsertBatch(ctx, matches); err != nil {
			log.Warn("storing map units failed", "error", err, "count", len(matches))
		}
	}

	return &SoilLookup{Found: true, Units: matches}, nil
}

// containing keeps the units whose polygon or multipolygon contains the point.
// The survey may return several intersecting units; all matches are kept.
func containing(log *slog.Logger, units []domain.MapUnit, lon, lat float64) []domain.MapUnit {
	pt := orb.Point{lon, lat}
	out := make([]domain.MapUnit, 0, len(units))
	for _, u := range units {
		geom, err := wkt.Unmarshal(u.WKT)
		if err != nil {
			log.Warn("skipping map unit with invalid geometry", "mupolygonkey", u.MuPolygonKey, "error", err)
			continue
		}
		var inside bool
		switch g := geom.(type) {
		case orb.Polygon:
			inside = planar.PolygonContains(g, pt)
		case orb.MultiPolygon:
			inside = planar.MultiPolygonContains(g, pt)
		default:
			log.Warn("skipping map unit with unsupported geometry", "mupolygonkey", u.MuPolygonKey, "type", geom.GeoJSONType())
		}
		if inside {
			out = append(out, u)
		}
	}
	return out
}

// Lookup serves the resolver in-process, with the same record layout the
// /soil endpoint returns.
func (s *SoilService) Lookup(ctx context.Context, at domain.Coordinate) (*domain.LookupResponse, error) {
	res, err := s.MapUnitsAt(ctx, at.Lng, at.Lat)
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			return nil, &domain.LookupStatusError{StatusCode: 502, Body: err.Error()}
		}
		return nil, &domain.LookupTransportError{Err: err}
	}

	resp := &domain.LookupResponse{Records: make([]domain.GeometryRecord, 0, len(res.Units))}
	for _, u := range res.Units {
		rec := make(domain.GeometryRecord, 0, 3)
		for _, field := range u.Row() {
			b, err := json.Marshal(field)
			if err != nil {
				return nil, &domain.LookupTransportError{Err: err}
			}
			rec = append(rec, b)
		}
		resp.Records = append(resp.Records, rec)
	}
	return resp, nil
}
