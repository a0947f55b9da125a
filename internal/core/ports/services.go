package ports

import (
	"context"
	"errors"

	"github.com/dirtio/soilmap/internal/core/domain"
)

// PolygonLookupService resolves the polygon geometry under a coordinate.
// Implementations return *domain.LookupTransportError for network failures
// and *domain.LookupStatusError for non-2xx replies.
type PolygonLookupService interface {
	Lookup(ctx context.Context, at domain.Coordinate) (*domain.LookupResponse, error)
}

// ClickObserver receives click notifications from the resolver.
type ClickObserver interface {
	// ClickOccurred fires exactly once per click, after the decision is made.
	ClickOccurred(ctx context.Context, click domain.Coordinate)
	// ClickResolved fires when a result replaces the displayed ClickResult.
	ClickResolved(ctx context.Context, result domain.ClickResult)
}

// ClickSource is a map surface that emits clicks.
// The returned stop func unregisters the listener.
type ClickSource interface {
	Listen(ctx context.Context, handler func(ctx context.Context, click domain.Coordinate)) (stop func(), err error)
}

// SoilDataSource queries the upstream soil survey for map units intersecting a point.
// A nil slice with nil error means the upstream table was empty.
type SoilDataSource interface {
	MapUnitsAt(ctx context.Context, lon, lat float64) ([]domain.MapUnit, error)
}

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	// Get returns ErrCacheMiss for an absent key; other errors are backend failures.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
}

// EventPublisher publishes click events to a message broker.
type EventPublisher interface {
	PublishClickOccurred(ctx context.Context, click domain.Coordinate) error
	PublishClickResolved(ctx context.Context, result domain.ClickResult) error
}
