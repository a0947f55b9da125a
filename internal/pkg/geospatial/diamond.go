package geospatial

import "github.com/dirtio/soilmap/internal/core/domain"

// DefaultHalfWidth is the fallback diamond half-width in decimal degrees.
const DefaultHalfWidth = 0.0015

// Diamond returns a 4-vertex ring around center: north, east, south, west.
func Diamond(center domain.Coordinate, halfWidth float64) domain.Polygon {
	return domain.Polygon{
		{Lat: center.Lat + halfWidth, Lng: center.Lng},
		{Lat: center.Lat, Lng: center.Lng + halfWidth},
		{Lat: center.Lat - halfWidth, Lng: center.Lng},
		{Lat: center.Lat, Lng: center.Lng - halfWidth},
	}
}
