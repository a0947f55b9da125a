package domain

import (
	"encoding/json"
	"time"
)

// PolygonSource tells which path produced the polygon of a ClickResult.
type PolygonSource string

const (
	// SourceLookup means the polygon came from the lookup service.
	SourceLookup PolygonSource = "lookup"
	// SourceFallback means the synthetic diamond was drawn around the click.
	SourceFallback PolygonSource = "fallback"
	// SourcePoint means only the clicked point is displayed.
	SourcePoint PolygonSource = "point"
)

// ClickResult is the displayed state after a click has been resolved.
type ClickResult struct {
	ID         string        `json:"id"`
	Generation uint64        `json:"generation"`
	Click      Coordinate    `json:"click"`
	Source     PolygonSource `json:"source"`
	Polygon    Polygon       `json:"polygon,omitempty"`
	ResolvedAt time.Time     `json:"resolved_at"`
}

// HasPolygon reports whether the result carries a polygon to draw.
func (r ClickResult) HasPolygon() bool {
	return r.Source != SourcePoint && len(r.Polygon) > 0
}

// wktIndex is the position of the WKT string inside a geometry record.
const wktIndex = 2

// GeometryRecord is one positional row returned by the lookup service:
// [mupolygonkey, mukey, wkt, ...].
type GeometryRecord []json.RawMessage

// WKT extracts the WKT string at index 2.
// ok is false when the field is missing or is not a JSON string.
func (r GeometryRecord) WKT() (string, bool) {
	if len(r) <= wktIndex {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r[wktIndex], &s); err != nil {
		return "", false
	}
	return s, true
}

// LookupResponse is the decoded body of a successful lookup.
type LookupResponse struct {
	Records []GeometryRecord `json:"data"`
	Message string           `json:"message,omitempty"`
}

// MapUnit is a soil survey map unit polygon.
type MapUnit struct {
	MuPolygonKey string `json:"mupolygonkey"`
	MuKey        string `json:"mukey"`
	WKT          string `json:"wkt"`
}

// Row returns the map unit in the positional [mupolygonkey, mukey, wkt] layout.
func (m MapUnit) Row() []string {
	return []string{m.MuPolygonKey, m.MuKey, m.WKT}
}

// MapConfig holds the settings the map front-end needs to render.
type MapConfig struct {
	APIKey          string     `json:"api_key,omitempty"`
	Center          Coordinate `json:"center"`
	Zoom            int        `json:"zoom"`
	ControlPosition string     `json:"control_position"`
}
