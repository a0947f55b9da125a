package geospatial_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/pkg/geospatial"
)

func TestParsePolygon_Triangle(t *testing.T) {
	poly, err := geospatial.ParsePolygon("POLYGON ((-122.42 37.77, -122.41 37.78, -122.43 37.76))")
	require.NoError(t, err)

	want := domain.Polygon{
		{Lat: 37.77, Lng: -122.42},
		{Lat: 37.78, Lng: -122.41},
		{Lat: 37.76, Lng: -122.43},
	}
	assert.Equal(t, want, poly)
}

func TestParsePolygon_ClosedRingKeepsClosingVertex(t *testing.T) {
	poly, err := geospatial.ParsePolygon("POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))")
	require.NoError(t, err)
	require.Len(t, poly, 5)
	assert.Equal(t, poly[0], poly[4])
}

func TestParsePolygon_Whitespace(t *testing.T) {
	cases := map[string]string{
		"inside markers":  "POLYGON ((   1.5 2.5,3.5   4.5 , 5.5 6.5   ))",
		"no space":        "POLYGON((1.5 2.5, 3.5 4.5, 5.5 6.5))",
		"newlines":        "POLYGON ((1.5 2.5,\n    3.5 4.5,\n    5.5 6.5))",
		"surrounding":     "  \tPOLYGON ((1.5 2.5, 3.5 4.5, 5.5 6.5))\n",
		"lowercase":       "polygon ((1.5 2.5, 3.5 4.5, 5.5 6.5))",
		"spaced brackets": "POLYGON ( ( 1.5 2.5, 3.5 4.5, 5.5 6.5 ) )",
	}
	want := domain.Polygon{{Lat: 2.5, Lng: 1.5}, {Lat: 4.5, Lng: 3.5}, {Lat: 6.5, Lng: 5.5}}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			poly, err := geospatial.ParsePolygon(in)
			require.NoError(t, err)
			assert.Equal(t, want, poly)
		})
	}
}

func TestParsePolygon_NegativeAndZero(t *testing.T) {
	poly, err := geospatial.ParsePolygon("POLYGON ((0 0, -0.5 -89.9, 179.99 -0))")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 0, Lng: 0}, poly[0])
	assert.Equal(t, domain.Coordinate{Lat: -89.9, Lng: -0.5}, poly[1])
	assert.Equal(t, 179.99, poly[2].Lng)
}

func TestParsePolygon_DegenerateInputIsNotRejected(t *testing.T) {
	poly, err := geospatial.ParsePolygon("POLYGON ((1 1))")
	require.NoError(t, err)
	assert.Len(t, poly, 1)
}

func TestParsePolygon_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fragment string
	}{
		{"bad token", "POLYGON ((1.0 2.0, bad))", "bad"},
		{"non numeric", "POLYGON ((1.0 2.0, x 3.0, 4 5))", "x 3.0"},
		{"three numbers", "POLYGON ((1 2 3, 4 5, 6 7))", "1 2 3"},
		{"empty vertex", "POLYGON ((1 2, , 4 5))", ""},
		{"hole", "POLYGON ((0 0, 4 0, 4 4, 0 0), (1 1, 2 1, 1 2, 1 1))", "0 0)"},
		{"nan", "POLYGON ((1 2, NaN 3, 4 5))", "NaN 3"},
		{"empty ring", "POLYGON (())", "POLYGON (())"},
		{"missing prefix", "LINESTRING (1 2, 3 4)", "LINESTRING (1 2, 3 4)"},
		{"missing suffix", "POLYGON ((1 2, 3 4, 5 6)", "1 2, 3 4, 5 6"},
		{"single paren", "POLYGON (1 2, 3 4, 5 6)", "1 2, 3 4, 5 6)"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poly, err := geospatial.ParsePolygon(tt.input)
			require.Error(t, err)
			assert.Nil(t, poly)

			var pe *geospatial.ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
			assert.Equal(t, tt.fragment, pe.Fragment)
		})
	}
}

func TestFormatPolygon_RoundTrip(t *testing.T) {
	inputs := []string{
		"POLYGON ((-122.42 37.77, -122.41 37.78, -122.43 37.76))",
		"POLYGON ((-122.407560312536 37.4779244261786, -122.407733973112 37.4780814925273, -122.407862057399 37.4781364448679, -122.407560312536 37.4779244261786))",
		"POLYGON ((0 0, 1e-7 -3, 0.1 0.2))",
	}

	for _, in := range inputs {
		first, err := geospatial.ParsePolygon(in)
		require.NoError(t, err)

		second, err := geospatial.ParsePolygon(geospatial.FormatPolygon(first))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestFormatPolygon_AxisOrder(t *testing.T) {
	out := geospatial.FormatPolygon(domain.Polygon{{Lat: 37.77, Lng: -122.42}, {Lat: 1, Lng: 2}})
	assert.Equal(t, "POLYGON ((-122.42 37.77, 2 1))", out)
}

func TestDiamond(t *testing.T) {
	center := domain.Coordinate{Lat: 37.7749, Lng: -122.4194}
	d := geospatial.Diamond(center, geospatial.DefaultHalfWidth)

	require.Len(t, d, 4)
	hw := 0.0015
	assert.Equal(t, domain.Coordinate{Lat: center.Lat + hw, Lng: center.Lng}, d[0])
	assert.Equal(t, domain.Coordinate{Lat: center.Lat, Lng: center.Lng + hw}, d[1])
	assert.Equal(t, domain.Coordinate{Lat: center.Lat - hw, Lng: center.Lng}, d[2])
	assert.Equal(t, domain.Coordinate{Lat: center.Lat, Lng: center.Lng - hw}, d[3])
}
