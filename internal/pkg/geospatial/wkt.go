package geospatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dirtio/soilmap/internal/core/domain"
)

// ParseError reports malformed WKT. Fragment is the offending token or substring.
type ParseError struct {
	Fragment string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wkt: %s %q: %v", e.Reason, e.Fragment, e.Err)
	}
	return fmt.Sprintf("wkt: %s %q", e.Reason, e.Fragment)
}

func (e *ParseError) Unwrap() error { return e.Err }

const polygonKeyword = "POLYGON"

// ParsePolygon decodes a single-ring `POLYGON ((lng lat, ...))` string.
// Vertices keep their input order and are returned as (lat, lng).
func ParsePolygon(text string) (domain.Polygon, error) {
	body, err := ringBody(text)
	if err != nil {
		return nil, err
	}

	tokens := strings.Split(body, ",")
	poly := make(domain.Polygon, 0, len(tokens))
	for _, tok := range tokens {
		c, err := parseVertex(tok)
		if err != nil {
			return nil, err
		}
		poly = append(poly, c)
	}
	return poly, nil
}

// ringBody strips `POLYGON ((` and `))` and returns what lies between.
func ringBody(text string) (string, error) {
	s := strings.TrimSpace(text)
	if len(s) < len(polygonKeyword) || !strings.EqualFold(s[:len(polygonKeyword)], polygonKeyword) {
		return "", &ParseError{Fragment: head(s), Reason: "missing POLYGON prefix"}
	}
	rest := strings.TrimSpace(s[len(polygonKeyword):])
	for i := 0; i < 2; i++ {
		if !strings.HasPrefix(rest, "(") {
			return "", &ParseError{Fragment: head(rest), Reason: "missing opening (("}
		}
		rest = strings.TrimSpace(rest[1:])
	}
	for i := 0; i < 2; i++ {
		if !strings.HasSuffix(rest, ")") {
			return "", &ParseError{Fragment: tail(rest), Reason: "missing closing ))"}
		}
		rest = strings.TrimSpace(rest[:len(rest)-1])
	}
	if rest == "" {
		return "", &ParseError{Fragment: s, Reason: "empty ring"}
	}
	return rest, nil
}

func parseVertex(tok string) (domain.Coordinate, error) {
	fields := strings.Fields(tok)
	if len(fields) != 2 {
		return domain.Coordinate{}, &ParseError{Fragment: strings.TrimSpace(tok), Reason: "vertex must have exactly two numbers"}
	}
	lng, err := parseNumber(fields[0])
	if err != nil {
		return domain.Coordinate{}, &ParseError{Fragment: strings.TrimSpace(tok), Reason: "bad longitude", Err: err}
	}
	lat, err := parseNumber(fields[1])
	if err != nil {
		return domain.Coordinate{}, &ParseError{Fragment: strings.TrimSpace(tok), Reason: "bad latitude", Err: err}
	}
	return domain.Coordinate{Lat: lat, Lng: lng}, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %s", s)
	}
	return v, nil
}

// FormatPolygon encodes a polygon as `POLYGON ((lng lat, ...))`.
// ParsePolygon(FormatPolygon(p)) returns p unchanged.
func FormatPolygon(p domain.Polygon) string {
	var b strings.Builder
	b.WriteString("POLYGON ((")
	for i, c := range p {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(c.Lng, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(c.Lat, 'f', -1, 64))
	}
	b.WriteString("))")
	return b.String()
}

func head(s string) string {
	if len(s) > 32 {
		return s[:32]
	}
	return s
}

func tail(s string) string {
	if len(s) > 32 {
		return s[len(s)-32:]
	}
	return s
}
